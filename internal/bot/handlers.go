package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// commandTimeout bounds syncs started from the chat
const commandTimeout = 5 * time.Minute

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	if update.Message != nil {
		b.handleMessage(update.Message)
	} else if update.CallbackQuery != nil {
		b.handleCallback(update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	if !b.cfg.IsOperator(chatID) {
		b.SendMessage(chatID, "⛔ Access denied")
		return
	}

	if msg.IsCommand() {
		b.handleCommand(msg)
	}
}

func (b *Bot) handleCallback(callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil || !b.cfg.IsOperator(callback.Message.Chat.ID) {
		b.api.Request(tgbotapi.NewCallback(callback.ID, "⛔ Access denied"))
		return
	}
	chatID := callback.Message.Chat.ID

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	parts := strings.Split(callback.Data, ":")

	switch parts[0] {
	case "retry":
		// retry:userID:sourceID
		userID, sourceID, ok := parseRetry(parts)
		if !ok {
			b.api.Request(tgbotapi.NewCallback(callback.ID, "Bad request"))
			return
		}
		b.api.Request(tgbotapi.NewCallback(callback.ID, "Syncing..."))

		res, err := b.syncer.SyncSource(ctx, userID, sourceID)
		if res == nil {
			b.SendMessage(chatID, "❌ "+escape(err.Error()))
			return
		}
		b.SendMessage(chatID, formatSyncResult(res))

	case "syncall":
		b.api.Request(tgbotapi.NewCallback(callback.ID, "Syncing everything..."))
		b.runSyncAll(ctx, chatID)

	default:
		log.Printf("Unknown callback data: %q", callback.Data)
		b.api.Request(tgbotapi.NewCallback(callback.ID, ""))
	}
}

func (b *Bot) runSyncAll(ctx context.Context, chatID int64) {
	batch, err := b.syncer.SyncAll(ctx)
	if err != nil {
		b.SendMessage(chatID, "❌ Sync failed: "+escape(err.Error()))
		return
	}
	if failed := batch.Failed(); len(failed) > 0 {
		b.SendMessageWithKeyboard(chatID, formatSyncAlert(batch), retryKeyboard(failed))
		return
	}
	b.SendMessage(chatID, formatBatchSummary(batch))
}

func parseRetry(parts []string) (userID, sourceID int64, ok bool) {
	if len(parts) != 3 {
		return 0, 0, false
	}
	userID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	sourceID, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return userID, sourceID, true
}

func parseUserID(args string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("expected a user id, got %q", args)
	}
	return id, nil
}
