package bot

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tazhate/agendasync/internal/domain"
	"github.com/tazhate/agendasync/internal/service"
)

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	cmd := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())

	switch cmd {
	case "start", "help":
		b.cmdHelp(chatID)
	case "sync":
		b.cmdSync(chatID, args)
	case "sources":
		b.cmdSources(chatID, args)
	default:
		b.SendMessage(chatID, "Unknown command. /help for the list")
	}
}

func (b *Bot) cmdHelp(chatID int64) {
	text := `<b>Commands:</b>

/sync — sync every source now
/sync ID — sync all sources of user ID
/sources ID — list sources of user ID

Failed scheduled syncs are reported here with retry buttons.`
	b.SendMessage(chatID, text)
}

func (b *Bot) cmdSync(chatID int64, args string) {
	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	if args == "" {
		b.runSyncAll(ctx, chatID)
		return
	}

	userID, err := parseUserID(args)
	if err != nil {
		b.SendMessage(chatID, "Usage: /sync [user ID]")
		return
	}

	batch, err := b.syncer.SyncUser(ctx, userID)
	if err != nil {
		b.SendMessage(chatID, "❌ "+escape(err.Error()))
		return
	}
	if failed := batch.Failed(); len(failed) > 0 {
		b.SendMessageWithKeyboard(chatID, formatSyncAlert(batch), retryKeyboard(failed))
		return
	}
	b.SendMessage(chatID, formatBatchSummary(batch))
}

func (b *Bot) cmdSources(chatID int64, args string) {
	userID, err := parseUserID(args)
	if err != nil {
		b.SendMessage(chatID, "Usage: /sources user ID")
		return
	}

	sources, err := b.sources.ListSourcesByUser(b.ctx, userID)
	if err != nil {
		b.SendMessage(chatID, "❌ "+escape(err.Error()))
		return
	}

	text := formatSources(userID, sources)
	if kb := sourcesKeyboard(sources); kb != nil {
		b.SendMessageWithKeyboard(chatID, text, *kb)
		return
	}
	b.SendMessage(chatID, text)
}

func formatSources(userID int64, sources []*domain.Source) string {
	if len(sources) == 0 {
		return fmt.Sprintf("User %d has no sources.", userID)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "<b>Sources of user %d:</b>\n\n", userID)
	for _, src := range sources {
		synced := "never synced"
		if !src.NeverSynced() {
			synced = "synced " + src.LastSyncedAt.UTC().Format("2006-01-02 15:04 MST")
		}
		fmt.Fprintf(&sb, "%d. %s (%s)\n", src.ID, escape(src.Label), synced)
	}
	return sb.String()
}

func formatSyncResult(r *service.SyncResult) string {
	if !r.OK() {
		return fmt.Sprintf("❌ Source %d (%s) failed:\n<code>%s</code>", r.SourceID, escape(r.URL), escape(r.Err.Error()))
	}
	return fmt.Sprintf("✅ Source %d synced: %d new, %d updated", r.SourceID, r.Inserted, r.Updated)
}

func formatBatchSummary(batch *service.BatchResult) string {
	if len(batch.Results) == 0 {
		return "Nothing to sync."
	}
	return fmt.Sprintf("✅ %d sources synced, %d events", batch.Succeeded(), batch.Processed())
}

func formatSyncAlert(batch *service.BatchResult) string {
	failed := batch.Failed()

	var sb strings.Builder
	fmt.Fprintf(&sb, "⚠️ <b>Sync run %s</b>\n", escape(batch.RunID))
	fmt.Fprintf(&sb, "%d ok, %d failed\n\n", batch.Succeeded(), len(failed))
	for _, r := range failed {
		fmt.Fprintf(&sb, "• source %d, user %d (%s)\n  <code>%s</code>\n", r.SourceID, r.UserID, escape(r.URL), escape(r.Err.Error()))
	}
	return sb.String()
}

func escape(s string) string {
	return html.EscapeString(s)
}
