package bot

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tazhate/agendasync/config"
	"github.com/tazhate/agendasync/internal/domain"
	"github.com/tazhate/agendasync/internal/service"
)

// Syncer is the part of service.SyncService the bot drives
type Syncer interface {
	SyncSource(ctx context.Context, userID, sourceID int64) (*service.SyncResult, error)
	SyncUser(ctx context.Context, userID int64) (*service.BatchResult, error)
	SyncAll(ctx context.Context) (*service.BatchResult, error)
}

// SourceLister reads a user's registered feeds
type SourceLister interface {
	ListSourcesByUser(ctx context.Context, userID int64) ([]*domain.Source, error)
}

// Bot is the operator bot: it posts sync alerts to the alert chat and
// accepts a few commands from it.
type Bot struct {
	api     *tgbotapi.BotAPI
	cfg     *config.Config
	syncer  Syncer
	sources SourceLister
	ctx     context.Context
}

func New(cfg *config.Config, syncer Syncer, sources SourceLister) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("Authorized as @%s", api.Self.UserName)

	bot := &Bot{
		api:     api,
		cfg:     cfg,
		syncer:  syncer,
		sources: sources,
		ctx:     context.Background(),
	}

	// Set bot commands (menu button)
	bot.setCommands()

	return bot, nil
}

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "sync", Description: "🔄 Sync all sources, or one user's"},
		{Command: "sources", Description: "📋 List a user's sources"},
		{Command: "help", Description: "❓ Command help"},
	}

	cfg := tgbotapi.NewSetMyCommands(commands...)
	if _, err := b.api.Request(cfg); err != nil {
		log.Printf("Failed to set commands: %v", err)
	}
}

// Start long-polls for updates until ctx is done
func (b *Bot) Start(ctx context.Context) error {
	b.ctx = ctx

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	log.Printf("Bot listening for operator chat %d", b.cfg.AlertChatID)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update := <-updates:
			go b.handleUpdate(update)
		}
	}
}

func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	msg.ReplyMarkup = keyboard
	_, err := b.api.Send(msg)
	return err
}

// SendSyncAlert posts a summary of failed sources to the alert chat with
// retry buttons
func (b *Bot) SendSyncAlert(batch *service.BatchResult) error {
	failed := batch.Failed()
	if len(failed) == 0 {
		return nil
	}
	return b.SendMessageWithKeyboard(b.cfg.AlertChatID, formatSyncAlert(batch), retryKeyboard(failed))
}
