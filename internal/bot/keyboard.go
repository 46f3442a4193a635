package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/tazhate/agendasync/internal/domain"
	"github.com/tazhate/agendasync/internal/service"
)

// maxRetryButtons keeps alert keyboards readable
const maxRetryButtons = 8

// Retry buttons for failed sources, plus one for the whole run
func retryKeyboard(failed []*service.SyncResult) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	for i, r := range failed {
		if i == maxRetryButtons {
			break
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("🔁 Source %d (user %d)", r.SourceID, r.UserID),
				fmt.Sprintf("retry:%d:%d", r.UserID, r.SourceID),
			),
		))
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 Sync everything", "syncall"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// Per-source sync buttons under a /sources listing
func sourcesKeyboard(sources []*domain.Source) *tgbotapi.InlineKeyboardMarkup {
	if len(sources) == 0 {
		return nil
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, src := range sources {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("🔄 %d. %s", src.ID, src.Label),
				fmt.Sprintf("retry:%d:%d", src.UserID, src.ID),
			),
		))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}
