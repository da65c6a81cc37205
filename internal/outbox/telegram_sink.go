package outbox

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"raptor/internal/interfaces/repository"
	"raptor/internal/models"
)

// TelegramSink delivers outbox notifications to each user's Telegram chat (spec.md §4.K
// consumer step 2 "Deliver via the external sink (Telegram/API)"), grounded in the
// pack's yohannesjx-sniperterminal NotificationService.Notify pattern but resolving
// chat_id per user via UserRepository rather than a single process-wide chat.
type TelegramSink struct {
	bot   *tgbotapi.BotAPI
	users repository.UserRepository
}

func NewTelegramSink(bot *tgbotapi.BotAPI, users repository.UserRepository) *TelegramSink {
	return &TelegramSink{bot: bot, users: users}
}

func (s *TelegramSink) Deliver(ctx context.Context, userID uint, notifType string, payload models.JSONB) error {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("look up user for notification: %w", err)
	}
	if user.TelegramChatID == 0 {
		return fmt.Errorf("user %d has no telegram chat id on record", userID)
	}

	msg := tgbotapi.NewMessage(user.TelegramChatID, formatNotification(notifType, payload))
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

func formatNotification(notifType string, payload models.JSONB) string {
	switch notifType {
	case "position_opened":
		return fmt.Sprintf("🚀 *Position opened*\nmint: `%v`\nentry: `%v`", payload["mint"], payload["entry_price"])
	case "position_closed":
		return fmt.Sprintf("📤 *Position closed*\nmint: `%v`\nreason: `%v`", payload["mint"], payload["exit_trigger"])
	default:
		return fmt.Sprintf("*%s*\n%v", notifType, payload)
	}
}
