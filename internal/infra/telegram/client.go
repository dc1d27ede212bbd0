// internal/infra/telegram/client.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gopkg.in/telebot.v3"

	"condo_collections/internal/domain/notification"
	"condo_collections/internal/infra/retry"
)

// Telegram rejects longer messages.
const maxMessageLength = 4096

// sender is the part of *telebot.Bot the adapter needs.
type sender interface {
	Send(to telebot.Recipient, what interface{}, opts ...interface{}) (*telebot.Message, error)
}

// TelebotAdapter implements notification.Transport for a Telegram chat. The
// message recipient is the numeric chat ID.
type TelebotAdapter struct {
	bot sender
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

// Send posts the subject and plain-text body as one message.
func (tba *TelebotAdapter) Send(ctx context.Context, msg notification.Message) error {
	chatID, err := strconv.ParseInt(msg.Recipient, 10, 64)
	if err != nil {
		return retry.Permanent(fmt.Errorf("telegram: invalid chat id %q: %w", msg.Recipient, err))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err = tba.bot.Send(telebot.ChatID(chatID), messageText(msg), &telebot.SendOptions{
		DisableWebPagePreview: true,
	})
	if err != nil {
		if errors.Is(err, telebot.ErrChatNotFound) || errors.Is(err, telebot.ErrBlockedByUser) {
			return retry.Permanent(fmt.Errorf("telegram: chat %d: %w", chatID, err))
		}
		return fmt.Errorf("telegram: chat %d: %w", chatID, err)
	}
	return nil
}

func messageText(msg notification.Message) string {
	text := msg.Subject + "\n\n" + msg.Body
	if r := []rune(text); len(r) > maxMessageLength {
		text = string(r[:maxMessageLength-1]) + "…"
	}
	return text
}
