package notify

import (
	"context"
	"fmt"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts messages to one chat.
type Telegram struct {
	bot    sender
	chatID int64
}

// NewTelegram authenticates the bot and targets chatID.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

func (t *Telegram) Name() string { return "telegram" }

// Send posts the chart as a document when it exists, then the text.
func (t *Telegram) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if msg.Attachment != "" {
		if _, err := os.Stat(msg.Attachment); err == nil {
			doc := tgbotapi.NewDocument(t.chatID, tgbotapi.FilePath(msg.Attachment))
			if _, err := t.bot.Send(doc); err != nil {
				return fmt.Errorf("send chart: %w", err)
			}
		}
	}

	text := tgbotapi.NewMessage(t.chatID, msg.Text)
	text.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.bot.Send(text); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}
