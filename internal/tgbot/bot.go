// Package tgbot answers Telegram commands about the bot's state.
package tgbot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalBot/internal/memory"
	"github.com/Alias1177/SignalBot/internal/notify"
	"github.com/Alias1177/SignalBot/internal/pipeline"
	"github.com/Alias1177/SignalBot/internal/store"
)

const helpText = "Commands:\n" +
	"/last - last committed signal\n" +
	"/pending - open trades\n" +
	"/stats - advisor accuracy\n" +
	"/run - run a decision cycle now"

// Handler answers one command.
type Handler struct {
	Store   store.Store
	Panel   []string
	Trigger func(ctx context.Context) (pipeline.Result, error)
}

// Reply returns the Markdown answer to text.
func (h *Handler) Reply(ctx context.Context, text string) (string, error) {
	cmd := strings.Fields(strings.TrimSpace(text))
	if len(cmd) == 0 {
		return helpText, nil
	}
	// "/last@SignalBot" in group chats
	name, _, _ := strings.Cut(cmd[0], "@")

	switch name {
	case "/start", "/help":
		return helpText, nil
	case "/last", "Last Signal":
		last, err := h.Store.GetLast(ctx)
		if err != nil {
			return "", err
		}
		if last == nil {
			return "No signal committed yet.", nil
		}
		return notify.SignalMessage(*last, "").Text, nil
	case "/pending", "Open Trades":
		pending, err := h.Store.Pending(ctx)
		if err != nil {
			return "", err
		}
		if len(pending) == 0 {
			return "No open trades.", nil
		}
		var b strings.Builder
		for _, r := range pending {
			p := r.Proposal
			fmt.Fprintf(&b, "%s %s %s entry %.2f SL %.2f TP %.2f\n",
				p.Status, p.Direction, p.Symbol, p.Entry, p.StopLoss, p.TakeProfit)
		}
		return b.String(), nil
	case "/stats", "Advisor Stats":
		ledger, err := h.Store.Ledger(ctx)
		if err != nil {
			return "", err
		}
		var b strings.Builder
		b.WriteString("*Advisor accuracy*\n")
		for _, s := range memory.Analyze(ledger, h.Panel) {
			fmt.Fprintf(&b, "%s: %.0f%% (%d TP / %d SL)\n", s.VoterID, s.Accuracy*100, s.TPHits, s.SLHits)
		}
		return b.String(), nil
	case "/run", "Run Cycle":
		if h.Trigger == nil {
			return "Manual cycles are disabled.", nil
		}
		res, err := h.Trigger(ctx)
		if errors.Is(err, pipeline.ErrCycleInProgress) {
			return "A cycle is already running.", nil
		}
		if err != nil {
			return "", err
		}
		if res.Reason != "" {
			return fmt.Sprintf("Cycle finished: %s (%s)", res.Status, res.Reason), nil
		}
		return fmt.Sprintf("Cycle finished: %s", res.Status), nil
	default:
		return "Unknown command.\n\n" + helpText, nil
	}
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("Last Signal"),
			tgbotapi.NewKeyboardButton("Open Trades"),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton("Advisor Stats"),
			tgbotapi.NewKeyboardButton("Run Cycle"),
		),
	)
}

// Bot polls Telegram for commands from the configured chat.
type Bot struct {
	api     *tgbotapi.BotAPI
	chatID  int64
	handler *Handler
	logger  zerolog.Logger
}

// New authenticates the bot. Messages from chats other than chatID are ignored.
func New(token string, chatID int64, handler *Handler) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &Bot{
		api:     api,
		chatID:  chatID,
		handler: handler,
		logger:  log.With().Str("component", "tgbot").Str("username", api.Self.UserName).Logger(),
	}, nil
}

// Run handles updates until ctx is done.
func (b *Bot) Run(ctx context.Context) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)
	defer b.api.StopReceivingUpdates()

	b.logger.Info().Msg("Listening for commands")
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.Chat.ID != b.chatID {
				continue
			}
			b.handle(ctx, update.Message)
		}
	}
}

func (b *Bot) handle(ctx context.Context, message *tgbotapi.Message) {
	reply, err := b.handler.Reply(ctx, message.Text)
	if err != nil {
		b.logger.Error().Err(err).Str("command", message.Text).Msg("Command failed")
		reply = "Something went wrong, check the logs."
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, reply)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = mainMenuKeyboard()
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error().Err(err).Msg("Failed to send reply")
	}
}
