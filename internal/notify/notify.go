// Package notify pushes confirmed signals to humans.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalBot/models"
)

// Message is one outgoing notification. Attachment is an optional file path.
type Message struct {
	Text       string
	Attachment string
}

// Notifier delivers a message once; retries are the caller's business.
type Notifier interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// SignalMessage formats a confirmed proposal with its tracking id.
func SignalMessage(p models.SignalProposal, chartRef string) Message {
	text := fmt.Sprintf(
		"📊 *%s (%s)*\n"+
			"📈 Direction: `%s`\n"+
			"💰 Entry: `%s`\n"+
			"🛑 SL: `%s`\n"+
			"🎯 TP: `%s`\n"+
			"⚖️ RR: `%.2f`\n"+
			"🔖 ID: `%s`",
		p.Symbol, p.OriginTime.UTC().Format("2006-01-02 15:04"),
		p.Direction,
		formatPrice(p.Entry), formatPrice(p.StopLoss), formatPrice(p.TakeProfit),
		p.RiskReward(),
		p.ID,
	)
	return Message{Text: text, Attachment: chartRef}
}

// StartupMessage announces that the bot is running.
func StartupMessage(symbol, interval string) Message {
	return Message{Text: fmt.Sprintf("✅ Signal bot is active: watching %s on %s", symbol, interval)}
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Manager sends every message to all notifiers.
type Manager struct {
	notifiers []Notifier
	logger    zerolog.Logger
}

// NewManager creates a fan-out over notifiers.
func NewManager(notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		logger:    log.With().Str("component", "notify").Logger(),
	}
}

// Send delivers msg to each notifier and joins their errors.
func (m *Manager) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Send(ctx, msg); err != nil {
			m.logger.Error().Err(err).Str("notifier", n.Name()).Msg("Notification failed")
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
			continue
		}
		m.logger.Debug().Str("notifier", n.Name()).Msg("Notification sent")
	}
	return errors.Join(errs...)
}

// Log writes notifications to the structured log.
type Log struct {
	logger zerolog.Logger
}

// NewLog creates a log notifier.
func NewLog() *Log {
	return &Log{logger: log.With().Str("component", "notify_log").Logger()}
}

func (l *Log) Name() string { return "log" }

func (l *Log) Send(ctx context.Context, msg Message) error {
	l.logger.Info().Str("attachment", msg.Attachment).Msg(msg.Text)
	return nil
}
