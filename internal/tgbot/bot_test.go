package tgbot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Alias1177/SignalBot/internal/pipeline"
	"github.com/Alias1177/SignalBot/internal/store"
	"github.com/Alias1177/SignalBot/models"
)

func newHandler(t *testing.T) (*Handler, *store.FileStore) {
	t.Helper()
	fs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	t.Cleanup(func() { fs.Close() })
	return &Handler{Store: fs, Panel: []string{"gpt", "rules"}}, fs
}

func TestReplyEmptyStore(t *testing.T) {
	h, _ := newHandler(t)
	ctx := context.Background()

	tests := []struct {
		text string
		want string
	}{
		{"", "Commands:"},
		{"/start", "/stats"},
		{"/last", "No signal committed yet."},
		{"/last@SignalBot", "No signal committed yet."},
		{"/pending", "No open trades."},
		{"/stats", "gpt: 50%"},
		{"/run", "Manual cycles are disabled."},
		{"/moon", "Unknown command."},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := h.Reply(ctx, tt.text)
			if err != nil {
				t.Fatalf("Reply: %v", err)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("Reply(%q) = %q, want it to contain %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestReplyWithState(t *testing.T) {
	h, fs := newHandler(t)
	ctx := context.Background()

	p := models.SignalProposal{
		ID: "abc", Symbol: "BTC/USD", Direction: models.Sell,
		Entry: 100, StopLoss: 105, TakeProfit: 90, Status: models.StatusConfirmed,
	}
	if err := fs.Append(ctx, models.TradeRecord{Proposal: p, LoggedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := fs.Commit(ctx, p); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := h.Reply(ctx, "Last Signal")
	if err != nil || !strings.Contains(got, "abc") {
		t.Errorf("last = %q, %v", got, err)
	}
	got, err = h.Reply(ctx, "/pending")
	if err != nil || !strings.Contains(got, "CONFIRMED SELL BTC/USD entry 100.00") {
		t.Errorf("pending = %q, %v", got, err)
	}
}

func TestReplyRun(t *testing.T) {
	h, _ := newHandler(t)
	ctx := context.Background()

	tests := []struct {
		name string
		res  pipeline.Result
		err  error
		want string
		fail bool
	}{
		{"confirmed", pipeline.Result{Status: pipeline.CycleConfirmed}, nil, "Cycle finished: confirmed", false},
		{"no signal", pipeline.Result{Status: pipeline.CycleNoSignal, Reason: "no trend"}, nil, "no_signal (no trend)", false},
		{"busy", pipeline.Result{}, pipeline.ErrCycleInProgress, "already running", false},
		{"error", pipeline.Result{}, errors.New("boom"), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.Trigger = func(context.Context) (pipeline.Result, error) { return tt.res, tt.err }
			got, err := h.Reply(ctx, "/run")
			if (err != nil) != tt.fail {
				t.Fatalf("err = %v, fail = %v", err, tt.fail)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("Reply = %q, want %q", got, tt.want)
			}
		})
	}
}
