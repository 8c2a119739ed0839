package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalBot/internal/config"
	"github.com/Alias1177/SignalBot/internal/memory"
	"github.com/Alias1177/SignalBot/internal/notify"
	"github.com/Alias1177/SignalBot/internal/store"
	"github.com/Alias1177/SignalBot/models"
)

func main() {
	send := flag.Bool("send", false, "also post the report to the configured Telegram chat")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load profile")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	st, err := store.Open(ctx, store.Options{
		Backend: cfg.StoreBackend,
		DataDir: cfg.DataDir,
		Postgres: store.ConnectionParams{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		},
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer st.Close()

	ledger, err := st.Ledger(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read ledger")
	}

	report := formatReport(ledger, memory.Analyze(ledger, profile.AdvisorIDs()))
	fmt.Print(report)

	if !*send {
		return
	}
	if cfg.TelegramToken == "" || cfg.TelegramChatID == 0 {
		log.Fatal().Msg("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID must be set to send the report")
	}
	tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Telegram bot")
	}
	if err := tg.Send(ctx, notify.Message{Text: "```\n" + report + "```"}); err != nil {
		log.Fatal().Err(err).Msg("Failed to send report")
	}
	log.Info().Int64("chat_id", cfg.TelegramChatID).Msg("Report sent")
}

// formatReport renders ledger totals and per-voter accuracy as plain text.
func formatReport(ledger []models.TradeRecord, stats []memory.Stats) string {
	counts := map[models.Outcome]int{}
	for _, r := range ledger {
		counts[r.Outcome()]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Ledger: %d records (TP %d, SL %d, expired %d, open %d)\n",
		len(ledger),
		counts[models.OutcomeTakeProfitHit],
		counts[models.OutcomeStopLossHit],
		counts[models.OutcomeExpired],
		counts[models.OutcomeUnresolved])
	fmt.Fprintf(&b, "%-12s %6s %6s %6s %9s\n", "VOTER", "TP", "SL", "TOTAL", "ACCURACY")
	for _, s := range stats {
		fmt.Fprintf(&b, "%-12s %6d %6d %6d %8.0f%%\n", s.VoterID, s.TPHits, s.SLHits, s.Total, s.Accuracy*100)
	}
	return b.String()
}
