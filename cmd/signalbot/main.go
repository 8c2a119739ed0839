package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalBot/internal/advisor"
	"github.com/Alias1177/SignalBot/internal/api/openai"
	"github.com/Alias1177/SignalBot/internal/api/twelvedata"
	"github.com/Alias1177/SignalBot/internal/chart"
	"github.com/Alias1177/SignalBot/internal/config"
	"github.com/Alias1177/SignalBot/internal/consensus"
	"github.com/Alias1177/SignalBot/internal/detector"
	"github.com/Alias1177/SignalBot/internal/lock"
	"github.com/Alias1177/SignalBot/internal/metrics"
	"github.com/Alias1177/SignalBot/internal/notify"
	"github.com/Alias1177/SignalBot/internal/outcome"
	"github.com/Alias1177/SignalBot/internal/pipeline"
	httpClient "github.com/Alias1177/SignalBot/internal/platform/http"
	"github.com/Alias1177/SignalBot/internal/server"
	"github.com/Alias1177/SignalBot/internal/store"
	"github.com/Alias1177/SignalBot/internal/tgbot"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Configure logging
	setupLogging(cfg.LogLevel)

	profile, err := config.LoadProfile(cfg.ProfilePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.ProfilePath).Msg("Failed to load profile")
	}
	printConfig(cfg, profile)

	// 3. Shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, profile); err != nil {
		log.Fatal().Err(err).Msg("Bot stopped with error")
	}
	log.Info().Msg("Shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, profile *config.Profile) error {
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
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	locker, closeLock, err := newLocker(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLock()

	voters, err := buildVoters(profile, st, cfg.RequestTimeoutDuration())
	if err != nil {
		return err
	}
	panel := advisor.NewPanel(cfg.AdvisorTimeout, voters...)

	notifier := buildNotifier(cfg)
	recorder := metrics.New()

	source := twelvedata.NewClient(twelvedata.ClientOptions{
		APIKey:          cfg.TwelveAPIKey,
		RequestTimeout:  cfg.RequestTimeoutDuration(),
		RequestsPerSec:  5,
		MaxRetries:      3,
		MaxRetryTimeout: 60 * time.Second,
	})

	p := pipeline.New(pipeline.Options{
		Symbol:        cfg.Symbol,
		Interval:      cfg.Interval,
		CandleCount:   cfg.CandleCount,
		PromptCandles: profile.PromptCandles,
	}, pipeline.Deps{
		Source:     source,
		Detector:   detector.New(profile.Detector),
		Panel:      panel,
		Aggregator: consensus.New(profile.Consensus),
		Tracker:    outcome.NewTracker(profile.Outcome),
		Store:      st,
		Renderer:   chart.NewSVGRenderer(cfg.ChartDir),
		Notifier:   notifier,
		Locker:     locker,
		Metrics:    recorder,
	})

	srv := server.New(server.Config{
		Addr:    cfg.HTTPAddr,
		Panel:   panel.IDs(),
		Store:   st,
		Metrics: recorder.Handler(),
		Trigger: p.RunCycle,
	})
	go func() {
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("Status server failed")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Status server shutdown")
		}
	}()

	if cfg.TelegramCommands && cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		bot, err := tgbot.New(cfg.TelegramToken, cfg.TelegramChatID, &tgbot.Handler{
			Store:   st,
			Panel:   panel.IDs(),
			Trigger: p.RunCycle,
		})
		if err != nil {
			log.Error().Err(err).Msg("Telegram commands disabled")
		} else {
			go bot.Run(ctx)
		}
	}

	if err := notifier.Send(ctx, notify.StartupMessage(cfg.Symbol, cfg.Interval)); err != nil {
		log.Warn().Err(err).Msg("Startup notification failed")
	}

	schedule(ctx, cfg.CycleInterval, p)
	return nil
}

// schedule runs a cycle immediately and then on every tick until ctx is done.
func schedule(ctx context.Context, every time.Duration, p *pipeline.Pipeline) {
	runOnce := func() {
		res, err := p.RunCycle(ctx)
		switch {
		case errors.Is(err, pipeline.ErrCycleInProgress):
			log.Warn().Msg("Previous cycle still running, tick skipped")
		case err != nil:
			log.Error().Err(err).Str("status", string(res.Status)).Msg("Cycle failed")
		default:
			log.Info().Str("status", string(res.Status)).Str("reason", res.Reason).Msg("Cycle finished")
		}
	}

	runOnce()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}

func newLocker(ctx context.Context, cfg *config.Config) (lock.Locker, func(), error) {
	if cfg.RedisAddr == "" {
		return lock.NewLocal(), func() {}, nil
	}
	r, err := lock.NewRedis(ctx, lock.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Key:      "signalbot:cycle:" + cfg.Symbol + ":" + cfg.Interval,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("redis lock: %w", err)
	}
	return r, func() { r.Close() }, nil
}

// buildVoters creates one voter per profile advisor, in profile order.
func buildVoters(profile *config.Profile, ledger advisor.LedgerReader, timeout time.Duration) ([]advisor.Voter, error) {
	shared := httpClient.NewClient(httpClient.ClientOptions{
		Timeout:        timeout,
		RequestsPerSec: 2,
		MaxRetries:     2,
	})

	voters := make([]advisor.Voter, 0, len(profile.Advisors))
	for _, a := range profile.Advisors {
		switch a.Kind {
		case config.AdvisorLLM:
			key := os.Getenv(a.APIKeyEnv)
			if key == "" {
				log.Warn().Str("advisor", a.ID).Str("env", a.APIKeyEnv).Msg("API key not set, advisor calls will fail")
			}
			client := openai.NewClient(openai.Options{
				APIKey:      key,
				BaseURL:     a.BaseURL,
				Model:       a.Model,
				Temperature: a.Temperature,
				MaxTokens:   a.MaxTokens,
				HTTP:        shared,
			})
			voters = append(voters, advisor.NewLLMVoter(a.ID, client))
		case config.AdvisorRules:
			voters = append(voters, advisor.NewRuleVoter(a.ID, profile.Rules))
		case config.AdvisorCaption:
			voters = append(voters, advisor.NewCaptionVoter(a.ID, ledger, a.History))
		default:
			return nil, fmt.Errorf("advisor %s: unknown kind %q", a.ID, a.Kind)
		}
	}
	return voters, nil
}

func buildNotifier(cfg *config.Config) *notify.Manager {
	notifiers := []notify.Notifier{notify.NewLog()}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Error().Err(err).Msg("Telegram disabled")
		} else {
			notifiers = append(notifiers, tg)
		}
	}
	return notify.NewManager(notifiers...)
}

// setupLogging configures the logger
func setupLogging(logLevel string) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log.Logger = log.Output(output)

	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(level)
}

func printConfig(cfg *config.Config, profile *config.Profile) {
	log.Info().
		Str("Symbol", cfg.Symbol).
		Str("Interval", cfg.Interval).
		Int("CandleCount", cfg.CandleCount).
		Dur("CycleInterval", cfg.CycleInterval).
		Dur("AdvisorTimeout", cfg.AdvisorTimeout).
		Str("Store", cfg.StoreBackend).
		Bool("RedisLock", cfg.RedisAddr != "").
		Str("Profile", profile.Name).
		Strs("Advisors", profile.AdvisorIDs()).
		Msg("Configuration loaded")
}
