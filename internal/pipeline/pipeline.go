// Package pipeline runs one decision cycle: fetch, resolve pending outcomes, detect,
// deduplicate, vote, decide, persist and notify.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalBot/internal/advisor"
	"github.com/Alias1177/SignalBot/internal/chart"
	"github.com/Alias1177/SignalBot/internal/consensus"
	"github.com/Alias1177/SignalBot/internal/detector"
	"github.com/Alias1177/SignalBot/internal/lock"
	"github.com/Alias1177/SignalBot/internal/memory"
	"github.com/Alias1177/SignalBot/internal/notify"
	"github.com/Alias1177/SignalBot/internal/outcome"
	"github.com/Alias1177/SignalBot/internal/store"
	"github.com/Alias1177/SignalBot/models"
)

// ErrCycleInProgress is returned when a cycle is already running.
var ErrCycleInProgress = errors.New("decision cycle already in progress")

// CycleStatus summarizes how a cycle ended.
type CycleStatus string

const (
	CycleSkipped      CycleStatus = "skipped"
	CyclePending      CycleStatus = "pending"
	CycleNoSignal     CycleStatus = "no_signal"
	CycleDeduplicated CycleStatus = "deduplicated"
	CycleRejected     CycleStatus = "rejected"
	CycleConfirmed    CycleStatus = "confirmed"
	CycleFailed       CycleStatus = "failed"
)

// CandleSource supplies ordered candles, newest last.
type CandleSource = models.CandleClient

// Notifier delivers confirmed signals.
type Notifier interface {
	Send(ctx context.Context, msg notify.Message) error
}

// Metrics receives pipeline events.
type Metrics interface {
	RecordCycle(result string, d time.Duration)
	RecordProposal(status string)
	RecordVote(voter, verdict string, failed bool, latency time.Duration)
	RecordOutcome(status, outcome string)
	RecordError(kind string)
	RecordWeights(weights map[string]float64)
}

// Options are the market parameters of the pipeline.
type Options struct {
	Symbol        string
	Interval      string
	CandleCount   int
	PromptCandles int
}

// Deps are the collaborators of the pipeline. Renderer, Notifier, Locker and Metrics
// are optional.
type Deps struct {
	Source     CandleSource
	Detector   *detector.Detector
	Panel      *advisor.Panel
	Aggregator *consensus.Aggregator
	Tracker    *outcome.Tracker
	Store      store.Store
	Renderer   chart.Renderer
	Notifier   Notifier
	Locker     lock.Locker
	Metrics    Metrics
}

// Result describes one finished cycle.
type Result struct {
	Status   CycleStatus
	Reason   string
	Proposal *models.SignalProposal
	Votes    []models.Vote
	Decision *consensus.Decision
	Resolved []models.TradeRecord
}

// Pipeline orchestrates decision cycles.
type Pipeline struct {
	opts Options
	deps Deps

	now    func() time.Time
	newID  func() string
	logger zerolog.Logger
}

// New creates a pipeline.
func New(opts Options, deps Deps) *Pipeline {
	if opts.CandleCount <= 0 {
		opts.CandleCount = 100
	}
	if opts.PromptCandles <= 0 {
		opts.PromptCandles = 20
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewLocal()
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}

	return &Pipeline{
		opts:  opts,
		deps:  deps,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
		logger: log.With().
			Str("component", "pipeline").
			Str("symbol", opts.Symbol).
			Str("interval", opts.Interval).
			Logger(),
	}
}

// RunCycle runs one cycle. It refuses to overlap with another cycle holding the lock.
func (p *Pipeline) RunCycle(ctx context.Context) (Result, error) {
	release, err := p.deps.Locker.Acquire(ctx)
	if errors.Is(err, lock.ErrLocked) {
		p.logger.Warn().Msg("Previous cycle still running, skipping")
		return Result{Status: CycleSkipped}, ErrCycleInProgress
	}
	if err != nil {
		return Result{Status: CycleSkipped}, fmt.Errorf("acquire cycle lock: %w", err)
	}
	defer release()

	start := time.Now()
	res, err := p.cycle(ctx)
	if err != nil && res.Status == "" {
		res.Status = CycleFailed
	}
	p.deps.Metrics.RecordCycle(string(res.Status), time.Since(start))
	return res, err
}

func (p *Pipeline) cycle(ctx context.Context) (Result, error) {
	raw, err := p.deps.Source.FetchCandles(ctx, p.opts.Symbol, p.opts.Interval, p.opts.CandleCount)
	if err != nil {
		if !errors.Is(err, models.ErrFetch) {
			err = fmt.Errorf("%w: %w", models.ErrFetch, err)
		}
		p.deps.Metrics.RecordError("fetch")
		p.logger.Warn().Err(err).Msg("Candle fetch failed, skipping cycle")
		return Result{Status: CycleSkipped}, err
	}

	series, err := models.NewSeries(raw)
	if err != nil {
		p.deps.Metrics.RecordError("fetch")
		return Result{Status: CycleSkipped}, fmt.Errorf("%w: %w", models.ErrFetch, err)
	}

	resolved, blocking, err := p.resolvePending(ctx, series)
	if err != nil {
		p.deps.Metrics.RecordError("persistence")
		return Result{Status: CycleFailed, Resolved: resolved}, err
	}
	if blocking != nil {
		p.logger.Info().Str("proposal_id", blocking.ID()).Msg("Confirmed signal still open, detection paused")
		return Result{Status: CyclePending, Reason: blocking.ID(), Resolved: resolved}, nil
	}

	det := p.deps.Detector.Detect(series)
	if !det.Found() {
		p.logger.Debug().Str("reason", string(det.Reason)).Msg("No signal")
		return Result{Status: CycleNoSignal, Reason: string(det.Reason), Resolved: resolved}, nil
	}

	proposal := *det.Proposal
	proposal.ID = p.newID()
	proposal.Symbol = p.opts.Symbol
	proposal.Interval = p.opts.Interval
	proposal.DetectedAt = p.now()

	res, err := p.decide(ctx, series, proposal)
	res.Resolved = resolved
	return res, err
}

// resolvePending classifies tracked ledger records against the fresh series. It returns
// the first confirmed record that is still open.
func (p *Pipeline) resolvePending(ctx context.Context, series models.Series) ([]models.TradeRecord, *models.TradeRecord, error) {
	open, err := p.deps.Store.Pending(ctx)
	if err != nil {
		return nil, nil, err
	}

	var (
		resolved []models.TradeRecord
		blocking *models.TradeRecord
	)
	for _, rec := range open {
		if !p.deps.Tracker.Tracked(rec) {
			continue
		}

		r := p.deps.Tracker.Resolve(series, rec.Proposal)
		if !r.Outcome.Resolved() {
			if rec.Proposal.Status == models.StatusConfirmed && blocking == nil {
				rec := rec
				blocking = &rec
			}
			continue
		}

		err := p.deps.Store.Resolve(ctx, rec.ID(), r.Outcome, r.At)
		if errors.Is(err, store.ErrAlreadyResolved) {
			continue
		}
		if err != nil {
			return resolved, nil, err
		}

		rec.Proposal.Outcome = r.Outcome
		at := r.At
		rec.ResolvedAt = &at
		resolved = append(resolved, rec)

		p.deps.Metrics.RecordOutcome(string(rec.Proposal.Status), string(r.Outcome))
		if r.Gap {
			p.logger.Warn().
				Str("proposal_id", rec.ID()).
				Time("origin", rec.Proposal.OriginTime).
				Time("window_start", series.At(0).Time).
				Msg("Candle window starts after the proposal, expiring it")
		}
		p.logger.Info().
			Str("proposal_id", rec.ID()).
			Str("status", string(rec.Proposal.Status)).
			Str("outcome", string(r.Outcome)).
			Time("at", r.At).
			Msg("Proposal resolved")
	}
	return resolved, blocking, nil
}

func (p *Pipeline) decide(ctx context.Context, series models.Series, proposal models.SignalProposal) (Result, error) {
	logger := p.logger.With().Str("proposal_id", proposal.ID).Str("direction", string(proposal.Direction)).Logger()

	dup, err := p.deps.Store.IsDuplicate(ctx, proposal)
	if err != nil {
		p.deps.Metrics.RecordError("persistence")
		return Result{Status: CycleFailed, Proposal: &proposal}, err
	}
	if dup {
		return p.suppress(ctx, logger, proposal, nil, "", nil)
	}

	artifact := chart.Render(ctx, p.deps.Renderer, series, proposal)

	ledger, err := p.deps.Store.Ledger(ctx)
	if err != nil {
		p.deps.Metrics.RecordError("persistence")
		return Result{Status: CycleFailed, Proposal: &proposal}, err
	}
	weights := memory.Weights(ledger, p.deps.Panel.IDs())
	p.deps.Metrics.RecordWeights(weights)

	votes := p.deps.Panel.Collect(ctx, advisor.Request{
		Proposal: proposal,
		Recent:   series.Tail(p.opts.PromptCandles).Candles(),
		Caption:  artifact.Caption,
		ChartRef: artifact.Ref,
	})
	for _, v := range votes {
		p.deps.Metrics.RecordVote(v.VoterID, string(v.Verdict), v.Failed, v.Latency)
	}

	decision := p.deps.Aggregator.Aggregate(proposal, votes, weights)
	decision.Apply(&proposal)

	if decision.Confirmed() {
		dup, err := p.deps.Store.IsDuplicate(ctx, proposal)
		if err != nil {
			p.deps.Metrics.RecordError("persistence")
			return Result{Status: CycleFailed, Proposal: &proposal, Votes: votes, Decision: &decision}, err
		}
		if dup {
			return p.suppress(ctx, logger, proposal, votes, artifact.Caption, &decision)
		}
	}

	rec := models.TradeRecord{
		Proposal: proposal,
		Votes:    votes,
		Caption:  artifact.Caption,
		Decision: decision.Summary(),
		LoggedAt: p.now(),
	}
	res := Result{Proposal: &proposal, Votes: votes, Decision: &decision}

	if err := p.deps.Store.Append(ctx, rec); err != nil {
		p.deps.Metrics.RecordError("persistence")
		res.Status = CycleFailed
		return res, err
	}
	p.deps.Metrics.RecordProposal(string(proposal.Status))

	if !decision.Confirmed() {
		if errors.Is(decision.Err, models.ErrRiskReward) {
			p.deps.Metrics.RecordError("risk_reward")
		}
		logger.Info().
			Err(decision.Err).
			Int("yes", decision.YesCount).
			Int("required", decision.Required).
			Msg("Proposal rejected")
		res.Status = CycleRejected
		res.Reason = decision.Summary().Reason
		return res, nil
	}

	if err := p.deps.Store.Commit(ctx, proposal); err != nil {
		p.deps.Metrics.RecordError("persistence")
		res.Status = CycleFailed
		return res, err
	}

	logger.Info().
		Float64("entry", proposal.Entry).
		Float64("sl", proposal.StopLoss).
		Float64("tp", proposal.TakeProfit).
		Int("yes", decision.YesCount).
		Msg("Signal confirmed")

	if p.deps.Notifier != nil {
		if err := p.deps.Notifier.Send(ctx, notify.SignalMessage(proposal, artifact.Ref)); err != nil {
			p.deps.Metrics.RecordError("notify")
			logger.Error().Err(err).Msg("Notification failed")
		}
	}

	res.Status = CycleConfirmed
	return res, nil
}

// suppress records a duplicate candidate in the ledger without notifying.
func (p *Pipeline) suppress(ctx context.Context, logger zerolog.Logger, proposal models.SignalProposal,
	votes []models.Vote, caption string, decision *consensus.Decision) (Result, error) {
	proposal.Status = models.StatusDeduplicated
	rec := models.TradeRecord{
		Proposal: proposal,
		Votes:    votes,
		Caption:  caption,
		LoggedAt: p.now(),
	}
	if decision != nil {
		rec.Decision = decision.Summary()
	}

	res := Result{Status: CycleDeduplicated, Proposal: &proposal, Votes: votes, Decision: decision}
	if err := p.deps.Store.Append(ctx, rec); err != nil {
		p.deps.Metrics.RecordError("persistence")
		res.Status = CycleFailed
		return res, err
	}
	p.deps.Metrics.RecordProposal(string(proposal.Status))

	logger.Info().Err(models.ErrDuplicate).Msg("Duplicate signal suppressed")
	res.Reason = models.ErrDuplicate.Error()
	return res, nil
}

type nopMetrics struct{}

func (nopMetrics) RecordCycle(string, time.Duration)              {}
func (nopMetrics) RecordProposal(string)                          {}
func (nopMetrics) RecordVote(string, string, bool, time.Duration) {}
func (nopMetrics) RecordOutcome(string, string)                   {}
func (nopMetrics) RecordError(string)                             {}
func (nopMetrics) RecordWeights(map[string]float64)               {}
