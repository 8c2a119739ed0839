// Package outcome classifies proposals against the candles that followed them.
package outcome

import (
	"time"

	"github.com/Alias1177/SignalBot/models"
)

// Config controls how long a proposal may stay unresolved.
type Config struct {
	// ExpireAfterCandles marks a proposal EXPIRED once it has seen this many forward
	// candles without a hit. 0 disables expiry.
	ExpireAfterCandles int `yaml:"expire_after_candles" default:"96" validate:"gte=0"`
	// TrackRejected resolves rejected proposals too, so voter accuracy covers them.
	TrackRejected bool `yaml:"track_rejected" default:"true"`
}

// Result is the classification of one proposal.
type Result struct {
	Outcome models.Outcome
	// Index of the deciding candle in the forward slice, -1 when unresolved.
	Index int
	At    time.Time
	// Gap is set when candles between the origin and the window were never seen.
	Gap bool
}

// Evaluate scans forward candles in order. A candle touching both levels is a stop-loss
// hit. Without a hit the result is UNRESOLVED.
func Evaluate(p models.SignalProposal, forward []models.Candle) Result {
	for i, c := range forward {
		var slHit, tpHit bool
		switch p.Direction {
		case models.Buy:
			slHit = c.Low <= p.StopLoss
			tpHit = c.High >= p.TakeProfit
		case models.Sell:
			slHit = c.High >= p.StopLoss
			tpHit = c.Low <= p.TakeProfit
		}

		if slHit {
			return Result{Outcome: models.OutcomeStopLossHit, Index: i, At: c.Time}
		}
		if tpHit {
			return Result{Outcome: models.OutcomeTakeProfitHit, Index: i, At: c.Time}
		}
	}
	return Result{Outcome: models.OutcomeUnresolved, Index: -1}
}

// ForwardCandles returns the candles of series strictly after the proposal's origin.
func ForwardCandles(series models.Series, p models.SignalProposal) []models.Candle {
	return series.After(p.OriginTime)
}

// Tracker applies Evaluate plus the expiry policy.
type Tracker struct {
	cfg Config
}

// NewTracker creates a tracker.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{cfg: cfg}
}

// Config returns the policy in use.
func (t *Tracker) Config() Config {
	return t.cfg
}

// Resolve evaluates p against the series and expires it when the window is exhausted.
// Only the first ExpireAfterCandles forward candles count, so a hit after the horizon
// never overrides EXPIRED. A window that starts more than one interval after the origin
// has unseen candles and the proposal expires at the first candle of the window.
func (t *Tracker) Resolve(series models.Series, p models.SignalProposal) Result {
	if Gap(series, p) {
		return Result{Outcome: models.OutcomeExpired, Index: -1, At: series.At(0).Time, Gap: true}
	}

	forward := ForwardCandles(series, p)
	horizon := len(forward)
	if t.cfg.ExpireAfterCandles > 0 && horizon > t.cfg.ExpireAfterCandles {
		horizon = t.cfg.ExpireAfterCandles
	}

	res := Evaluate(p, forward[:horizon])
	if res.Outcome != models.OutcomeUnresolved {
		return res
	}
	if t.cfg.ExpireAfterCandles > 0 && horizon == t.cfg.ExpireAfterCandles {
		return Result{Outcome: models.OutcomeExpired, Index: horizon - 1, At: forward[horizon-1].Time}
	}
	return res
}

// Gap reports whether series begins after the first candle that should follow p's
// origin. Unknown intervals and empty series never gap.
func Gap(series models.Series, p models.SignalProposal) bool {
	step := models.IntervalDuration(p.Interval)
	if step <= 0 || series.Len() == 0 {
		return false
	}
	return series.At(0).Time.After(p.OriginTime.Add(step))
}

// Tracked reports whether a ledger record still needs outcome tracking.
func (t *Tracker) Tracked(r models.TradeRecord) bool {
	if r.Outcome().Resolved() {
		return false
	}
	switch r.Proposal.Status {
	case models.StatusConfirmed:
		return true
	case models.StatusRejected:
		return t.cfg.TrackRejected
	}
	return false
}
