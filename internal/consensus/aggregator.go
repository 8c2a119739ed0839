// Package consensus turns the panel's votes into a confirm/reject decision.
package consensus

import (
	"fmt"
	"sort"

	"github.com/Alias1177/SignalBot/models"
)

// DefaultWeight is the neutral weight of a voter with no resolved history.
const DefaultWeight = 0.5

// QuorumMode decides what N means in the majority rule.
type QuorumMode string

const (
	// QuorumFixed uses the configured panel size; failed voters count as No.
	QuorumFixed QuorumMode = "fixed"
	// QuorumResponded counts only voters that answered.
	QuorumResponded QuorumMode = "responded"
)

// Config holds the consensus rules.
type Config struct {
	// PanelSize is N in fixed quorum mode. Profiles fill it from the advisor count.
	PanelSize     int        `yaml:"panel_size" validate:"gte=0"`
	Quorum        QuorumMode `yaml:"quorum" default:"fixed" validate:"oneof=fixed responded"`
	MinRiskReward float64    `yaml:"min_risk_reward" default:"1.5" validate:"gt=0"`
	// Priority orders advisors for level reconciliation. Voters not listed follow in
	// lexicographic order.
	Priority []string `yaml:"priority"`
}

// Decision is the aggregated verdict.
type Decision struct {
	Status     models.Status
	Entry      float64
	StopLoss   float64
	TakeProfit float64
	RiskReward float64
	YesCount   int
	NoCount    int
	Required   int
	Weighted   bool
	YesWeight  float64
	NoWeight   float64
	Err        error
}

// Confirmed reports whether the proposal passed.
func (d Decision) Confirmed() bool {
	return d.Status == models.StatusConfirmed
}

// Summary converts the decision into its persisted form.
func (d Decision) Summary() *models.DecisionSummary {
	s := &models.DecisionSummary{
		YesCount:  d.YesCount,
		NoCount:   d.NoCount,
		Required:  d.Required,
		Weighted:  d.Weighted,
		YesWeight: d.YesWeight,
		NoWeight:  d.NoWeight,
	}
	if d.Err != nil {
		s.Reason = d.Err.Error()
	}
	return s
}

// Apply copies the reconciled levels and status onto a proposal.
func (d Decision) Apply(p *models.SignalProposal) {
	p.Entry = d.Entry
	p.StopLoss = d.StopLoss
	p.TakeProfit = d.TakeProfit
	p.Status = d.Status
}

// Aggregator applies Config to a set of votes.
type Aggregator struct {
	cfg Config
}

// New creates an aggregator.
func New(cfg Config) *Aggregator {
	if cfg.PanelSize <= 0 {
		cfg.PanelSize = 3
	}
	if cfg.Quorum == "" {
		cfg.Quorum = QuorumFixed
	}
	return &Aggregator{cfg: cfg}
}

// Required returns the Yes votes needed out of n: floor(n/2)+1.
func Required(n int) int {
	return n/2 + 1
}

// Aggregate decides on candidate. Weights may be nil; voters missing from it use
// DefaultWeight.
func (a *Aggregator) Aggregate(candidate models.SignalProposal, votes []models.Vote, weights map[string]float64) Decision {
	d := Decision{Status: models.StatusRejected}

	counted := make([]models.Vote, 0, len(votes))
	for _, v := range votes {
		if a.cfg.Quorum == QuorumResponded && v.Failed {
			continue
		}
		counted = append(counted, v)
	}

	n := a.cfg.PanelSize
	if a.cfg.Quorum == QuorumResponded {
		n = len(counted)
	} else if len(votes) > n {
		// more voters than configured must not lower the bar
		n = len(votes)
	}
	d.Required = Required(n)

	for _, v := range counted {
		w := weightOf(weights, v.VoterID)
		if w != DefaultWeight {
			d.Weighted = true
		}
		if v.Verdict == models.Yes && !v.Failed {
			d.YesCount++
			d.YesWeight += w
		} else {
			d.NoCount++
			d.NoWeight += w
		}
	}
	if a.cfg.Quorum == QuorumFixed && len(counted) < n {
		// panel members that never reported are No votes
		missing := n - len(counted)
		d.NoCount += missing
		d.NoWeight += float64(missing) * DefaultWeight
	}

	d.Entry, d.StopLoss, d.TakeProfit = a.reconcile(candidate, counted)
	probe := candidate
	probe.Entry, probe.StopLoss, probe.TakeProfit = d.Entry, d.StopLoss, d.TakeProfit
	d.RiskReward = probe.RiskReward()

	passed := n > 0 && d.YesCount >= d.Required
	if d.Weighted {
		passed = n > 0 && d.YesWeight > d.NoWeight
	}
	if !passed {
		return d
	}

	if err := a.checkRiskReward(probe); err != nil {
		d.Err = err
		return d
	}

	d.Status = models.StatusConfirmed
	return d
}

func (a *Aggregator) checkRiskReward(p models.SignalProposal) error {
	var sidesOK bool
	switch p.Direction {
	case models.Buy:
		sidesOK = p.StopLoss < p.Entry && p.TakeProfit > p.Entry
	case models.Sell:
		sidesOK = p.StopLoss > p.Entry && p.TakeProfit < p.Entry
	}
	if !sidesOK {
		return fmt.Errorf("%w: levels on the wrong side of entry (entry=%.5f sl=%.5f tp=%.5f)",
			models.ErrRiskReward, p.Entry, p.StopLoss, p.TakeProfit)
	}
	if rr := p.RiskReward(); rr < a.cfg.MinRiskReward {
		return fmt.Errorf("%w: rr %.2f below minimum %.2f", models.ErrRiskReward, rr, a.cfg.MinRiskReward)
	}
	return nil
}

// reconcile takes, per level, the first value proposed by a Yes voter in priority order.
func (a *Aggregator) reconcile(candidate models.SignalProposal, votes []models.Vote) (entry, sl, tp float64) {
	entry, sl, tp = candidate.Entry, candidate.StopLoss, candidate.TakeProfit
	var haveEntry, haveSL, haveTP bool

	for _, v := range a.ordered(votes) {
		if v.Failed || v.Verdict != models.Yes || v.ParsedLevels.Empty() {
			continue
		}
		l := v.ParsedLevels
		if !haveEntry && l.Entry != nil {
			entry, haveEntry = *l.Entry, true
		}
		if !haveSL && l.StopLoss != nil {
			sl, haveSL = *l.StopLoss, true
		}
		if !haveTP && l.TakeProfit != nil {
			tp, haveTP = *l.TakeProfit, true
		}
	}
	return entry, sl, tp
}

func (a *Aggregator) ordered(votes []models.Vote) []models.Vote {
	rank := make(map[string]int, len(a.cfg.Priority))
	for i, id := range a.cfg.Priority {
		if _, dup := rank[id]; !dup {
			rank[id] = i
		}
	}
	out := make([]models.Vote, len(votes))
	copy(out, votes)
	sort.SliceStable(out, func(i, j int) bool {
		ri, iok := rank[out[i].VoterID]
		rj, jok := rank[out[j].VoterID]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return out[i].VoterID < out[j].VoterID
		}
	})
	return out
}

func weightOf(weights map[string]float64, id string) float64 {
	if w, ok := weights[id]; ok {
		return w
	}
	return DefaultWeight
}
