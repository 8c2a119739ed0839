// Package memory learns how often each voter's Yes turned into a take-profit.
package memory

import (
	"math"
	"sort"

	"github.com/Alias1177/SignalBot/internal/consensus"
	"github.com/Alias1177/SignalBot/models"
)

// Stats is the resolved track record of one voter.
type Stats struct {
	VoterID  string  `json:"voter_id"`
	TPHits   int     `json:"tp_hits"`
	SLHits   int     `json:"sl_hits"`
	Total    int     `json:"total"`
	Accuracy float64 `json:"accuracy"`
}

// Analyze walks the ledger and counts non-failed Yes votes on trades that ended in
// TP_HIT or SL_HIT. Voters listed in panel always get an entry.
func Analyze(ledger []models.TradeRecord, panel []string) []Stats {
	byVoter := make(map[string]*Stats)
	get := func(id string) *Stats {
		s, ok := byVoter[id]
		if !ok {
			s = &Stats{VoterID: id}
			byVoter[id] = s
		}
		return s
	}
	for _, id := range panel {
		get(id)
	}

	for _, rec := range ledger {
		outcome := rec.Outcome()
		if outcome != models.OutcomeTakeProfitHit && outcome != models.OutcomeStopLossHit {
			continue
		}
		for _, v := range rec.Votes {
			if v.Failed || v.Verdict != models.Yes {
				continue
			}
			s := get(v.VoterID)
			s.Total++
			if outcome == models.OutcomeTakeProfitHit {
				s.TPHits++
			} else {
				s.SLHits++
			}
		}
	}

	out := make([]Stats, 0, len(byVoter))
	for _, s := range byVoter {
		if s.Total == 0 {
			s.Accuracy = consensus.DefaultWeight
		} else {
			s.Accuracy = round2(float64(s.TPHits) / float64(s.Total))
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VoterID < out[j].VoterID })
	return out
}

// Weights returns voterId -> accuracy, the input of weighted consensus.
func Weights(ledger []models.TradeRecord, panel []string) map[string]float64 {
	stats := Analyze(ledger, panel)
	w := make(map[string]float64, len(stats))
	for _, s := range stats {
		w[s.VoterID] = s.Accuracy
	}
	return w
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
