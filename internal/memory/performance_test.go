package memory

import (
	"testing"

	"github.com/Alias1177/SignalBot/models"
)

func record(outcome models.Outcome, votes ...models.Vote) models.TradeRecord {
	return models.TradeRecord{
		Proposal: models.SignalProposal{Status: models.StatusConfirmed, Outcome: outcome},
		Votes:    votes,
	}
}

func yes(id string) models.Vote { return models.Vote{VoterID: id, Verdict: models.Yes} }
func no(id string) models.Vote  { return models.Vote{VoterID: id, Verdict: models.No} }

func TestWeights(t *testing.T) {
	failed := yes("rules")
	failed.Failed = true

	ledger := []models.TradeRecord{
		record(models.OutcomeTakeProfitHit, yes("gpt"), no("rules"), failed),
		record(models.OutcomeTakeProfitHit, yes("gpt"), no("rules")),
		record(models.OutcomeStopLossHit, yes("gpt"), no("rules")),
		record(models.OutcomeExpired, yes("gpt"), yes("rules")),
		record(models.OutcomeUnresolved, yes("gpt"), yes("rules")),
		record(models.OutcomeStopLossHit, yes("caption")),
	}

	w := Weights(ledger, []string{"gpt", "rules", "caption", "grok"})

	tests := []struct {
		voter string
		want  float64
	}{
		{"gpt", 0.67},
		{"rules", 0.5},
		{"caption", 0},
		{"grok", 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.voter, func(t *testing.T) {
			if got := w[tt.voter]; got != tt.want {
				t.Errorf("weight(%s) = %v, want %v", tt.voter, got, tt.want)
			}
		})
	}
}

func TestAnalyzeCounts(t *testing.T) {
	ledger := []models.TradeRecord{
		record(models.OutcomeTakeProfitHit, yes("gpt")),
		record(models.OutcomeStopLossHit, yes("gpt")),
		record(models.OutcomeStopLossHit, yes("gpt")),
	}
	stats := Analyze(ledger, nil)
	if len(stats) != 1 {
		t.Fatalf("len(stats) = %d, want 1", len(stats))
	}
	s := stats[0]
	if s.TPHits != 1 || s.SLHits != 2 || s.Total != 3 || s.Accuracy != 0.33 {
		t.Errorf("stats = %+v", s)
	}
}

func TestWeightsEmptyLedger(t *testing.T) {
	w := Weights(nil, []string{"gpt"})
	if w["gpt"] != 0.5 {
		t.Errorf("weight = %v, want 0.5", w["gpt"])
	}
}
