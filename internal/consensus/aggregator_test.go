package consensus

import (
	"errors"
	"testing"

	"github.com/Alias1177/SignalBot/models"
)

func candidate() models.SignalProposal {
	return models.SignalProposal{Direction: models.Buy, Entry: 100, StopLoss: 95, TakeProfit: 110}
}

func votes(verdicts ...models.Verdict) []models.Vote {
	ids := []string{"gpt", "rules", "caption", "grok", "deepseek"}
	out := make([]models.Vote, len(verdicts))
	for i, v := range verdicts {
		out[i] = models.Vote{VoterID: ids[i], Verdict: v}
	}
	return out
}

func ptr(f float64) *float64 { return &f }

func TestAggregateMajority(t *testing.T) {
	Y, N := models.Yes, models.No
	tests := []struct {
		name  string
		votes []models.Vote
		want  models.Status
	}{
		{"yes yes no", votes(Y, Y, N), models.StatusConfirmed},
		{"yes no no", votes(Y, N, N), models.StatusRejected},
		{"no yes yes", votes(N, Y, Y), models.StatusConfirmed},
		{"all yes", votes(Y, Y, Y), models.StatusConfirmed},
		{"all no", votes(N, N, N), models.StatusRejected},
		{"one voter missing", votes(Y, N), models.StatusRejected},
	}

	agg := New(Config{PanelSize: 3, MinRiskReward: 1.5})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := agg.Aggregate(candidate(), tt.votes, nil)
			if d.Status != tt.want {
				t.Errorf("Status = %s, want %s (yes=%d required=%d)", d.Status, tt.want, d.YesCount, d.Required)
			}
			if d.Weighted {
				t.Error("default weights must not enable weighted mode")
			}
		})
	}
}

func TestAggregateMoreVotesThanPanelSize(t *testing.T) {
	Y, N := models.Yes, models.No
	d := New(Config{PanelSize: 3, MinRiskReward: 1.5}).Aggregate(candidate(), votes(Y, Y, N, N, N), nil)
	if d.Confirmed() {
		t.Errorf("2 of 5 confirmed (yes=%d required=%d)", d.YesCount, d.Required)
	}
	if d.Required != 3 {
		t.Errorf("Required = %d, want 3", d.Required)
	}

	d = New(Config{PanelSize: 3, MinRiskReward: 1.5}).Aggregate(candidate(), votes(Y, Y, Y, N, N), nil)
	if !d.Confirmed() {
		t.Errorf("3 of 5 rejected (yes=%d required=%d)", d.YesCount, d.Required)
	}
}

func TestRequired(t *testing.T) {
	for n, want := range map[int]int{1: 1, 2: 2, 3: 2, 4: 3, 5: 3} {
		if got := Required(n); got != want {
			t.Errorf("Required(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestAggregateFailedVoteCountsAsNo(t *testing.T) {
	vs := votes(models.Yes, models.Yes, models.Yes)
	vs[1].Failed = true
	vs[2].Failed = true

	d := New(Config{PanelSize: 3, MinRiskReward: 1.5}).Aggregate(candidate(), vs, nil)
	if d.Confirmed() {
		t.Fatal("failed votes must count as No in fixed quorum")
	}
	if d.YesCount != 1 || d.NoCount != 2 {
		t.Errorf("yes=%d no=%d, want 1/2", d.YesCount, d.NoCount)
	}
}

func TestAggregateRespondedQuorum(t *testing.T) {
	vs := votes(models.Yes, models.No, models.No)
	vs[1].Failed = true
	vs[2].Failed = true

	agg := New(Config{PanelSize: 3, Quorum: QuorumResponded, MinRiskReward: 1.5})
	d := agg.Aggregate(candidate(), vs, nil)
	if !d.Confirmed() || d.Required != 1 {
		t.Errorf("Status = %s required = %d, want CONFIRMED with 1 required", d.Status, d.Required)
	}

	for i := range vs {
		vs[i].Failed = true
	}
	if d := agg.Aggregate(candidate(), vs, nil); d.Confirmed() {
		t.Error("no responders must not confirm")
	}
}

func TestAggregateWeighted(t *testing.T) {
	Y, N := models.Yes, models.No
	tests := []struct {
		name    string
		votes   []models.Vote
		weights map[string]float64
		want    models.Status
	}{
		{
			name:    "accurate minority outweighs majority",
			votes:   votes(Y, N, N),
			weights: map[string]float64{"gpt": 0.9, "rules": 0.3, "caption": 0.4},
			want:    models.StatusConfirmed,
		},
		{
			name:    "inaccurate majority loses",
			votes:   votes(Y, Y, N),
			weights: map[string]float64{"gpt": 0.2, "rules": 0.25, "caption": 0.8},
			want:    models.StatusRejected,
		},
		{
			name:    "tie is rejected",
			votes:   votes(Y, N, N),
			weights: map[string]float64{"gpt": 0.6, "rules": 0.3, "caption": 0.3},
			want:    models.StatusRejected,
		},
	}

	agg := New(Config{PanelSize: 3, MinRiskReward: 1.5})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := agg.Aggregate(candidate(), tt.votes, tt.weights)
			if !d.Weighted {
				t.Fatal("expected weighted mode")
			}
			if d.Status != tt.want {
				t.Errorf("Status = %s, want %s (yes=%.2f no=%.2f)", d.Status, tt.want, d.YesWeight, d.NoWeight)
			}
		})
	}
}

func TestAggregateReconcilesByPriority(t *testing.T) {
	vs := []models.Vote{
		{VoterID: "caption", Verdict: models.Yes, ParsedLevels: &models.Levels{Entry: ptr(101), TakeProfit: ptr(120)}},
		{VoterID: "gpt", Verdict: models.Yes, ParsedLevels: &models.Levels{StopLoss: ptr(96)}},
		{VoterID: "rules", Verdict: models.No, ParsedLevels: &models.Levels{Entry: ptr(50), StopLoss: ptr(40), TakeProfit: ptr(60)}},
	}

	agg := New(Config{PanelSize: 3, MinRiskReward: 1.5, Priority: []string{"gpt", "caption"}})
	d := agg.Aggregate(candidate(), vs, nil)

	if !d.Confirmed() {
		t.Fatalf("Status = %s, err = %v", d.Status, d.Err)
	}
	if d.Entry != 101 || d.StopLoss != 96 || d.TakeProfit != 120 {
		t.Errorf("levels = %v/%v/%v, want 101/96/120", d.Entry, d.StopLoss, d.TakeProfit)
	}
}

func TestAggregatePriorityPicksFirstNotAverage(t *testing.T) {
	vs := []models.Vote{
		{VoterID: "b", Verdict: models.Yes, ParsedLevels: &models.Levels{TakeProfit: ptr(130)}},
		{VoterID: "a", Verdict: models.Yes, ParsedLevels: &models.Levels{TakeProfit: ptr(115)}},
		{VoterID: "c", Verdict: models.No},
	}

	d := New(Config{PanelSize: 3, MinRiskReward: 1.5}).Aggregate(candidate(), vs, nil)
	if d.TakeProfit != 115 {
		t.Errorf("TakeProfit = %v, want 115 from voter a (lexicographic fallback)", d.TakeProfit)
	}
}

func TestAggregateRiskRewardGate(t *testing.T) {
	tests := []struct {
		name   string
		levels *models.Levels
	}{
		{"rr below minimum", &models.Levels{TakeProfit: ptr(104)}},
		{"stop above entry on a buy", &models.Levels{StopLoss: ptr(102)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vs := votes(models.Yes, models.Yes, models.Yes)
			vs[0].ParsedLevels = tt.levels

			d := New(Config{PanelSize: 3, MinRiskReward: 1.5}).Aggregate(candidate(), vs, nil)
			if d.Confirmed() {
				t.Fatal("expected rejection")
			}
			if !errors.Is(d.Err, models.ErrRiskReward) {
				t.Errorf("Err = %v, want ErrRiskReward", d.Err)
			}
		})
	}
}
