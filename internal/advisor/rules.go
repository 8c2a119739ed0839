package advisor

import (
	"context"
	"fmt"
	"math"

	"github.com/Alias1177/SignalBot/models"
)

// RuleConfig holds the thresholds of the rule voter.
type RuleConfig struct {
	MinRiskDistance float64 `yaml:"min_risk_distance" default:"50" validate:"gte=0"`
	MinVolume       float64 `yaml:"min_volume" default:"50" validate:"gte=0"`
}

// RuleVoter says YES when the stop is far enough from entry and the trigger candle
// traded enough volume.
type RuleVoter struct {
	id  string
	cfg RuleConfig
}

// NewRuleVoter creates a rule voter.
func NewRuleVoter(id string, cfg RuleConfig) *RuleVoter {
	return &RuleVoter{id: id, cfg: cfg}
}

func (v *RuleVoter) ID() string { return v.id }

func (v *RuleVoter) Ask(ctx context.Context, req Request) (Response, error) {
	p := req.Proposal
	risk := math.Abs(p.Entry - p.StopLoss)
	volume := p.Context.TriggerVolume

	switch {
	case risk < v.cfg.MinRiskDistance:
		return Response{Verdict: models.No, Raw: fmt.Sprintf("risk distance %.5f below %.5f", risk, v.cfg.MinRiskDistance)}, nil
	case volume <= v.cfg.MinVolume:
		return Response{Verdict: models.No, Raw: fmt.Sprintf("trigger volume %.0f not above %.0f", volume, v.cfg.MinVolume)}, nil
	}
	return Response{Verdict: models.Yes, Raw: fmt.Sprintf("risk distance %.5f, trigger volume %.0f", risk, volume)}, nil
}
