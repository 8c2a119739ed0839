package advisor

import (
	"context"
	"fmt"
	"strings"
)

const systemPrompt = `You are a disciplined trading risk reviewer. You confirm or reject trade ideas.
Reply with a single JSON object and nothing else:
{"verdict": "YES" or "NO", "entry": number or null, "sl": number or null, "tp": number or null, "reason": "one sentence"}
Only set entry, sl or tp when you would change the proposed level.`

// Completer sends one prompt to a chat model.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// LLMVoter asks a chat model to review the proposal.
type LLMVoter struct {
	id     string
	client Completer
}

// NewLLMVoter creates a voter backed by client.
func NewLLMVoter(id string, client Completer) *LLMVoter {
	return &LLMVoter{id: id, client: client}
}

func (v *LLMVoter) ID() string { return v.id }

func (v *LLMVoter) Ask(ctx context.Context, req Request) (Response, error) {
	raw, err := v.client.Complete(ctx, systemPrompt, BuildPrompt(req))
	if err != nil {
		return Response{Raw: raw}, err
	}
	return Parse(raw)
}

// BuildPrompt renders the proposal, its detection context and the recent candles.
func BuildPrompt(req Request) string {
	p := req.Proposal
	dc := p.Context

	var sb strings.Builder
	fmt.Fprintf(&sb, "Symbol: %s, interval: %s\n", p.Symbol, p.Interval)
	fmt.Fprintf(&sb, "Proposed %s at %s\n", p.Direction, p.OriginTime.UTC().Format("2006-01-02 15:04"))
	fmt.Fprintf(&sb, "Entry: %.5f\nSL: %.5f\nTP: %.5f\nRisk/reward: %.2f\n", p.Entry, p.StopLoss, p.TakeProfit, p.RiskReward())
	fmt.Fprintf(&sb, "Trend: %s (fast MA %.5f, slow MA %.5f)\n", dc.Trend, dc.FastMA, dc.SlowMA)
	fmt.Fprintf(&sb, "Break of structure beyond %.5f by %.5f\n", dc.SwingLevel, dc.BreakDistance)
	if dc.OrderBlockAt != "" {
		fmt.Fprintf(&sb, "Order block at %s\n", dc.OrderBlockAt)
	}
	fmt.Fprintf(&sb, "ATR: %.5f, volume ratio: %.2f\n", dc.ATR, dc.VolumeRatio)
	if len(dc.Confirmations) > 0 {
		fmt.Fprintf(&sb, "Confirmations: %s\n", strings.Join(dc.Confirmations, ", "))
	}
	if req.Caption != "" {
		fmt.Fprintf(&sb, "Chart: %s\n", req.Caption)
	}

	if len(req.Recent) > 0 {
		sb.WriteString("\nRecent candles (time open high low close volume):\n")
		for _, c := range req.Recent {
			fmt.Fprintf(&sb, "%s %.5f %.5f %.5f %.5f %.0f\n",
				c.Time.UTC().Format("2006-01-02 15:04"), c.Open, c.High, c.Low, c.Close, c.Volume)
		}
	}

	sb.WriteString("\nShould this trade be taken?")
	return sb.String()
}
