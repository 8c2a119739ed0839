package advisor

import (
	"errors"
	"testing"

	"github.com/Alias1177/SignalBot/models"
)

func f(v float64) *float64 { return &v }

func sameLevel(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sameLevels(a, b *models.Levels) bool {
	if a == nil || b == nil {
		return a == b
	}
	return sameLevel(a.Entry, b.Entry) && sameLevel(a.StopLoss, b.StopLoss) && sameLevel(a.TakeProfit, b.TakeProfit)
}

func TestParseStructured(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		verdict models.Verdict
		levels  *models.Levels
		wantErr bool
	}{
		{
			name:    "plain object",
			raw:     `{"verdict": "YES", "entry": 100.5, "sl": 95, "tp": 112, "reason": "clean break"}`,
			verdict: models.Yes,
			levels:  &models.Levels{Entry: f(100.5), StopLoss: f(95), TakeProfit: f(112)},
		},
		{
			name:    "fenced with language tag",
			raw:     "```json\n{\"verdict\": \"no\", \"entry\": null, \"sl\": null, \"tp\": null}\n```",
			verdict: models.No,
		},
		{
			name:    "text around object",
			raw:     "Sure. {\"verdict\":\"Yes\",\"tp\":120} Good luck",
			verdict: models.Yes,
			levels:  &models.Levels{TakeProfit: f(120)},
		},
		{name: "unknown verdict", raw: `{"verdict": "MAYBE"}`, wantErr: true},
		{name: "no object", raw: "YES, take it", wantErr: true},
		{name: "broken json", raw: `{"verdict": "YES",`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ParseStructured(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrUnparseable) {
					t.Fatalf("err = %v, want ErrUnparseable", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseStructured: %v", err)
			}
			if resp.Verdict != tt.verdict {
				t.Errorf("Verdict = %s, want %s", resp.Verdict, tt.verdict)
			}
			if !sameLevels(resp.Levels, tt.levels) {
				t.Errorf("Levels = %+v, want %+v", resp.Levels, tt.levels)
			}
			if resp.Raw != tt.raw {
				t.Error("Raw must keep the original reply")
			}
		})
	}
}

func TestParseLegacy(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		verdict models.Verdict
		levels  *models.Levels
		wantErr bool
	}{
		{
			name:    "verdict with levels",
			raw:     "YES\nEntry: 1.10250\nSL: 1.09800\nTP: 1.11150",
			verdict: models.Yes,
			levels:  &models.Levels{Entry: f(1.1025), StopLoss: f(1.098), TakeProfit: f(1.1115)},
		},
		{
			name:    "long names and dollar signs",
			raw:     "Decision: no. Stop loss = $64000, take-profit: $67000",
			verdict: models.No,
			levels:  &models.Levels{StopLoss: f(64000), TakeProfit: f(67000)},
		},
		{
			name:    "verdict only",
			raw:     "I would say yes here.",
			verdict: models.Yes,
		},
		{
			name:    "words containing no are not verdicts",
			raw:     "Nothing notable, but overall YES",
			verdict: models.Yes,
		},
		{name: "no verdict", raw: "Entry: 100", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := ParseLegacy(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrUnparseable) {
					t.Fatalf("err = %v, want ErrUnparseable", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseLegacy: %v", err)
			}
			if resp.Verdict != tt.verdict {
				t.Errorf("Verdict = %s, want %s", resp.Verdict, tt.verdict)
			}
			if !sameLevels(resp.Levels, tt.levels) {
				t.Errorf("Levels = %+v, want %+v", resp.Levels, tt.levels)
			}
		})
	}
}

func TestParseFallsBackToLegacy(t *testing.T) {
	resp, err := Parse("NO - structure is unclear")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Verdict != models.No {
		t.Errorf("Verdict = %s, want NO", resp.Verdict)
	}
}
