package advisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/Alias1177/SignalBot/models"
)

// Example is a labelled chart caption.
type Example struct {
	Text  string
	Label models.Verdict
}

// SeedExamples keep the caption voter usable before the ledger has history.
var SeedExamples = []Example{
	{Text: "Bullish BOS formed, clean OB, possible reversal setup.", Label: models.Yes},
	{Text: "Bearish BOS formed, clean OB, continuation setup.", Label: models.Yes},
	{Text: "No clear structure, sideways price action.", Label: models.No},
}

// LedgerReader is the part of the store the caption voter learns from.
type LedgerReader interface {
	Ledger(ctx context.Context) ([]models.TradeRecord, error)
}

// CaptionVoter labels a chart caption with the verdict of its most similar
// historical caption.
type CaptionVoter struct {
	id      string
	ledger  LedgerReader
	history int
}

// NewCaptionVoter creates a voter learning from the last history labelled records.
func NewCaptionVoter(id string, ledger LedgerReader, history int) *CaptionVoter {
	if history <= 0 {
		history = 50
	}
	return &CaptionVoter{id: id, ledger: ledger, history: history}
}

func (v *CaptionVoter) ID() string { return v.id }

func (v *CaptionVoter) Ask(ctx context.Context, req Request) (Response, error) {
	if strings.TrimSpace(req.Caption) == "" {
		return Response{}, errors.New("no chart caption")
	}

	var records []models.TradeRecord
	if v.ledger != nil {
		var err error
		if records, err = v.ledger.Ledger(ctx); err != nil {
			return Response{}, fmt.Errorf("load examples: %w", err)
		}
	}

	examples := append(TrainingExamples(records, v.history), SeedExamples...)
	best, score := Nearest(req.Caption, examples)
	return Response{
		Verdict: best.Label,
		Raw:     fmt.Sprintf("nearest %q (similarity %.2f)", best.Text, score),
	}, nil
}

// TrainingExamples labels captions of the last limit resolved records: TP_HIT is YES,
// any other outcome NO.
func TrainingExamples(records []models.TradeRecord, limit int) []Example {
	var out []Example
	for i := len(records) - 1; i >= 0 && len(out) < limit; i-- {
		r := records[i]
		if r.Caption == "" || !r.Outcome().Resolved() {
			continue
		}
		label := models.No
		if r.Outcome() == models.OutcomeTakeProfitHit {
			label = models.Yes
		}
		out = append(out, Example{Text: r.Caption, Label: label})
	}
	return out
}

// Nearest returns the example with the highest word-set Jaccard similarity to text.
// Earlier examples win ties. examples must not be empty.
func Nearest(text string, examples []Example) (Example, float64) {
	words := tokenize(text)
	best, bestScore := examples[0], -1.0
	for _, ex := range examples {
		if s := jaccard(words, tokenize(ex.Text)); s > bestScore {
			best, bestScore = ex, s
		}
	}
	return best, bestScore
}

func tokenize(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}
