// Package chart renders the candle window around a proposal and describes it in words.
package chart

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/SignalBot/models"
)

// Artifact is a rendered chart. Ref is a file path, empty for placeholders.
type Artifact struct {
	Ref      string
	Caption  string
	Degraded bool
}

// Renderer produces a chart artifact for a proposal.
type Renderer interface {
	Render(ctx context.Context, window models.Series, p models.SignalProposal) (Artifact, error)
}

// Placeholder is used when rendering fails. It still carries a caption.
func Placeholder(window models.Series, p models.SignalProposal) Artifact {
	return Artifact{Caption: Describe(window, p), Degraded: true}
}

// Render calls r and degrades to a placeholder on error.
func Render(ctx context.Context, r Renderer, window models.Series, p models.SignalProposal) Artifact {
	if r == nil {
		return Placeholder(window, p)
	}
	a, err := r.Render(ctx, window, p)
	if err != nil {
		log.Warn().Err(err).Str("component", "chart").Str("proposal_id", p.ID).Msg("Chart rendering failed, using placeholder")
		return Placeholder(window, p)
	}
	return a
}

const (
	width      = 960
	height     = 540
	margin     = 40
	maxCandles = 60
)

// SVGRenderer writes candlestick charts as SVG files.
type SVGRenderer struct {
	dir    string
	logger zerolog.Logger
}

// NewSVGRenderer writes charts into dir.
func NewSVGRenderer(dir string) *SVGRenderer {
	return &SVGRenderer{
		dir:    dir,
		logger: log.With().Str("component", "chart").Logger(),
	}
}

func (r *SVGRenderer) Render(ctx context.Context, window models.Series, p models.SignalProposal) (Artifact, error) {
	if window.Len() == 0 {
		return Artifact{}, fmt.Errorf("empty window")
	}
	if err := ctx.Err(); err != nil {
		return Artifact{}, err
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("create chart dir: %w", err)
	}

	name := p.ID
	if name == "" {
		name = p.OriginTime.UTC().Format("20060102T150405")
	}
	path := filepath.Join(r.dir, name+".svg")
	if err := os.WriteFile(path, SVG(window.Tail(maxCandles), p), 0o644); err != nil {
		return Artifact{}, fmt.Errorf("write chart: %w", err)
	}

	r.logger.Debug().Str("path", path).Msg("Chart rendered")
	return Artifact{Ref: path, Caption: Describe(window, p)}, nil
}

// SVG draws the candles with horizontal entry, stop-loss and take-profit lines.
func SVG(window models.Series, p models.SignalProposal) []byte {
	candles := window.Candles()

	lo, hi := math.Min(p.StopLoss, p.TakeProfit), math.Max(p.StopLoss, p.TakeProfit)
	for _, c := range candles {
		lo, hi = math.Min(lo, c.Low), math.Max(hi, c.High)
	}
	if hi == lo {
		hi = lo + 1
	}
	y := func(price float64) float64 {
		return margin + (hi-price)/(hi-lo)*(height-2*margin)
	}
	step := float64(width-2*margin) / float64(len(candles))

	var b bytes.Buffer
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n", width, height, width, height)
	fmt.Fprintf(&b, `<rect width="100%%" height="100%%" fill="#131722"/>`+"\n")
	fmt.Fprintf(&b, `<text x="%d" y="24" fill="#d1d4dc" font-family="monospace" font-size="14">%s %s %s</text>`+"\n",
		margin, p.Symbol, p.Interval, p.Direction)

	for i, c := range candles {
		x := margin + step*float64(i) + step/2
		color := "#26a69a"
		if c.Close < c.Open {
			color = "#ef5350"
		}
		top, bottom := y(math.Max(c.Open, c.Close)), y(math.Min(c.Open, c.Close))
		fmt.Fprintf(&b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s"/>`+"\n", x, y(c.High), x, y(c.Low), color)
		fmt.Fprintf(&b, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"/>`+"\n",
			x-step*0.35, top, step*0.7, math.Max(bottom-top, 1), color)
	}

	for _, lvl := range []struct {
		label string
		price float64
		color string
	}{
		{"TP", p.TakeProfit, "#26a69a"},
		{"ENTRY", p.Entry, "#2962ff"},
		{"SL", p.StopLoss, "#ef5350"},
	} {
		fmt.Fprintf(&b, `<line x1="%d" y1="%.1f" x2="%d" y2="%.1f" stroke="%s" stroke-dasharray="6 4"/>`+"\n",
			margin, y(lvl.price), width-margin, y(lvl.price), lvl.color)
		fmt.Fprintf(&b, `<text x="%d" y="%.1f" fill="%s" font-family="monospace" font-size="12">%s %.5f</text>`+"\n",
			width-margin-120, y(lvl.price)-4, lvl.color, lvl.label, lvl.price)
	}

	b.WriteString("</svg>\n")
	return b.Bytes()
}

// Describe summarizes the setup in the vocabulary the caption voter learns from.
func Describe(window models.Series, p models.SignalProposal) string {
	dc := p.Context
	var parts []string

	switch p.Direction {
	case models.Buy:
		parts = append(parts, "Bullish BOS formed")
	case models.Sell:
		parts = append(parts, "Bearish BOS formed")
	}
	if dc.OrderBlockAt != "" {
		parts = append(parts, "clean OB")
	} else {
		parts = append(parts, "no clear OB")
	}
	for _, c := range dc.Confirmations {
		parts = append(parts, strings.ReplaceAll(c, "_", " "))
	}
	if dc.Trend != "" {
		parts = append(parts, dc.Trend+" trend")
	}

	if window.Len() >= 2 {
		first, last := window.At(0), window.At(-1)
		change := last.Close - first.Open
		switch {
		case math.Abs(change) < dc.ATR:
			parts = append(parts, "sideways price action")
		case change > 0:
			parts = append(parts, "rising price action")
		default:
			parts = append(parts, "falling price action")
		}
	}

	return strings.Join(parts, ", ") + "."
}
