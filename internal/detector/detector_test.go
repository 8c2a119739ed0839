package detector

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/Alias1177/SignalBot/models"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MinCandles = 10
	cfg.FastPeriod = 3
	cfg.SlowPeriod = 6
	cfg.MinBreakDistance = 1
	cfg.ATRPeriod = 3
	cfg.RequirePullback = false
	return cfg
}

// bullishCandles builds a rising window whose candle 8 breaks the prior high by 3
// and whose trigger candle closes above its open and the prior close on 3x volume.
func bullishCandles() []models.Candle {
	t0 := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]models.Candle, 0, 10)
	for i := 0; i < 8; i++ {
		cl := 100 + float64(i)
		candles = append(candles, models.Candle{
			Time:   t0.Add(time.Duration(i) * 15 * time.Minute),
			Open:   cl - 0.5,
			High:   cl + 0.5,
			Low:    cl - 1,
			Close:  cl,
			Volume: 100,
		})
	}
	candles = append(candles,
		models.Candle{Time: t0.Add(8 * 15 * time.Minute), Open: 107, High: 110.5, Low: 106.8, Close: 110, Volume: 100},
		models.Candle{Time: t0.Add(9 * 15 * time.Minute), Open: 109.5, High: 111.5, Low: 109, Close: 111, Volume: 300},
	)
	return candles
}

// mirror reflects prices around 110 so a bullish window becomes bearish.
func mirror(candles []models.Candle) []models.Candle {
	out := make([]models.Candle, len(candles))
	for i, c := range candles {
		out[i] = models.Candle{
			Time:   c.Time,
			Open:   220 - c.Open,
			High:   220 - c.Low,
			Low:    220 - c.High,
			Close:  220 - c.Close,
			Volume: c.Volume,
		}
	}
	return out
}

func mustSeries(t *testing.T, candles []models.Candle) models.Series {
	t.Helper()
	s, err := models.NewSeries(candles)
	if err != nil {
		t.Fatalf("NewSeries: %v", err)
	}
	return s
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDetectBullishSetup(t *testing.T) {
	d := New(testConfig())
	res := d.Detect(mustSeries(t, bullishCandles()))

	if !res.Found() {
		t.Fatalf("expected signal, got %s", res.Reason)
	}
	p := res.Proposal
	atr := (1.5 + 3.7 + 2.5) / 3

	if p.Direction != models.Buy {
		t.Errorf("Direction = %s, want BUY", p.Direction)
	}
	if !approx(p.Entry, 111.5) {
		t.Errorf("Entry = %v, want 111.5", p.Entry)
	}
	if !approx(p.StopLoss, 109-0.5*atr) {
		t.Errorf("StopLoss = %v, want %v", p.StopLoss, 109-0.5*atr)
	}
	if !approx(p.TakeProfit, 111.5+2*(111.5-p.StopLoss)) {
		t.Errorf("TakeProfit = %v", p.TakeProfit)
	}
	if !approx(p.RiskReward(), 2) {
		t.Errorf("RiskReward = %v, want 2", p.RiskReward())
	}
	if p.Status != models.StatusDetected || p.Outcome != models.OutcomeUnresolved {
		t.Errorf("unexpected status/outcome %s/%s", p.Status, p.Outcome)
	}
	if want := []string{"close_beyond", "volume_spike"}; !reflect.DeepEqual(p.Context.Confirmations, want) {
		t.Errorf("Confirmations = %v, want %v", p.Context.Confirmations, want)
	}
}

func TestDetectBearishSetup(t *testing.T) {
	d := New(testConfig())
	res := d.Detect(mustSeries(t, mirror(bullishCandles())))

	if !res.Found() {
		t.Fatalf("expected signal, got %s", res.Reason)
	}
	p := res.Proposal
	atr := (1.5 + 3.7 + 2.5) / 3

	if p.Direction != models.Sell {
		t.Errorf("Direction = %s, want SELL", p.Direction)
	}
	if !approx(p.Entry, 108.5) {
		t.Errorf("Entry = %v, want 108.5", p.Entry)
	}
	if !approx(p.StopLoss, 111+0.5*atr) {
		t.Errorf("StopLoss = %v, want %v", p.StopLoss, 111+0.5*atr)
	}
	if !(p.TakeProfit < p.Entry) || !approx(p.RiskReward(), 2) {
		t.Errorf("TakeProfit = %v, RiskReward = %v", p.TakeProfit, p.RiskReward())
	}
}

func TestDetectNoSignal(t *testing.T) {
	tests := []struct {
		name   string
		cfg    func(*Config)
		mutate func([]models.Candle) []models.Candle
		want   Reason
	}{
		{
			name:   "window shorter than minimum",
			mutate: func(c []models.Candle) []models.Candle { return c[1:] },
			want:   ReasonInsufficientData,
		},
		{
			name: "bullish and bearish break on the same candle",
			mutate: func(c []models.Candle) []models.Candle {
				c[8].Low = 104
				return c
			},
			want: ReasonAmbiguous,
		},
		{
			name: "break smaller than the minimum distance",
			cfg:  func(c *Config) { c.MinBreakDistance = 5 },
			want: ReasonNoBreak,
		},
		{
			name: "no qualifying order block",
			cfg:  func(c *Config) { c.MinOBVolume = 1000 },
			want: ReasonNoOrderBlock,
		},
		{
			name: "no volume spike",
			mutate: func(c []models.Candle) []models.Candle {
				c[9].Volume = 120
				return c
			},
			want: ReasonUnconfirmed,
		},
		{
			name: "pullback rule enabled",
			cfg:  func(c *Config) { c.RequirePullback = true },
			want: ReasonUnconfirmed,
		},
		{
			name: "zero risk distance",
			cfg: func(c *Config) {
				c.ATRMultiplier = 0
				c.RequireCloseBeyond = false
			},
			mutate: func(c []models.Candle) []models.Candle {
				c[9].Open, c[9].High, c[9].Low, c[9].Close = 111, 111, 111, 111
				return c
			},
			want: ReasonInvalidRisk,
		},
		{
			name: "flat market",
			mutate: func(c []models.Candle) []models.Candle {
				for i := range c {
					c[i].Open, c[i].High, c[i].Low, c[i].Close = 100, 101, 99, 100
				}
				return c
			},
			want: ReasonNoTrend,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			if tt.cfg != nil {
				tt.cfg(&cfg)
			}
			candles := bullishCandles()
			if tt.mutate != nil {
				candles = tt.mutate(candles)
			}

			res := New(cfg).Detect(mustSeries(t, candles))
			if res.Found() {
				t.Fatalf("expected NoSignal, got %+v", res.Proposal)
			}
			if res.Reason != tt.want {
				t.Errorf("Reason = %s, want %s", res.Reason, tt.want)
			}
		})
	}
}

func TestDetectIsPure(t *testing.T) {
	d := New(testConfig())
	s := mustSeries(t, bullishCandles())

	first := d.Detect(s)
	second := d.Detect(s)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("detections differ:\n%+v\n%+v", first.Proposal, second.Proposal)
	}
}

func TestDetectSequenceTrend(t *testing.T) {
	cfg := testConfig()
	cfg.TrendMode = TrendSequence
	cfg.SequenceLength = 3

	res := New(cfg).Detect(mustSeries(t, bullishCandles()))
	if !res.Found() || res.Proposal.Direction != models.Buy {
		t.Fatalf("expected BUY signal, got %s", res.Reason)
	}
}
