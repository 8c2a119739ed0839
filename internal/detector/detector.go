// Package detector finds break-of-structure setups with order-block validation in a
// candle window. Detection is a pure function of the window and the Config.
package detector

import (
	"math"
	"time"

	"github.com/Alias1177/SignalBot/internal/indicators"
	"github.com/Alias1177/SignalBot/models"
)

// Reason explains the result of a detection run.
type Reason string

const (
	ReasonSignal           Reason = "signal"
	ReasonInsufficientData Reason = "insufficient_data"
	ReasonNoTrend          Reason = "no_trend"
	ReasonNoBreak          Reason = "no_break"
	ReasonAmbiguous        Reason = "ambiguous"
	ReasonNoOrderBlock     Reason = "no_order_block"
	ReasonUnconfirmed      Reason = "unconfirmed"
	ReasonInvalidRisk      Reason = "invalid_risk"
)

// Detection is the detector output: a proposal, or NoSignal with a reason.
type Detection struct {
	Proposal *models.SignalProposal
	Reason   Reason
}

// Found reports whether a proposal was produced.
func (d Detection) Found() bool {
	return d.Proposal != nil
}

func noSignal(r Reason) Detection {
	return Detection{Reason: r}
}

// Detector runs the configured structure rules.
type Detector struct {
	cfg Config
}

// New creates a detector with the given thresholds.
func New(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Config returns the thresholds in use.
func (d *Detector) Config() Config {
	return d.cfg
}

// Detect evaluates the window. The last candle is the trigger candle and the one before
// it is the break candle.
func (d *Detector) Detect(series models.Series) Detection {
	if series.Len() < d.cfg.required() {
		return noSignal(ReasonInsufficientData)
	}

	candles := series.Candles()
	n := len(candles)
	last, brk := candles[n-1], candles[n-2]

	closes := indicators.Closes(candles)
	fast, slow := d.movingAverages(closes)
	bull, bear := d.trend(closes, fast, slow)

	swing := candles[n-2-d.cfg.SwingLookback : n-2]
	swingHigh := indicators.HighestHigh(swing)
	swingLow := indicators.LowestLow(swing)
	bosUp := brk.High > swingHigh+d.cfg.MinBreakDistance
	bosDown := brk.Low < swingLow-d.cfg.MinBreakDistance

	if bosUp && bosDown {
		return noSignal(ReasonAmbiguous)
	}
	if !bull && !bear {
		return noSignal(ReasonNoTrend)
	}

	bullBreak := bull && bosUp
	bearBreak := bear && bosDown
	if !bullBreak && !bearBreak {
		return noSignal(ReasonNoBreak)
	}

	obAt, ok := d.orderBlock(candles[n-2-d.cfg.OrderBlockCandles : n-2])
	if !ok {
		return noSignal(ReasonNoOrderBlock)
	}

	volumeRatio := d.volumeRatio(candles)

	var bullConf, bearConf []string
	bullOK, bearOK := false, false
	if bullBreak {
		bullConf, bullOK = d.confirm(models.Buy, candles, fast, slow)
	}
	if bearBreak {
		bearConf, bearOK = d.confirm(models.Sell, candles, fast, slow)
	}
	if bullOK && bearOK {
		return noSignal(ReasonAmbiguous)
	}
	if !bullOK && !bearOK {
		return noSignal(ReasonUnconfirmed)
	}

	atr := indicators.ATR(candles, d.cfg.ATRPeriod)
	dc := models.DetectionContext{
		FastMA:        fast,
		SlowMA:        slow,
		OrderBlockAt:  obAt,
		ATR:           atr,
		VolumeRatio:   volumeRatio,
		TriggerVolume: last.Volume,
	}

	p := &models.SignalProposal{
		OriginTime: last.Time,
		Status:     models.StatusDetected,
		Outcome:    models.OutcomeUnresolved,
	}

	var risk float64
	if bullOK {
		p.Direction = models.Buy
		p.Entry = last.High
		p.StopLoss = last.Low - d.cfg.ATRMultiplier*atr
		risk = p.Entry - p.StopLoss
		p.TakeProfit = p.Entry + d.cfg.RiskReward*risk
		dc.Trend = "bullish"
		dc.SwingLevel = swingHigh
		dc.BreakDistance = brk.High - swingHigh
		dc.Confirmations = bullConf
	} else {
		p.Direction = models.Sell
		p.Entry = last.Low
		p.StopLoss = last.High + d.cfg.ATRMultiplier*atr
		risk = p.StopLoss - p.Entry
		p.TakeProfit = p.Entry - d.cfg.RiskReward*risk
		dc.Trend = "bearish"
		dc.SwingLevel = swingLow
		dc.BreakDistance = swingLow - brk.Low
		dc.Confirmations = bearConf
	}

	if !(risk > 0) {
		return noSignal(ReasonInvalidRisk)
	}

	p.Context = dc
	return Detection{Proposal: p, Reason: ReasonSignal}
}

func (d *Detector) movingAverages(closes []float64) (float64, float64) {
	if d.cfg.MAType == "ema" {
		return indicators.EMA(closes, d.cfg.FastPeriod), indicators.EMA(closes, d.cfg.SlowPeriod)
	}
	return indicators.SMA(closes, d.cfg.FastPeriod), indicators.SMA(closes, d.cfg.SlowPeriod)
}

func (d *Detector) trend(closes []float64, fast, slow float64) (bull, bear bool) {
	if d.cfg.TrendMode == TrendSequence {
		seq := closes[len(closes)-d.cfg.SequenceLength:]
		bull, bear = true, true
		for i := 1; i < len(seq); i++ {
			if seq[i] <= seq[i-1] {
				bull = false
			}
			if seq[i] >= seq[i-1] {
				bear = false
			}
		}
		return bull, bear
	}
	return fast > slow, fast < slow
}

// orderBlock returns the time of the first qualifying candle.
func (d *Detector) orderBlock(candles []models.Candle) (string, bool) {
	for _, c := range candles {
		rng := c.Range()
		if rng <= 0 {
			continue
		}
		if c.Volume > d.cfg.MinOBVolume && c.Body()/rng >= d.cfg.MinOBBodyRatio {
			return c.Time.UTC().Format(time.RFC3339), true
		}
	}
	return "", false
}

func (d *Detector) volumeRatio(candles []models.Candle) float64 {
	n := len(candles)
	avg := indicators.AverageVolume(candles[n-1-d.cfg.VolumeLookback : n-1])
	if avg <= 0 {
		return 0
	}
	return candles[n-1].Volume / avg
}

// confirm applies the enabled confirmation rules to the trigger candle; all must hold.
func (d *Detector) confirm(dir models.Direction, candles []models.Candle, fast, slow float64) ([]string, bool) {
	n := len(candles)
	last, prev := candles[n-1], candles[n-2]
	var passed []string

	if d.cfg.RequirePullback {
		if dir == models.Buy && last.Low > math.Min(fast, slow) {
			return nil, false
		}
		if dir == models.Sell && last.High < math.Max(fast, slow) {
			return nil, false
		}
		passed = append(passed, "pullback")
	}

	if d.cfg.RequireCloseBeyond {
		if dir == models.Buy && !(last.Close > math.Max(last.Open, prev.Close)) {
			return nil, false
		}
		if dir == models.Sell && !(last.Close < math.Min(last.Open, prev.Close)) {
			return nil, false
		}
		passed = append(passed, "close_beyond")
	}

	if d.cfg.RequireVolumeSpike {
		avg := indicators.AverageVolume(candles[n-1-d.cfg.VolumeLookback : n-1])
		if !(last.Volume > d.cfg.VolumeSpikeFactor*avg) {
			return nil, false
		}
		passed = append(passed, "volume_spike")
	}

	if d.cfg.RequireLiquiditySweep {
		wick := last.LowerWick()
		if dir == models.Sell {
			wick = last.UpperWick()
		}
		if !(wick > 2*last.Body()) {
			return nil, false
		}
		passed = append(passed, "liquidity_sweep")
	}

	return passed, true
}
