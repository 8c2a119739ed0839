package models

import (
	"fmt"
	"math"
	"time"
)

// Candle represents a single price candle
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume,omitempty"`
}

// Body returns the absolute size of the candle body.
func (c Candle) Body() float64 {
	return math.Abs(c.Close - c.Open)
}

// Range returns high minus low.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// UpperWick returns the distance between the high and the top of the body.
func (c Candle) UpperWick() float64 {
	return c.High - math.Max(c.Open, c.Close)
}

// LowerWick returns the distance between the bottom of the body and the low.
func (c Candle) LowerWick() float64 {
	return math.Min(c.Open, c.Close) - c.Low
}

// Series is an immutable, chronologically ordered candle window (newest last).
type Series struct {
	candles []Candle
}

// NewSeries copies candles into a Series after checking that times strictly increase.
func NewSeries(candles []Candle) (Series, error) {
	for i := 1; i < len(candles); i++ {
		if !candles[i].Time.After(candles[i-1].Time) {
			return Series{}, fmt.Errorf("candle %d at %s is not after %s", i,
				candles[i].Time.Format(time.RFC3339), candles[i-1].Time.Format(time.RFC3339))
		}
	}
	cp := make([]Candle, len(candles))
	copy(cp, candles)
	return Series{candles: cp}, nil
}

// Len returns the number of candles.
func (s Series) Len() int {
	return len(s.candles)
}

// At returns the i-th candle; negative indexes count from the end.
func (s Series) At(i int) Candle {
	if i < 0 {
		i += len(s.candles)
	}
	return s.candles[i]
}

// Candles returns a copy of the underlying candles.
func (s Series) Candles() []Candle {
	cp := make([]Candle, len(s.candles))
	copy(cp, s.candles)
	return cp
}

// Tail returns a Series with the last n candles.
func (s Series) Tail(n int) Series {
	if n >= len(s.candles) {
		return s
	}
	return Series{candles: s.candles[len(s.candles)-n:]}
}

// After returns the candles strictly after t.
func (s Series) After(t time.Time) []Candle {
	for i, c := range s.candles {
		if c.Time.After(t) {
			cp := make([]Candle, len(s.candles)-i)
			copy(cp, s.candles[i:])
			return cp
		}
	}
	return nil
}

// TwelveResponse represents the API response from Twelve Data
type TwelveResponse struct {
	Meta struct {
		Symbol   string `json:"symbol"`
		Interval string `json:"interval"`
	} `json:"meta"`
	Values []struct {
		Datetime string  `json:"datetime"`
		Open     float64 `json:"open,string"`
		High     float64 `json:"high,string"`
		Low      float64 `json:"low,string"`
		Close    float64 `json:"close,string"`
		Volume   float64 `json:"volume,string,omitempty"`
	} `json:"values"`
	Status  string `json:"status"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Direction of a trade proposal
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// Status of a proposal in the decision pipeline
type Status string

const (
	StatusDetected     Status = "DETECTED"
	StatusDeduplicated Status = "DEDUPLICATED"
	StatusRejected     Status = "REJECTED"
	StatusConfirmed    Status = "CONFIRMED"
)

// Outcome of a proposal once price reaches one of its levels
type Outcome string

const (
	OutcomeUnresolved    Outcome = "UNRESOLVED"
	OutcomeTakeProfitHit Outcome = "TP_HIT"
	OutcomeStopLossHit   Outcome = "SL_HIT"
	OutcomeExpired       Outcome = "EXPIRED"
)

// Resolved reports whether the outcome is terminal.
func (o Outcome) Resolved() bool {
	return o == OutcomeTakeProfitHit || o == OutcomeStopLossHit || o == OutcomeExpired
}

// Verdict of a single advisory voter
type Verdict string

const (
	Yes Verdict = "YES"
	No  Verdict = "NO"
)

// Levels holds the three numeric levels of a trade. Nil fields were not provided.
type Levels struct {
	Entry      *float64 `json:"entry,omitempty"`
	StopLoss   *float64 `json:"stop_loss,omitempty"`
	TakeProfit *float64 `json:"take_profit,omitempty"`
}

// Empty reports whether no level is set.
func (l *Levels) Empty() bool {
	return l == nil || (l.Entry == nil && l.StopLoss == nil && l.TakeProfit == nil)
}

// DetectionContext describes why the detector produced a proposal.
type DetectionContext struct {
	Trend         string   `json:"trend"`
	FastMA        float64  `json:"fast_ma"`
	SlowMA        float64  `json:"slow_ma"`
	SwingLevel    float64  `json:"swing_level"`
	BreakDistance float64  `json:"break_distance"`
	OrderBlockAt  string   `json:"order_block_at,omitempty"`
	ATR           float64  `json:"atr"`
	VolumeRatio   float64  `json:"volume_ratio"`
	Confirmations []string `json:"confirmations,omitempty"`
	TriggerVolume float64  `json:"trigger_volume"`
}

// SignalProposal is a directional trade candidate.
type SignalProposal struct {
	ID         string           `json:"id"`
	Symbol     string           `json:"symbol"`
	Interval   string           `json:"interval"`
	Direction  Direction        `json:"direction"`
	Entry      float64          `json:"entry"`
	StopLoss   float64          `json:"sl"`
	TakeProfit float64          `json:"tp"`
	OriginTime time.Time        `json:"origin_time"`
	DetectedAt time.Time        `json:"detected_at"`
	Context    DetectionContext `json:"detection_context"`
	Status     Status           `json:"status"`
	Outcome    Outcome          `json:"outcome"`
}

// RiskReward returns |tp-entry| / |entry-sl|, or 0 when the risk distance is zero.
func (p SignalProposal) RiskReward() float64 {
	risk := math.Abs(p.Entry - p.StopLoss)
	if risk == 0 {
		return 0
	}
	return math.Abs(p.TakeProfit-p.Entry) / risk
}

// SameDecision compares the four decision fields only.
func (p SignalProposal) SameDecision(o SignalProposal) bool {
	return p.Direction == o.Direction &&
		p.Entry == o.Entry &&
		p.StopLoss == o.StopLoss &&
		p.TakeProfit == o.TakeProfit
}

// Vote is one advisor's verdict on a proposal.
type Vote struct {
	VoterID      string        `json:"voter_id"`
	Verdict      Verdict       `json:"verdict"`
	RawResponse  string        `json:"raw_response,omitempty"`
	ParsedLevels *Levels       `json:"parsed_levels,omitempty"`
	Failed       bool          `json:"failed,omitempty"`
	Error        string        `json:"error,omitempty"`
	Latency      time.Duration `json:"latency"`
}

// DecisionSummary is the persisted part of a consensus decision.
type DecisionSummary struct {
	YesCount  int     `json:"yes_count"`
	NoCount   int     `json:"no_count"`
	Required  int     `json:"required"`
	Weighted  bool    `json:"weighted"`
	YesWeight float64 `json:"yes_weight"`
	NoWeight  float64 `json:"no_weight"`
	Reason    string  `json:"reason,omitempty"`
}

// TradeRecord is one ledger entry. Only Outcome and ResolvedAt change after append.
type TradeRecord struct {
	Proposal   SignalProposal   `json:"proposal"`
	Votes      []Vote           `json:"votes,omitempty"`
	Caption    string           `json:"caption,omitempty"`
	Decision   *DecisionSummary `json:"decision,omitempty"`
	LoggedAt   time.Time        `json:"logged_at"`
	ResolvedAt *time.Time       `json:"resolved_at,omitempty"`
}

// ID returns the proposal id of the record.
func (r TradeRecord) ID() string {
	return r.Proposal.ID
}

// Outcome returns the current outcome of the record.
func (r TradeRecord) Outcome() Outcome {
	if r.Proposal.Outcome == "" {
		return OutcomeUnresolved
	}
	return r.Proposal.Outcome
}
