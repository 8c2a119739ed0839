package detector

// TrendMode selects how trend bias is derived.
type TrendMode string

const (
	TrendMovingAverage TrendMode = "ma"
	TrendSequence      TrendMode = "sequence"
)

// Config holds every threshold of the structure detector. The defaults reproduce the
// BTC/USD 15min profile the bot was first tuned on.
type Config struct {
	MinCandles int `yaml:"min_candles" default:"60" validate:"gte=4"`

	TrendMode      TrendMode `yaml:"trend_mode" default:"ma" validate:"oneof=ma sequence"`
	MAType         string    `yaml:"ma_type" default:"sma" validate:"oneof=sma ema"`
	FastPeriod     int       `yaml:"fast_period" default:"9" validate:"gte=1"`
	SlowPeriod     int       `yaml:"slow_period" default:"21" validate:"gtefield=FastPeriod"`
	SequenceLength int       `yaml:"sequence_length" default:"3" validate:"gte=2"`

	SwingLookback    int     `yaml:"swing_lookback" default:"1" validate:"gte=1"`
	MinBreakDistance float64 `yaml:"min_break_distance" default:"50" validate:"gte=0"`

	OrderBlockCandles int     `yaml:"order_block_candles" default:"3" validate:"gte=1"`
	MinOBVolume       float64 `yaml:"min_ob_volume" default:"50" validate:"gte=0"`
	MinOBBodyRatio    float64 `yaml:"min_ob_body_ratio" default:"0.1" validate:"gte=0,lte=1"`

	RequirePullback       bool    `yaml:"require_pullback" default:"true"`
	RequireCloseBeyond    bool    `yaml:"require_close_beyond" default:"true"`
	RequireVolumeSpike    bool    `yaml:"require_volume_spike" default:"true"`
	RequireLiquiditySweep bool    `yaml:"require_liquidity_sweep"`
	VolumeSpikeFactor     float64 `yaml:"volume_spike_factor" default:"1.5" validate:"gt=0"`
	VolumeLookback        int     `yaml:"volume_lookback" default:"4" validate:"gte=1"`

	ATRPeriod     int     `yaml:"atr_period" default:"14" validate:"gte=1"`
	ATRMultiplier float64 `yaml:"atr_multiplier" default:"0.5" validate:"gte=0"`
	RiskReward    float64 `yaml:"risk_reward" default:"2.0" validate:"gt=0"`
}

// DefaultConfig returns the built-in profile.
func DefaultConfig() Config {
	return Config{
		MinCandles:         60,
		TrendMode:          TrendMovingAverage,
		MAType:             "sma",
		FastPeriod:         9,
		SlowPeriod:         21,
		SequenceLength:     3,
		SwingLookback:      1,
		MinBreakDistance:   50,
		OrderBlockCandles:  3,
		MinOBVolume:        50,
		MinOBBodyRatio:     0.1,
		RequirePullback:    true,
		RequireCloseBeyond: true,
		RequireVolumeSpike: true,
		VolumeSpikeFactor:  1.5,
		VolumeLookback:     4,
		ATRPeriod:          14,
		ATRMultiplier:      0.5,
		RiskReward:         2.0,
	}
}

// required returns the smallest window the lookbacks can work with.
func (c Config) required() int {
	n := c.MinCandles
	need := []int{
		c.SlowPeriod,
		c.FastPeriod,
		c.SwingLookback + 2,
		c.OrderBlockCandles + 2,
		c.VolumeLookback + 1,
		c.SequenceLength,
	}
	for _, v := range need {
		if v > n {
			n = v
		}
	}
	return n
}
