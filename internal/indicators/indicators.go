package indicators

import (
	"math"

	"github.com/Alias1177/SignalBot/models"
)

// Closes extracts close prices.
func Closes(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Average calculates simple average
func Average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, value := range values {
		sum += value
	}

	return sum / float64(len(values))
}

// SMA is the simple average of the last period values.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) == 0 {
		return 0
	}
	if period > len(values) {
		period = len(values)
	}
	return Average(values[len(values)-period:])
}

// EMA seeds with the SMA of the first period prices, then smooths the rest.
func EMA(prices []float64, period int) float64 {
	if len(prices) == 0 || period <= 0 {
		return 0
	}
	if len(prices) < period {
		return prices[len(prices)-1] // Return last price if not enough data
	}

	ema := Average(prices[:period])
	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(prices); i++ {
		ema = (prices[i]-ema)*multiplier + ema
	}

	return ema
}

// ATR averages the true ranges of the last period candles.
func ATR(candles []models.Candle, period int) float64 {
	if len(candles) < 2 || period <= 0 {
		return 0
	}

	trueRanges := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		// True Range is the greatest of high-low, |high-prevClose|, |low-prevClose|
		highLow := candles[i].High - candles[i].Low
		highPrevClose := math.Abs(candles[i].High - candles[i-1].Close)
		lowPrevClose := math.Abs(candles[i].Low - candles[i-1].Close)
		trueRanges = append(trueRanges, math.Max(highLow, math.Max(highPrevClose, lowPrevClose)))
	}

	// If we don't have enough data for the period, use what we have
	if len(trueRanges) < period {
		period = len(trueRanges)
	}

	return Average(trueRanges[len(trueRanges)-period:])
}

// AverageVolume is the mean volume of the given candles.
func AverageVolume(candles []models.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	var sum float64
	for _, c := range candles {
		sum += c.Volume
	}
	return sum / float64(len(candles))
}

// HighestHigh returns the max high, or NaN for an empty slice.
func HighestHigh(candles []models.Candle) float64 {
	if len(candles) == 0 {
		return math.NaN()
	}
	h := candles[0].High
	for _, c := range candles[1:] {
		h = math.Max(h, c.High)
	}
	return h
}

// LowestLow returns the min low, or NaN for an empty slice.
func LowestLow(candles []models.Candle) float64 {
	if len(candles) == 0 {
		return math.NaN()
	}
	l := candles[0].Low
	for _, c := range candles[1:] {
		l = math.Min(l, c.Low)
	}
	return l
}
