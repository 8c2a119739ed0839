package indicators

import (
	"math"
	"testing"

	"github.com/Alias1177/SignalBot/models"
)

func TestSMA(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		period int
		want   float64
	}{
		{"empty", nil, 3, 0},
		{"last three", []float64{1, 2, 3, 4, 5}, 3, 4},
		{"period longer than data", []float64{2, 4}, 5, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SMA(tt.values, tt.period); got != tt.want {
				t.Errorf("SMA() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEMAConstantSeries(t *testing.T) {
	prices := []float64{5, 5, 5, 5, 5, 5}
	if got := EMA(prices, 3); got != 5 {
		t.Errorf("EMA() = %v, want 5", got)
	}
}

func TestATR(t *testing.T) {
	candles := []models.Candle{
		{High: 10, Low: 9, Close: 9.5},
		{High: 11, Low: 10, Close: 10.5}, // TR = max(1, 1.5, 0.5) = 1.5
		{High: 10.5, Low: 8, Close: 9},   // TR = max(2.5, 0, 2.5) = 2.5
	}

	if got := ATR(candles, 2); math.Abs(got-2.0) > 1e-9 {
		t.Errorf("ATR(2) = %v, want 2.0", got)
	}
	if got := ATR(candles, 1); math.Abs(got-2.5) > 1e-9 {
		t.Errorf("ATR(1) = %v, want 2.5", got)
	}
	if got := ATR(candles[:1], 14); got != 0 {
		t.Errorf("ATR of one candle = %v, want 0", got)
	}
}
