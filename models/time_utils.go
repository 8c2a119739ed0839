package models

import (
	"strings"
	"time"
)

var intervalAliases = map[string]string{
	"1m":  "1min",
	"5m":  "5min",
	"15m": "15min",
	"30m": "30min",
	"45m": "45min",
	"1d":  "1day",
	"1w":  "1week",
}

// NormalizeInterval maps short exchange-style intervals to Twelve Data names.
// Unknown values fall back to 15min.
func NormalizeInterval(interval string) string {
	interval = strings.TrimSpace(strings.ToLower(interval))
	if v, ok := intervalAliases[interval]; ok {
		return v
	}
	if IntervalDuration(interval) > 0 {
		return interval
	}
	return "15min"
}

// IntervalDuration returns the wall-clock length of one candle, or 0 if unknown.
func IntervalDuration(interval string) time.Duration {
	switch interval {
	case "1min":
		return time.Minute
	case "5min":
		return 5 * time.Minute
	case "15min":
		return 15 * time.Minute
	case "30min":
		return 30 * time.Minute
	case "45min":
		return 45 * time.Minute
	case "1h":
		return time.Hour
	case "2h":
		return 2 * time.Hour
	case "4h":
		return 4 * time.Hour
	case "8h":
		return 8 * time.Hour
	case "1day":
		return 24 * time.Hour
	case "1week":
		return 7 * 24 * time.Hour
	}
	return 0
}
