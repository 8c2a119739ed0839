package models

import "context"

type CandleClient interface {
	FetchCandles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)
}
