package twelvedata

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Alias1177/SignalBot/models"
)

const seriesBody = `{
	"meta": {"symbol": "EUR/USD", "interval": "15min"},
	"values": [
		{"datetime": "2025-05-01 12:30:00", "open": "1.1010", "high": "1.1030", "low": "1.1000", "close": "1.1020", "volume": "250"},
		{"datetime": "2025-05-01 12:15:00", "open": "1.1000", "high": "1.1015", "low": "1.0990", "close": "1.1010", "volume": "200"},
		{"datetime": "2025-05-01 12:00:00", "open": "1.0990", "high": "1.1005", "low": "1.0985", "close": "1.1000"}
	],
	"status": "ok"
}`

func newTestClient(url string) *Client {
	return NewClient(ClientOptions{
		APIKey:          "key",
		BaseURL:         url,
		RequestTimeout:  time.Second,
		RequestsPerSec:  100,
		MaxRetries:      1,
		MaxRetryTimeout: time.Second,
	})
}

func TestFetchCandles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/time_series" || q.Get("symbol") != "EUR/USD" || q.Get("interval") != "15min" ||
			q.Get("outputsize") != "3" || q.Get("apikey") != "key" {
			t.Errorf("unexpected request %s", r.URL)
		}
		io.WriteString(w, seriesBody)
	}))
	defer srv.Close()

	candles, err := newTestClient(srv.URL).FetchCandles(context.Background(), "EUR/USD", "15min", 3)
	if err != nil {
		t.Fatalf("FetchCandles: %v", err)
	}
	if len(candles) != 3 {
		t.Fatalf("len = %d, want 3", len(candles))
	}

	first := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	if !candles[0].Time.Equal(first) {
		t.Errorf("first candle at %s, want %s", candles[0].Time, first)
	}
	if candles[2].Close != 1.1020 || candles[2].Volume != 250 {
		t.Errorf("last candle = %+v", candles[2])
	}
	if candles[0].Volume != 0 {
		t.Errorf("missing volume = %v, want 0", candles[0].Volume)
	}
	if _, err := models.NewSeries(candles); err != nil {
		t.Errorf("candles are not a valid series: %v", err)
	}
}

func TestFetchCandlesErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"api error", http.StatusOK, `{"code": 401, "message": "invalid api key", "status": "error"}`},
		{"empty values", http.StatusOK, `{"values": [], "status": "ok"}`},
		{"bad json", http.StatusOK, `{`},
		{"bad datetime", http.StatusOK, `{"values": [{"datetime": "yesterday", "open": "1", "high": "1", "low": "1", "close": "1"}], "status": "ok"}`},
		{"http 400", http.StatusBadRequest, `bad`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			candles, err := newTestClient(srv.URL).FetchCandles(context.Background(), "EUR/USD", "15min", 3)
			if len(candles) != 0 {
				t.Errorf("len(candles) = %d, want 0", len(candles))
			}
			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("err = %v, want *FetchError", err)
			}
			if !errors.Is(err, models.ErrFetch) {
				t.Error("FetchError must match models.ErrFetch")
			}
		})
	}
}
