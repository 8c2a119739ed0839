package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Alias1177/SignalBot/internal/metrics"
	"github.com/Alias1177/SignalBot/internal/pipeline"
	"github.com/Alias1177/SignalBot/internal/store"
	"github.com/Alias1177/SignalBot/models"
)

func newTestServer(t *testing.T, trigger Trigger) (*Server, *store.FileStore) {
	t.Helper()
	fs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	t.Cleanup(func() { fs.Close() })

	srv := New(Config{
		Panel:   []string{"gpt", "rules"},
		Store:   fs,
		Metrics: metrics.New().Handler(),
		Trigger: trigger,
	})
	return srv, fs
}

func do(t *testing.T, srv *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tests := []struct {
		path string
		want int
	}{
		{"/health", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/signal/last", http.StatusNotFound},
		{"/ledger", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if rec := do(t, srv, http.MethodGet, tt.path); rec.Code != tt.want {
				t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.want)
			}
		})
	}

	if rec := do(t, srv, http.MethodPost, "/cycle"); rec.Code != http.StatusNotFound {
		t.Errorf("POST /cycle without trigger = %d, want 404", rec.Code)
	}
}

func TestStateEndpoints(t *testing.T) {
	srv, fs := newTestServer(t, nil)
	ctx := context.Background()

	p := models.SignalProposal{
		ID: "p1", Symbol: "BTC/USD", Direction: models.Buy,
		Entry: 100, StopLoss: 95, TakeProfit: 110, Status: models.StatusConfirmed,
	}
	if err := fs.Append(ctx, models.TradeRecord{
		Proposal: p,
		Votes:    []models.Vote{{VoterID: "gpt", Verdict: models.Yes}},
		LoggedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := fs.Commit(ctx, p); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := fs.Resolve(ctx, "p1", models.OutcomeTakeProfitHit, time.Now().UTC()); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	rec := do(t, srv, http.MethodGet, "/signal/last")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /signal/last = %d", rec.Code)
	}
	var last models.SignalProposal
	if err := json.Unmarshal(rec.Body.Bytes(), &last); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if last.ID != "p1" || last.Entry != 100 {
		t.Errorf("last = %+v", last)
	}

	var ledger struct {
		Count int `json:"count"`
	}
	json.Unmarshal(do(t, srv, http.MethodGet, "/ledger").Body.Bytes(), &ledger)
	if ledger.Count != 1 {
		t.Errorf("ledger count = %d, want 1", ledger.Count)
	}
	json.Unmarshal(do(t, srv, http.MethodGet, "/ledger?pending=true").Body.Bytes(), &ledger)
	if ledger.Count != 0 {
		t.Errorf("pending count = %d, want 0", ledger.Count)
	}

	var weights struct {
		Voters []struct {
			VoterID  string  `json:"voter_id"`
			Accuracy float64 `json:"accuracy"`
		} `json:"voters"`
	}
	if err := json.Unmarshal(do(t, srv, http.MethodGet, "/weights").Body.Bytes(), &weights); err != nil {
		t.Fatalf("decode weights: %v", err)
	}
	got := map[string]float64{}
	for _, v := range weights.Voters {
		got[v.VoterID] = v.Accuracy
	}
	if got["gpt"] != 1 || got["rules"] != 0.5 {
		t.Errorf("weights = %v, want gpt=1 rules=0.5", got)
	}
}

func TestCycleTrigger(t *testing.T) {
	tests := []struct {
		name string
		res  pipeline.Result
		err  error
		want int
	}{
		{"confirmed", pipeline.Result{Status: pipeline.CycleConfirmed}, nil, http.StatusOK},
		{"busy", pipeline.Result{}, pipeline.ErrCycleInProgress, http.StatusConflict},
		{"failed", pipeline.Result{Status: pipeline.CycleFailed}, models.ErrPersistence, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, func(context.Context) (pipeline.Result, error) {
				return tt.res, tt.err
			})
			if rec := do(t, srv, http.MethodPost, "/cycle"); rec.Code != tt.want {
				t.Errorf("POST /cycle = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
