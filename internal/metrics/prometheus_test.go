package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder(t *testing.T) {
	r := New()
	r.RecordCycle("confirmed", time.Second)
	r.RecordVote("gpt", "YES", false, 200*time.Millisecond)
	r.RecordVote("gpt", "YES", true, time.Second)
	r.RecordWeights(map[string]float64{"gpt": 0.67})

	if got := testutil.ToFloat64(r.cycles.WithLabelValues("confirmed")); got != 1 {
		t.Errorf("cycles = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.votes.WithLabelValues("gpt", "FAILED")); got != 1 {
		t.Errorf("failed votes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.voterWeight.WithLabelValues("gpt")); got != 0.67 {
		t.Errorf("weight = %v, want 0.67", got)
	}

	// Two recorders must not collide.
	New().RecordCycle("skipped", 0)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `signalbot_cycles_total{result="confirmed"} 1`) {
		t.Errorf("metrics output missing cycle counter:\n%s", body)
	}
}
