// Package metrics exposes cycle, vote and outcome counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder records pipeline metrics into its own registry.
type Recorder struct {
	registry *prometheus.Registry

	cycles        *prometheus.CounterVec
	proposals     *prometheus.CounterVec
	votes         *prometheus.CounterVec
	outcomes      *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	voterWeight   *prometheus.GaugeVec
	cycleDuration prometheus.Histogram
	voteLatency   *prometheus.HistogramVec
}

// New creates a recorder with a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		cycles: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbot_cycles_total",
				Help: "Decision cycles by result",
			},
			[]string{"result"},
		),
		proposals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbot_proposals_total",
				Help: "Proposals by final status",
			},
			[]string{"status"},
		),
		votes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbot_votes_total",
				Help: "Advisor votes by voter and verdict",
			},
			[]string{"voter", "verdict"},
		),
		outcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbot_outcomes_total",
				Help: "Resolved proposal outcomes",
			},
			[]string{"status", "outcome"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalbot_errors_total",
				Help: "Errors by kind",
			},
			[]string{"type"},
		),
		voterWeight: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "signalbot_voter_weight",
				Help: "Historical accuracy used as consensus weight",
			},
			[]string{"voter"},
		),
		cycleDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "signalbot_cycle_duration_seconds",
				Help:    "Duration of decision cycles",
				Buckets: prometheus.DefBuckets,
			},
		),
		voteLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalbot_vote_latency_seconds",
				Help:    "Advisor response latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"voter"},
		),
	}
}

// Registry returns the registry metrics are recorded into.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordCycle records a finished cycle.
func (r *Recorder) RecordCycle(result string, d time.Duration) {
	r.cycles.WithLabelValues(result).Inc()
	r.cycleDuration.Observe(d.Seconds())
}

// RecordProposal records a proposal's final status.
func (r *Recorder) RecordProposal(status string) {
	r.proposals.WithLabelValues(status).Inc()
}

// RecordVote records one vote.
func (r *Recorder) RecordVote(voter, verdict string, failed bool, latency time.Duration) {
	if failed {
		verdict = "FAILED"
	}
	r.votes.WithLabelValues(voter, verdict).Inc()
	r.voteLatency.WithLabelValues(voter).Observe(latency.Seconds())
}

// RecordOutcome records a resolved proposal.
func (r *Recorder) RecordOutcome(status, outcome string) {
	r.outcomes.WithLabelValues(status, outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordWeights sets the current voter weights.
func (r *Recorder) RecordWeights(weights map[string]float64) {
	for voter, w := range weights {
		r.voterWeight.WithLabelValues(voter).Set(w)
	}
}
