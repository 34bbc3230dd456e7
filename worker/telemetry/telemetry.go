// Package telemetry exports search metrics to Prometheus.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Telemetry holds the metrics of synthesis runs. A nil *Telemetry is
// valid and records nothing.
type Telemetry struct {
	RunsTotal        *prometheus.CounterVec
	CandidatesTotal  *prometheus.CounterVec
	ComponentsTotal  prometheus.Counter
	RejuvenatedTotal prometheus.Counter
	MergesTotal      prometheus.Counter
	RunCost          *prometheus.HistogramVec
	BestScore        *prometheus.GaugeVec
}

// New registers the metrics against reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Telemetry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Telemetry{
		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synth_runs_total",
				Help: "Total number of synthesis runs",
			},
			[]string{"solver", "status"},
		),
		CandidatesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synth_candidates_total",
				Help: "Total number of candidate programs evaluated",
			},
			[]string{"solver", "origin"},
		),
		ComponentsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "synth_components_learned_total",
				Help: "Total number of components extracted by library learning",
			},
		),
		RejuvenatedTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "synth_rejuvenations_total",
				Help: "Total number of beam rejuvenations",
			},
		),
		MergesTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name: "synth_state_merges_total",
				Help: "Total number of search state merges",
			},
		),
		RunCost: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "synth_run_cost",
				Help:    "Search steps spent per run",
				Buckets: prometheus.ExponentialBuckets(10, 4, 8),
			},
			[]string{"solver"},
		),
		BestScore: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "synth_best_score",
				Help: "Best score of the last finished run",
			},
			[]string{"solver"},
		),
	}
}

// Candidate counts one evaluated program. origin is "random" or
// "mutation".
func (t *Telemetry) Candidate(solver, origin string) {
	if t == nil {
		return
	}
	t.CandidatesTotal.WithLabelValues(solver, origin).Inc()
}

// Component counts a learned component.
func (t *Telemetry) Component() {
	if t == nil {
		return
	}
	t.ComponentsTotal.Inc()
}

// Rejuvenation counts a beam rejuvenation.
func (t *Telemetry) Rejuvenation() {
	if t == nil {
		return
	}
	t.RejuvenatedTotal.Inc()
}

// Merge counts a state merge.
func (t *Telemetry) Merge() {
	if t == nil {
		return
	}
	t.MergesTotal.Inc()
}

// RunEnd records the outcome of a run.
func (t *Telemetry) RunEnd(solver, status string, cost int, score float64) {
	if t == nil {
		return
	}
	t.RunsTotal.WithLabelValues(solver, status).Inc()
	t.RunCost.WithLabelValues(solver).Observe(float64(cost))
	t.BestScore.WithLabelValues(solver).Set(score)
}
