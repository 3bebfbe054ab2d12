package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/totegamma/caselaw-dupcheck/internal/domain"
)

var (
	// CyclesTotal counts finished cycles.
	// Labels: result (succeeded, failed)
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dupcheck",
			Subsystem: "reconciler",
			Name:      "cycles_total",
			Help:      "Total number of reconciliation cycles by result",
		},
		[]string{"result"},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "dupcheck",
			Subsystem: "reconciler",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of reconciliation cycles in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		},
	)

	// RelationsChanged counts relation rows written by cycles.
	// Labels: op (inserted, deleted, downgraded)
	RelationsChanged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dupcheck",
			Subsystem: "reconciler",
			Name:      "relations_changed_total",
			Help:      "Total number of relation rows changed by reconciliation",
		},
		[]string{"op"},
	)

	CandidatePairs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "dupcheck",
			Subsystem: "matcher",
			Name:      "candidate_pairs",
			Help:      "Number of candidate pairs found by the last successful cycle",
		},
	)

	DroppedPairs = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dupcheck",
			Subsystem: "matcher",
			Name:      "dropped_pairs_total",
			Help:      "Total number of candidate pairs dropped for canonicalization errors",
		},
	)
)

func observeRun(run *domain.Run) {
	CyclesTotal.WithLabelValues(string(run.Result)).Inc()
	if d := run.Duration(); d > 0 {
		CycleDuration.Observe(d.Seconds())
	}
	if run.Result != domain.RunResultSucceeded {
		return
	}
	RelationsChanged.WithLabelValues("inserted").Add(float64(run.Inserted))
	RelationsChanged.WithLabelValues("deleted").Add(float64(run.Deleted))
	RelationsChanged.WithLabelValues("downgraded").Add(float64(run.Downgraded))
	CandidatePairs.Set(float64(run.Candidates))
	DroppedPairs.Add(float64(run.Dropped))
}
