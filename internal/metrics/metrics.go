// Package metrics exposes Prometheus counters for the fetch cycle and
// notification pipeline. Served at /metrics by the API router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CyclesTotal counts completed fetch cycles.
	CyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tariwatch_fetch_cycles_total",
			Help: "Completed fetch cycles",
		},
	)

	// FetchesTotal counts per-user upstream fetches by status.
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tariwatch_fetches_total",
			Help: "Per-user upstream fetch attempts by status",
		},
		[]string{"status"},
	)

	// SnapshotsInserted counts stored score snapshots.
	SnapshotsInserted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tariwatch_snapshots_inserted_total",
			Help: "Score snapshots written to the store",
		},
	)

	// NotificationsTotal counts Discord notification attempts by outcome.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tariwatch_notifications_total",
			Help: "Discord notification attempts by outcome",
		},
		[]string{"outcome"},
	)

	// CycleDuration tracks how long a full fetch cycle takes.
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tariwatch_cycle_duration_seconds",
			Help:    "Fetch cycle duration in seconds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)
)
