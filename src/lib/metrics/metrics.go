package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventix_transaction_transitions_total",
			Help: "Transactions moved into each status",
		},
		[]string{"to"},
	)

	transitionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventix_transaction_failures_total",
			Help: "Rejected transition attempts by operation and error kind",
		},
		[]string{"operation", "kind"},
	)

	sweepRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventix_sweep_records_total",
			Help: "Records handled by background sweeps",
		},
		[]string{"sweep", "outcome"},
	)

	sweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "eventix_sweep_duration_seconds",
			Help:    "Duration of background sweeps",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"sweep"},
	)
)

func ObserveTransition(to string) {
	transitions.WithLabelValues(to).Inc()
}

func ObserveFailure(operation string, kind string) {
	transitionFailures.WithLabelValues(operation, kind).Inc()
}

func ObserveSweep(sweep string, outcome string, n int) {
	if n <= 0 {
		return
	}
	sweepRecords.WithLabelValues(sweep, outcome).Add(float64(n))
}

// TimeSweep returns a func that records the elapsed time when called.
func TimeSweep(sweep string) func() {
	start := time.Now()
	return func() {
		sweepDuration.WithLabelValues(sweep).Observe(time.Since(start).Seconds())
	}
}
