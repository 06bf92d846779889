package aggregator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus mirrors of the live progress snapshot, additive
// instrumentation alongside the event-stream progress snapshot — not the
// excluded report-export surface, since these publish live gauges rather
// than a stored report. Grounded on the promauto package-level collector
// pattern of otherjamesbrown-ai-aas's internal/metrics packages.
var (
	completedRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rmeter",
		Name:      "completed_requests_total",
		Help:      "Total number of requests completed across every run.",
	})
	activeVUsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rmeter",
		Name:      "active_vus",
		Help:      "Number of virtual users currently executing.",
	})
	responseTimeHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "rmeter",
		Name:      "response_time_ms",
		Help:      "Per-request elapsed time in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	})
)

// mirrorToPrometheus publishes one recorded result onto the package-level
// collectors. Best-effort, additive to the in-process aggregates — it
// never affects Record's return value or locking.
func mirrorToPrometheus(elapsedMs int64) {
	completedRequestsTotal.Inc()
	responseTimeHistogram.Observe(float64(elapsedMs))
}
