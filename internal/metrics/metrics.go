// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zadolzitve_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "zadolzitve_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	custodyEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zadolzitve_custody_events_total",
		Help: "Custody actions by kind.",
	}, []string{"action"})

	switchOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zadolzitve_switch_outcomes_total",
		Help: "Master switch approvals by result.",
	}, []string{"result"})

	purged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "zadolzitve_purged_rows_total",
		Help: "Rows removed by background purges.",
	}, []string{"table"})
)

// ObserveRequest records one served HTTP request.
func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// CustodyEvent counts n custody actions of the given audit action.
func CustodyEvent(action string, n int) {
	if n > 0 {
		custodyEvents.WithLabelValues(action).Add(float64(n))
	}
}

// SwitchOutcome counts one switch request result ("approved", "impossible",
// "skipped" or "rejected").
func SwitchOutcome(result string) {
	switchOutcomes.WithLabelValues(result).Inc()
}

// Purged counts rows dropped from table by a purge job.
func Purged(table string, n int64) {
	if n > 0 {
		purged.WithLabelValues(table).Add(float64(n))
	}
}
