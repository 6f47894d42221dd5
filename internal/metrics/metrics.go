// Package metrics exposes the marketplace Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	actionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "actions",
			Name:      "handled_total",
			Help:      "Total number of marketplace actions handled.",
		},
		[]string{"action", "status"},
	)

	settlementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "settlement",
			Name:      "attempts_total",
			Help:      "Total number of settlement attempts.",
		},
		[]string{"status"},
	)

	settlementDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "market",
			Subsystem: "settlement",
			Name:      "duration_seconds",
			Help:      "Duration of settlement attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "market",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	Registry.MustRegister(actionsTotal, settlementsTotal, settlementDuration, httpRequests)
}

// ObserveAction records the outcome of one marketplace action.
func ObserveAction(action string, err error) {
	status := "ok"
	if err != nil {
		status = "rejected"
	}
	actionsTotal.WithLabelValues(action, status).Inc()
}

// ObserveSettlement records one settlement attempt.
func ObserveSettlement(success bool, duration time.Duration) {
	status := "ok"
	if !success {
		status = "failed"
	}
	settlementsTotal.WithLabelValues(status).Inc()
	settlementDuration.Observe(duration.Seconds())
}

// Handler serves the registry on /metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// statusRecorder captures the response code for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// InstrumentHandler wraps an HTTP handler with request counting.
func InstrumentHandler(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpRequests.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
	})
}
