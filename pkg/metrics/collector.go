package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests labeled by method, route and status",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	scoreSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "score_submissions_total",
			Help: "Total number of accepted score submissions split by whether a new personal best was set",
		},
		[]string{"result"},
	)
	authAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of register and login attempts by outcome",
		},
		[]string{"operation", "result"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by kind and severity",
		},
		[]string{"kind", "severity"},
	)
)

// Handler exposes the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest increments request counters and records duration.
func RecordRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}

	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordScoreSubmission counts a committed score submission.
func RecordScoreSubmission(newBest bool) {
	result := "no_change"
	if newBest {
		result = "new_best"
	}

	scoreSubmissionsTotal.WithLabelValues(result).Inc()
}

// RecordAuthAttempt counts register/login outcomes.
func RecordAuthAttempt(operation, result string) {
	if result == "" {
		result = "unknown"
	}

	authAttemptsTotal.WithLabelValues(operation, result).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(kind, severity string) {
	if kind == "" {
		kind = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(kind, severity).Inc()
}
