// Package metrics exposes Prometheus collectors for the review pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	acquisitionRunsTotal      *prometheus.CounterVec
	strategyAttemptsTotal     *prometheus.CounterVec
	reviewsFetchedTotal       *prometheus.CounterVec
	duplicatesDroppedTotal    prometheus.Counter
	paceDelaySeconds          *prometheus.HistogramVec
	activeWorkers             prometheus.Gauge
	httpRequestsTotal         *prometheus.CounterVec
	httpRequestDurationSecond *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		acquisitionRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "review_acquisition_runs_total",
				Help: "Total number of acquisition runs, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		strategyAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "review_strategy_attempts_total",
				Help: "Total strategy attempts, labeled by strategy and outcome.",
			},
			[]string{"strategy", "outcome"},
		)

		reviewsFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "review_records_fetched_total",
				Help: "Total raw review records fetched, labeled by strategy.",
			},
			[]string{"strategy"},
		)

		duplicatesDroppedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "review_duplicates_dropped_total",
				Help: "Total review records dropped by the deduplicator.",
			},
		)

		paceDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "review_pace_delay_seconds",
				Help:    "Histogram of rate limit wait durations, labeled by host.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "review_active_workers",
				Help: "Number of workers currently processing a run.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSecond = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRun increments the run counter for the given outcome.
func ObserveRun(outcome string) {
	if acquisitionRunsTotal == nil {
		return
	}
	acquisitionRunsTotal.WithLabelValues(outcome).Inc()
}

// ObserveStrategyAttempt counts one strategy attempt plus the records it
// produced.
func ObserveStrategyAttempt(strategy, outcome string, records int) {
	if strategyAttemptsTotal == nil {
		return
	}
	strategyAttemptsTotal.WithLabelValues(strategy, outcome).Inc()
	if records > 0 {
		reviewsFetchedTotal.WithLabelValues(strategy).Add(float64(records))
	}
}

// ObserveDuplicatesDropped counts records dropped by the deduplicator.
func ObserveDuplicatesDropped(n int) {
	if duplicatesDroppedTotal == nil || n <= 0 {
		return
	}
	duplicatesDroppedTotal.Add(float64(n))
}

// ObservePaceDelay records the duration of a rate limit wait.
func ObservePaceDelay(host string, duration time.Duration) {
	if paceDelaySeconds == nil {
		return
	}
	paceDelaySeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	if activeWorkers == nil {
		return
	}
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	if activeWorkers == nil {
		return
	}
	activeWorkers.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, codeLabel(code)).Inc()
	httpRequestDurationSecond.WithLabelValues(method, route).Observe(duration.Seconds())
}

func codeLabel(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
