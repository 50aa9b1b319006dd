package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the finance API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	evaluations     *prometheus.CounterVec
	promotions      *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	reconciliations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_reconciliations_total",
		Help: "Total ledger summaries computed, by ledger mode",
	}, []string{"mode"})

	evaluations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "status_evaluations_total",
		Help: "Total account status evaluations, by outcome",
	}, []string{"status"})

	promotions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "promotions_total",
		Help: "Total promotion transitions, by action",
	}, []string{"action"})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "summary_cache_hits_total",
		Help: "Total summary cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "summary_cache_misses_total",
		Help: "Total summary cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, reconciliations, evaluations, promotions, cacheHits, cacheMisses, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		reconciliations: reconciliations,
		evaluations:     evaluations,
		promotions:      promotions,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordReconciliation counts a computed summary by ledger mode.
func (m *MetricsService) RecordReconciliation(mode string) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(mode).Inc()
}

// RecordStatusEvaluation counts a status evaluation outcome.
func (m *MetricsService) RecordStatusEvaluation(status string) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(status).Inc()
}

// RecordPromotion counts a promote/reverse/no-op transition.
func (m *MetricsService) RecordPromotion(action string) {
	if m == nil {
		return
	}
	m.promotions.WithLabelValues(action).Inc()
}

// RecordCacheOperation counts summary cache hits and misses.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
