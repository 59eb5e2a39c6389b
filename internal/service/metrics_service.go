package service

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/school-docs-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the lifecycle engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	transitions          *prometheus.CounterVec
	writeConflicts       prometheus.Counter
	notificationFailures prometheus.Counter
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

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "document_transitions_total",
		Help: "Accepted document status transitions",
	}, []string{"target", "forced"})

	writeConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "request_write_conflicts_total",
		Help: "Conditional writes that lost the version race",
	})

	notificationFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notification_write_failures_total",
		Help: "Notification records that could not be written",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, transitions, writeConflicts, notificationFailures, goroutines)

	return &MetricsService{
		registry:             registry,
		handler:              promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:      requestDuration,
		requestTotal:         requestTotal,
		transitions:          transitions,
		writeConflicts:       writeConflicts,
		notificationFailures: notificationFailures,
	}
}

// Handler exposes the /metrics endpoint handler.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one served request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := prometheus.Labels{"method": method, "path": path, "status": httpStatusLabel(status)}
	s.requestDuration.With(labels).Observe(duration.Seconds())
	s.requestTotal.With(labels).Inc()
}

// ObserveTransition records an accepted status transition.
func (s *MetricsService) ObserveTransition(target models.DocumentStatus, forced bool) {
	label := "false"
	if forced {
		label = "true"
	}
	s.transitions.With(prometheus.Labels{"target": string(target), "forced": label}).Inc()
}

// ObserveWriteConflict records one lost conditional write.
func (s *MetricsService) ObserveWriteConflict() {
	s.writeConflicts.Inc()
}

// ObserveNotificationFailure records one failed notification write.
func (s *MetricsService) ObserveNotificationFailure() {
	s.notificationFailures.Inc()
}

func httpStatusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
