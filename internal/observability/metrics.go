package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics bundles the service's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	eventsEmitted *prometheus.CounterVec
	notifDelivery *prometheus.CounterVec
	notifFailures *prometheus.CounterVec
}

// NewMetrics builds collectors on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_http_requests_total",
			Help: "HTTP requests by path, method and status.",
		}, []string{"path", "method", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "helpdesk_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"}),
		eventsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_lifecycle_events_total",
			Help: "Lifecycle events published by ticket mutations.",
		}, []string{"type"}),
		notifDelivery: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_notification_deliveries_total",
			Help: "Successful notification deliveries per channel.",
		}, []string{"channel"}),
		notifFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "helpdesk_notification_failures_total",
			Help: "Failed notification deliveries per channel.",
		}, []string{"channel"}),
	}
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest increments request counters.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordEvent counts a published lifecycle event.
func (m *Metrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.eventsEmitted.WithLabelValues(eventType).Inc()
}

// RecordDelivery counts a successful notification delivery on a channel.
func (m *Metrics) RecordDelivery(channel string) {
	if m == nil {
		return
	}
	m.notifDelivery.WithLabelValues(channel).Inc()
}

// RecordDeliveryFailure counts a failed notification delivery on a channel.
func (m *Metrics) RecordDeliveryFailure(channel string) {
	if m == nil {
		return
	}
	m.notifFailures.WithLabelValues(channel).Inc()
}

// RequestLogger logs every request and feeds the request metrics.
func RequestLogger(logger *zap.Logger, metrics *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)
		status := c.Response().StatusCode()

		metrics.RecordRequest(c.Route().Path, c.Method(), status, duration)
		logger.Info("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("duration", duration))
		return err
	}
}
