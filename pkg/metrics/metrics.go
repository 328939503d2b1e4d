// Package metrics instruments outgoing API traffic with Prometheus
// collectors. The registry is owned here so embedding applications can
// expose it however they like.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector tracks request counts and latencies for the HTTP client adapter.
type Collector struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	rollbackTotal   *prometheus.CounterVec
	realtimeEvents  prometheus.Counter
}

// NewCollector registers the client collectors on a fresh registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "classhub_request_duration_seconds",
		Help:    "Duration of outgoing API requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "classhub_requests_total",
		Help: "Total number of outgoing API requests",
	}, []string{"method", "path", "status"})

	rollbackTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "classhub_optimistic_rollbacks_total",
		Help: "Optimistic mutations rolled back after a failed server call",
	}, []string{"operation"})

	realtimeEvents := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "classhub_realtime_events_total",
		Help: "Notifications received over the realtime channel",
	})

	registry.MustRegister(requestDuration, requestTotal, rollbackTotal, realtimeEvents)

	return &Collector{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		rollbackTotal:   rollbackTotal,
		realtimeEvents:  realtimeEvents,
	}
}

// ObserveRequest records one completed (or failed) outgoing request.
// status 0 means the request never reached the server.
func (c *Collector) ObserveRequest(method, path string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": statusLabel(status),
	}
	c.requestTotal.With(labels).Inc()
	c.requestDuration.With(labels).Observe(duration.Seconds())
}

// ObserveRollback counts a rolled-back optimistic mutation.
func (c *Collector) ObserveRollback(operation string) {
	if c == nil {
		return
	}
	c.rollbackTotal.With(prometheus.Labels{"operation": operation}).Inc()
}

// ObserveRealtimeEvent counts one received notification.
func (c *Collector) ObserveRealtimeEvent() {
	if c == nil {
		return
	}
	c.realtimeEvents.Inc()
}

// Handler exposes the registry in Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return c.handler
}

func statusLabel(status int) string {
	if status <= 0 {
		return "network_error"
	}
	return strconv.Itoa(status)
}
