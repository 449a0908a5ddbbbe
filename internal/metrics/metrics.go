// Package metrics exposes the tracker's Prometheus collectors on a private
// registry so tests can build as many collectors as they like.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	LocationUpdates prometheus.Counter
	WaitRequests    *prometheus.CounterVec // status label: pending|acknowledged|declined

	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter

	EventsPublished    *prometheus.CounterVec // sink label
	EventPublishErrors *prometheus.CounterVec // sink label

	SocketClients prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shuttle_tracker",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shuttle_tracker",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		LocationUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shuttle_tracker",
			Name:      "location_updates_total",
			Help:      "Bus location updates accepted.",
		}),
		WaitRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shuttle_tracker",
			Name:      "wait_requests_total",
			Help:      "Wait requests created or resolved, by resulting status.",
		}, []string{"status"}),
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shuttle_tracker",
			Name:      "notifications_sent_total",
			Help:      "SMS notifications delivered to the provider.",
		}),
		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shuttle_tracker",
			Name:      "notifications_failed_total",
			Help:      "SMS notifications that failed or timed out.",
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shuttle_tracker",
			Name:      "events_published_total",
			Help:      "Events handed to a sink.",
		}, []string{"sink"}),
		EventPublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shuttle_tracker",
			Name:      "event_publish_errors_total",
			Help:      "Event publish failures per sink.",
		}, []string{"sink"}),
		SocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shuttle_tracker",
			Name:      "websocket_clients",
			Help:      "Currently connected live-feed clients.",
		}),
	}

	reg.MustRegister(
		c.HTTPRequests, c.HTTPDuration,
		c.LocationUpdates, c.WaitRequests,
		c.NotificationsSent, c.NotificationsFailed,
		c.EventsPublished, c.EventPublishErrors,
		c.SocketClients,
	)
	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Middleware records request counts and latency, labelled by the matched
// route template rather than the raw path.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		path := ctx.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(ctx.Writer.Status())
		c.HTTPRequests.WithLabelValues(ctx.Request.Method, path, status).Inc()
		c.HTTPDuration.WithLabelValues(ctx.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

// PublishResult counts one publish attempt against sink.
func (c *Collector) PublishResult(sink string, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.EventPublishErrors.WithLabelValues(sink).Inc()
		return
	}
	c.EventsPublished.WithLabelValues(sink).Inc()
}
