// Package observability exposes Prometheus metrics and Sentry error reporting.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smartgarden/gardend/internal/errors"
)

const namespace = "gardend"

// Metrics holds every collector. A nil *Metrics is valid and records nothing,
// which keeps tests and optional wiring free of nil checks.
type Metrics struct {
	registry *prometheus.Registry

	readingsIngested   *prometheus.CounterVec
	ingestBatches      *prometheus.CounterVec
	ingestDuration     prometheus.Histogram
	alertsFired        *prometheus.CounterVec
	alertsSuppressed   *prometheus.CounterVec
	notifications      *prometheus.CounterVec
	notifyDuration     *prometheus.HistogramVec
	wateringEvents     *prometheus.CounterVec
	mqttMessages       *prometheus.CounterVec
	httpRequestsTotal  *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	historyRowsDeleted prometheus.Counter
}

// NewMetrics creates collectors on a private registry.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		readingsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_ingested_total",
			Help:      "Readings stored, by metric.",
		}, []string{"metric"}),
		ingestBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_batches_total",
			Help:      "Telemetry batches processed, by transport and result.",
		}, []string{"transport", "result"}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Time to process one telemetry batch.",
			Buckets:   prometheus.DefBuckets,
		}),
		alertsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_fired_total",
			Help:      "Alert rules fired, by metric.",
		}, []string{"metric"}),
		alertsSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_suppressed_total",
			Help:      "Breaches suppressed by cooldown, by metric.",
		}, []string{"metric"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries, by channel type and result.",
		}, []string{"channel", "result"}),
		notifyDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notification_duration_seconds",
			Help:      "Notification delivery latency by channel type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"channel"}),
		wateringEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watering_events_total",
			Help:      "Watering events recorded, by source.",
		}, []string{"source"}),
		mqttMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mqtt_messages_total",
			Help:      "MQTT telemetry messages received, by result.",
		}, []string{"result"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request durations by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		historyRowsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_history_deleted_total",
			Help:      "Alert history rows removed by retention cleanup.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.readingsIngested, m.ingestBatches, m.ingestDuration,
		m.alertsFired, m.alertsSuppressed,
		m.notifications, m.notifyDuration,
		m.wateringEvents, m.mqttMessages,
		m.httpRequestsTotal, m.httpDuration,
		m.historyRowsDeleted,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Registry returns the registry backing /metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordReading(metric string) {
	if m == nil {
		return
	}
	m.readingsIngested.WithLabelValues(metric).Inc()
}

func (m *Metrics) RecordIngest(transport string, success bool, took time.Duration) {
	if m == nil {
		return
	}
	m.ingestBatches.WithLabelValues(transport, resultLabel(success)).Inc()
	m.ingestDuration.Observe(took.Seconds())
}

func (m *Metrics) RecordAlertFired(metric string) {
	if m == nil {
		return
	}
	m.alertsFired.WithLabelValues(metric).Inc()
}

func (m *Metrics) RecordAlertSuppressed(metric string) {
	if m == nil {
		return
	}
	m.alertsSuppressed.WithLabelValues(metric).Inc()
}

func (m *Metrics) RecordNotification(channel string, success bool, took time.Duration) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(channel, resultLabel(success)).Inc()
	m.notifyDuration.WithLabelValues(channel).Observe(took.Seconds())
}

func (m *Metrics) RecordWatering(source string) {
	if m == nil {
		return
	}
	m.wateringEvents.WithLabelValues(source).Inc()
}

func (m *Metrics) RecordMQTTMessage(result string) {
	if m == nil {
		return
	}
	m.mqttMessages.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordHistoryCleanup(deleted int64) {
	if m == nil || deleted <= 0 {
		return
	}
	m.historyRowsDeleted.Add(float64(deleted))
}

// EchoMiddleware records request counts and latency per route template.
func (m *Metrics) EchoMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)
			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.httpRequestsTotal.WithLabelValues(route, c.Request().Method, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
