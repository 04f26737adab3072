// Package metrics exports adapter activity as Prometheus metrics.
package metrics

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "yunhu_adapter"

// InFlightCounter reports the number of events still being handled.
type InFlightCounter interface {
	InFlight() int
}

// Metrics holds the adapter's collectors on a private registry.
type Metrics struct {
	logger   *slog.Logger
	registry *prometheus.Registry

	deliveries    *prometheus.CounterVec // by outcome
	events        *prometheus.CounterVec // by kind and outcome
	eventDuration *prometheus.HistogramVec
}

// New registers the adapter metrics. inflight may be nil.
func New(log *slog.Logger, inflight InFlightCounter) *Metrics {
	if log == nil {
		log = slog.Default()
	}
	m := &Metrics{
		logger:   log.With(slog.String("component", "metrics")),
		registry: prometheus.NewRegistry(),

		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "deliveries_total",
			Help:      "Webhook deliveries by outcome",
		}, []string{"outcome"}), // accepted, unknown_bot, non_object, parse_error

		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "events_total",
			Help:      "Dispatched events by kind and outcome",
		}, []string{"kind", "outcome"}),

		eventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "event_duration_seconds",
			Help:      "Time spent enriching and handling one event",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.deliveries,
		m.events,
		m.eventDuration,
	)
	if inflight != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "inflight_events",
			Help:      "Events accepted but not yet handled",
		}, func() float64 {
			return float64(inflight.InFlight())
		}))
	}
	return m
}

func (m *Metrics) ObserveDelivery(outcome string) {
	m.deliveries.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveEvent(kind, outcome string, elapsed time.Duration) {
	m.events.WithLabelValues(kind, outcome).Inc()
	m.eventDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Register mounts GET /metrics.
func (m *Metrics) Register(e *echo.Echo) {
	handler := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorLog:          slog.NewLogLogger(m.logger.Handler(), slog.LevelError),
	})
	e.GET("/metrics", echo.WrapHandler(handler))
}
