package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clinified"

// Projection outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
)

// Metrics owns a private registry so several instances can coexist in
// tests. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	projections      *prometheus.CounterVec
	exportRecords    *prometheus.CounterVec
	exportBatches    *prometheus.CounterVec
	exportPublishDur prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		projections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fhir_projections_total",
			Help:      "Record to FHIR projections by resource type and outcome.",
		}, []string{"resource", "outcome"}),
		exportRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_records_total",
			Help:      "Records handled by the exporter by resource type and outcome.",
		}, []string{"resource", "outcome"}),
		exportBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "export_batches_total",
			Help:      "Exporter batches by outcome.",
		}, []string{"outcome"}),
		exportPublishDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "export_publish_duration_seconds",
			Help:      "Time spent publishing one batch, retries included.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30},
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.projections,
		m.exportRecords,
		m.exportBatches,
		m.exportPublishDur,
	)
	return m
}

// RegisterPool exposes pgx pool statistics as gauges.
func (m *Metrics) RegisterPool(pool *pgxpool.Pool) {
	if m == nil || pool == nil {
		return
	}
	gauge := func(name, help string, fn func(*pgxpool.Stat) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db_pool",
			Name:      name,
			Help:      help,
		}, func() float64 { return fn(pool.Stat()) })
	}
	m.registry.MustRegister(
		gauge("total_conns", "Connections in the pool.", func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
		gauge("idle_conns", "Idle connections.", func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
		gauge("acquired_conns", "Connections in use.", func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
	)
}

// ObserveProjection counts one ToFHIR call.
func (m *Metrics) ObserveProjection(resource string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeInvalid
	}
	m.projections.WithLabelValues(resource, outcome).Inc()
}

func (m *Metrics) ExportRecords(resource, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.exportRecords.WithLabelValues(resource, outcome).Add(float64(n))
}

func (m *Metrics) ExportBatch(outcome string, publish time.Duration) {
	if m == nil {
		return
	}
	m.exportBatches.WithLabelValues(outcome).Inc()
	m.exportPublishDur.Observe(publish.Seconds())
}

// Middleware records request count and latency keyed by route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
