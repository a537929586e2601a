// Package metrics exposes Prometheus metrics for HTTP traffic and imports.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/claimdesk/internal/core"
)

// Metrics holds every collector the application records into.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	importsTotal       *prometheus.CounterVec
	importDuration     prometheus.Histogram
	importRecordsTotal *prometheus.CounterVec
	importsRejected    prometheus.Counter
	lastImportSuccess  prometheus.Gauge
}

// New creates the collectors and registers them, along with the Go runtime
// and process collectors, on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "claimdesk_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "claimdesk_http_request_duration_seconds",
				Help:    "Time taken for HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		importsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "claimdesk_imports_total",
				Help: "Finished imports by mode and outcome",
			},
			[]string{"mode", "status"}, // status: committed, aborted
		),
		importDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "claimdesk_import_duration_seconds",
				Help:    "Time taken by imports, committed or not",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
			},
		),
		importRecordsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "claimdesk_import_records_total",
				Help: "Records applied or skipped by committed imports",
			},
			[]string{"outcome"}, // created, updated, linked, skipped, missing_parent
		),
		importsRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "claimdesk_imports_rejected_total",
				Help: "Imports rejected because another import was running",
			},
		),
		lastImportSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "claimdesk_last_import_success_timestamp_seconds",
				Help: "Unix time of the last committed import",
			},
		),
	}

	cs := []prometheus.Collector{
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.importsTotal,
		m.importDuration,
		m.importRecordsTotal,
		m.importsRejected,
		m.lastImportSuccess,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range cs {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one served request. route is the chi route
// pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordImportRejected counts an import turned away by the import limiter.
func (m *Metrics) RecordImportRejected() {
	m.importsRejected.Inc()
}

// ImportFinished implements core.ImportObserver.
func (m *Metrics) ImportFinished(report *core.ImportReport, err error) {
	if report == nil {
		if errors.Is(err, core.ErrImportBusy) {
			m.RecordImportRejected()
		}
		return
	}

	status := "committed"
	if !report.Committed {
		status = "aborted"
	}
	m.importsTotal.WithLabelValues(string(report.Mode), status).Inc()
	m.importDuration.Observe(report.Duration.Seconds())

	if !report.Committed {
		return
	}
	m.importRecordsTotal.WithLabelValues("created").Add(float64(report.Created))
	m.importRecordsTotal.WithLabelValues("updated").Add(float64(report.Updated))
	m.importRecordsTotal.WithLabelValues("linked").Add(float64(report.Linked))
	m.importRecordsTotal.WithLabelValues("skipped").Add(float64(report.SkippedClaims + report.SkippedDetails))
	m.importRecordsTotal.WithLabelValues("missing_parent").Add(float64(report.MissingParents))
	m.lastImportSuccess.Set(float64(report.Started.Add(report.Duration).Unix()))
}

var _ core.ImportObserver = (*Metrics)(nil)
