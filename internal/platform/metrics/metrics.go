// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ehr/caretrail/internal/platform/apperr"
)

// Metrics groups the collectors. Build one per registry with New.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// StoreOperationsTotal counts record-store operations by entity, op and result kind.
	StoreOperationsTotal   *prometheus.CounterVec
	StoreOperationDuration *prometheus.HistogramVec

	LoginAttemptsTotal *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "caretrail_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "caretrail_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		StoreOperationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "caretrail_store_operations_total",
				Help: "Total number of record store operations",
			},
			[]string{"entity", "operation", "result"}, // result: "ok" or an error kind
		),
		StoreOperationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "caretrail_store_operation_duration_seconds",
				Help:    "Duration of record store operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"entity", "operation"},
		),
		LoginAttemptsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "caretrail_login_attempts_total",
				Help: "Total number of login attempts",
			},
			[]string{"outcome"}, // "success", "failure", "throttled"
		),
	}
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordStoreOperation records one record-store operation.
func (m *Metrics) RecordStoreOperation(entity, operation, result string, d time.Duration) {
	m.StoreOperationsTotal.WithLabelValues(entity, operation, result).Inc()
	m.StoreOperationDuration.WithLabelValues(entity, operation).Observe(d.Seconds())
}

// ObserveStore records a store operation, labelling the result "ok" or with
// the error kind.
func (m *Metrics) ObserveStore(entity, operation string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = string(apperr.KindOf(err))
	}
	m.RecordStoreOperation(entity, operation, result, d)
}

// RecordLogin records the outcome of a login attempt.
func (m *Metrics) RecordLogin(outcome string) {
	m.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
