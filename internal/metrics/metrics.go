// Package metrics exposes Prometheus collectors for the presale service and
// its HTTP surface.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the presale service reports to.
type Recorder interface {
	RecordOperation(op string, err error, duration time.Duration)
	RecordPurchase(saleID string, units, cost uint64)
	RecordClaim(saleID string, units uint64)
	RecordSaleStatus(from, to string)
}

// Metrics holds every collector on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	unitsSold         *prometheus.CounterVec
	unitsClaimed      *prometheus.CounterVec
	raised            *prometheus.CounterVec
	sales             *prometheus.GaugeVec
}

var _ Recorder = (*Metrics)(nil)

// New creates the collectors under namespace and registers them, together
// with the Go runtime and process collectors, on a fresh registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "presale"
	}

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"service", "method", "path", "status"})
	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
	}, []string{"service", "method", "path"})

	m.operations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Total number of presale operations by result.",
	}, []string{"op", "result"})
	m.operationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Duration of presale operations including the store transaction.",
		Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
	}, []string{"op"})
	m.unitsSold = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "units_sold_total",
		Help:      "Units sold per sale.",
	}, []string{"sale"})
	m.unitsClaimed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "units_claimed_total",
		Help:      "Units released to participants per sale.",
	}, []string{"sale"})
	m.raised = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "raised_total",
		Help:      "Proceeds raised per sale in the smallest native unit.",
	}, []string{"sale"})
	m.sales = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sales",
		Help:      "Number of sales by status.",
	}, []string{"status"})

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpInFlight, m.httpRequests, m.httpDuration,
		m.operations, m.operationDuration,
		m.unitsSold, m.unitsClaimed, m.raised, m.sales,
	)
	return m
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) IncrementInFlight() { m.httpInFlight.Inc() }
func (m *Metrics) DecrementInFlight() { m.httpInFlight.Dec() }

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(service, method, path, status string, duration time.Duration) {
	m.httpRequests.WithLabelValues(service, method, path, status).Inc()
	m.httpDuration.WithLabelValues(service, method, path).Observe(duration.Seconds())
}

// RecordOperation records the outcome of one service operation.
func (m *Metrics) RecordOperation(op string, err error, duration time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(op, result).Inc()
	m.operationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *Metrics) RecordPurchase(saleID string, units, cost uint64) {
	m.unitsSold.WithLabelValues(saleID).Add(float64(units))
	m.raised.WithLabelValues(saleID).Add(float64(cost))
}

func (m *Metrics) RecordClaim(saleID string, units uint64) {
	m.unitsClaimed.WithLabelValues(saleID).Add(float64(units))
}

// RecordSaleStatus moves one sale between status gauges. An empty from
// records a newly created sale.
func (m *Metrics) RecordSaleStatus(from, to string) {
	if from != "" {
		m.sales.WithLabelValues(from).Dec()
	}
	m.sales.WithLabelValues(to).Inc()
}

// NoOp discards everything.
type NoOp struct{}

var _ Recorder = NoOp{}

func (NoOp) RecordOperation(string, error, time.Duration) {}
func (NoOp) RecordPurchase(string, uint64, uint64)        {}
func (NoOp) RecordClaim(string, uint64)                   {}
func (NoOp) RecordSaleStatus(string, string)              {}
