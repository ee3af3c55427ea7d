// Package metrics exposes the desk's Prometheus collectors on a private
// registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bonddesk"

// Metrics holds every collector. A nil *Metrics is valid and records
// nothing, which keeps tests and tools free of registry setup.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	Trades           *prometheus.CounterVec
	SnapshotFailures prometheus.Counter
	Cash             prometheus.Gauge
	HoldingsValue    prometheus.Gauge
	YieldIterations  prometheus.Histogram
	CatalogSize      prometheus.Gauge
	WSClients        prometheus.Gauge
}

// New creates the collectors on a fresh registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: reg}

	m.HTTPRequests = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route pattern and status.",
	}, []string{"method", "route", "status"}))

	m.HTTPDuration = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"}))

	m.Trades = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trades_total",
		Help:      "Trade requests by side and outcome.",
	}, []string{"side", "status"}))

	m.SnapshotFailures = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshot_failures_total",
		Help:      "Ledger snapshots that could not be written.",
	}))

	m.Cash = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ledger_cash",
		Help:      "Ledger cash balance after the last trade.",
	}))

	m.HoldingsValue = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ledger_holdings_value",
		Help:      "Market value of held positions at the last valuation.",
	}))

	m.YieldIterations = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "yield_search_iterations",
		Help:      "Bisection iterations per yield solve.",
		Buckets:   []float64{5, 10, 15, 20, 30, 50, 100},
	}))

	m.CatalogSize = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "catalog_bonds",
		Help:      "Bonds in the loaded market-data catalog.",
	}))

	m.WSClients = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_clients",
		Help:      "Connected WebSocket clients.",
	}))

	return m
}

func register[C prometheus.Collector](reg *prometheus.Registry, c C) C {
	reg.MustRegister(c)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveTrade records a trade outcome and the resulting cash balance.
func (m *Metrics) ObserveTrade(side, status string, cash float64) {
	if m == nil {
		return
	}
	m.Trades.WithLabelValues(side, status).Inc()
	m.Cash.Set(cash)
}

// SetCash records the ledger's cash balance.
func (m *Metrics) SetCash(cash float64) {
	if m == nil {
		return
	}
	m.Cash.Set(cash)
}

// SnapshotFailed counts a failed snapshot write.
func (m *Metrics) SnapshotFailed() {
	if m == nil {
		return
	}
	m.SnapshotFailures.Inc()
}

// SetHoldingsValue records the latest holdings valuation.
func (m *Metrics) SetHoldingsValue(v float64) {
	if m == nil {
		return
	}
	m.HoldingsValue.Set(v)
}

// ObserveYieldSearch records the iteration count of one yield solve.
func (m *Metrics) ObserveYieldSearch(iterations int) {
	if m == nil {
		return
	}
	m.YieldIterations.Observe(float64(iterations))
}

// SetCatalogSize records the number of bonds loaded.
func (m *Metrics) SetCatalogSize(n int) {
	if m == nil {
		return
	}
	m.CatalogSize.Set(float64(n))
}

// ClientConnected adjusts the WebSocket client gauge by delta.
func (m *Metrics) ClientConnected(delta int) {
	if m == nil {
		return
	}
	m.WSClients.Add(float64(delta))
}
