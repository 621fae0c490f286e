// Package telemetry exposes Prometheus metrics for HTTP traffic and the
// clinic's business events.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpReqCnt *prometheus.CounterVec
	httpDur    *prometheus.HistogramVec
	httpInfl   prometheus.Gauge

	loginCnt    *prometheus.CounterVec
	refreshCnt  *prometheus.CounterVec
	invoiceCnt  *prometheus.CounterVec
	stockOutCnt *prometheus.CounterVec
	publishErr  *prometheus.CounterVec
}

// New builds a private registry with process and Go runtime collectors.
func New(namespace string) *Metrics {
	r := prometheus.NewRegistry()
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: r,
		httpReqCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help: "HTTP request latency.", Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		httpInfl: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "http_requests_inflight",
			Help: "Requests currently being served.",
		}),
		loginCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "auth_logins_total",
			Help: "Login attempts by account type and outcome.",
		}, []string{"type", "outcome"}),
		refreshCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "auth_refreshes_total",
			Help: "Refresh token rotations by outcome.",
		}, []string{"outcome"}),
		invoiceCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "billing_invoices_total",
			Help: "Invoice lifecycle events by status.",
		}, []string{"status"}),
		stockOutCnt: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "inventory_units_consumed_total",
			Help: "Product units decremented from stock by source.",
		}, []string{"source"}),
		publishErr: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_publish_failures_total",
			Help: "Domain events that could not be published.",
		}, []string{"routing_key"}),
	}
	r.MustRegister(m.httpReqCnt, m.httpDur, m.httpInfl,
		m.loginCnt, m.refreshCnt, m.invoiceCnt, m.stockOutCnt, m.publishErr)
	return m
}

// Middleware records request count, latency and in-flight requests keyed by
// the matched route template, never the raw path.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.httpInfl.Inc()
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.httpReqCnt.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
			m.httpDur.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			m.httpInfl.Dec()
			return nil
		}
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Login(accountType, outcome string) {
	m.loginCnt.WithLabelValues(accountType, outcome).Inc()
}

func (m *Metrics) Refresh(outcome string) {
	m.refreshCnt.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Invoice(status string) {
	m.invoiceCnt.WithLabelValues(status).Inc()
}

func (m *Metrics) StockConsumed(source string, units int) {
	m.stockOutCnt.WithLabelValues(source).Add(float64(units))
}

func (m *Metrics) PublishFailed(routingKey string) {
	m.publishErr.WithLabelValues(routingKey).Inc()
}
