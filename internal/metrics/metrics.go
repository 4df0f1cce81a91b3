package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pixwallet"

// Metrics holds service collectors registered in its own registry.
// All methods are safe to call on nil receiver, so metrics are optional for every component.
type Metrics struct {
	registry *prometheus.Registry

	depositsTotal    *prometheus.CounterVec
	withdrawalsTotal *prometheus.CounterVec
	callbacksTotal   *prometheus.CounterVec
	gatewayDuration  *prometheus.HistogramVec
	outboxPublished  *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		depositsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "deposits_total",
				Help:      "Total deposit initiations partitioned by result.",
			},
			[]string{"result"},
		),
		withdrawalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "withdrawals_total",
				Help:      "Total withdrawal initiations partitioned by result.",
			},
			[]string{"result"},
		),
		callbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "callbacks_total",
				Help:      "Total gateway callbacks partitioned by reconciliation outcome.",
			},
			[]string{"outcome"},
		),
		gatewayDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Latency of payment gateway calls by operation and result.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
			},
			[]string{"operation", "result"},
		),
		outboxPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "outbox",
				Name:      "events_total",
				Help:      "Ledger events handled by the outbox relay partitioned by result.",
			},
			[]string{"result"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests by method, route and status code.",
			},
			[]string{"method", "route", "code"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency by method and route.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

func (m *Metrics) ObserveDeposit(err error) {
	if m == nil {
		return
	}
	m.depositsTotal.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) ObserveWithdrawal(err error) {
	if m == nil {
		return
	}
	m.withdrawalsTotal.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) ObserveCallback(outcome string) {
	if m == nil {
		return
	}
	m.callbacksTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveGatewayCall(operation string, err error, took time.Duration) {
	if m == nil {
		return
	}
	m.gatewayDuration.WithLabelValues(operation, result(err)).Observe(took.Seconds())
}

func (m *Metrics) ObserveOutbox(published int, err error) {
	if m == nil {
		return
	}
	if published > 0 {
		m.outboxPublished.WithLabelValues("published").Add(float64(published))
	}
	if err != nil {
		m.outboxPublished.WithLabelValues("error").Inc()
	}
}

func (m *Metrics) ObserveHTTP(method string, route string, code int, took time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

// Handler exposes the registry in Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
