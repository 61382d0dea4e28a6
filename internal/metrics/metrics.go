package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics - счётчики Prometheus. Методы безопасны для nil-получателя,
// поэтому сервисы в тестах создаются без метрик.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	PaymentsRequested    *prometheus.CounterVec
	PaymentTransitions   *prometheus.CounterVec
	GatewayCallDuration  *prometheus.HistogramVec
	QuotaRejections      *prometheus.CounterVec
	EntitlementFailures  prometheus.Counter
	ReconciliationRepair prometheus.Counter
	WebhookEvents        *prometheus.CounterVec
}

// New создаёт и регистрирует метрики; nil registry - новый реестр
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docvault_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docvault_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		PaymentsRequested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docvault_payments_requested_total",
				Help: "Payment requests by outcome",
			},
			[]string{"outcome"},
		),
		PaymentTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docvault_payment_transitions_total",
				Help: "Payment status transitions recorded after a gateway check",
			},
			[]string{"status"},
		),
		GatewayCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docvault_gateway_call_duration_seconds",
				Help:    "Mobile-money gateway call latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "outcome"},
		),
		QuotaRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docvault_quota_rejections_total",
				Help: "Uploads rejected by quota",
			},
			[]string{"quota"},
		),
		EntitlementFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docvault_entitlement_failures_total",
			Help: "Successful payments whose entitlement could not be applied",
		}),
		ReconciliationRepair: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docvault_reconciliation_repairs_total",
			Help: "Successful payments entitled by reconciliation",
		}),
		WebhookEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docvault_webhook_events_total",
				Help: "Inbound webhook events by type and result",
			},
			[]string{"type", "result"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PaymentsRequested,
		m.PaymentTransitions,
		m.GatewayCallDuration,
		m.QuotaRejections,
		m.EntitlementFailures,
		m.ReconciliationRepair,
		m.WebhookEvents,
	)
	return m
}

// Handler - обработчик /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (m *Metrics) PaymentRequested(outcome string) {
	if m == nil {
		return
	}
	m.PaymentsRequested.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PaymentTransition(status string) {
	if m == nil {
		return
	}
	m.PaymentTransitions.WithLabelValues(status).Inc()
}

// ObserveGateway подходит как momo.Observer
func (m *Metrics) ObserveGateway(operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.GatewayCallDuration.WithLabelValues(operation, outcome).Observe(d.Seconds())
}

func (m *Metrics) QuotaRejected(kind string) {
	if m == nil {
		return
	}
	m.QuotaRejections.WithLabelValues(kind).Inc()
}

func (m *Metrics) EntitlementFailed() {
	if m == nil {
		return
	}
	m.EntitlementFailures.Inc()
}

func (m *Metrics) ReconciliationRepaired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ReconciliationRepair.Add(float64(n))
}

func (m *Metrics) WebhookEvent(eventType, result string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(eventType, result).Inc()
}
