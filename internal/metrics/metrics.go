package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	httpRequests         *prometheus.CounterVec
	httpDuration         *prometheus.HistogramVec
	authFailures         *prometheus.CounterVec
	gateDecisions        *prometheus.CounterVec
	emergencyOutcomes    *prometheus.CounterVec
	invoiceFailures      prometheus.Counter
	policyCacheLookups   *prometheus.CounterVec
	tenantOverridesTotal prometheus.Counter
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_gate_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "clinic_gate_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		authFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_gate_auth_failures_total",
				Help: "Rejected requests by error code",
			},
			[]string{"code"},
		),
		gateDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_gate_payment_gate_decisions_total",
				Help: "Payment gate evaluations by resulting state",
			},
			[]string{"state", "may_proceed"},
		),
		emergencyOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_gate_emergency_authorizations_total",
				Help: "Emergency authorization attempts by outcome",
			},
			[]string{"outcome"},
		),
		invoiceFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "clinic_gate_invoice_creation_failures_total",
				Help: "Consultation invoices that could not be created",
			},
		),
		policyCacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "clinic_gate_policy_cache_lookups_total",
				Help: "Billing policy cache lookups by result",
			},
			[]string{"result"},
		),
		tenantOverridesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "clinic_gate_tenant_overrides_total",
				Help: "Requests where a super-admin acted as another clinic",
			},
		),
	}

	reg.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.authFailures,
		m.gateDecisions,
		m.emergencyOutcomes,
		m.invoiceFailures,
		m.policyCacheLookups,
		m.tenantOverridesTotal,
	)
	return m
}

// RecordHTTPRequest records HTTP request metrics
func (m *Metrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *Metrics) RecordAuthFailure(code string) {
	if m == nil {
		return
	}
	m.authFailures.WithLabelValues(code).Inc()
}

func (m *Metrics) RecordGateDecision(state string, mayProceed bool) {
	if m == nil {
		return
	}
	m.gateDecisions.WithLabelValues(state, strconv.FormatBool(mayProceed)).Inc()
}

// RecordEmergency records an authorization attempt. outcome is "granted",
// "noop" or the rejection code.
func (m *Metrics) RecordEmergency(outcome string) {
	if m == nil {
		return
	}
	m.emergencyOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordInvoiceFailure() {
	if m == nil {
		return
	}
	m.invoiceFailures.Inc()
}

func (m *Metrics) RecordPolicyCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.policyCacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordTenantOverride() {
	if m == nil {
		return
	}
	m.tenantOverridesTotal.Inc()
}
