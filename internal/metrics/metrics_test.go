package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordHTTPRequest(http.MethodGet, "/api/v1/consultations/{id}", 200, 15*time.Millisecond)
	m.RecordGateDecision("en_attente", false)
	m.RecordGateDecision("en_attente", false)
	m.RecordEmergency("granted")
	m.RecordInvoiceFailure()
	m.RecordPolicyCache(true)
	m.RecordAuthFailure("AUTH_TOKEN_MISSING")
	m.RecordTenantOverride()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/v1/consultations/{id}", "200")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.gateDecisions.WithLabelValues("en_attente", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.emergencyOutcomes.WithLabelValues("granted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invoiceFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.policyCacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authFailures.WithLabelValues("AUTH_TOKEN_MISSING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tenantOverridesTotal))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
		m.RecordGateDecision("paye", true)
		m.RecordEmergency("noop")
		m.RecordInvoiceFailure()
		m.RecordPolicyCache(false)
		m.RecordAuthFailure("X")
		m.RecordTenantOverride()
	})
}
