package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otcheredev/clinic-gate/internal/apperror"
	"github.com/otcheredev/clinic-gate/internal/models"
)

func scopeFor(role models.Role, tenant uuid.UUID) models.Scope {
	return models.Scope{
		Principal: models.Principal{
			ID:            uuid.New(),
			Role:          role,
			TenantID:      tenant,
			AccountStatus: models.AccountActive,
			Active:        true,
		},
		TenantID:     tenant,
		IsSuperAdmin: role == models.RoleSuperAdmin,
	}
}

func requiredPolicy(tenant uuid.UUID) *models.BillingPolicy {
	p := models.DefaultBillingPolicy(tenant)
	p.PaymentRequired = true
	return p
}

func strPtr(s string) *string { return &s }

func TestPaymentGate_InitialStatus(t *testing.T) {
	g := NewPaymentGate(newFakeInvoices(), nil)
	tenant := uuid.New()

	assert.Equal(t, models.PaymentNotRequired, g.InitialStatus(models.DefaultBillingPolicy(tenant)))
	assert.Equal(t, models.PaymentPending, g.InitialStatus(requiredPolicy(tenant)))
}

func TestPaymentGate_LineItems(t *testing.T) {
	g := NewPaymentGate(newFakeInvoices(), nil)
	policy := requiredPolicy(uuid.New())
	policy.RegularLineItems = []string{"CONSULT_GEN"}

	assert.Equal(t, []string{"CONSULT_GEN"}, g.LineItems(&models.Consultation{}, policy))
	assert.Equal(t, []string{"CONSULT_GEN", EmergencyLineItem}, g.LineItems(&models.Consultation{Urgent: true}, policy))

	policy.EmergencyLineItems = false
	assert.Equal(t, []string{"CONSULT_GEN"}, g.LineItems(&models.Consultation{Urgent: true}, policy))
}

func TestPaymentGate_RequestInvoice_FailureIsWarning(t *testing.T) {
	invoices := newFakeInvoices()
	invoices.createErr = apperror.Upstream("invoice service unavailable", errors.New("timeout"))
	g := NewPaymentGate(invoices, nil)

	c := &models.Consultation{ID: uuid.New(), TenantID: uuid.New(), PatientID: uuid.New()}
	inv, warning := g.RequestInvoice(context.Background(), c, requiredPolicy(c.TenantID))

	assert.Nil(t, inv)
	require.NotNil(t, warning)
	assert.Equal(t, WarningInvoiceNotCreated, warning.Code)
	assert.Error(t, warning.Err)
}

func TestPaymentGate_Evaluate(t *testing.T) {
	tenant := uuid.New()

	tests := []struct {
		name        string
		consult     models.Consultation
		policy      func() *models.BillingPolicy
		invoice     *models.InvoiceSummary
		wantStatus  models.PaymentStatus
		wantProceed bool
	}{
		{
			name:        "emergency authorized proceeds",
			consult:     models.Consultation{PaymentStatus: models.PaymentEmergencyAuthorized},
			policy:      func() *models.BillingPolicy { return requiredPolicy(tenant) },
			wantStatus:  models.PaymentEmergencyAuthorized,
			wantProceed: true,
		},
		{
			name:        "payment not required",
			consult:     models.Consultation{PaymentStatus: models.PaymentNotRequired},
			policy:      func() *models.BillingPolicy { return models.DefaultBillingPolicy(tenant) },
			wantStatus:  models.PaymentNotRequired,
			wantProceed: true,
		},
		{
			name:        "not required stays clear after policy turns payment on",
			consult:     models.Consultation{PaymentStatus: models.PaymentNotRequired},
			policy:      func() *models.BillingPolicy { return requiredPolicy(tenant) },
			wantStatus:  models.PaymentNotRequired,
			wantProceed: true,
		},
		{
			name:        "no invoice linked blocks",
			consult:     models.Consultation{PaymentStatus: models.PaymentPending},
			policy:      func() *models.BillingPolicy { return requiredPolicy(tenant) },
			wantStatus:  models.PaymentPending,
			wantProceed: false,
		},
		{
			name:        "paid invoice",
			consult:     models.Consultation{PaymentStatus: models.PaymentPending, InvoiceID: strPtr("inv-1")},
			policy:      func() *models.BillingPolicy { return requiredPolicy(tenant) },
			invoice:     &models.InvoiceSummary{ID: "inv-1", Status: models.InvoicePaid},
			wantStatus:  models.PaymentPaid,
			wantProceed: true,
		},
		{
			name:        "exempt invoice",
			consult:     models.Consultation{PaymentStatus: models.PaymentPending, InvoiceID: strPtr("inv-1")},
			policy:      func() *models.BillingPolicy { return requiredPolicy(tenant) },
			invoice:     &models.InvoiceSummary{ID: "inv-1", Status: models.InvoiceExempt},
			wantStatus:  models.PaymentPaid,
			wantProceed: true,
		},
		{
			name:        "partial with installments",
			consult:     models.Consultation{PaymentStatus: models.PaymentPending, InvoiceID: strPtr("inv-1")},
			policy:      func() *models.BillingPolicy { return requiredPolicy(tenant) },
			invoice:     &models.InvoiceSummary{ID: "inv-1", Status: models.InvoicePartial, AmountOutstanding: 2500},
			wantStatus:  models.PaymentPending,
			wantProceed: true,
		},
		{
			name:    "partial without installments blocks",
			consult: models.Consultation{PaymentStatus: models.PaymentPending, InvoiceID: strPtr("inv-1")},
			policy: func() *models.BillingPolicy {
				p := requiredPolicy(tenant)
				p.AllowInstallments = false
				return p
			},
			invoice:     &models.InvoiceSummary{ID: "inv-1", Status: models.InvoicePartial, AmountOutstanding: 2500},
			wantStatus:  models.PaymentPending,
			wantProceed: false,
		},
		{
			name:        "unpaid with auto block",
			consult:     models.Consultation{PaymentStatus: models.PaymentPending, InvoiceID: strPtr("inv-1")},
			policy:      func() *models.BillingPolicy { return requiredPolicy(tenant) },
			invoice:     &models.InvoiceSummary{ID: "inv-1", Status: models.InvoicePending, AmountOutstanding: 10000},
			wantStatus:  models.PaymentPending,
			wantProceed: false,
		},
		{
			name:    "unpaid without auto block warns",
			consult: models.Consultation{PaymentStatus: models.PaymentPending, InvoiceID: strPtr("inv-1")},
			policy: func() *models.BillingPolicy {
				p := requiredPolicy(tenant)
				p.AutoBlockOnUnpaid = false
				return p
			},
			invoice:     &models.InvoiceSummary{ID: "inv-1", Status: models.InvoicePending, AmountOutstanding: 10000},
			wantStatus:  models.PaymentPending,
			wantProceed: true,
		},
		{
			name:        "linked invoice missing upstream",
			consult:     models.Consultation{PaymentStatus: models.PaymentPending, InvoiceID: strPtr("ghost")},
			policy:      func() *models.BillingPolicy { return requiredPolicy(tenant) },
			wantStatus:  models.PaymentPending,
			wantProceed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invoices := newFakeInvoices()
			if tt.invoice != nil {
				invoices.invoices[tt.invoice.ID] = *tt.invoice
			}
			g := NewPaymentGate(invoices, nil)
			c := tt.consult
			c.TenantID = tenant

			decision, err := g.Evaluate(context.Background(), &c, tt.policy())
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, decision.Status)
			assert.Equal(t, tt.wantProceed, decision.MayProceed)
			assert.NotEmpty(t, decision.Message)
			if tt.invoice != nil {
				assert.Equal(t, tt.invoice.AmountOutstanding, decision.AmountRemaining)
			}
		})
	}
}

func TestPaymentGate_Evaluate_UpstreamFailure(t *testing.T) {
	invoices := newFakeInvoices()
	invoices.getErr = apperror.Upstream("invoice service unavailable", errors.New("refused"))
	g := NewPaymentGate(invoices, nil)

	tenant := uuid.New()
	c := &models.Consultation{TenantID: tenant, PaymentStatus: models.PaymentPending, InvoiceID: strPtr("inv-1")}

	_, err := g.Evaluate(context.Background(), c, requiredPolicy(tenant))
	assert.Equal(t, apperror.KindUpstreamFailure, apperror.KindOf(err))
}

func TestPaymentGate_AuthorizeEmergency_Order(t *testing.T) {
	g := NewPaymentGate(newFakeInvoices(), nil)
	t1, t2 := uuid.New(), uuid.New()

	disabled := requiredPolicy(t1)
	disabled.EmergencyExceptionClinician = false

	t.Run("role is checked first", func(t *testing.T) {
		c := &models.Consultation{TenantID: t2, PaymentStatus: models.PaymentPending}
		_, err := g.AuthorizeEmergency(scopeFor(models.RoleReceptionniste, t1), c, disabled, "")
		assert.Equal(t, apperror.CodeRoleNotAllowed, apperror.CodeOf(err))
	})

	t.Run("tenant before policy", func(t *testing.T) {
		c := &models.Consultation{TenantID: t2, PaymentStatus: models.PaymentPending}
		_, err := g.AuthorizeEmergency(scopeFor(models.RoleMedecin, t1), c, disabled, "reason")
		assert.Equal(t, apperror.CodeTenantMismatch, apperror.CodeOf(err))
	})

	t.Run("policy disabled", func(t *testing.T) {
		c := &models.Consultation{TenantID: t1, PaymentStatus: models.PaymentPending}
		_, err := g.AuthorizeEmergency(scopeFor(models.RoleMedecin, t1), c, disabled, "reason")
		assert.Equal(t, apperror.KindPolicyDisabled, apperror.KindOf(err))
		assert.Equal(t, apperror.CodeEmergencyDisabled, apperror.CodeOf(err))
	})

	t.Run("reason required", func(t *testing.T) {
		c := &models.Consultation{TenantID: t1, PaymentStatus: models.PaymentPending}
		_, err := g.AuthorizeEmergency(scopeFor(models.RoleMedecin, t1), c, requiredPolicy(t1), "   ")
		assert.Equal(t, apperror.KindInvalidInput, apperror.KindOf(err))
	})
}

func TestPaymentGate_AuthorizeEmergency_Transitions(t *testing.T) {
	tenant := uuid.New()
	fixed := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	g := NewPaymentGate(newFakeInvoices(), nil)
	g.now = func() time.Time { return fixed }
	scope := scopeFor(models.RoleMedecin, tenant)

	for _, from := range []models.PaymentStatus{models.PaymentPending, models.PaymentNotRequired} {
		c := &models.Consultation{TenantID: tenant, PaymentStatus: from}
		changed, err := g.AuthorizeEmergency(scope, c, requiredPolicy(tenant), "chest pain")
		require.NoError(t, err)
		assert.True(t, changed, "from %s", from)
		assert.Equal(t, models.PaymentEmergencyAuthorized, c.PaymentStatus)
		assert.Equal(t, "chest pain", c.EmergencyReason)
		require.NotNil(t, c.EmergencyAuthorizedBy)
		assert.Equal(t, scope.Principal.ID, *c.EmergencyAuthorizedBy)
		assert.Equal(t, fixed, *c.EmergencyAuthorizedAt)
	}

	for _, from := range []models.PaymentStatus{models.PaymentPaid, models.PaymentEmergencyAuthorized} {
		c := &models.Consultation{TenantID: tenant, PaymentStatus: from}
		changed, err := g.AuthorizeEmergency(scope, c, requiredPolicy(tenant), "again")
		require.NoError(t, err)
		assert.False(t, changed, "from %s", from)
		assert.Equal(t, from, c.PaymentStatus)
	}
}

func TestPaymentGate_AuthorizeEmergency_Roles(t *testing.T) {
	tenant := uuid.New()
	g := NewPaymentGate(newFakeInvoices(), nil)

	for _, role := range []models.Role{models.RoleMedecin, models.RoleClinicAdmin, models.RoleSuperAdmin} {
		c := &models.Consultation{TenantID: tenant, PaymentStatus: models.PaymentPending}
		_, err := g.AuthorizeEmergency(scopeFor(role, tenant), c, requiredPolicy(tenant), "trauma")
		assert.NoError(t, err, "role %s", role)
	}
}

func TestPaymentGate_MayProduceResult(t *testing.T) {
	tenant, consultation := uuid.New(), uuid.New()

	t.Run("unpaid complementary invoice blocks", func(t *testing.T) {
		invoices := newFakeInvoices()
		invoices.complementary = []models.InvoiceSummary{
			{ID: "c1", Kind: models.InvoiceKindComplementary, Status: models.InvoicePaid},
			{ID: "c2", Kind: models.InvoiceKindComplementary, Status: models.InvoicePartial, AmountOutstanding: 3000},
			{ID: "c3", Kind: models.InvoiceKindComplementary, Status: models.InvoicePending, AmountOutstanding: 0},
		}
		g := NewPaymentGate(invoices, nil)

		guard, err := g.MayProduceResult(context.Background(), tenant, consultation)
		require.NoError(t, err)
		assert.True(t, guard.Blocked)
		require.Len(t, guard.BlockingInvoices, 1)
		assert.Equal(t, "c2", guard.BlockingInvoices[0].ID)
	})

	t.Run("all settled", func(t *testing.T) {
		invoices := newFakeInvoices()
		invoices.complementary = []models.InvoiceSummary{
			{ID: "c1", Kind: models.InvoiceKindComplementary, Status: models.InvoiceExempt},
		}
		g := NewPaymentGate(invoices, nil)

		guard, err := g.MayProduceResult(context.Background(), tenant, consultation)
		require.NoError(t, err)
		assert.False(t, guard.Blocked)
		assert.Empty(t, guard.BlockingInvoices)
	})

	t.Run("upstream failure surfaces", func(t *testing.T) {
		invoices := newFakeInvoices()
		invoices.listErr = apperror.Upstream("invoice service unavailable", errors.New("refused"))
		g := NewPaymentGate(invoices, nil)

		_, err := g.MayProduceResult(context.Background(), tenant, consultation)
		assert.Equal(t, apperror.KindUpstreamFailure, apperror.KindOf(err))
	})
}
