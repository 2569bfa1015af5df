package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/clinic-gate/internal/apperror"
	"github.com/otcheredev/clinic-gate/internal/metrics"
	"github.com/otcheredev/clinic-gate/internal/models"
)

// EmergencyLineItem marks an invoice as billed for an urgent consultation
const EmergencyLineItem = "URGENCE"

// BillingWarning reports a billing side effect that failed without failing
// the consultation it belongs to.
type BillingWarning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

const (
	WarningInvoiceNotCreated = "INVOICE_NOT_CREATED"
	WarningInvoiceNotLinked  = "INVOICE_NOT_LINKED"
)

// PaymentGate decides whether clinical work on a consultation may proceed
type PaymentGate struct {
	invoices InvoiceService
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewPaymentGate creates a new payment gate
func NewPaymentGate(invoices InvoiceService, m *metrics.Metrics) *PaymentGate {
	return &PaymentGate{invoices: invoices, metrics: m, now: time.Now}
}

// InitialStatus is the gate state of a consultation created under policy
func (g *PaymentGate) InitialStatus(policy *models.BillingPolicy) models.PaymentStatus {
	if !policy.PaymentRequired {
		return models.PaymentNotRequired
	}
	return models.PaymentPending
}

// LineItems lists the default billable items for a consultation
func (g *PaymentGate) LineItems(c *models.Consultation, policy *models.BillingPolicy) []string {
	items := make([]string, 0, len(policy.RegularLineItems)+1)
	items = append(items, policy.RegularLineItems...)
	if (c.Urgent || c.Type == models.ConsultationEmergency) && policy.EmergencyLineItems {
		items = append(items, EmergencyLineItem)
	}
	return items
}

// RequestInvoice asks the invoice service to bill a consultation created in
// PENDING_PAYMENT. A failure is returned as a warning; the consultation
// stays without a linked invoice and therefore gated.
func (g *PaymentGate) RequestInvoice(ctx context.Context, c *models.Consultation, policy *models.BillingPolicy) (*models.InvoiceSummary, *BillingWarning) {
	invoice, err := g.invoices.CreateConsultationInvoice(ctx, models.ConsultationInvoiceRequest{
		ConsultationID:   c.ID,
		PatientID:        c.PatientID,
		TenantID:         c.TenantID,
		ConsultationType: c.Type,
		Urgent:           c.Urgent,
		LineItems:        g.LineItems(c, policy),
	})
	if err == nil && (invoice == nil || invoice.ID == "") {
		err = errors.New("invoice service returned no invoice id")
	}
	if err != nil {
		g.metrics.RecordInvoiceFailure()
		log.Warn().
			Err(err).
			Str("tenant_id", c.TenantID.String()).
			Str("consultation_id", c.ID.String()).
			Msg("Consultation invoice creation failed; consultation stays pending without invoice")
		return nil, &BillingWarning{
			Code:    WarningInvoiceNotCreated,
			Message: "consultation created but its invoice could not be generated",
			Err:     err,
		}
	}
	return invoice, nil
}

// Evaluate answers "may clinical work proceed" from the stored state, the
// policy and the invoice status reported by the invoice service. Nothing is
// persisted.
func (g *PaymentGate) Evaluate(ctx context.Context, c *models.Consultation, policy *models.BillingPolicy) (*models.PaymentDecision, error) {
	decision, err := g.evaluate(ctx, c, policy)
	if err != nil {
		return nil, err
	}
	g.metrics.RecordGateDecision(string(decision.Status), decision.MayProceed)
	return decision, nil
}

func (g *PaymentGate) evaluate(ctx context.Context, c *models.Consultation, policy *models.BillingPolicy) (*models.PaymentDecision, error) {
	if c.PaymentStatus == models.PaymentEmergencyAuthorized {
		return &models.PaymentDecision{
			Status:     models.PaymentEmergencyAuthorized,
			MayProceed: true,
			Message:    "emergency authorization granted",
			InvoiceID:  c.InvoiceID,
		}, nil
	}

	// NOT_REQUIRED is fixed at creation. A later policy change does not
	// bill consultations that were never invoiced.
	if c.PaymentStatus == models.PaymentNotRequired || !policy.PaymentRequired {
		return &models.PaymentDecision{
			Status:     models.PaymentNotRequired,
			MayProceed: true,
			Message:    "payment is not required before consultation",
			InvoiceID:  c.InvoiceID,
		}, nil
	}

	if !c.HasInvoice() {
		return &models.PaymentDecision{
			Status:     models.PaymentPending,
			MayProceed: false,
			Message:    "no invoice linked to this consultation",
		}, nil
	}

	invoice, err := g.invoices.GetInvoice(ctx, c.TenantID, *c.InvoiceID)
	if err != nil {
		if apperror.KindOf(err) == apperror.KindNotFound {
			return &models.PaymentDecision{
				Status:     models.PaymentPending,
				MayProceed: false,
				Message:    "linked invoice not found",
				InvoiceID:  c.InvoiceID,
			}, nil
		}
		return nil, fmt.Errorf("failed to get invoice status: %w", err)
	}

	decision := &models.PaymentDecision{
		Status:          models.PaymentPending,
		InvoiceID:       c.InvoiceID,
		AmountRemaining: invoice.AmountOutstanding,
	}

	switch {
	case invoice.Status.Settled():
		decision.Status = models.PaymentPaid
		decision.MayProceed = true
		decision.Message = "invoice paid"
	case invoice.Status == models.InvoicePartial && policy.AllowInstallments:
		decision.MayProceed = true
		decision.Message = "partial payment accepted"
	case policy.AutoBlockOnUnpaid:
		decision.MayProceed = false
		decision.Message = "payment required before consultation"
	default:
		decision.MayProceed = true
		decision.Message = "invoice unpaid; consultation allowed by clinic policy"
	}
	return decision, nil
}

// AuthorizeEmergency applies an emergency override to c in memory. It checks
// the caller's role, then the clinic, then the clinic policy, and reports
// whether c changed. PAID and EMERGENCY_AUTHORIZED consultations are left as is.
func (g *PaymentGate) AuthorizeEmergency(scope models.Scope, c *models.Consultation, policy *models.BillingPolicy, reason string) (bool, error) {
	if err := g.CheckEmergency(scope, c, policy); err != nil {
		return false, err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return false, apperror.InvalidInput("an emergency reason is required")
	}

	switch c.PaymentStatus {
	case models.PaymentEmergencyAuthorized, models.PaymentPaid:
		return false, nil
	}

	now := g.now().UTC()
	actor := scope.Principal.ID
	c.PaymentStatus = models.PaymentEmergencyAuthorized
	c.EmergencyReason = reason
	c.EmergencyAuthorizedBy = &actor
	c.EmergencyAuthorizedAt = &now
	return true, nil
}

// CheckEmergency runs the three emergency preconditions in order
func (g *PaymentGate) CheckEmergency(scope models.Scope, c *models.Consultation, policy *models.BillingPolicy) error {
	if err := CheckEmergencyRole(scope); err != nil {
		return err
	}
	if !scope.CanAccess(c.TenantID) {
		return apperror.TenantMismatch()
	}
	if !policy.EmergencyExceptionClinician {
		return apperror.PolicyDisabled("emergency exception is disabled for this clinic")
	}
	return nil
}

// CheckEmergencyRole is the first emergency precondition. It needs nothing
// but the scope, so callers can reject early.
func CheckEmergencyRole(scope models.Scope) error {
	if !scope.Can(models.CapEmergencyOverride) {
		return apperror.RoleNotAllowed("role cannot authorize an emergency exception")
	}
	return nil
}

// MayProduceResult blocks results while a complementary invoice of the
// consultation is unpaid with an outstanding amount, whatever the
// consultation's own gate state.
func (g *PaymentGate) MayProduceResult(ctx context.Context, tenantID, consultationID uuid.UUID) (*models.ResultGuard, error) {
	invoices, err := g.invoices.ListComplementaryInvoices(ctx, tenantID, consultationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list complementary invoices: %w", err)
	}

	guard := &models.ResultGuard{BlockingInvoices: []models.InvoiceSummary{}}
	for _, inv := range invoices {
		if inv.Kind != "" && inv.Kind != models.InvoiceKindComplementary {
			continue
		}
		if inv.BlocksResults() {
			guard.BlockingInvoices = append(guard.BlockingInvoices, inv)
		}
	}

	guard.Blocked = len(guard.BlockingInvoices) > 0
	if guard.Blocked {
		guard.Message = "complementary invoices must be paid before results are released"
	} else {
		guard.Message = "no unpaid complementary invoice"
	}
	return guard, nil
}
