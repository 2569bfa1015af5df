package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/otcheredev/clinic-gate/internal/apperror"
	"github.com/otcheredev/clinic-gate/internal/metrics"
	"github.com/otcheredev/clinic-gate/internal/models"
	"github.com/otcheredev/clinic-gate/internal/repository"
)

const auditHistoryLimit = 100

// CreationOutcome is the result of creating a consultation. BillingWarning is
// set when the consultation was stored but its invoice side effect failed.
type CreationOutcome struct {
	Consultation   *models.Consultation
	BillingWarning *BillingWarning
}

// ConsultationService orchestrates the consultation lifecycle around the
// payment gate
type ConsultationService struct {
	consultations ConsultationStore
	policies      *BillingPolicyService
	gate          *PaymentGate
	audit         *AuditTrail
	metrics       *metrics.Metrics
	now           func() time.Time
}

// NewConsultationService creates a new consultation service
func NewConsultationService(
	consultations ConsultationStore,
	policies *BillingPolicyService,
	gate *PaymentGate,
	audit *AuditTrail,
	m *metrics.Metrics,
) *ConsultationService {
	return &ConsultationService{
		consultations: consultations,
		policies:      policies,
		gate:          gate,
		audit:         audit,
		metrics:       m,
		now:           time.Now,
	}
}

// List returns one page of the request clinic's consultations
func (s *ConsultationService) List(ctx context.Context, scope models.Scope, filter models.ConsultationFilter) (*models.ConsultationPage, error) {
	if !scope.Can(models.CapConsultationsRead) {
		return nil, apperror.RoleNotAllowed("role cannot read consultations")
	}
	tenantID, err := scope.RequireTenant()
	if err != nil {
		return nil, err
	}

	filter.Normalize()
	items, total, err := s.consultations.List(ctx, tenantID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list consultations: %w", err)
	}
	if items == nil {
		items = []models.Consultation{}
	}
	return &models.ConsultationPage{Items: items, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// Create stores a new consultation in the request clinic and runs the
// creation rule of the payment gate
func (s *ConsultationService) Create(ctx context.Context, scope models.Scope, input models.CreateConsultationInput) (*CreationOutcome, error) {
	if !scope.Can(models.CapConsultationsWrite) {
		return nil, apperror.RoleNotAllowed("role cannot create consultations")
	}
	tenantID, err := scope.RequireTenant()
	if err != nil {
		return nil, err
	}
	if input.PatientID == uuid.Nil || input.ClinicianID == uuid.Nil {
		return nil, apperror.InvalidInput("patient_id and medecin_id are required")
	}

	policy, err := s.policies.GetCurrent(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	consultationType := input.Type
	if consultationType == "" {
		consultationType = models.ConsultationGeneral
	}

	c := &models.Consultation{
		ID:            uuid.New(),
		TenantID:      tenantID,
		PatientID:     input.PatientID,
		ClinicianID:   input.ClinicianID,
		Motif:         input.Motif,
		Type:          consultationType,
		Urgent:        input.Urgent,
		Status:        models.ConsultationInProgress,
		PaymentStatus: s.gate.InitialStatus(policy),
		ConsultedAt:   s.now().UTC(),
		CreatedBy:     scope.Principal.ID,
	}

	if err := s.consultations.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create consultation: %w", err)
	}

	outcome := &CreationOutcome{Consultation: c}
	if c.PaymentStatus == models.PaymentPending {
		outcome.BillingWarning = s.linkInvoice(ctx, c, policy)
	}

	log.Info().
		Str("tenant_id", tenantID.String()).
		Str("consultation_id", c.ID.String()).
		Str("statut_paiement", string(c.PaymentStatus)).
		Bool("billing_warning", outcome.BillingWarning != nil).
		Msg("Consultation created")

	return outcome, nil
}

func (s *ConsultationService) linkInvoice(ctx context.Context, c *models.Consultation, policy *models.BillingPolicy) *BillingWarning {
	invoice, warning := s.gate.RequestInvoice(ctx, c, policy)
	if warning != nil {
		return warning
	}

	if err := s.consultations.UpdateFields(ctx, c.TenantID, c.ID, map[string]interface{}{
		"facture_id": invoice.ID,
	}); err != nil {
		log.Warn().
			Err(err).
			Str("consultation_id", c.ID.String()).
			Str("invoice_id", invoice.ID).
			Msg("Invoice created but could not be linked to consultation")
		return &BillingWarning{
			Code:    WarningInvoiceNotLinked,
			Message: "invoice created but not linked to the consultation",
			Err:     err,
		}
	}

	invoiceID := invoice.ID
	c.InvoiceID = &invoiceID
	return nil
}

// Get returns a consultation visible to the scope
func (s *ConsultationService) Get(ctx context.Context, scope models.Scope, id uuid.UUID) (*models.Consultation, error) {
	if !scope.Can(models.CapConsultationsRead) {
		return nil, apperror.RoleNotAllowed("role cannot read consultations")
	}
	return s.loadScoped(ctx, scope, id)
}

// Update changes the client-writable fields of a consultation
func (s *ConsultationService) Update(ctx context.Context, scope models.Scope, id uuid.UUID, input models.UpdateConsultationInput) (*models.Consultation, error) {
	if !scope.Can(models.CapConsultationsWrite) {
		return nil, apperror.RoleNotAllowed("role cannot update consultations")
	}
	c, err := s.loadScoped(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if input.Motif != nil {
		fields["motif"] = *input.Motif
		c.Motif = *input.Motif
	}
	if input.Type != nil {
		fields["type_consultation"] = *input.Type
		c.Type = *input.Type
	}
	if input.Urgent != nil {
		fields["urgence"] = *input.Urgent
		c.Urgent = *input.Urgent
	}
	if input.Conclusion != nil {
		fields["conclusion"] = *input.Conclusion
		c.Conclusion = *input.Conclusion
	}
	if len(fields) == 0 {
		return c, nil
	}

	if err := s.consultations.UpdateFields(ctx, c.TenantID, c.ID, fields); err != nil {
		return nil, s.storeError(err, "failed to update consultation")
	}
	return c, nil
}

// Close ends a consultation whatever its payment state. Closing twice
// returns the consultation unchanged.
func (s *ConsultationService) Close(ctx context.Context, scope models.Scope, id uuid.UUID, input models.CloseConsultationInput) (*models.Consultation, error) {
	if !scope.Can(models.CapConsultationsWrite) {
		return nil, apperror.RoleNotAllowed("role cannot close consultations")
	}
	c, err := s.loadScoped(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if c.IsClosed() {
		return c, nil
	}

	now := s.now().UTC()
	fields := map[string]interface{}{
		"statut":       models.ConsultationClosed,
		"date_cloture": now,
	}
	if input.Conclusion != "" {
		fields["conclusion"] = input.Conclusion
		c.Conclusion = input.Conclusion
	}
	if err := s.consultations.UpdateFields(ctx, c.TenantID, c.ID, fields); err != nil {
		return nil, s.storeError(err, "failed to close consultation")
	}

	c.Status = models.ConsultationClosed
	c.ClosedAt = &now

	log.Info().
		Str("tenant_id", c.TenantID.String()).
		Str("consultation_id", c.ID.String()).
		Str("statut_paiement", string(c.PaymentStatus)).
		Msg("Consultation closed")
	return c, nil
}

// AuthorizeEmergency lets a clinician bypass the payment gate. Rejections
// name the failed precondition: role, clinic, or policy.
func (s *ConsultationService) AuthorizeEmergency(ctx context.Context, scope models.Scope, id uuid.UUID, reason string) (c *models.Consultation, err error) {
	started := time.Now()
	defer func() {
		s.auditEmergency(ctx, scope, id, c, err, started)
	}()

	if err := CheckEmergencyRole(scope); err != nil {
		return nil, err
	}

	c, policy, err := s.loadWithPolicy(ctx, scope, id, false, s.policies.GetCurrent)
	if err != nil {
		return nil, err
	}

	changed, err := s.gate.AuthorizeEmergency(scope, c, policy, reason)
	if err != nil {
		return nil, err
	}
	if !changed {
		s.metrics.RecordEmergency("noop")
		return c, nil
	}

	if err := s.consultations.UpdateFields(ctx, c.TenantID, c.ID, map[string]interface{}{
		"statut_paiement":       c.PaymentStatus,
		"raison_urgence":        c.EmergencyReason,
		"urgence_autorisee_par": *c.EmergencyAuthorizedBy,
		"urgence_autorisee_le":  *c.EmergencyAuthorizedAt,
	}); err != nil {
		return nil, s.storeError(err, "failed to authorize emergency")
	}

	log.Warn().
		Str("tenant_id", c.TenantID.String()).
		Str("consultation_id", c.ID.String()).
		Str("user_id", scope.Principal.ID.String()).
		Str("role", scope.Principal.Role.String()).
		Msg("Emergency exception authorized")
	s.metrics.RecordEmergency("granted")
	return c, nil
}

func (s *ConsultationService) auditEmergency(ctx context.Context, scope models.Scope, id uuid.UUID, c *models.Consultation, err error, started time.Time) {
	details := map[string]string{}
	if err != nil {
		s.metrics.RecordEmergency(apperror.CodeOf(err))
		details["code"] = apperror.CodeOf(err)
	}
	if c != nil {
		details["clinic_id"] = c.TenantID.String()
		details["statut_paiement"] = string(c.PaymentStatus)
		if c.EmergencyReason != "" {
			details["reason"] = c.EmergencyReason
		}
	}
	s.audit.Record(ctx, scope, AuditEvent{
		Action:       models.AuditEmergencyAuthorize,
		ResourceType: models.AuditResourceConsultation,
		ResourceUID:  id.String(),
		Err:          err,
		Details:      details,
		Started:      started,
	})
}

// CheckPaymentStatus evaluates the payment gate of a consultation
func (s *ConsultationService) CheckPaymentStatus(ctx context.Context, scope models.Scope, id uuid.UUID) (*models.PaymentDecision, error) {
	if !scope.Can(models.CapConsultationsRead) {
		return nil, apperror.RoleNotAllowed("role cannot read consultations")
	}
	c, policy, err := s.loadWithPolicy(ctx, scope, id, true, s.policies.Get)
	if err != nil {
		return nil, err
	}
	return s.gate.Evaluate(ctx, c, policy)
}

// ResultGuard tells whether results of a consultation may be released
func (s *ConsultationService) ResultGuard(ctx context.Context, scope models.Scope, id uuid.UUID) (*models.ResultGuard, error) {
	if !scope.Can(models.CapConsultationsRead) {
		return nil, apperror.RoleNotAllowed("role cannot read consultations")
	}
	c, err := s.loadScoped(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	return s.gate.MayProduceResult(ctx, c.TenantID, c.ID)
}

// AuditHistory returns the audit entries of a consultation recorded inside
// its clinic, newest first
func (s *ConsultationService) AuditHistory(ctx context.Context, scope models.Scope, id uuid.UUID) ([]models.AuditLog, error) {
	if !scope.Can(models.CapAuditRead) {
		return nil, apperror.RoleNotAllowed("role cannot read the audit trail")
	}
	c, err := s.loadScoped(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	return s.audit.History(ctx, c.TenantID, models.AuditResourceConsultation, c.ID.String(), auditHistoryLimit)
}

// loadScoped is the single lookup path for one consultation. Super-admins go
// through it too.
func (s *ConsultationService) loadScoped(ctx context.Context, scope models.Scope, id uuid.UUID) (*models.Consultation, error) {
	c, err := s.consultations.GetByID(ctx, id)
	if err != nil {
		return nil, s.storeError(err, "failed to load consultation")
	}
	if !scope.CanAccess(c.TenantID) {
		log.Warn().
			Str("tenant_id", scope.TenantID.String()).
			Str("resource_tenant_id", c.TenantID.String()).
			Str("consultation_id", id.String()).
			Str("user_id", scope.Principal.ID.String()).
			Msg("Cross-clinic consultation access denied")
		return nil, apperror.TenantMismatch()
	}
	return c, nil
}

type policyReader func(ctx context.Context, tenantID uuid.UUID) (*models.BillingPolicy, error)

// loadWithPolicy loads a consultation and its clinic's policy through
// readPolicy. With a fixed scope clinic both reads run concurrently; a
// super-admin looking at another clinic's consultation gets that clinic's
// policy. When checkTenant is false the clinic comparison is left to the
// caller.
func (s *ConsultationService) loadWithPolicy(ctx context.Context, scope models.Scope, id uuid.UUID, checkTenant bool, readPolicy policyReader) (*models.Consultation, *models.BillingPolicy, error) {
	var (
		c      *models.Consultation
		policy *models.BillingPolicy
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		c, err = s.consultations.GetByID(gctx, id)
		if err != nil {
			return s.storeError(err, "failed to load consultation")
		}
		return nil
	})
	if scope.TenantID != uuid.Nil {
		g.Go(func() error {
			var err error
			policy, err = readPolicy(gctx, scope.TenantID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if !scope.CanAccess(c.TenantID) {
		if checkTenant {
			return nil, nil, apperror.TenantMismatch()
		}
		if policy == nil {
			policy = models.DefaultBillingPolicy(scope.TenantID)
		}
		return c, policy, nil
	}

	if policy == nil || policy.TenantID != c.TenantID {
		var err error
		policy, err = readPolicy(ctx, c.TenantID)
		if err != nil {
			return nil, nil, err
		}
	}
	return c, policy, nil
}

func (s *ConsultationService) storeError(err error, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("consultation not found")
	}
	if _, ok := apperror.As(err); ok {
		return err
	}
	return fmt.Errorf("%s: %w", msg, err)
}
