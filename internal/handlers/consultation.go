package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/otcheredev/clinic-gate/internal/apperror"
	"github.com/otcheredev/clinic-gate/internal/models"
	"github.com/otcheredev/clinic-gate/internal/response"
	"github.com/otcheredev/clinic-gate/internal/services"
)

// ConsultationService is the consultation lifecycle used by the handler
type ConsultationService interface {
	List(ctx context.Context, scope models.Scope, filter models.ConsultationFilter) (*models.ConsultationPage, error)
	Create(ctx context.Context, scope models.Scope, input models.CreateConsultationInput) (*services.CreationOutcome, error)
	Get(ctx context.Context, scope models.Scope, id uuid.UUID) (*models.Consultation, error)
	Update(ctx context.Context, scope models.Scope, id uuid.UUID, input models.UpdateConsultationInput) (*models.Consultation, error)
	Close(ctx context.Context, scope models.Scope, id uuid.UUID, input models.CloseConsultationInput) (*models.Consultation, error)
	AuthorizeEmergency(ctx context.Context, scope models.Scope, id uuid.UUID, reason string) (*models.Consultation, error)
	CheckPaymentStatus(ctx context.Context, scope models.Scope, id uuid.UUID) (*models.PaymentDecision, error)
	ResultGuard(ctx context.Context, scope models.Scope, id uuid.UUID) (*models.ResultGuard, error)
	AuditHistory(ctx context.Context, scope models.Scope, id uuid.UUID) ([]models.AuditLog, error)
}

type ConsultationHandler struct {
	consultations ConsultationService
}

func NewConsultationHandler(consultations ConsultationService) *ConsultationHandler {
	return &ConsultationHandler{consultations: consultations}
}

type consultationCreated struct {
	*models.Consultation
	BillingWarning *services.BillingWarning `json:"billing_warning,omitempty"`
}

// List returns the clinic's consultations
func (h *ConsultationHandler) List(w http.ResponseWriter, r *http.Request) {
	scope, err := requestScope(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	page, err := h.consultations.List(r.Context(), scope, filter)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "", page)
}

// Create opens a consultation in the request clinic
func (h *ConsultationHandler) Create(w http.ResponseWriter, r *http.Request) {
	scope, err := requestScope(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	var input models.CreateConsultationInput
	if err := decodeAndValidate(w, r, &input); err != nil {
		response.Error(w, r, err)
		return
	}

	outcome, err := h.consultations.Create(r.Context(), scope, input)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	message := "consultation created"
	if outcome.BillingWarning != nil {
		message = outcome.BillingWarning.Message
	}
	response.Success(w, http.StatusCreated, message, consultationCreated{
		Consultation:   outcome.Consultation,
		BillingWarning: outcome.BillingWarning,
	})
}

func (h *ConsultationHandler) Get(w http.ResponseWriter, r *http.Request) {
	scope, id, err := scopeAndID(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	c, err := h.consultations.Get(r.Context(), scope, id)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "", c)
}

func (h *ConsultationHandler) Update(w http.ResponseWriter, r *http.Request) {
	scope, id, err := scopeAndID(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	var input models.UpdateConsultationInput
	if err := decodeAndValidate(w, r, &input); err != nil {
		response.Error(w, r, err)
		return
	}

	c, err := h.consultations.Update(r.Context(), scope, id, input)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "consultation updated", c)
}

func (h *ConsultationHandler) Close(w http.ResponseWriter, r *http.Request) {
	scope, id, err := scopeAndID(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	var input models.CloseConsultationInput
	if r.ContentLength != 0 {
		if err := decodeAndValidate(w, r, &input); err != nil {
			response.Error(w, r, err)
			return
		}
	}

	c, err := h.consultations.Close(r.Context(), scope, id, input)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "consultation closed", c)
}

// AuthorizeEmergency lets a clinician bypass the payment gate
func (h *ConsultationHandler) AuthorizeEmergency(w http.ResponseWriter, r *http.Request) {
	scope, id, err := scopeAndID(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	var input models.AuthorizeEmergencyInput
	if err := decodeAndValidate(w, r, &input); err != nil {
		response.Error(w, r, err)
		return
	}

	c, err := h.consultations.AuthorizeEmergency(r.Context(), scope, id, input.Reason)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "emergency authorization granted", c)
}

func (h *ConsultationHandler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	scope, id, err := scopeAndID(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	decision, err := h.consultations.CheckPaymentStatus(r.Context(), scope, id)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "", decision)
}

func (h *ConsultationHandler) ResultGuard(w http.ResponseWriter, r *http.Request) {
	scope, id, err := scopeAndID(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	guard, err := h.consultations.ResultGuard(r.Context(), scope, id)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "", guard)
}

// AuditHistory returns the audit trail of a consultation
func (h *ConsultationHandler) AuditHistory(w http.ResponseWriter, r *http.Request) {
	scope, id, err := scopeAndID(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	entries, err := h.consultations.AuditHistory(r.Context(), scope, id)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "", entries)
}

func scopeAndID(r *http.Request) (models.Scope, uuid.UUID, error) {
	scope, err := requestScope(r)
	if err != nil {
		return models.Scope{}, uuid.Nil, err
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		return models.Scope{}, uuid.Nil, err
	}
	return scope, id, nil
}

func parseFilter(r *http.Request) (models.ConsultationFilter, error) {
	q := r.URL.Query()
	var filter models.ConsultationFilter

	if v := q.Get("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, apperror.InvalidInput("patient_id must be a valid id")
		}
		filter.PatientID = &id
	}
	if v := q.Get("medecin_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return filter, apperror.InvalidInput("medecin_id must be a valid id")
		}
		filter.ClinicianID = &id
	}
	if v := q.Get("statut"); v != "" {
		if v != models.ConsultationInProgress && v != models.ConsultationClosed {
			return filter, apperror.InvalidInput("statut must be one of en_cours, terminee")
		}
		filter.Status = v
	}

	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))
	filter.Normalize()
	return filter, nil
}
