package handlers

import (
	"context"
	"net/http"

	"github.com/otcheredev/clinic-gate/internal/models"
	"github.com/otcheredev/clinic-gate/internal/response"
)

// BillingPolicyService reads and writes the request clinic's billing policy
type BillingPolicyService interface {
	GetScoped(ctx context.Context, scope models.Scope) (*models.BillingPolicy, error)
	Upsert(ctx context.Context, scope models.Scope, input models.BillingPolicyInput) (*models.BillingPolicy, error)
}

type BillingHandler struct {
	policies BillingPolicyService
}

func NewBillingHandler(policies BillingPolicyService) *BillingHandler {
	return &BillingHandler{policies: policies}
}

// GetConfiguration returns the clinic's billing configuration, or the
// defaults when none was saved
func (h *BillingHandler) GetConfiguration(w http.ResponseWriter, r *http.Request) {
	scope, err := requestScope(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	policy, err := h.policies.GetScoped(r.Context(), scope)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "", policy)
}

// PutConfiguration saves the clinic's billing configuration. A clinic id in
// the body is ignored.
func (h *BillingHandler) PutConfiguration(w http.ResponseWriter, r *http.Request) {
	scope, err := requestScope(r)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	var input models.BillingPolicyInput
	if err := decodeAndValidate(w, r, &input); err != nil {
		response.Error(w, r, err)
		return
	}

	policy, err := h.policies.Upsert(r.Context(), scope, input)
	if err != nil {
		response.Error(w, r, err)
		return
	}
	response.Success(w, http.StatusOK, "billing configuration saved", policy)
}
