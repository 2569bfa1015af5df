package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/otcheredev/clinic-gate/internal/models"
)

// columns overwritten when a clinic saves its policy again
var billingPolicyUpdateColumns = []string{
	"paiement_obligatoire_avant_consultation",
	"blocage_automatique_impaye",
	"paiement_plusieurs_temps",
	"exception_urgence_medecin",
	"actes_defaut_consultation",
	"actes_defaut_dossier",
	"actes_defaut_urgence",
	"updated_by",
	"updated_at",
}

// BillingPolicyRepository handles billing policy database operations
type BillingPolicyRepository struct {
	db *gorm.DB
}

// NewBillingPolicyRepository creates a new billing policy repository
func NewBillingPolicyRepository(db *gorm.DB) *BillingPolicyRepository {
	return &BillingPolicyRepository{db: db}
}

// GetByTenantID retrieves the policy of a clinic. ErrNotFound means the clinic
// never saved one.
func (r *BillingPolicyRepository) GetByTenantID(ctx context.Context, tenantID uuid.UUID) (*models.BillingPolicy, error) {
	var policy models.BillingPolicy
	if err := r.db.WithContext(ctx).
		Where("clinic_id = ?", tenantID).
		First(&policy).Error; err != nil {
		return nil, fmt.Errorf("failed to get billing policy: %w", notFound(err))
	}
	if policy.RegularLineItems == nil {
		policy.RegularLineItems = []string{}
	}
	return &policy, nil
}

// Upsert inserts or overwrites the single policy row of policy.TenantID.
// created_by is only written on insert. Concurrent writers race last-write-wins.
func (r *BillingPolicyRepository) Upsert(ctx context.Context, policy *models.BillingPolicy) (*models.BillingPolicy, error) {
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "clinic_id"}},
			DoUpdates: clause.AssignmentColumns(billingPolicyUpdateColumns),
		}).
		Create(policy).Error; err != nil {
		return nil, fmt.Errorf("failed to upsert billing policy: %w", err)
	}
	return r.GetByTenantID(ctx, policy.TenantID)
}
