package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/clinic-gate/internal/models"
)

// AuditTrail writes privileged actions to the audit log. Write failures are
// logged and never returned to the caller.
type AuditTrail struct {
	store AuditStore
}

// NewAuditTrail creates a new audit trail
func NewAuditTrail(store AuditStore) *AuditTrail {
	return &AuditTrail{store: store}
}

// AuditEvent describes one audited action
type AuditEvent struct {
	Action       string
	ResourceType string
	ResourceUID  string
	Err          error
	Details      map[string]string
	Started      time.Time
}

// Record writes ev on behalf of the scope's principal
func (a *AuditTrail) Record(ctx context.Context, scope models.Scope, ev AuditEvent) {
	if a == nil || a.store == nil {
		return
	}

	entry := &models.AuditLog{
		TenantID:     scope.TenantID,
		UserID:       scope.Principal.ID,
		UserRole:     scope.Principal.Role.String(),
		Action:       ev.Action,
		ResourceType: ev.ResourceType,
		ResourceUID:  ev.ResourceUID,
		IPAddress:    scope.Origin.IPAddress,
		UserAgent:    scope.Origin.UserAgent,
		Status:       models.AuditStatusSuccess,
		Details:      ev.Details,
	}
	if ev.Err != nil {
		entry.Status = models.AuditStatusFailure
		entry.ErrorMessage = ev.Err.Error()
	}
	if !ev.Started.IsZero() {
		entry.Duration = time.Since(ev.Started).Milliseconds()
	}

	if err := a.store.Create(context.WithoutCancel(ctx), entry); err != nil {
		log.Error().
			Err(err).
			Str("action", ev.Action).
			Str("tenant_id", scope.TenantID.String()).
			Str("user_id", scope.Principal.ID.String()).
			Msg("Failed to write audit log")
	}
}

// History returns the latest entries recorded inside a clinic for one resource
func (a *AuditTrail) History(ctx context.Context, tenantID uuid.UUID, resourceType, resourceUID string, limit int) ([]models.AuditLog, error) {
	if a == nil || a.store == nil {
		return []models.AuditLog{}, nil
	}
	entries, err := a.store.ListByResource(ctx, tenantID, resourceType, resourceUID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read audit history: %w", err)
	}
	if entries == nil {
		entries = []models.AuditLog{}
	}
	return entries, nil
}
