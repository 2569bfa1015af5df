package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/clinic-gate/internal/apperror"
	"github.com/otcheredev/clinic-gate/internal/cache"
	"github.com/otcheredev/clinic-gate/internal/metrics"
	"github.com/otcheredev/clinic-gate/internal/models"
	"github.com/otcheredev/clinic-gate/internal/repository"
)

// BillingPolicyService reads and writes per-clinic billing policies
type BillingPolicyService struct {
	store   PolicyStore
	cache   cache.Cache
	ttl     time.Duration
	audit   *AuditTrail
	metrics *metrics.Metrics
}

// NewBillingPolicyService creates a new billing policy service. cache may be nil.
func NewBillingPolicyService(
	store PolicyStore,
	policyCache cache.Cache,
	ttl time.Duration,
	audit *AuditTrail,
	m *metrics.Metrics,
) *BillingPolicyService {
	return &BillingPolicyService{
		store:   store,
		cache:   policyCache,
		ttl:     ttl,
		audit:   audit,
		metrics: m,
	}
}

// Get returns the clinic's policy, or the defaults when none was saved
func (s *BillingPolicyService) Get(ctx context.Context, tenantID uuid.UUID) (*models.BillingPolicy, error) {
	key := cache.BillingPolicyKey(tenantID)

	if s.cache != nil {
		var cached models.BillingPolicy
		err := cache.GetJSON(ctx, s.cache, key, &cached)
		switch {
		case err == nil:
			s.metrics.RecordPolicyCache(true)
			return &cached, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			log.Warn().Err(err).Str("tenant_id", tenantID.String()).Msg("Billing policy cache read failed")
		}
		s.metrics.RecordPolicyCache(false)
	}

	policy, err := s.GetCurrent(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := cache.SetJSON(ctx, s.cache, key, policy, s.ttl); err != nil {
			log.Warn().Err(err).Str("tenant_id", tenantID.String()).Msg("Billing policy cache write failed")
		}
	}
	return policy, nil
}

// GetCurrent reads the clinic's policy from the store, skipping the cache.
// Decisions that change a consultation use it so a policy saved on any
// replica applies at once.
func (s *BillingPolicyService) GetCurrent(ctx context.Context, tenantID uuid.UUID) (*models.BillingPolicy, error) {
	policy, err := s.store.GetByTenantID(ctx, tenantID)
	if errors.Is(err, repository.ErrNotFound) {
		return models.DefaultBillingPolicy(tenantID), nil
	}
	if err != nil {
		return nil, apperror.Upstream("failed to load billing policy", err)
	}
	return policy, nil
}

// GetScoped returns the policy of the request's clinic
func (s *BillingPolicyService) GetScoped(ctx context.Context, scope models.Scope) (*models.BillingPolicy, error) {
	if !scope.Can(models.CapBillingConfigRead) {
		return nil, apperror.RoleNotAllowed("role cannot read billing configuration")
	}
	tenantID, err := scope.RequireTenant()
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, tenantID)
}

// Upsert saves the policy of the request's clinic. The clinic always comes
// from the scope.
func (s *BillingPolicyService) Upsert(ctx context.Context, scope models.Scope, input models.BillingPolicyInput) (*models.BillingPolicy, error) {
	started := time.Now()

	if !scope.Can(models.CapBillingConfigWrite) {
		return nil, apperror.RoleNotAllowed("role cannot change billing configuration")
	}
	tenantID, err := scope.RequireTenant()
	if err != nil {
		return nil, err
	}

	actor := scope.Principal.ID
	policy := input.Apply(tenantID)
	policy.CreatedBy = &actor
	policy.UpdatedBy = &actor

	saved, err := s.store.Upsert(ctx, policy)
	if err != nil {
		s.audit.Record(ctx, scope, AuditEvent{
			Action:       models.AuditBillingPolicyUpsert,
			ResourceType: models.AuditResourceBilling,
			ResourceUID:  tenantID.String(),
			Err:          err,
			Started:      started,
		})
		return nil, fmt.Errorf("failed to save billing policy: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, cache.BillingPolicyKey(tenantID)); err != nil {
			log.Warn().Err(err).Str("tenant_id", tenantID.String()).Msg("Billing policy cache invalidation failed")
		}
	}

	s.audit.Record(ctx, scope, AuditEvent{
		Action:       models.AuditBillingPolicyUpsert,
		ResourceType: models.AuditResourceBilling,
		ResourceUID:  tenantID.String(),
		Details: map[string]string{
			"payment_required":    strconv.FormatBool(saved.PaymentRequired),
			"auto_block":          strconv.FormatBool(saved.AutoBlockOnUnpaid),
			"emergency_exception": strconv.FormatBool(saved.EmergencyExceptionClinician),
		},
		Started: started,
	})

	log.Info().
		Str("tenant_id", tenantID.String()).
		Str("user_id", actor.String()).
		Bool("payment_required", saved.PaymentRequired).
		Msg("Billing policy updated")

	return saved, nil
}
