// Package tenancy derives the trusted clinic scope of a request from the
// authenticated principal.
package tenancy

import (
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/clinic-gate/internal/apperror"
	"github.com/otcheredev/clinic-gate/internal/models"
)

// ActAsTenantHeader lets a super-admin operate inside another clinic
const ActAsTenantHeader = "X-Act-As-Tenant"

// Build derives the request scope. For every role but SUPER_ADMIN the clinic
// comes from the principal only and actAsTenant is ignored.
func Build(principal models.Principal, actAsTenant string) (models.Scope, error) {
	actAsTenant = strings.TrimSpace(actAsTenant)

	if !principal.Role.Can(models.CapTenantOverride) {
		if actAsTenant != "" {
			log.Debug().
				Str("user_id", principal.ID.String()).
				Str("role", principal.Role.String()).
				Msg("Ignoring tenant override header from non super-admin")
		}
		if principal.TenantID == uuid.Nil {
			return models.Scope{}, apperror.MissingTenantContext()
		}
		return models.Scope{
			Principal: principal,
			TenantID:  principal.TenantID,
		}, nil
	}

	scope := models.Scope{
		Principal:    principal,
		TenantID:     principal.TenantID,
		IsSuperAdmin: principal.Role.IsSuperAdmin(),
	}
	if actAsTenant == "" {
		return scope, nil
	}

	target, err := uuid.Parse(actAsTenant)
	if err != nil || target == uuid.Nil {
		return models.Scope{}, apperror.InvalidInput(ActAsTenantHeader + " must be a clinic id")
	}

	log.Warn().
		Str("user_id", principal.ID.String()).
		Str("home_tenant_id", principal.TenantID.String()).
		Str("tenant_id", target.String()).
		Msg("Super-admin acting as tenant")

	scope.TenantID = target
	scope.ActingAs = true
	return scope, nil
}
