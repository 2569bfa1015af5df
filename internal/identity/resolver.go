package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/clinic-gate/internal/apperror"
	"github.com/otcheredev/clinic-gate/internal/models"
	"github.com/otcheredev/clinic-gate/internal/repository"
)

// ProfileStore loads staff profiles by identity-provider user id
type ProfileStore interface {
	GetByAuthUserID(ctx context.Context, authUserID string) (*models.Profile, error)
}

// DevBypass configures the development principal used when a request carries
// no credential. Leave Enabled false outside local development.
type DevBypass struct {
	Enabled  bool
	UserID   uuid.UUID
	TenantID uuid.UUID
	Role     models.Role
}

// Resolver turns an Authorization header into a Principal
type Resolver struct {
	verifier Verifier
	profiles ProfileStore
	dev      DevBypass
}

// NewResolver creates a new identity resolver
func NewResolver(verifier Verifier, profiles ProfileStore, dev DevBypass) *Resolver {
	if dev.Enabled {
		log.Warn().
			Str("dev_user_id", dev.UserID.String()).
			Str("dev_tenant_id", dev.TenantID.String()).
			Str("dev_role", dev.Role.String()).
			Msg("Authentication dev bypass is ENABLED; requests without a token run as the dev principal")
	}
	return &Resolver{verifier: verifier, profiles: profiles, dev: dev}
}

// Resolve verifies the credential and loads the caller's profile
func (r *Resolver) Resolve(ctx context.Context, authorization string) (models.Principal, error) {
	authorization = strings.TrimSpace(authorization)

	if authorization == "" {
		if r.dev.Enabled {
			log.Warn().Str("dev_user_id", r.dev.UserID.String()).Msg("Dev bypass used for unauthenticated request")
			return r.devPrincipal(), nil
		}
		return models.Principal{}, apperror.Unauthenticated(apperror.CodeTokenMissing, "missing bearer token")
	}

	token, ok := bearerToken(authorization)
	if !ok {
		return models.Principal{}, apperror.Unauthenticated(apperror.CodeTokenInvalid, "malformed authorization header")
	}

	subject, err := r.verifier.Verify(ctx, token)
	if err != nil {
		log.Debug().Err(err).Msg("Token verification failed")
		return models.Principal{}, apperror.Unauthenticated(apperror.CodeTokenInvalid, "invalid or expired token")
	}

	profile, err := r.profiles.GetByAuthUserID(ctx, subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return models.Principal{}, apperror.ProfileNotFound()
		}
		return models.Principal{}, apperror.Upstream("failed to load user profile", err)
	}

	principal := profile.Principal()
	if !principal.Usable() {
		log.Info().
			Str("user_id", principal.ID.String()).
			Str("account_status", string(principal.AccountStatus)).
			Bool("active", principal.Active).
			Msg("Rejected inactive account")
		return models.Principal{}, apperror.AccountInactive(inactiveMessage(principal))
	}

	return principal, nil
}

func (r *Resolver) devPrincipal() models.Principal {
	return models.Principal{
		ID:            r.dev.UserID,
		AuthUserID:    "dev-bypass",
		Email:         "dev@localhost",
		Role:          r.dev.Role,
		TenantID:      r.dev.TenantID,
		AccountStatus: models.AccountActive,
		Active:        true,
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

func inactiveMessage(p models.Principal) string {
	switch p.AccountStatus {
	case models.AccountPending:
		return "account is pending approval"
	case models.AccountSuspended:
		return "account is suspended"
	case models.AccountRejected:
		return "account was rejected"
	}
	return "account is disabled"
}
