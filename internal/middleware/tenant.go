package middleware

import (
	"context"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/clinic-gate/internal/apperror"
	"github.com/otcheredev/clinic-gate/internal/metrics"
	"github.com/otcheredev/clinic-gate/internal/models"
	"github.com/otcheredev/clinic-gate/internal/response"
	"github.com/otcheredev/clinic-gate/internal/services"
	"github.com/otcheredev/clinic-gate/internal/tenancy"
)

// TenantContext builds the request scope from the authenticated principal.
// It must run after Authenticate.
func TenantContext(audit *services.AuditTrail, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()

			principal, ok := PrincipalFrom(r.Context())
			if !ok {
				response.Error(w, r, apperror.Unauthenticated(apperror.CodeTokenMissing, "authentication required"))
				return
			}

			scope, err := tenancy.Build(principal, r.Header.Get(tenancy.ActAsTenantHeader))
			if err != nil {
				log.Warn().
					Err(err).
					Str("user_id", principal.ID.String()).
					Str("path", r.URL.Path).
					Msg("Tenant context rejected")
				response.Error(w, r, err)
				return
			}

			scope.Origin = models.RequestOrigin{
				IPAddress: r.RemoteAddr,
				UserAgent: r.UserAgent(),
				RequestID: chimiddleware.GetReqID(r.Context()),
			}

			if scope.ActingAs {
				m.RecordTenantOverride()
				audit.Record(r.Context(), scope, services.AuditEvent{
					Action:       models.AuditTenantOverride,
					ResourceType: models.AuditResourceTenant,
					ResourceUID:  scope.TenantID.String(),
					Details: map[string]string{
						"home_tenant_id": principal.TenantID.String(),
						"method":         r.Method,
						"path":           r.URL.Path,
					},
					Started: started,
				})
			}

			next.ServeHTTP(w, r.WithContext(WithScope(r.Context(), scope)))
		})
	}
}

// WithScope stores scope in ctx
func WithScope(ctx context.Context, scope models.Scope) context.Context {
	return context.WithValue(ctx, ScopeKey, scope)
}

// ScopeFrom extracts the request scope from context
func ScopeFrom(ctx context.Context) (models.Scope, bool) {
	scope, ok := ctx.Value(ScopeKey).(models.Scope)
	return scope, ok
}
