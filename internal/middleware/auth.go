package middleware

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/otcheredev/clinic-gate/internal/apperror"
	"github.com/otcheredev/clinic-gate/internal/metrics"
	"github.com/otcheredev/clinic-gate/internal/models"
	"github.com/otcheredev/clinic-gate/internal/response"
)

type contextKey string

const (
	PrincipalKey contextKey = "principal"
	ScopeKey     contextKey = "scope"
)

// PrincipalResolver turns an Authorization header into a principal
type PrincipalResolver interface {
	Resolve(ctx context.Context, authorization string) (models.Principal, error)
}

// Authenticate resolves the caller and stores the principal in the request
// context. Requests that cannot be resolved never reach the handler.
func Authenticate(resolver PrincipalResolver, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := resolver.Resolve(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				code := apperror.CodeOf(err)
				m.RecordAuthFailure(code)
				log.Warn().
					Str("code", code).
					Str("path", r.URL.Path).
					Str("ip", r.RemoteAddr).
					Msg("Authentication failed")
				response.Error(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PrincipalFrom extracts the authenticated principal from context
func PrincipalFrom(ctx context.Context) (models.Principal, bool) {
	principal, ok := ctx.Value(PrincipalKey).(models.Principal)
	return principal, ok
}
