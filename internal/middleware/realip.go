package middleware

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RealIP takes the client address from X-Forwarded-For or X-Real-IP when
// trusted is set. Otherwise RemoteAddr stays the peer address.
func RealIP(trusted bool) func(http.Handler) http.Handler {
	if trusted {
		return chimiddleware.RealIP
	}
	return func(next http.Handler) http.Handler {
		return next
	}
}
