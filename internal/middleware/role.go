package middleware

import (
	"net/http"
	"strings"

	"github.com/geovoyager/geovoyager/internal/auth"
)

// RequireRole returns middleware that enforces role requirements.
// Must be applied after Auth middleware.
// Having ANY of the roles is sufficient; an empty list admits every
// authenticated caller.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := auth.IdentityFromContext(r.Context())
			if identity == nil {
				writeAuthError(w, "Authentication required")
				return
			}

			if len(roles) == 0 || identity.HasRole(roles...) {
				next.ServeHTTP(w, r)
				return
			}

			writeError(w, http.StatusForbidden, "FORBIDDEN",
				"Insufficient permissions. Required role: "+strings.Join(roles, " or "))
		})
	}
}
