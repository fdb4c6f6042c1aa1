package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/geovoyager/geovoyager/internal/auth"
	"github.com/geovoyager/geovoyager/internal/metrics"
	"github.com/geovoyager/geovoyager/internal/model"
)

// TokenVerifier validates a raw bearer token.
type TokenVerifier interface {
	Verify(raw string) (*model.Identity, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger   *slog.Logger
	Verifier TokenVerifier
	Metrics  metrics.Recorder
}

// Auth returns a middleware that authenticates API requests.
// It extracts the bearer token from the Authorization header,
// verifies it, and injects the caller identity into the request.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := cfg.Verifier.Verify(extractBearerToken(r))
			if err != nil {
				var authErr *auth.Error
				if !errors.As(err, &authErr) {
					authErr = &auth.Error{Kind: auth.KindInvalidSignature, Err: err}
				}

				recorder.IncAuthFailure(string(authErr.Kind))
				logger.Warn("authentication failed",
					slog.String("reason", string(authErr.Kind)),
					slog.String("claim", authErr.Claim),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w, authErr.Reason())
				return
			}

			logger.Debug("authentication successful",
				slog.String("subject", identity.Subject),
				slog.String("role", identity.Role),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			ctx := auth.ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken returns the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively.
func extractBearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// writeAuthError writes a 401 Unauthorized response.
func writeAuthError(w http.ResponseWriter, reason string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", reason)
}
