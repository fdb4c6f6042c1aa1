package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/geovoyager/geovoyager/internal/auth"
	"github.com/geovoyager/geovoyager/internal/metrics"
	"github.com/geovoyager/geovoyager/internal/testutil"
)

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return env
}

func TestAuth(t *testing.T) {
	t.Parallel()

	verifier := testutil.NewTestVerifier(t)

	tests := []struct {
		name        string
		header      string
		wantStatus  int
		wantMessage string
		wantKind    string
	}{
		{
			name:       "valid token",
			header:     "Bearer " + testutil.SignToken(t, "user-1", "editor"),
			wantStatus: http.StatusOK,
		},
		{
			name:       "lowercase scheme",
			header:     "bearer " + testutil.SignToken(t, "user-1", "editor"),
			wantStatus: http.StatusOK,
		},
		{
			name:        "missing header",
			header:      "",
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Missing bearer token",
			wantKind:    string(auth.KindMissingToken),
		},
		{
			name:        "basic scheme",
			header:      "Basic dXNlcjpwYXNz",
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Missing bearer token",
			wantKind:    string(auth.KindMissingToken),
		},
		{
			name:        "garbage token",
			header:      "Bearer not.a.jwt",
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Invalid token",
			wantKind:    string(auth.KindInvalidSignature),
		},
		{
			name:        "expired token",
			header:      "Bearer " + testutil.SignExpiredToken(t, "user-1", "editor"),
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Token has expired",
			wantKind:    string(auth.KindExpired),
		},
		{
			name:        "missing role",
			header:      "Bearer " + testutil.SignToken(t, "user-1", ""),
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Token is missing required claim: role",
			wantKind:    string(auth.KindMissingClaim),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var logs bytes.Buffer
			recorder := metrics.NewPrometheus()
			mw := Auth(AuthConfig{
				Logger:   slog.New(slog.NewJSONHandler(&logs, nil)),
				Verifier: verifier,
				Metrics:  recorder,
			})

			var subject string
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				subject = auth.MustIdentityFromContext(r.Context()).Subject
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/pois", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			if tt.wantStatus == http.StatusOK {
				if subject != "user-1" {
					t.Errorf("subject = %q, want user-1", subject)
				}
				return
			}

			if got := rec.Header().Get("WWW-Authenticate"); got != "Bearer" {
				t.Errorf("WWW-Authenticate = %q, want Bearer", got)
			}
			env := decodeEnvelope(t, rec)
			if env.Error.Code != "UNAUTHORIZED" {
				t.Errorf("code = %q, want UNAUTHORIZED", env.Error.Code)
			}
			if env.Error.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", env.Error.Message, tt.wantMessage)
			}
			if got := promtest.ToFloat64(recorder.AuthFailures.WithLabelValues(tt.wantKind)); got != 1 {
				t.Errorf("auth failure count for %s = %v, want 1", tt.wantKind, got)
			}
			if !strings.Contains(logs.String(), `"msg":"authentication failed"`) {
				t.Errorf("expected authentication failed log, got %s", logs.String())
			}
			if tt.header != "" && strings.Contains(logs.String(), strings.TrimPrefix(tt.header, "Bearer ")) {
				t.Error("token must not be logged")
			}
		})
	}
}

func TestExtractBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"BEARER abc", "abc"},
		{"Bearer   abc  ", "abc"},
		{"Bearer", ""},
		{"Token abc", ""},
		{"", ""},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		if got := extractBearerToken(req); got != tt.want {
			t.Errorf("extractBearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
