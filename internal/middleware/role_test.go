package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geovoyager/geovoyager/internal/auth"
	"github.com/geovoyager/geovoyager/internal/model"
)

func TestRequireRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		identity   *model.Identity
		roles      []string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "matching role",
			identity:   &model.Identity{Subject: "u", Role: "editor"},
			roles:      []string{"editor"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "any of several roles",
			identity:   &model.Identity{Subject: "u", Role: "admin"},
			roles:      []string{"editor", "admin"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "no roles configured admits everyone",
			identity:   &model.Identity{Subject: "u", Role: "reader"},
			roles:      nil,
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong role",
			identity:   &model.Identity{Subject: "u", Role: "reader"},
			roles:      []string{"editor"},
			wantStatus: http.StatusForbidden,
			wantCode:   "FORBIDDEN",
		},
		{
			name:       "role match is exact",
			identity:   &model.Identity{Subject: "u", Role: "Editor"},
			roles:      []string{"editor"},
			wantStatus: http.StatusForbidden,
			wantCode:   "FORBIDDEN",
		},
		{
			name:       "no identity",
			identity:   nil,
			roles:      []string{"editor"},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "UNAUTHORIZED",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := RequireRole(tt.roles...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/v1/pois", nil)
			if tt.identity != nil {
				req = req.WithContext(auth.ContextWithIdentity(req.Context(), tt.identity))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantCode != "" {
				if env := decodeEnvelope(t, rec); env.Error.Code != tt.wantCode {
					t.Errorf("code = %q, want %q", env.Error.Code, tt.wantCode)
				}
			}
		})
	}
}
