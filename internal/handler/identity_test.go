package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geovoyager/geovoyager/internal/auth"
	"github.com/geovoyager/geovoyager/internal/model"
)

func TestIdentityHandler_Me(t *testing.T) {
	tests := []struct {
		name      string
		identity  *model.Identity
		wantEmail any
	}{
		{
			name:      "with email",
			identity:  &model.Identity{Subject: "user-1", Email: "user-1@example.com", Role: "editor"},
			wantEmail: "user-1@example.com",
		},
		{
			name:      "without email",
			identity:  &model.Identity{Subject: "svc", Role: "reader"},
			wantEmail: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewIdentityHandler()

			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			req = req.WithContext(auth.ContextWithIdentity(req.Context(), tt.identity))
			rec := httptest.NewRecorder()

			h.Me(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", rec.Code)
			}

			var response map[string]any
			if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response["id"] != tt.identity.Subject {
				t.Errorf("unexpected id: %v", response["id"])
			}
			if response["role"] != tt.identity.Role {
				t.Errorf("unexpected role: %v", response["role"])
			}
			if response["email"] != tt.wantEmail {
				t.Errorf("unexpected email: %v", response["email"])
			}
		})
	}
}

func TestIdentityHandler_Me_NoIdentity(t *testing.T) {
	h := NewIdentityHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	rec := httptest.NewRecorder()

	h.Me(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
}
