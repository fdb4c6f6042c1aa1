package handler

import (
	"net/http"

	"github.com/geovoyager/geovoyager/internal/auth"
	"github.com/geovoyager/geovoyager/internal/handler/dto"
)

// IdentityHandler reports who the caller is.
type IdentityHandler struct{}

// NewIdentityHandler creates a new IdentityHandler.
func NewIdentityHandler() *IdentityHandler {
	return &IdentityHandler{}
}

// Me handles GET /api/v1/me and GET /api/v1/auth/me.
func (h *IdentityHandler) Me(w http.ResponseWriter, r *http.Request) {
	id := auth.IdentityFromContext(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Could not validate credentials")
		return
	}
	writeJSON(w, http.StatusOK, dto.ToIdentityResponse(id))
}
