// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/geovoyager/geovoyager/internal/model"
)

// CreatePOIRequest represents the request body for creating a POI.
// Pointer fields let validation tell a missing field from a zero value.
type CreatePOIRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	AudioURL    *string  `json:"audio_url"`
}

// ToInput converts the request into a service input.
func (r CreatePOIRequest) ToInput() model.POIInput {
	return model.POIInput{
		Title:       r.Title,
		Description: r.Description,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		AudioURL:    r.AudioURL,
	}
}

// UpdatePOIRequest represents the request body for a partial update.
// Absent keys are left unchanged; explicit null clears optional fields.
type UpdatePOIRequest struct {
	Title       model.Optional[string]  `json:"title"`
	Description model.Optional[string]  `json:"description"`
	Latitude    model.Optional[float64] `json:"latitude"`
	Longitude   model.Optional[float64] `json:"longitude"`
	AudioURL    model.Optional[string]  `json:"audio_url"`
}

// ToPatch converts the request into a POI patch.
func (r UpdatePOIRequest) ToPatch() model.POIPatch {
	return model.POIPatch{
		Title:       r.Title,
		Description: r.Description,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		AudioURL:    r.AudioURL,
	}
}

// POIResponse represents a POI in API responses.
// Optional fields are always present and null when unset.
type POIResponse struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	AudioURL    *string    `json:"audio_url"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// ToPOIResponse converts a model.POI to POIResponse.
func ToPOIResponse(p *model.POI) POIResponse {
	resp := POIResponse{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		AudioURL:    p.AudioURL,
		CreatedAt:   p.CreatedAt.UTC(),
	}
	if p.UpdatedAt != nil {
		t := p.UpdatedAt.UTC()
		resp.UpdatedAt = &t
	}
	return resp
}

// ToPOIListResponse converts POIs to a JSON array. It never returns nil so
// an empty result encodes as [].
func ToPOIListResponse(pois []*model.POI) []POIResponse {
	out := make([]POIResponse, 0, len(pois))
	for _, p := range pois {
		out = append(out, ToPOIResponse(p))
	}
	return out
}

// IdentityResponse describes the authenticated caller.
type IdentityResponse struct {
	ID    string  `json:"id"`
	Email *string `json:"email"`
	Role  string  `json:"role"`
}

// ToIdentityResponse converts a model.Identity to IdentityResponse.
func ToIdentityResponse(id *model.Identity) IdentityResponse {
	resp := IdentityResponse{ID: id.Subject, Role: id.Role}
	if id.Email != "" {
		email := id.Email
		resp.Email = &email
	}
	return resp
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details []model.FieldViolation `json:"details,omitempty"`
}
