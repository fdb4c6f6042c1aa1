// Package model defines domain entities for the application.
package model

import "time"

// Field limits for POI records.
const (
	MaxTitleLength    = 255
	MaxAudioURLLength = 512
)

// POI is a geotagged point of interest.
type POI struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	AudioURL    *string    `json:"audio_url"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// POIInput is the payload for creating a POI.
// Required fields are pointers so that absence can be told apart from zero.
type POIInput struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	AudioURL    *string  `json:"audio_url"`
}

// POIPatch lists the writable POI fields for a partial update.
// Fields that are not Set are left untouched by ApplyPatch.
type POIPatch struct {
	Title       Optional[string]  `json:"title"`
	Description Optional[string]  `json:"description"`
	Latitude    Optional[float64] `json:"latitude"`
	Longitude   Optional[float64] `json:"longitude"`
	AudioURL    Optional[string]  `json:"audio_url"`
}

// IsEmpty reports whether the patch carries no fields at all.
func (p POIPatch) IsEmpty() bool {
	return !p.Title.Set && !p.Description.Set && !p.Latitude.Set && !p.Longitude.Set && !p.AudioURL.Set
}

// NewPOI builds an unsaved POI from a validated input.
// ID and timestamps are assigned by the store.
func NewPOI(in POIInput) *POI {
	p := &POI{
		Description: cloneString(in.Description),
		AudioURL:    cloneString(in.AudioURL),
	}
	if in.Title != nil {
		p.Title = *in.Title
	}
	if in.Latitude != nil {
		p.Latitude = *in.Latitude
	}
	if in.Longitude != nil {
		p.Longitude = *in.Longitude
	}
	return p
}

// ApplyPatch merges the present fields of patch into p.
// The patch must have been validated; nulls on required fields are ignored.
func (p *POI) ApplyPatch(patch POIPatch) {
	if patch.Title.HasValue() {
		p.Title = patch.Title.Value
	}
	if patch.Description.Set {
		p.Description = optionalString(patch.Description)
	}
	if patch.Latitude.HasValue() {
		p.Latitude = patch.Latitude.Value
	}
	if patch.Longitude.HasValue() {
		p.Longitude = patch.Longitude.Value
	}
	if patch.AudioURL.Set {
		p.AudioURL = optionalString(patch.AudioURL)
	}
}

// Clone returns a deep copy of p.
func (p *POI) Clone() *POI {
	c := *p
	c.Description = cloneString(p.Description)
	c.AudioURL = cloneString(p.AudioURL)
	if p.UpdatedAt != nil {
		t := *p.UpdatedAt
		c.UpdatedAt = &t
	}
	return &c
}

func optionalString(o Optional[string]) *string {
	if !o.HasValue() {
		return nil
	}
	v := o.Value
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
