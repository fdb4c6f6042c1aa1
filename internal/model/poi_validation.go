package model

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/geovoyager/geovoyager/internal/geo"
)

// ViolationKind classifies a field-level validation failure.
type ViolationKind string

const (
	KindRequired         ViolationKind = "Required"
	KindOutOfRange       ViolationKind = "OutOfRange"
	KindTooShort         ViolationKind = "TooShort"
	KindTooLong          ViolationKind = "TooLong"
	KindInvalidURLScheme ViolationKind = "InvalidURLScheme"
)

// ErrValidation matches any *ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// FieldViolation describes why a single field was rejected.
type FieldViolation struct {
	Field   string        `json:"field"`
	Kind    ViolationKind `json:"kind"`
	Message string        `json:"message"`
}

// ValidationError carries every violation found in a payload.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + ": " + v.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrValidation) succeed.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// HasKind reports whether any violation on field has the given kind.
func (e *ValidationError) HasKind(field string, kind ViolationKind) bool {
	for _, v := range e.Violations {
		if v.Field == field && v.Kind == kind {
			return true
		}
	}
	return false
}

type violations []FieldViolation

func (vs *violations) add(field string, kind ViolationKind, format string, args ...any) {
	*vs = append(*vs, FieldViolation{Field: field, Kind: kind, Message: fmt.Sprintf(format, args...)})
}

func (vs violations) err() error {
	if len(vs) == 0 {
		return nil
	}
	return &ValidationError{Violations: vs}
}

// ValidateCreate checks a create payload. Title and both coordinates are required.
func ValidateCreate(in POIInput) error {
	var vs violations

	if in.Title == nil {
		vs.add("title", KindRequired, "title is required")
	} else {
		checkTitle(&vs, *in.Title)
	}

	if in.Latitude == nil {
		vs.add("latitude", KindRequired, "latitude is required")
	} else {
		checkLatitude(&vs, *in.Latitude)
	}

	if in.Longitude == nil {
		vs.add("longitude", KindRequired, "longitude is required")
	} else {
		checkLongitude(&vs, *in.Longitude)
	}

	if in.AudioURL != nil {
		checkAudioURL(&vs, *in.AudioURL)
	}

	return vs.err()
}

// ValidatePatch checks only the fields present in a partial update.
func ValidatePatch(p POIPatch) error {
	var vs violations

	if p.Title.Set {
		if p.Title.Null {
			vs.add("title", KindRequired, "title cannot be null")
		} else {
			checkTitle(&vs, p.Title.Value)
		}
	}

	if p.Latitude.Set {
		if p.Latitude.Null {
			vs.add("latitude", KindRequired, "latitude cannot be null")
		} else {
			checkLatitude(&vs, p.Latitude.Value)
		}
	}

	if p.Longitude.Set {
		if p.Longitude.Null {
			vs.add("longitude", KindRequired, "longitude cannot be null")
		} else {
			checkLongitude(&vs, p.Longitude.Value)
		}
	}

	if p.AudioURL.HasValue() {
		checkAudioURL(&vs, p.AudioURL.Value)
	}

	return vs.err()
}

func checkTitle(vs *violations, title string) {
	n := utf8.RuneCountInString(title)
	switch {
	case n < 1:
		vs.add("title", KindTooShort, "title must not be empty")
	case n > MaxTitleLength:
		vs.add("title", KindTooLong, "title must be at most %d characters", MaxTitleLength)
	}
}

func checkLatitude(vs *violations, lat float64) {
	if !geo.ValidLatitude(lat) {
		vs.add("latitude", KindOutOfRange, "latitude must be between %g and %g", geo.MinLatitude, geo.MaxLatitude)
	}
}

func checkLongitude(vs *violations, lon float64) {
	if !geo.ValidLongitude(lon) {
		vs.add("longitude", KindOutOfRange, "longitude must be between %g and %g", geo.MinLongitude, geo.MaxLongitude)
	}
}

func checkAudioURL(vs *violations, u string) {
	if utf8.RuneCountInString(u) > MaxAudioURLLength {
		vs.add("audio_url", KindTooLong, "audio_url must be at most %d characters", MaxAudioURLLength)
		return
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		vs.add("audio_url", KindInvalidURLScheme, "audio_url must be a valid HTTP(S) URL")
	}
}
