package model

import "time"

// Identity is the caller derived from a verified bearer token.
// It lives only for the duration of a request and is never persisted.
type Identity struct {
	Subject   string
	Email     string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HasRole reports whether the identity carries any of the given roles.
func (i *Identity) HasRole(roles ...string) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}
