package auth

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated matches every *Error via errors.Is.
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrorKind classifies why a token was rejected.
type ErrorKind string

const (
	KindMissingToken     ErrorKind = "MissingToken"
	KindInvalidSignature ErrorKind = "InvalidSignature"
	KindExpired          ErrorKind = "Expired"
	KindNotYetValid      ErrorKind = "NotYetValid"
	KindMissingClaim     ErrorKind = "MissingClaim"
	KindInvalidClaim     ErrorKind = "InvalidClaim"
)

// Error is returned by Verifier.Verify. Claim names the offending claim for
// KindMissingClaim and KindInvalidClaim.
type Error struct {
	Kind  ErrorKind
	Claim string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason(), e.Err)
	}
	return e.Reason()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrUnauthenticated) succeed.
func (e *Error) Is(target error) bool {
	return target == ErrUnauthenticated
}

// Reason is a short message safe to return to clients.
func (e *Error) Reason() string {
	switch e.Kind {
	case KindMissingToken:
		return "Missing bearer token"
	case KindInvalidSignature:
		return "Invalid token"
	case KindExpired:
		return "Token has expired"
	case KindNotYetValid:
		return "Token is not valid yet"
	case KindMissingClaim:
		return "Token is missing required claim: " + e.Claim
	case KindInvalidClaim:
		return "Token has invalid claim: " + e.Claim
	default:
		return "Could not validate credentials"
	}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var aerr *Error
	return errors.As(err, &aerr) && aerr.Kind == kind
}

func missingClaim(claim string) *Error {
	return &Error{Kind: KindMissingClaim, Claim: claim}
}

func invalidClaim(claim string, err error) *Error {
	return &Error{Kind: KindInvalidClaim, Claim: claim, Err: err}
}
