package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSpec describes a token to mint.
type TokenSpec struct {
	Subject  string
	Email    string
	Role     string
	ID       string
	Issuer   string
	Audience string
	TTL      time.Duration
}

// SignHMAC mints a token with a shared secret. It is used by the development
// token generator and by tests; production tokens come from the identity provider.
func SignHMAC(alg, secret string, spec TokenSpec, now time.Time) (string, error) {
	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return "", fmt.Errorf("%w: %q is not an HMAC algorithm", ErrUnsupportedAlgorithm, alg)
	}
	if secret == "" {
		return "", fmt.Errorf("%w: JWT secret is required for %s", ErrMissingKey, alg)
	}

	claims := jwt.MapClaims{
		ClaimSubject: spec.Subject,
		ClaimRole:    spec.Role,
		"iat":        now.Unix(),
		ClaimExpiry:  now.Add(spec.TTL).Unix(),
	}
	if spec.Email != "" {
		claims[ClaimEmail] = spec.Email
	}
	if spec.ID != "" {
		claims["jti"] = spec.ID
	}
	if spec.Issuer != "" {
		claims["iss"] = spec.Issuer
	}
	if spec.Audience != "" {
		claims["aud"] = spec.Audience
	}

	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
