package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/geovoyager/geovoyager/internal/model"
)

// Claim names read from verified tokens.
const (
	ClaimSubject = "sub"
	ClaimEmail   = "email"
	ClaimRole    = "role"
	ClaimExpiry  = "exp"
)

// Configuration errors.
var (
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
	ErrMissingKey           = errors.New("missing verification key")
)

// VerifierConfig holds configuration for token verification.
type VerifierConfig struct {
	// Algorithm is the only accepted "alg" header value (HS256, RS256, ES256, EdDSA, ...).
	Algorithm string
	// Secret is the shared key for HS* algorithms.
	Secret string
	// PublicKeyPEM is the verification key for asymmetric algorithms.
	PublicKeyPEM string
	// Issuer and Audience are checked only when non-empty.
	Issuer   string
	Audience string
	// Leeway tolerates clock skew on exp, nbf and iat.
	Leeway time.Duration
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Verifier turns a raw bearer token into an Identity.
// It is safe for concurrent use.
type Verifier struct {
	parser *jwt.Parser
	key    any
}

// NewVerifier validates the configuration and prepares the verification key.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	alg := strings.TrimSpace(cfg.Algorithm)
	method := jwt.GetSigningMethod(alg)
	if method == nil || alg == "none" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, cfg.Algorithm)
	}

	key, err := verificationKey(method, cfg)
	if err != nil {
		return nil, err
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{alg}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	if cfg.Now != nil {
		opts = append(opts, jwt.WithTimeFunc(cfg.Now))
	}

	return &Verifier{
		parser: jwt.NewParser(opts...),
		key:    key,
	}, nil
}

func verificationKey(method jwt.SigningMethod, cfg VerifierConfig) (any, error) {
	switch method.(type) {
	case *jwt.SigningMethodHMAC:
		if cfg.Secret == "" {
			return nil, fmt.Errorf("%w: JWT secret is required for %s", ErrMissingKey, method.Alg())
		}
		return []byte(cfg.Secret), nil
	}

	if strings.TrimSpace(cfg.PublicKeyPEM) == "" {
		return nil, fmt.Errorf("%w: public key is required for %s", ErrMissingKey, method.Alg())
	}
	pem := []byte(cfg.PublicKeyPEM)

	var (
		key any
		err error
	)
	switch method.(type) {
	case *jwt.SigningMethodRSA, *jwt.SigningMethodRSAPSS:
		key, err = jwt.ParseRSAPublicKeyFromPEM(pem)
	case *jwt.SigningMethodECDSA:
		key, err = jwt.ParseECPublicKeyFromPEM(pem)
	case *jwt.SigningMethodEd25519:
		key, err = jwt.ParseEdPublicKeyFromPEM(pem)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, method.Alg())
	}
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return key, nil
}

// Verify checks the signature first, then the time claims, then the
// required identity claims. Every failure is an *Error.
func (v *Verifier) Verify(raw string) (*model.Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, &Error{Kind: KindMissingToken}
	}

	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	sub, err := requiredString(claims, ClaimSubject)
	if err != nil {
		return nil, err
	}
	role, err := requiredString(claims, ClaimRole)
	if err != nil {
		return nil, err
	}

	id := &model.Identity{Subject: sub, Role: role}

	if raw, ok := claims[ClaimEmail]; ok && raw != nil {
		email, ok := raw.(string)
		if !ok {
			return nil, invalidClaim(ClaimEmail, errors.New("must be a string"))
		}
		id.Email = email
	}

	if exp, _ := claims.GetExpirationTime(); exp != nil {
		id.ExpiresAt = exp.Time
	}
	if iat, _ := claims.GetIssuedAt(); iat != nil {
		id.IssuedAt = iat.Time
	}

	return id, nil
}

// classify maps parser errors onto error kinds. The parser verifies the
// signature before any claim, so a claim error implies a valid signature.
func classify(err error) *Error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return &Error{Kind: KindInvalidSignature, Err: err}
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return &Error{Kind: KindMissingClaim, Claim: ClaimExpiry, Err: err}
	case errors.Is(err, jwt.ErrTokenExpired):
		return &Error{Kind: KindExpired, Err: err}
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return &Error{Kind: KindNotYetValid, Err: err}
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return invalidClaim("iss", err)
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return invalidClaim("aud", err)
	default:
		return invalidClaim("", err)
	}
}

func requiredString(claims jwt.MapClaims, name string) (string, error) {
	raw, ok := claims[name]
	if !ok || raw == nil {
		return "", missingClaim(name)
	}
	s, ok := raw.(string)
	if !ok {
		return "", invalidClaim(name, errors.New("must be a string"))
	}
	if strings.TrimSpace(s) == "" {
		return "", missingClaim(name)
	}
	return s, nil
}
