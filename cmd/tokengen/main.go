// Command tokengen mints HMAC-signed bearer tokens for local development
// and smoke tests. Production tokens come from the identity provider.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/oklog/ulid/v2"

	"github.com/geovoyager/geovoyager/internal/auth"
)

type output struct {
	Token     string    `json:"token"`
	TokenID   string    `json:"token_id"`
	Subject   string    `json:"subject"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

func main() {
	_ = godotenv.Load(".env")

	if err := run(os.Args[1:], os.Stdout, time.Now()); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer, now time.Time) error {
	fs := flag.NewFlagSet("tokengen", flag.ContinueOnError)
	var (
		secret    = fs.String("secret", os.Getenv("JWT_SECRET"), "Shared HMAC secret")
		algorithm = fs.String("alg", envOr("JWT_ALGORITHM", "HS256"), "Signing algorithm (HS256, HS384, HS512)")
		subject   = fs.String("sub", "dev-user", "Token subject")
		email     = fs.String("email", "", "Email claim")
		role      = fs.String("role", "editor", "Role claim")
		issuer    = fs.String("iss", os.Getenv("JWT_ISSUER"), "Issuer claim")
		audience  = fs.String("aud", os.Getenv("JWT_AUDIENCE"), "Audience claim")
		ttl       = fs.Duration("ttl", time.Hour, "Token lifetime")
		format    = fs.String("format", "plain", "Output format: plain or json")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *secret == "" {
		return errors.New("JWT_SECRET or -secret is required")
	}
	if *ttl <= 0 {
		return errors.New("-ttl must be positive")
	}

	id := ulid.Make().String()
	token, err := auth.SignHMAC(*algorithm, *secret, auth.TokenSpec{
		Subject:  *subject,
		Email:    *email,
		Role:     *role,
		ID:       id,
		Issuer:   *issuer,
		Audience: *audience,
		TTL:      *ttl,
	}, now)
	if err != nil {
		return err
	}

	switch *format {
	case "json":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(output{
			Token:     token,
			TokenID:   id,
			Subject:   *subject,
			Role:      *role,
			ExpiresAt: now.Add(*ttl).UTC().Truncate(time.Second),
		})
	case "plain":
		_, err := fmt.Fprintln(stdout, token)
		return err
	default:
		return fmt.Errorf("unknown format %q", *format)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
