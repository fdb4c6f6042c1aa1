// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Configuration errors.
var (
	ErrMissingJWTSecret    = errors.New("JWT_SECRET is required for HMAC algorithms")
	ErrWeakJWTSecret       = errors.New("JWT_SECRET must be at least 32 bytes")
	ErrMissingJWTPublicKey = errors.New("JWT_PUBLIC_KEY is required for asymmetric algorithms")
	ErrUnsupportedJWTAlg   = errors.New("unsupported JWT_ALGORITHM")
	ErrInvalidAPIPrefix    = errors.New("API_PREFIX must start with / and not end with /")
	ErrInvalidTrustedProxy = errors.New("TRUSTED_PROXIES entries must be IPs or CIDRs")
)

// minHMACSecretLength matches the key size of HS256.
const minHMACSecretLength = 32

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv         string `env:"APP_ENV" envDefault:"development"`
	AppPort        int    `env:"APP_PORT" envDefault:"8080"`
	ServiceName    string `env:"SERVICE_NAME" envDefault:"GeoVoyager"`
	ServiceVersion string `env:"SERVICE_VERSION" envDefault:"0.1.0"`
	APIPrefix      string `env:"API_PREFIX" envDefault:"/api/v1"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"2"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"false"`

	// Cache (Redis). Optional; without it POI reads go straight to the
	// database and rate limiting is disabled.
	RedisURL      string        `env:"REDIS_URL"`
	RedisPoolSize int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	POICacheTTL   time.Duration `env:"POI_CACHE_TTL" envDefault:"10m"`

	// Token verification
	JWTAlgorithm string        `env:"JWT_ALGORITHM" envDefault:"HS256"`
	JWTSecret    string        `env:"JWT_SECRET"`
	JWTPublicKey string        `env:"JWT_PUBLIC_KEY"`
	JWTIssuer    string        `env:"JWT_ISSUER"`
	JWTAudience  string        `env:"JWT_AUDIENCE"`
	JWTLeeway    time.Duration `env:"JWT_LEEWAY" envDefault:"0s"`

	// Roles allowed to create, update and delete POIs. Empty means any
	// authenticated caller.
	POIWriteRoles []string `env:"POI_WRITE_ROLES" envSeparator:","`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting (requires Redis)
	RateLimitAPIEnabled bool `env:"RATE_LIMIT_API_ENABLED" envDefault:"true"`
	RateLimitAPIRPM     int  `env:"RATE_LIMIT_API_RPM" envDefault:"600"`
	RateLimitAPIBurst   int  `env:"RATE_LIMIT_API_BURST" envDefault:"50"`
	RateLimitIPEnabled  bool `env:"RATE_LIMIT_IP_ENABLED" envDefault:"true"`
	RateLimitIPRPS      int  `env:"RATE_LIMIT_IP_RPS" envDefault:"50"`
	RateLimitIPBurst    int  `env:"RATE_LIMIT_IP_BURST" envDefault:"100"`

	// Reverse proxies whose X-Forwarded-For / X-Real-IP headers are honored.
	// IPs or CIDRs. Empty means the TCP peer is always the client.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// WriteRoles returns the trimmed, non-empty write roles.
func (c *Config) WriteRoles() []string {
	return splitList(strings.Join(c.POIWriteRoles, ","))
}

// TrustedProxyPrefixes parses TRUSTED_PROXIES. A bare IP becomes a
// single-address prefix.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	entries := splitList(strings.Join(c.TrustedProxies, ","))
	prefixes := make([]netip.Prefix, 0, len(entries))

	for _, entry := range entries {
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidTrustedProxy, entry)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		ip, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTrustedProxy, entry)
		}
		ip = ip.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(ip, ip.BitLen()))
	}

	return prefixes, nil
}

// CacheEnabled reports whether a Redis URL was configured.
func (c *Config) CacheEnabled() bool {
	return c.RedisURL != ""
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.APIPrefix, "/") || (len(c.APIPrefix) > 1 && strings.HasSuffix(c.APIPrefix, "/")) {
		return fmt.Errorf("%w: %q", ErrInvalidAPIPrefix, c.APIPrefix)
	}

	switch {
	case strings.HasPrefix(c.JWTAlgorithm, "HS"):
		if c.JWTSecret == "" {
			return ErrMissingJWTSecret
		}
		if len(c.JWTSecret) < minHMACSecretLength && c.IsProduction() {
			return ErrWeakJWTSecret
		}
	case strings.HasPrefix(c.JWTAlgorithm, "RS"),
		strings.HasPrefix(c.JWTAlgorithm, "PS"),
		strings.HasPrefix(c.JWTAlgorithm, "ES"),
		c.JWTAlgorithm == "EdDSA":
		if c.JWTPublicKey == "" {
			return ErrMissingJWTPublicKey
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedJWTAlg, c.JWTAlgorithm)
	}

	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return err
	}

	return nil
}

// Load parses environment variables and returns a validated Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
