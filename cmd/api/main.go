// Package main is the entrypoint for the GeoVoyager API server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/geovoyager/geovoyager/internal/auth"
	"github.com/geovoyager/geovoyager/internal/cache"
	"github.com/geovoyager/geovoyager/internal/config"
	"github.com/geovoyager/geovoyager/internal/handler"
	"github.com/geovoyager/geovoyager/internal/metrics"
	"github.com/geovoyager/geovoyager/internal/middleware"
	"github.com/geovoyager/geovoyager/internal/migrate"
	"github.com/geovoyager/geovoyager/internal/repository"
	"github.com/geovoyager/geovoyager/internal/server"
	"github.com/geovoyager/geovoyager/internal/service"
	"github.com/geovoyager/geovoyager/migrations"
)

func main() {
	_ = godotenv.Load(".env")

	// Initialize context
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	if cfg.AutoMigrate {
		if err := runMigrations(ctx, cfg, logger); err != nil {
			logger.Error("failed to apply migrations", slog.String("error", sanitizeError(err, cfg.DatabaseURL)))
			os.Exit(1)
		}
	}

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Initialize cache. Redis is optional; without it reads go straight to
	// PostgreSQL and rate limiting is off.
	var cacheClient *cache.Cache
	if cfg.CacheEnabled() {
		cacheClient, err = cache.New(ctx, cfg.RedisURL, cache.Options{
			PoolSize: cfg.RedisPoolSize,
			POITTL:   cfg.POICacheTTL,
		})
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			repo.Close()
			os.Exit(1)
		}
		logger.Info("connected to Redis")
	} else {
		logger.Warn("REDIS_URL not set, POI cache and rate limiting disabled")
	}

	verifier, err := auth.NewVerifier(auth.VerifierConfig{
		Algorithm:    cfg.JWTAlgorithm,
		Secret:       cfg.JWTSecret,
		PublicKeyPEM: cfg.JWTPublicKey,
		Issuer:       cfg.JWTIssuer,
		Audience:     cfg.JWTAudience,
		Leeway:       cfg.JWTLeeway,
	})
	if err != nil {
		logger.Error("failed to initialize token verifier", "error", err)
		repo.Close()
		os.Exit(1)
	}

	metricsRecorder := metrics.NewPrometheus()

	r := setupRouter(routerDeps{
		cfg:      cfg,
		logger:   logger,
		repo:     repo,
		cache:    cacheClient,
		verifier: verifier,
		metrics:  metricsRecorder,
	})

	// Create and run server
	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	srv.OnShutdown("postgres", func(ctx context.Context) error {
		repo.Close()
		return nil
	})
	if cacheClient != nil {
		srv.OnShutdown("redis", func(ctx context.Context) error {
			return cacheClient.Close()
		})
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"api_prefix", cfg.APIPrefix,
		"env", cfg.AppEnv,
		"version", cfg.ServiceVersion,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// runMigrations applies pending schema migrations before the pool opens.
func runMigrations(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := migrate.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	runner, err := migrate.NewRunner(db, migrations.FS, logger)
	if err != nil {
		return err
	}
	applied, err := runner.Up(ctx)
	if err != nil {
		return err
	}
	logger.Info("migrations applied", "count", applied)
	return nil
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// routerDeps collects what setupRouter wires together. repo and cache may be
// nil in tests.
type routerDeps struct {
	cfg      *config.Config
	logger   *slog.Logger
	repo     *repository.Repository
	store    service.POIStore
	cache    *cache.Cache
	verifier middleware.TokenVerifier
	metrics  *metrics.PrometheusRecorder
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(d routerDeps) *chi.Mux {
	cfg, logger := d.cfg, d.logger

	// Typed nil pointers must not leak into the interfaces below.
	var (
		dbChecker    handler.HealthChecker
		cacheChecker handler.HealthChecker
		poiCache     service.POICache
		limiter      middleware.RateLimiter
	)
	store := d.store
	if d.repo != nil {
		dbChecker = d.repo
		if store == nil {
			store = d.repo
		}
	}
	if d.cache != nil {
		cacheChecker = d.cache
		poiCache = d.cache
		limiter = d.cache
	}

	poiService := service.NewPOIService(store, poiCache, d.metrics, logger)

	h := handler.New(cfg.ServiceName, cfg.ServiceVersion)
	healthHandler := handler.NewHealthHandler(dbChecker, cacheChecker, cfg.ServiceVersion)
	poiHandler := handler.NewPOIHandler(poiService, logger)
	identityHandler := handler.NewIdentityHandler()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	// Already validated by config.Load.
	trustedProxies, _ := cfg.TrustedProxyPrefixes()

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP(trustedProxies))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger, cfg.IsDevelopment()))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	// Health checks, metrics and service info (no auth required)
	r.Get("/", h.Root)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Method(http.MethodGet, "/metrics", d.metrics.Handler())

	authCfg := middleware.AuthConfig{
		Logger:   logger,
		Verifier: d.verifier,
		Metrics:  d.metrics,
	}

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:               logger,
		Limiter:              limiter,
		Metrics:              d.metrics,
		APIEnabled:           cfg.RateLimitAPIEnabled,
		APIRequestsPerMinute: cfg.RateLimitAPIRPM,
		APIBurst:             cfg.RateLimitAPIBurst,
		IPEnabled:            cfg.RateLimitIPEnabled,
		IPRPS:                cfg.RateLimitIPRPS,
		IPBurst:              cfg.RateLimitIPBurst,
	}

	writeRoles := cfg.WriteRoles()

	r.Route(cfg.APIPrefix, func(r chi.Router) {
		r.Get("/health", healthHandler.Health)
		r.Get("/health/db", healthHandler.HealthDB)

		r.Group(func(r chi.Router) {
			// IP throttling runs before auth so token guessing is bounded too.
			r.Use(middleware.RateLimitIP(rateLimitCfg))
			r.Use(middleware.Auth(authCfg))
			r.Use(middleware.RateLimitAPI(rateLimitCfg))

			r.Get("/me", identityHandler.Me)
			r.Get("/auth/me", identityHandler.Me)

			r.Route("/pois", func(r chi.Router) {
				r.Get("/", poiHandler.List)
				r.Get("/nearby", poiHandler.Nearby)
				r.Get("/{id}", poiHandler.Get)
				r.With(middleware.RequireRole(writeRoles...)).Post("/", poiHandler.Create)
				r.With(middleware.RequireRole(writeRoles...)).Put("/{id}", poiHandler.Update)
				r.With(middleware.RequireRole(writeRoles...)).Delete("/{id}", poiHandler.Delete)
			})
		})
	})

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
