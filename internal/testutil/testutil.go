package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/geovoyager/geovoyager/internal/auth"
	"github.com/geovoyager/geovoyager/internal/model"
)

// Token settings shared by handler and middleware tests.
const (
	TestJWTAlgorithm = "HS256"
	TestJWTSecret    = "geovoyager-test-secret-0123456789abcdef"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 420420

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetPOIsSchema drops and recreates the pois table for tests.
func ResetPOIsSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return resetSchema(ctx, pool, "000001_pois")
}

func resetSchema(ctx context.Context, pool *pgxpool.Pool, migration string) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	downSQL, err := os.ReadFile(filepath.Join(root, "migrations", migration+".down.sql"))
	if err != nil {
		return fmt.Errorf("read %s down migration: %w", migration, err)
	}
	if _, err := pool.Exec(ctx, string(downSQL)); err != nil {
		return fmt.Errorf("apply %s down migration: %w", migration, err)
	}

	upSQL, err := os.ReadFile(filepath.Join(root, "migrations", migration+".up.sql"))
	if err != nil {
		return fmt.Errorf("read %s up migration: %w", migration, err)
	}
	if _, err := pool.Exec(ctx, string(upSQL)); err != nil {
		return fmt.Errorf("apply %s up migration: %w", migration, err)
	}

	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestPOI creates an unsaved POI with sensible defaults.
func NewTestPOI(t testing.TB, title string, lat, lon float64) *model.POI {
	t.Helper()
	desc := "Test point " + title
	audio := "https://storage.example.com/audio/test.mp3"
	return &model.POI{
		Title:       title,
		Description: &desc,
		Latitude:    lat,
		Longitude:   lon,
		AudioURL:    &audio,
	}
}

// NewTestVerifier returns a verifier that accepts tokens from SignToken.
func NewTestVerifier(t testing.TB) *auth.Verifier {
	t.Helper()
	v, err := auth.NewVerifier(auth.VerifierConfig{
		Algorithm: TestJWTAlgorithm,
		Secret:    TestJWTSecret,
	})
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	return v
}

// SignToken mints a valid one-hour token for subject with the given role.
func SignToken(t testing.TB, subject, role string) string {
	t.Helper()
	token, err := auth.SignHMAC(TestJWTAlgorithm, TestJWTSecret, auth.TokenSpec{
		Subject: subject,
		Email:   subject + "@example.com",
		Role:    role,
		TTL:     time.Hour,
	}, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("SignToken failed: %v", err)
	}
	return token
}

// SignExpiredToken mints a token that expired an hour ago.
func SignExpiredToken(t testing.TB, subject, role string) string {
	t.Helper()
	token, err := auth.SignHMAC(TestJWTAlgorithm, TestJWTSecret, auth.TokenSpec{
		Subject: subject,
		Role:    role,
		TTL:     time.Hour,
	}, time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("SignExpiredToken failed: %v", err)
	}
	return token
}
