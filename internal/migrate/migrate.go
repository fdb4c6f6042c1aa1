// Package migrate applies the SQL files under migrations/ to PostgreSQL.
// Applied versions are tracked in the schema_migrations table.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"regexp"
	"sort"
	"strconv"

	"github.com/lib/pq"
)

// advisoryLockID serializes concurrent runners (several replicas starting with AUTO_MIGRATE).
const advisoryLockID int64 = 7310421

var fileNamePattern = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.(up|down)\.sql$`)

// Errors returned while loading migrations.
var (
	ErrDuplicateVersion = errors.New("duplicate migration version")
	ErrMissingUp        = errors.New("migration has no up file")
)

// Migration is one numbered schema change.
type Migration struct {
	Version int64
	Name    string
	Up      string
	Down    string
}

// Load reads every NNN_name.up.sql / NNN_name.down.sql pair in fsys,
// sorted by version. Other files are ignored.
func Load(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	byVersion := make(map[int64]*Migration)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := fileNamePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}

		version, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse version of %s: %w", e.Name(), err)
		}

		body, err := fs.ReadFile(fsys, path.Clean(e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}

		mig, ok := byVersion[version]
		if !ok {
			mig = &Migration{Version: version, Name: m[2]}
			byVersion[version] = mig
		} else if mig.Name != m[2] {
			return nil, fmt.Errorf("%w: %d (%s, %s)", ErrDuplicateVersion, version, mig.Name, m[2])
		}

		if m[3] == "up" {
			mig.Up = string(body)
		} else {
			mig.Down = string(body)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		if mig.Up == "" {
			return nil, fmt.Errorf("%w: %d_%s", ErrMissingUp, mig.Version, mig.Name)
		}
		out = append(out, *mig)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })

	return out, nil
}

// Open returns a database/sql handle backed by lib/pq.
func Open(databaseURL string) (*sql.DB, error) {
	connector, err := pq.NewConnector(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	return sql.OpenDB(connector), nil
}

// Runner applies migrations to a database.
type Runner struct {
	db         *sql.DB
	migrations []Migration
	logger     *slog.Logger
}

// NewRunner loads the migrations in fsys.
func NewRunner(db *sql.DB, fsys fs.FS, logger *slog.Logger) (*Runner, error) {
	migrations, err := Load(fsys)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{db: db, migrations: migrations, logger: logger}, nil
}

// Up applies every pending migration in order and returns how many ran.
func (r *Runner) Up(ctx context.Context) (int, error) {
	conn, release, err := r.lock(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, m := range r.migrations {
		if applied[m.Version] {
			continue
		}
		if err := r.apply(ctx, conn, m, true); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// Down reverts up to steps applied migrations, newest first.
func (r *Runner) Down(ctx context.Context, steps int) (int, error) {
	conn, release, err := r.lock(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	applied, err := appliedVersions(ctx, conn)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := len(r.migrations) - 1; i >= 0 && count < steps; i-- {
		m := r.migrations[i]
		if !applied[m.Version] {
			continue
		}
		if m.Down == "" {
			return count, fmt.Errorf("migration %d_%s has no down file", m.Version, m.Name)
		}
		if err := r.apply(ctx, conn, m, false); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// Version returns the highest applied version, or 0 when none.
func (r *Runner) Version(ctx context.Context) (int64, error) {
	if err := ensureTable(ctx, r.db); err != nil {
		return 0, err
	}
	var v sql.NullInt64
	if err := r.db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v.Int64, nil
}

func (r *Runner) apply(ctx context.Context, conn *sql.Conn, m Migration, up bool) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	defer func() { _ = tx.Rollback() }()

	body, direction := m.Up, "up"
	if !up {
		body, direction = m.Down, "down"
	}

	if _, err := tx.ExecContext(ctx, body); err != nil {
		return fmt.Errorf("apply migration %d_%s %s: %w", m.Version, m.Name, direction, err)
	}

	if up {
		_, err = tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, m.Version, m.Name)
	} else {
		_, err = tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = $1`, m.Version)
	}
	if err != nil {
		return fmt.Errorf("record migration %d: %w", m.Version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}

	r.logger.Info("migration applied",
		slog.Int64("version", m.Version),
		slog.String("name", m.Name),
		slog.String("direction", direction),
	)
	return nil
}

// lock pins a connection and takes the runner's advisory lock on it.
func (r *Runner) lock(ctx context.Context) (*sql.Conn, func(), error) {
	if err := ensureTable(ctx, r.db); err != nil {
		return nil, nil, err
	}

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("acquire connection: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, advisoryLockID); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("acquire migration lock: %w", err)
	}

	release := func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, advisoryLockID)
		_ = conn.Close()
	}
	return conn, release, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func ensureTable(ctx context.Context, db execer) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    BIGINT PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	return nil
}

func appliedVersions(ctx context.Context, conn *sql.Conn) (map[int64]bool, error) {
	rows, err := conn.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int64]bool)
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}
