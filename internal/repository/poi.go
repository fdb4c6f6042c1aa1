package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/geovoyager/geovoyager/internal/model"
)

// Common errors for POI repository operations.
var (
	ErrPOINotFound         = errors.New("poi not found")
	ErrConstraintViolation = errors.New("poi violates a table constraint")
)

// PostgreSQL error code for check_violation.
const pgCheckViolation = "23514"

const poiColumns = `id, title, description, latitude, longitude, audio_url, created_at, updated_at`

// CreatePOI inserts a POI and returns the stored row with its assigned id.
func (r *Repository) CreatePOI(ctx context.Context, poi *model.POI) (*model.POI, error) {
	query := `
		INSERT INTO pois (title, description, latitude, longitude, audio_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + poiColumns

	created, err := scanPOI(r.pool.QueryRow(ctx, query,
		poi.Title,
		poi.Description,
		poi.Latitude,
		poi.Longitude,
		poi.AudioURL,
	))
	if err != nil {
		if isCheckViolation(err) {
			return nil, fmt.Errorf("failed to create poi: %w", ErrConstraintViolation)
		}
		return nil, fmt.Errorf("failed to create poi: %w", err)
	}

	return created, nil
}

// GetPOI retrieves a POI by its id.
func (r *Repository) GetPOI(ctx context.Context, id int64) (*model.POI, error) {
	query := `SELECT ` + poiColumns + ` FROM pois WHERE id = $1`

	poi, err := scanPOI(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPOINotFound
		}
		return nil, fmt.Errorf("failed to get poi by id: %w", err)
	}

	return poi, nil
}

// ListPOIs returns a page of POIs ordered by id.
func (r *Repository) ListPOIs(ctx context.Context, offset, limit int) ([]*model.POI, error) {
	query := `SELECT ` + poiColumns + ` FROM pois ORDER BY id ASC OFFSET $1 LIMIT $2`

	rows, err := r.pool.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pois: %w", err)
	}
	return collectPOIs(rows)
}

// AllPOIs returns every POI ordered by id. It backs the nearby scan.
func (r *Repository) AllPOIs(ctx context.Context) ([]*model.POI, error) {
	query := `SELECT ` + poiColumns + ` FROM pois ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load pois: %w", err)
	}
	return collectPOIs(rows)
}

// UpdatePOI merges patch into the stored POI inside a single transaction.
// The row is locked for the read-merge-write so concurrent patches serialize.
func (r *Repository) UpdatePOI(ctx context.Context, id int64, patch model.POIPatch) (*model.POI, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanPOI(tx.QueryRow(ctx, `SELECT `+poiColumns+` FROM pois WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPOINotFound
		}
		return nil, fmt.Errorf("failed to lock poi: %w", err)
	}

	current.ApplyPatch(patch)

	query := `
		UPDATE pois
		SET title = $2, description = $3, latitude = $4, longitude = $5, audio_url = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + poiColumns

	updated, err := scanPOI(tx.QueryRow(ctx, query,
		id,
		current.Title,
		current.Description,
		current.Latitude,
		current.Longitude,
		current.AudioURL,
	))
	if err != nil {
		if isCheckViolation(err) {
			return nil, fmt.Errorf("failed to update poi: %w", ErrConstraintViolation)
		}
		return nil, fmt.Errorf("failed to update poi: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit poi update: %w", err)
	}

	return updated, nil
}

// DeletePOI permanently removes a POI.
func (r *Repository) DeletePOI(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM pois WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete poi: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrPOINotFound
	}

	return nil
}

// scanPOI scans a single row into a POI model.
func scanPOI(row pgx.Row) (*model.POI, error) {
	var poi model.POI
	err := row.Scan(
		&poi.ID,
		&poi.Title,
		&poi.Description,
		&poi.Latitude,
		&poi.Longitude,
		&poi.AudioURL,
		&poi.CreatedAt,
		&poi.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	poi.CreatedAt = poi.CreatedAt.UTC()
	if poi.UpdatedAt != nil {
		t := poi.UpdatedAt.UTC()
		poi.UpdatedAt = &t
	}
	return &poi, nil
}

func collectPOIs(rows pgx.Rows) ([]*model.POI, error) {
	defer rows.Close()

	pois := make([]*model.POI, 0)
	for rows.Next() {
		poi, err := scanPOI(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan poi: %w", err)
		}
		pois = append(pois, poi)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pois: %w", err)
	}

	return pois, nil
}

// isCheckViolation reports whether err is a PostgreSQL check_violation.
func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgCheckViolation
}
