// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geovoyager/geovoyager/internal/cache"
	"github.com/geovoyager/geovoyager/internal/geo"
	"github.com/geovoyager/geovoyager/internal/metrics"
	"github.com/geovoyager/geovoyager/internal/model"
	"github.com/geovoyager/geovoyager/internal/repository"
)

// Service errors.
var (
	ErrPOINotFound       = errors.New("poi not found")
	ErrInvalidCoordinate = errors.New("coordinate out of range")
	ErrInvalidRadius     = errors.New("radius out of range")
	ErrInvalidPagination = errors.New("invalid pagination parameters")
	ErrPersistence       = errors.New("persistence failure")
)

// List paging bounds.
const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// POIStore is the persistence contract for POIs. Implementations must be
// safe for concurrent use and return repository.ErrPOINotFound for unknown ids.
type POIStore interface {
	CreatePOI(ctx context.Context, poi *model.POI) (*model.POI, error)
	GetPOI(ctx context.Context, id int64) (*model.POI, error)
	ListPOIs(ctx context.Context, offset, limit int) ([]*model.POI, error)
	AllPOIs(ctx context.Context) ([]*model.POI, error)
	UpdatePOI(ctx context.Context, id int64, patch model.POIPatch) (*model.POI, error)
	DeletePOI(ctx context.Context, id int64) error
}

// POICache is an optional read-through cache in front of the store.
// Writers bump a per-id generation; fills carry the generation their lookup
// saw and are dropped if a write happened in between.
type POICache interface {
	LookupPOI(ctx context.Context, id int64) (*cache.POILookup, error)
	FillPOI(ctx context.Context, poi *model.POI, version int64) (bool, error)
	FillNotFound(ctx context.Context, id int64, version int64) (bool, error)
	InvalidatePOI(ctx context.Context, id int64) error
	TombstonePOI(ctx context.Context, id int64) error
}

// POIService handles POI business logic.
type POIService struct {
	store   POIStore
	cache   POICache
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewPOIService creates a new POIService. poiCache may be nil.
func NewPOIService(store POIStore, poiCache POICache, recorder metrics.Recorder, logger *slog.Logger) *POIService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &POIService{
		store:   store,
		cache:   poiCache,
		metrics: recorder,
		logger:  logger,
	}
}

// CreatePOI validates the input and stores a new POI.
func (s *POIService) CreatePOI(ctx context.Context, input model.POIInput) (*model.POI, error) {
	if err := model.ValidateCreate(input); err != nil {
		return nil, err
	}

	created, err := s.store.CreatePOI(ctx, model.NewPOI(input))
	if err != nil {
		return nil, s.storeError("create", err)
	}

	s.metrics.IncPOICreated()

	// A lookup of this id before it existed may have left a negative entry.
	s.invalidate(ctx, created.ID)

	s.logger.Info("poi_created",
		slog.Int64("poi_id", created.ID),
		slog.String("title", created.Title),
	)

	return created, nil
}

// GetPOI retrieves a POI by id, cache first when a cache is configured.
func (s *POIService) GetPOI(ctx context.Context, id int64) (*model.POI, error) {
	var (
		version int64
		fill    bool
	)

	if s.cache != nil {
		lookup, err := s.cache.LookupPOI(ctx, id)
		switch {
		case err != nil:
			s.logger.Warn("poi cache read failed", slog.Int64("poi_id", id), slog.String("error", err.Error()))
		case lookup.Hit():
			s.metrics.IncPOICacheHit()
			if lookup.NotFound {
				return nil, ErrPOINotFound
			}
			return lookup.POI, nil
		default:
			s.metrics.IncPOICacheMiss()
			version, fill = lookup.Version, true
		}
	}

	poi, err := s.store.GetPOI(ctx, id)
	if err != nil {
		if fill && errors.Is(err, repository.ErrPOINotFound) {
			s.fill(id, func() (bool, error) { return s.cache.FillNotFound(ctx, id, version) })
		}
		return nil, s.storeError("get", err)
	}

	if fill {
		s.fill(id, func() (bool, error) { return s.cache.FillPOI(ctx, poi, version) })
	}

	return poi, nil
}

// ListPOIs returns up to limit POIs after skipping skip, ordered by id.
func (s *POIService) ListPOIs(ctx context.Context, skip, limit int) ([]*model.POI, error) {
	if skip < 0 {
		return nil, fmt.Errorf("%w: skip must be >= 0", ErrInvalidPagination)
	}
	if limit < 1 || limit > MaxListLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidPagination, MaxListLimit)
	}

	pois, err := s.store.ListPOIs(ctx, skip, limit)
	if err != nil {
		return nil, s.storeError("list", err)
	}
	return pois, nil
}

// UpdatePOI validates the patch and applies it to the stored POI.
// Fields absent from the patch keep their stored values.
func (s *POIService) UpdatePOI(ctx context.Context, id int64, patch model.POIPatch) (*model.POI, error) {
	if err := model.ValidatePatch(patch); err != nil {
		return nil, err
	}

	updated, err := s.store.UpdatePOI(ctx, id, patch)
	if err != nil {
		return nil, s.storeError("update", err)
	}

	s.metrics.IncPOIUpdated()
	s.invalidate(ctx, id)

	s.logger.Info("poi_updated", slog.Int64("poi_id", id))

	return updated, nil
}

// DeletePOI permanently removes a POI.
func (s *POIService) DeletePOI(ctx context.Context, id int64) error {
	if err := s.store.DeletePOI(ctx, id); err != nil {
		return s.storeError("delete", err)
	}

	s.metrics.IncPOIDeleted()

	if s.cache != nil {
		if err := s.cache.TombstonePOI(ctx, id); err != nil {
			s.logger.Warn("poi cache tombstone failed", slog.Int64("poi_id", id), slog.String("error", err.Error()))
		}
	}

	s.logger.Info("poi_deleted", slog.Int64("poi_id", id))

	return nil
}

// FindNearby returns every POI within radiusKm of (lat, lon), in store
// order. The whole set is scanned; there is no spatial index.
func (s *POIService) FindNearby(ctx context.Context, lat, lon, radiusKm float64) ([]*model.POI, error) {
	if !geo.ValidLatitude(lat) || !geo.ValidLongitude(lon) {
		return nil, ErrInvalidCoordinate
	}
	if !geo.ValidRadius(radiusKm) {
		return nil, ErrInvalidRadius
	}

	start := time.Now()

	candidates, err := s.store.AllPOIs(ctx)
	if err != nil {
		return nil, s.storeError("nearby", err)
	}

	matches := make([]*model.POI, 0)
	for _, p := range candidates {
		if geo.WithinRadius(lat, lon, p.Latitude, p.Longitude, radiusKm) {
			matches = append(matches, p)
		}
	}

	s.metrics.ObserveNearbyQuery(time.Since(start), len(candidates), len(matches))

	return matches, nil
}

func (s *POIService) invalidate(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePOI(ctx, id); err != nil {
		s.logger.Warn("poi cache invalidation failed", slog.Int64("poi_id", id), slog.String("error", err.Error()))
	}
}

// fill runs a read-through write. A rejected fill means a writer got there
// first and is not an error.
func (s *POIService) fill(id int64, write func() (bool, error)) {
	written, err := write()
	if err != nil {
		s.logger.Warn("poi cache fill failed", slog.Int64("poi_id", id), slog.String("error", err.Error()))
		return
	}
	if !written {
		s.logger.Debug("stale poi cache fill skipped", slog.Int64("poi_id", id))
	}
}

// storeError maps store failures onto service errors. Context errors are
// returned unchanged so cancellation is not reported as a storage fault.
func (s *POIService) storeError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrPOINotFound):
		return ErrPOINotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %s poi: %w", ErrPersistence, op, err)
	}
}
