package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geovoyager/geovoyager/internal/model"
)

// MemoryStore is an in-process POI store with the same contract as the
// PostgreSQL store. It backs unit tests of the layers above the database.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	pois   map[int64]*model.POI
	now    func() time.Time

	// Err, when set, is returned by every operation.
	Err error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pois: make(map[int64]*model.POI),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// CreatePOI stores a copy of poi with a fresh id.
func (m *MemoryStore) CreatePOI(ctx context.Context, poi *model.POI) (*model.POI, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	stored := poi.Clone()
	stored.ID = m.nextID
	stored.CreatedAt = m.now()
	stored.UpdatedAt = nil
	m.pois[stored.ID] = stored

	return stored.Clone(), nil
}

// GetPOI returns a copy of the POI with the given id.
func (m *MemoryStore) GetPOI(ctx context.Context, id int64) (*model.POI, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	poi, ok := m.pois[id]
	if !ok {
		return nil, ErrPOINotFound
	}
	return poi.Clone(), nil
}

// ListPOIs returns a page of POIs ordered by id.
func (m *MemoryStore) ListPOIs(ctx context.Context, offset, limit int) ([]*model.POI, error) {
	all, err := m.AllPOIs(ctx)
	if err != nil {
		return nil, err
	}
	if offset >= len(all) {
		return []*model.POI{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// AllPOIs returns every POI ordered by id.
func (m *MemoryStore) AllPOIs(ctx context.Context) ([]*model.POI, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.POI, 0, len(m.pois))
	for _, p := range m.pois {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdatePOI merges patch into the stored POI atomically.
func (m *MemoryStore) UpdatePOI(ctx context.Context, id int64, patch model.POIPatch) (*model.POI, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.pois[id]
	if !ok {
		return nil, ErrPOINotFound
	}

	next := current.Clone()
	next.ApplyPatch(patch)
	now := m.now()
	next.UpdatedAt = &now
	m.pois[id] = next

	return next.Clone(), nil
}

// DeletePOI removes a POI.
func (m *MemoryStore) DeletePOI(ctx context.Context, id int64) error {
	if err := m.check(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.pois[id]; !ok {
		return ErrPOINotFound
	}
	delete(m.pois, id)
	return nil
}

// Len returns the number of stored POIs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pois)
}

func (m *MemoryStore) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.Err
}
