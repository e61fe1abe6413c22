// Package memory provides an in-memory implementation of storage.EntityStore
// for testing and lightweight deployments. Records are stored in memory and
// lost when the process restarts.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/renum/agentstore/pkg/api"
	"github.com/renum/agentstore/pkg/storage"
	"github.com/renum/agentstore/pkg/tenancy"
)

// Store is an in-memory EntityStore. All operations fail closed when no
// tenant is bound in the context.
type Store struct {
	mu    sync.RWMutex
	kinds map[api.Kind]map[string]*api.Record
}

// Ensure Store implements storage.EntityStore at compile time.
var _ storage.EntityStore = (*Store)(nil)

// New creates an empty in-memory store with one collection per entity kind.
func New() *Store {
	kinds := make(map[api.Kind]map[string]*api.Record, len(api.Kinds()))
	for _, k := range api.Kinds() {
		kinds[k] = make(map[string]*api.Record)
	}
	return &Store{kinds: kinds}
}

// Create persists a record. The write passes the storage-boundary check
// immediately before commit: a missing or mismatched tenant identifier
// aborts the write with nothing applied.
func (s *Store) Create(ctx context.Context, kind api.Kind, rec *api.Record) error {
	active, err := tenancy.Active(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.kinds[kind]
	if _, exists := coll[rec.ID]; exists {
		return storage.ErrConflict
	}

	if err := storage.CheckWrite(active, rec, kind); err != nil {
		return err
	}

	stored := rec.Clone()
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	coll[rec.ID] = stored

	rec.CreatedAt = stored.CreatedAt
	rec.UpdatedAt = stored.UpdatedAt
	return nil
}

// Get retrieves a record by ID. Records of other tenants report ErrNotFound.
func (s *Store) Get(ctx context.Context, kind api.Kind, id string) (*api.Record, error) {
	active, err := tenancy.Active(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.kinds[kind][id]
	if !ok || rec.TenantID != active {
		return nil, storage.ErrNotFound
	}
	return rec.Clone(), nil
}

// List returns the active tenant's records with cursor-based pagination,
// ordered by creation time (newest first by default).
func (s *Store) List(ctx context.Context, kind api.Kind, opts storage.ListOptions) (*storage.RecordList, error) {
	active, err := tenancy.Active(ctx)
	if err != nil {
		return nil, err
	}
	opts = storage.NormalizeListOptions(opts)

	s.mu.RLock()
	var matches []*api.Record
	for _, rec := range s.kinds[kind] {
		if rec.TenantID != active {
			continue
		}
		matches = append(matches, rec.Clone())
	}
	s.mu.RUnlock()

	asc := opts.Order == "asc"
	sort.Slice(matches, func(i, j int) bool {
		if asc {
			if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
				return matches[i].CreatedAt.Before(matches[j].CreatedAt)
			}
			return matches[i].ID < matches[j].ID
		}
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID > matches[j].ID
	})

	if opts.After != "" {
		idx := -1
		for i, rec := range matches {
			if rec.ID == opts.After {
				idx = i
				break
			}
		}
		if idx >= 0 {
			matches = matches[idx+1:]
		} else {
			matches = nil
		}
	}

	hasMore := len(matches) > opts.Limit
	if hasMore {
		matches = matches[:opts.Limit]
	}

	result := &storage.RecordList{
		Object:  "list",
		Data:    matches,
		HasMore: hasMore,
	}
	if len(matches) > 0 {
		result.FirstID = matches[0].ID
		result.LastID = matches[len(matches)-1].ID
	}
	if result.Data == nil {
		result.Data = []*api.Record{}
	}

	return result, nil
}

// Update replaces the domain payload of an existing record within the active
// tenant's scope. The tenant identifier is immutable after creation.
func (s *Store) Update(ctx context.Context, kind api.Kind, rec *api.Record) error {
	active, err := tenancy.Active(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.kinds[kind][rec.ID]
	if !ok || existing.TenantID != active {
		return storage.ErrNotFound
	}

	if err := storage.CheckWrite(active, rec, kind); err != nil {
		return err
	}
	if rec.TenantID != existing.TenantID {
		// Re-parenting is not a supported operation.
		return tenancy.ErrTenantMismatch
	}

	updated := rec.Clone()
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	s.kinds[kind][rec.ID] = updated

	rec.CreatedAt = updated.CreatedAt
	rec.UpdatedAt = updated.UpdatedAt
	return nil
}

// Delete removes a record by ID within the active tenant's scope.
func (s *Store) Delete(ctx context.Context, kind api.Kind, id string) error {
	active, err := tenancy.Active(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.kinds[kind][id]
	if !ok || rec.TenantID != active {
		return storage.ErrNotFound
	}

	delete(s.kinds[kind], id)
	return nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
