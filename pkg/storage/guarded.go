package storage

import (
	"context"
	"fmt"

	"github.com/renum/agentstore/pkg/api"
	"github.com/renum/agentstore/pkg/tenancy"
)

// Guarded wraps an EntityStore so that every verb passes through the policy
// guard before reaching the adapter. Domain collaborators receive a Guarded
// store; they never hold the underlying adapter directly.
type Guarded struct {
	next  EntityStore
	guard tenancy.Guard
}

// Ensure Guarded implements EntityStore at compile time.
var _ EntityStore = (*Guarded)(nil)

// Guard wraps the store with the given guard.
func Guard(next EntityStore, guard tenancy.Guard) *Guarded {
	return &Guarded{next: next, guard: guard}
}

// Create authorizes the supplied tenant identifier against the active
// binding, then delegates. The identifier is never substituted.
func (s *Guarded) Create(ctx context.Context, kind api.Kind, rec *api.Record) error {
	if err := validKind(kind); err != nil {
		return err
	}
	if err := s.guard.Authorize(ctx, kind, tenancy.VerbCreate, rec.TenantID); err != nil {
		return err
	}
	return s.next.Create(ctx, kind, rec)
}

// Get requires an active binding; the adapter filters to the active tenant,
// so foreign records surface as ErrNotFound rather than a denial.
func (s *Guarded) Get(ctx context.Context, kind api.Kind, id string) (*api.Record, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(ctx, kind, tenancy.VerbRead, ""); err != nil {
		return nil, err
	}
	return s.next.Get(ctx, kind, id)
}

// List requires an active binding; results contain only the active tenant's
// records.
func (s *Guarded) List(ctx context.Context, kind api.Kind, opts ListOptions) (*RecordList, error) {
	if err := validKind(kind); err != nil {
		return nil, err
	}
	if err := s.guard.Authorize(ctx, kind, tenancy.VerbRead, ""); err != nil {
		return nil, err
	}
	return s.next.List(ctx, kind, opts)
}

// Update authorizes the record's tenant identifier, then delegates. Because
// the adapter scopes the update to the active tenant and the identifier must
// equal the binding, a record can never move between tenants.
func (s *Guarded) Update(ctx context.Context, kind api.Kind, rec *api.Record) error {
	if err := validKind(kind); err != nil {
		return err
	}
	if err := s.guard.Authorize(ctx, kind, tenancy.VerbUpdate, rec.TenantID); err != nil {
		return err
	}
	return s.next.Update(ctx, kind, rec)
}

// Delete requires an active binding; the adapter deletes only within the
// active tenant's scope.
func (s *Guarded) Delete(ctx context.Context, kind api.Kind, id string) error {
	if err := validKind(kind); err != nil {
		return err
	}
	if err := s.guard.Authorize(ctx, kind, tenancy.VerbDelete, ""); err != nil {
		return err
	}
	return s.next.Delete(ctx, kind, id)
}

// HealthCheck delegates to the underlying store.
func (s *Guarded) HealthCheck(ctx context.Context) error {
	return s.next.HealthCheck(ctx)
}

// Close delegates to the underlying store.
func (s *Guarded) Close() error {
	return s.next.Close()
}

func validKind(kind api.Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown entity kind %q", kind)
	}
	return nil
}
