package storage

import (
	"context"

	"github.com/renum/agentstore/pkg/api"
)

// ListOptions controls pagination and ordering for list operations.
type ListOptions struct {
	After string // Cursor: return records after this ID.
	Limit int    // Maximum number of records to return (default 20, max 100).
	Order string // Sort order by creation time: "asc" or "desc" (default "desc").
}

// RecordList holds a paginated list of records.
type RecordList struct {
	Object  string        `json:"object"`
	Data    []*api.Record `json:"data"`
	HasMore bool          `json:"has_more"`
	FirstID string        `json:"first_id"`
	LastID  string        `json:"last_id"`
}

// EntityStore handles persistence of the tenant-scoped entity collections.
// Every operation is scoped to the tenant bound in the context; adapters
// fail with tenancy.ErrContextMissing when no binding is present.
type EntityStore interface {
	// Create persists a new record. Returns ErrConflict if the ID exists.
	Create(ctx context.Context, kind api.Kind, rec *api.Record) error

	// Get retrieves a record by ID within the active tenant's scope.
	Get(ctx context.Context, kind api.Kind, id string) (*api.Record, error)

	// List returns a paginated list of the active tenant's records.
	List(ctx context.Context, kind api.Kind, opts ListOptions) (*RecordList, error)

	// Update replaces the domain payload of an existing record. The tenant
	// identifier is immutable; re-parenting is not supported.
	Update(ctx context.Context, kind api.Kind, rec *api.Record) error

	// Delete removes a record by ID within the active tenant's scope.
	Delete(ctx context.Context, kind api.Kind, id string) error

	// HealthCheck verifies the store connection is functional.
	HealthCheck(ctx context.Context) error

	// Close releases connections and resources.
	Close() error
}

// NormalizeListOptions applies the default and maximum limits shared by all
// adapters.
func NormalizeListOptions(opts ListOptions) ListOptions {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order != "asc" {
		opts.Order = "desc"
	}
	return opts
}
