package tenancy

import (
	"context"
	"fmt"

	"github.com/renum/agentstore/pkg/api"
	"github.com/renum/agentstore/pkg/observability"
)

// Verb is one of the four gated entity operations.
type Verb string

const (
	VerbCreate Verb = "create"
	VerbRead   Verb = "read"
	VerbUpdate Verb = "update"
	VerbDelete Verb = "delete"
)

// Guard authorizes entity operations against the active tenant binding.
// recordTenant is the tenant identifier carried by the record for create and
// update; it is empty for read and delete, where the storage adapter filters
// by the active tenant instead.
type Guard interface {
	Authorize(ctx context.Context, kind api.Kind, verb Verb, recordTenant string) error
}

// PolicyGuard implements Guard with one equality predicate shared by all
// entity kinds and verbs. It never mutates the binding; a denied operation
// leaves no side effects.
type PolicyGuard struct{}

// NewPolicyGuard returns the standard guard.
func NewPolicyGuard() *PolicyGuard {
	return &PolicyGuard{}
}

// Authorize checks the operation against the active binding.
//
//   - No binding: ErrContextMissing, regardless of verb. Fails closed.
//   - create/update with an empty record tenant: ErrTenantIdentifierMissing.
//   - create/update with a record tenant different from the active tenant:
//     ErrTenantMismatch. The supplied identifier is never coerced.
//   - read/delete: allowed once a binding exists; the adapter scopes the
//     operation to the active tenant so foreign rows stay invisible.
func (g *PolicyGuard) Authorize(ctx context.Context, kind api.Kind, verb Verb, recordTenant string) error {
	active, err := Active(ctx)
	if err != nil {
		observability.GuardDecisionsTotal.WithLabelValues(string(kind), string(verb), "deny_unbound").Inc()
		return err
	}

	switch verb {
	case VerbCreate, VerbUpdate:
		if recordTenant == "" {
			observability.GuardDecisionsTotal.WithLabelValues(string(kind), string(verb), "deny_missing_id").Inc()
			return ErrTenantIdentifierMissing
		}
		if recordTenant != active {
			observability.GuardDecisionsTotal.WithLabelValues(string(kind), string(verb), "deny_mismatch").Inc()
			return ErrTenantMismatch
		}
	case VerbRead, VerbDelete:
		// Scoping happens in the storage adapter via the same binding.
	default:
		return fmt.Errorf("unknown verb %q", verb)
	}

	observability.GuardDecisionsTotal.WithLabelValues(string(kind), string(verb), "allow").Inc()
	return nil
}
