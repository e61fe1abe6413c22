package tenancy

import (
	"context"
	"sync"
)

// Binding holds the active tenant for one unit of work. The zero value is
// unbound. A Binding is safe for concurrent use, but it represents a single
// unit of work and must not be shared across them.
type Binding struct {
	mu     sync.Mutex
	tenant string
	used   bool
}

// NewBinding returns an unbound Binding.
func NewBinding() *Binding {
	return &Binding{}
}

// Activate binds the given tenant to the unit of work. Activating the same
// tenant again is a no-op. Rebinding to a different tenant is allowed only
// while no entity operation has consulted the binding; afterwards it fails
// with ErrContextAlreadyBound.
func (b *Binding) Activate(tenantID string) error {
	if tenantID == "" {
		return ErrTenantIdentifierMissing
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tenant == tenantID {
		return nil
	}
	if b.tenant != "" && b.used {
		return ErrContextAlreadyBound
	}

	b.tenant = tenantID
	return nil
}

// Active returns the bound tenant, or ErrContextMissing if the binding is
// unset or cleared. A successful call marks the binding as used, freezing it
// against rebinding.
func (b *Binding) Active() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.tenant == "" {
		return "", ErrContextMissing
	}
	b.used = true
	return b.tenant, nil
}

// Clear releases the binding. It must run on every exit path of the unit of
// work before the underlying resource is reused; a stale binding surviving
// into the next unit of work is a cross-tenant leak. Clear is idempotent.
func (b *Binding) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tenant = ""
	b.used = false
}

// bindingKey is a private type for the binding context key, preventing
// collisions with other packages.
type bindingKey struct{}

// Bind attaches the binding to the context for the duration of the unit of
// work.
func Bind(ctx context.Context, b *Binding) context.Context {
	return context.WithValue(ctx, bindingKey{}, b)
}

// FromContext extracts the binding from the context, or nil if absent.
func FromContext(ctx context.Context) *Binding {
	if b, ok := ctx.Value(bindingKey{}).(*Binding); ok {
		return b
	}
	return nil
}

// Active returns the active tenant for the context's binding. It fails with
// ErrContextMissing when no binding is attached or the binding is unset.
func Active(ctx context.Context) (string, error) {
	b := FromContext(ctx)
	if b == nil {
		return "", ErrContextMissing
	}
	return b.Active()
}

// Scope runs fn within a fresh binding activated for tenantID, guaranteeing
// bind-use-clear across all exit paths: normal return, error, and panic.
func Scope(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error {
	b := NewBinding()
	if err := b.Activate(tenantID); err != nil {
		return err
	}
	defer b.Clear()
	return fn(Bind(ctx, b))
}
