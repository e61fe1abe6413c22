package tenancy

import "errors"

// Sentinel errors for tenant isolation violations. All of them surface to
// the caller unmodified; none are retried, since retrying without fixing the
// binding repeats the same failure.
var (
	// ErrContextMissing is returned when an entity operation is attempted
	// with no active tenant bound. The operation fails closed.
	ErrContextMissing = errors.New("no active tenant bound")

	// ErrContextAlreadyBound is returned when a unit of work attempts to
	// rebind to a different tenant after entity operations have started.
	ErrContextAlreadyBound = errors.New("tenant context already bound")

	// ErrTenantMismatch is returned when a supplied or stored tenant
	// identifier differs from the active binding.
	ErrTenantMismatch = errors.New("tenant mismatch")

	// ErrTenantIdentifierMissing is returned when a write carries no tenant
	// identifier. Both the guard and the storage boundary reject this
	// independently.
	ErrTenantIdentifierMissing = errors.New("tenant identifier missing")
)
