// Package header provides an authenticator that trusts tenant and subject
// headers injected by an upstream gateway. It performs no verification and
// must only be deployed behind infrastructure that strips these headers from
// external traffic.
package header

import (
	"context"
	"net/http"

	"github.com/renum/agentstore/pkg/auth"
)

// Default header names.
const (
	TenantHeader  = "X-Tenant-ID"
	SubjectHeader = "X-Subject"
)

// Authenticator reads the caller-tenant binding from trusted headers.
type Authenticator struct{}

// New creates a header authenticator.
func New() *Authenticator {
	return &Authenticator{}
}

// Authenticate reads the tenant header.
//
// Decision outcomes:
//   - Abstain: no tenant header present
//   - Yes: tenant header present; subject defaults to "gateway" if unset
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	tenantID := r.Header.Get(TenantHeader)
	if tenantID == "" {
		return auth.Result{Decision: auth.Abstain}
	}

	subject := r.Header.Get(SubjectHeader)
	if subject == "" {
		subject = "gateway"
	}

	return auth.Result{
		Decision: auth.Yes,
		Identity: &auth.Identity{
			Subject:  subject,
			TenantID: tenantID,
		},
	}
}
