// Package apikey provides an authenticator backed by a static list of API
// keys, each mapped to a caller subject and tenant.
package apikey

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/renum/agentstore/pkg/auth"
)

// Entry describes a single API key.
type Entry struct {
	Key      string
	Subject  string
	TenantID string
}

// Authenticator validates requests against the configured keys. Keys are
// accepted from the Authorization header ("Bearer <key>") or the X-API-Key
// header.
type Authenticator struct {
	entries []Entry
}

// New creates an API key authenticator.
func New(entries []Entry) *Authenticator {
	return &Authenticator{entries: entries}
}

// Authenticate checks the presented key against the configured entries.
//
// Decision outcomes:
//   - Abstain: no API key credential present
//   - No: key present but unknown
//   - Yes: key matched, identity carries the entry's subject and tenant
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.Result {
	key := presentedKey(r)
	if key == "" {
		return auth.Result{Decision: auth.Abstain}
	}

	for _, e := range a.entries {
		if subtle.ConstantTimeCompare([]byte(e.Key), []byte(key)) == 1 {
			return auth.Result{
				Decision: auth.Yes,
				Identity: &auth.Identity{
					Subject:  e.Subject,
					TenantID: e.TenantID,
				},
			}
		}
	}

	return auth.Result{
		Decision: auth.No,
		Err:      fmt.Errorf("unknown API key"),
	}
}

func presentedKey(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.Header.Get("X-API-Key")
}
