package auth

import (
	"log/slog"
	"net/http"

	"github.com/renum/agentstore/pkg/observability"
	"github.com/renum/agentstore/pkg/tenancy"
)

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/readyz", "/metrics"}

// Middleware creates HTTP middleware from a Chain. It runs authentication,
// requires a resolved tenant, and scopes a fresh tenant binding to the
// request: the binding is activated before the handler runs and cleared on
// every exit path, so a reused connection never observes a stale tenant.
func Middleware(chain *Chain, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)

			if result.Decision != Yes || result.Identity == nil {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", result.Err,
				)
				observability.AuthRejectedTotal.WithLabelValues("unauthenticated").Inc()
				http.Error(w, `{"error":{"type":"unauthorized","message":"authentication required"}}`, http.StatusUnauthorized)
				return
			}

			if result.Identity.Subject == "" {
				slog.Error("authenticator returned identity with empty subject")
				http.Error(w, `{"error":{"type":"server_error","message":"internal authentication error"}}`, http.StatusInternalServerError)
				return
			}

			// A caller without a tenant cannot touch any entity collection.
			if result.Identity.TenantID == "" {
				slog.Warn("authenticated caller has no tenant",
					"subject", result.Identity.Subject,
					"path", r.URL.Path,
				)
				observability.AuthRejectedTotal.WithLabelValues("no_tenant").Inc()
				http.Error(w, `{"error":{"type":"unauthorized","message":"no tenant bound to caller"}}`, http.StatusUnauthorized)
				return
			}

			binding := tenancy.NewBinding()
			if err := binding.Activate(result.Identity.TenantID); err != nil {
				slog.Error("activating tenant binding", "error", err)
				http.Error(w, `{"error":{"type":"server_error","message":"internal authentication error"}}`, http.StatusInternalServerError)
				return
			}
			// Release the binding on every exit path, panics included, before
			// the connection can serve another request.
			defer binding.Clear()

			ctx := SetIdentity(r.Context(), result.Identity)
			ctx = tenancy.Bind(ctx, binding)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
