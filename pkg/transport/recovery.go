package transport

import (
	"log/slog"
	"net/http"

	"github.com/renum/agentstore/pkg/api"
)

// Recovery returns middleware that catches panics in the handler and
// converts them to server error responses. The server continues to accept
// new requests after a panic is recovered; deferred cleanup further up the
// chain (tenant binding release included) still runs.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("panic recovered",
					"path", r.URL.Path,
					"panic", rec,
					"request_id", RequestIDFromContext(r.Context()),
				)
				WriteAPIError(w, api.NewServerError("internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
