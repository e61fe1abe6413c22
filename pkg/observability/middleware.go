package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/renum/agentstore/pkg/api"
)

// MetricsMiddleware wraps an HTTP handler to record request metrics.
//
// It captures:
//   - agentstore_requests_total (counter) with method, status class, and kind labels
//   - agentstore_request_duration_seconds (histogram) with method and kind labels
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		statusStr := strconv.Itoa(sw.status/100) + "xx"
		kind := kindFromPath(r.URL.Path)

		RequestsTotal.WithLabelValues(r.Method, statusStr, kind).Inc()
		RequestDuration.WithLabelValues(r.Method, kind).Observe(duration)
	})
}

// kindFromPath extracts the entity kind segment from /v1/{kind}[/{id}] paths.
// Non-entity paths (health, metrics) report "other" to bound label cardinality.
func kindFromPath(path string) string {
	if !strings.HasPrefix(path, "/v1/") {
		return "other"
	}
	rest := strings.TrimPrefix(path, "/v1/")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	if !api.Kind(rest).Valid() {
		return "other"
	}
	return rest
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written bool
}

// WriteHeader captures the status code and delegates to the underlying writer.
func (w *statusWriter) WriteHeader(status int) {
	if !w.written {
		w.status = status
		w.written = true
	}
	w.ResponseWriter.WriteHeader(status)
}

// Write delegates to the underlying writer and marks the status as written.
func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap returns the underlying ResponseWriter, enabling http.ResponseController
// and similar utilities to access the original writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
