package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/renum/agentstore/pkg/api"
	"github.com/renum/agentstore/pkg/storage"
)

// maxBodyBytes caps request bodies; entity payloads are metadata, not blobs.
const maxBodyBytes = 1 << 20

// Adapter routes entity CRUD requests to the guarded store.
type Adapter struct {
	store storage.EntityStore
}

// NewAdapter creates an HTTP adapter over the given store. The store should
// be wrapped with storage.Guard; the adapter performs no tenant checks of
// its own.
func NewAdapter(store storage.EntityStore) *Adapter {
	return &Adapter{store: store}
}

// Handler returns the route multiplexer for all entity endpoints.
func (a *Adapter) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/{kind}", a.create)
	mux.HandleFunc("GET /v1/{kind}", a.list)
	mux.HandleFunc("GET /v1/{kind}/{id}", a.get)
	mux.HandleFunc("PATCH /v1/{kind}/{id}", a.update)
	mux.HandleFunc("DELETE /v1/{kind}/{id}", a.del)
	return mux
}

// writeRequest is the JSON body for create and update operations. The tenant
// identifier must be supplied explicitly; the server never infers it from
// the caller's binding (no silent substitution).
type writeRequest struct {
	ID       string         `json:"id,omitempty"`
	TenantID string         `json:"tenant_id"`
	Data     map[string]any `json:"data"`
}

func (a *Adapter) create(w http.ResponseWriter, r *http.Request) {
	kind, ok := pathKind(w, r)
	if !ok {
		return
	}

	var req writeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rec := &api.Record{
		ID:       req.ID,
		TenantID: req.TenantID,
		Data:     req.Data,
	}
	if rec.ID == "" {
		rec.ID = api.NewRecordID(kind)
	} else if !api.ValidRecordID(kind, rec.ID) {
		WriteAPIError(w, api.NewInvalidRequestError("id", "malformed record ID for kind "+string(kind)))
		return
	}

	if err := a.store.Create(r.Context(), kind, rec); err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

func (a *Adapter) get(w http.ResponseWriter, r *http.Request) {
	kind, ok := pathKind(w, r)
	if !ok {
		return
	}

	rec, err := a.store.Get(r.Context(), kind, r.PathValue("id"))
	if err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (a *Adapter) list(w http.ResponseWriter, r *http.Request) {
	kind, ok := pathKind(w, r)
	if !ok {
		return
	}

	opts := storage.ListOptions{
		After: r.URL.Query().Get("after"),
		Order: r.URL.Query().Get("order"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			WriteAPIError(w, api.NewInvalidRequestError("limit", "limit must be an integer"))
			return
		}
		opts.Limit = limit
	}

	result, err := a.store.List(r.Context(), kind, opts)
	if err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (a *Adapter) update(w http.ResponseWriter, r *http.Request) {
	kind, ok := pathKind(w, r)
	if !ok {
		return
	}

	var req writeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rec := &api.Record{
		ID:       r.PathValue("id"),
		TenantID: req.TenantID,
		Data:     req.Data,
	}

	if err := a.store.Update(r.Context(), kind, rec); err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (a *Adapter) del(w http.ResponseWriter, r *http.Request) {
	kind, ok := pathKind(w, r)
	if !ok {
		return
	}

	if err := a.store.Delete(r.Context(), kind, r.PathValue("id")); err != nil {
		WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// pathKind resolves and validates the {kind} path segment. Unknown kinds are
// reported as not found, like any other absent resource.
func pathKind(w http.ResponseWriter, r *http.Request) (api.Kind, bool) {
	kind := api.Kind(r.PathValue("kind"))
	if !kind.Valid() {
		WriteAPIError(w, api.NewNotFoundError("unknown entity kind"))
		return "", false
	}
	return kind, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer io.Copy(io.Discard, body)

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		WriteAPIError(w, api.NewInvalidRequestError("body", "malformed JSON body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
