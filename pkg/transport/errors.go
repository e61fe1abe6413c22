package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/renum/agentstore/pkg/api"
	"github.com/renum/agentstore/pkg/storage"
	"github.com/renum/agentstore/pkg/tenancy"
)

// APIErrorFromError maps isolation and storage errors to the structured API
// error taxonomy. Tenant violations surface as authorization or validation
// failures with a stable code, never as generic internal errors.
func APIErrorFromError(err error) *api.APIError {
	switch {
	case errors.Is(err, tenancy.ErrContextMissing):
		return api.NewUnauthorizedError("no active tenant bound")
	case errors.Is(err, tenancy.ErrContextAlreadyBound):
		return api.NewForbiddenError("context_already_bound", "tenant context already bound for this unit of work")
	case errors.Is(err, tenancy.ErrTenantMismatch):
		return api.NewForbiddenError("tenant_mismatch", "tenant identifier does not match the active tenant")
	case errors.Is(err, tenancy.ErrTenantIdentifierMissing):
		return api.NewInvalidRequestError("tenant_id", "tenant identifier is required")
	case errors.Is(err, storage.ErrNotFound):
		return api.NewNotFoundError("record not found")
	case errors.Is(err, storage.ErrConflict):
		return api.NewConflictError("record already exists")
	default:
		return api.NewServerError("internal error")
	}
}

// HTTPStatusFromError maps an APIError type to the corresponding HTTP status code.
func HTTPStatusFromError(err *api.APIError) int {
	switch err.Type {
	case api.ErrorTypeInvalidRequest:
		return http.StatusUnprocessableEntity
	case api.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case api.ErrorTypeForbidden:
		return http.StatusForbidden
	case api.ErrorTypeNotFound:
		return http.StatusNotFound
	case api.ErrorTypeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteAPIError writes a JSON error response using the ErrorResponse wrapper
// format from pkg/api, deriving the HTTP status code from the error type.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatusFromError(apiErr))
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteError maps err and writes it as a JSON error response.
func WriteError(w http.ResponseWriter, err error) {
	WriteAPIError(w, APIErrorFromError(err))
}
