package http

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/stagedoor/seat-inventory/internal/domain"
)

// errorBody is the machine-readable failure shape every operation returns.
// Reason is one of: invalid_input, permission_denied, not_found, conflict,
// state_conflict, internal.
type errorBody struct {
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) []byte {
	data, _ := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
	return data
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody{Reason: "invalid_input", Error: err.Error()})
	case errors.Is(err, domain.ErrPermissionDenied):
		writeJSON(w, http.StatusForbidden, errorBody{Reason: "permission_denied", Error: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Reason: "not_found", Error: err.Error()})
	case errors.Is(err, domain.ErrStateConflict):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Reason: "state_conflict", Error: err.Error()})
	case errors.Is(err, domain.ErrSerializationFailure):
		writeJSON(w, http.StatusConflict, errorBody{Reason: "conflict", Error: "write conflict, retry"})
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Reason: "conflict", Error: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Reason: "internal", Error: err.Error()})
	}
}
