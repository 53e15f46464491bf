// Package api contains the HTTP layer: routing, request binding, and response formatting.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"insureguard/risk-api/internal/domain"
	"insureguard/risk-api/internal/store"
)

// ─── Response envelope ────────────────────────────────────────────────────────

// envelope is the standard wrapper for all API responses.
// Success responses set `error` to nil; error responses set `data` to nil.
type envelope struct {
	Data  any       `json:"data,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ─── Response helpers ─────────────────────────────────────────────────────────

// writeJSON serialises v into the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	// Headers are already sent if encoding fails; nothing useful is left to do.
	_ = json.NewEncoder(w).Encode(v)
}

// ok writes a 200 response with the payload wrapped in the standard envelope.
func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Data: data})
}

// created writes a 201 response.
func created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, envelope{Data: data})
}

// noContent writes a 204 response with no body.
func noContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// fail writes an error envelope with an explicit status.
func fail(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, envelope{Error: &apiError{Code: code, Message: message}})
}

// badRequest writes a 400 error response.
func badRequest(w http.ResponseWriter, code, message string) {
	fail(w, http.StatusBadRequest, code, message)
}

// notFound writes a 404 error response.
func notFound(w http.ResponseWriter, message string) {
	fail(w, http.StatusNotFound, "NOT_FOUND", message)
}

// conflict writes a 409 error response.
func conflict(w http.ResponseWriter, message string) {
	fail(w, http.StatusConflict, "CONFLICT", message)
}

// internalError writes a 500 error response.
func internalError(w http.ResponseWriter) {
	fail(w, http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred")
}

// writeError maps a domain error to its status and code. Anything unknown is
// a 500.
func writeError(w http.ResponseWriter, err error) {
	var coded domain.CodedError
	switch {
	case errors.As(err, &coded):
		fail(w, coded.HTTPStatus(), coded.Code(), coded.Error())
	case errors.Is(err, store.ErrClaimNotFound):
		notFound(w, err.Error())
	case errors.Is(err, store.ErrDuplicateClaim):
		conflict(w, err.Error())
	default:
		internalError(w)
	}
}
