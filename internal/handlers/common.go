package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"picshare-backend/internal/apperrors"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error  string            `json:"error"`
	Kind   apperrors.Kind    `json:"kind"`
	Fields map[string]string `json:"fields,omitempty"`
	Detail string            `json:"detail,omitempty"`
}

// MessageResponse is returned by operations that have nothing else to say
type MessageResponse struct {
	Message string `json:"message"`
}

// Responder writes JSON responses. Debug adds the internal cause of an
// error to the body and must be off in production.
type Responder struct {
	Debug bool
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// respondError maps err to its status code and sends the error body
func (rs *Responder) respondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperrors.KindOf(err)
	status := apperrors.HTTPStatus(kind)

	event := log.Debug()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).
		Str("request_id", chimiddleware.GetReqID(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("kind", string(kind)).
		Msg("Request failed")

	body := ErrorResponse{Error: apperrors.PublicMessage(err), Kind: kind}
	var invalid *validationFailure
	if errors.As(err, &invalid) {
		body.Fields = invalid.fields
	}
	if rs.Debug {
		body.Detail = err.Error()
	}
	respondJSON(w, status, body)
}

// NotFound answers unknown routes
func (rs *Responder) NotFound(w http.ResponseWriter, r *http.Request) {
	rs.respondError(w, r, apperrors.NotFound("not found - "+r.URL.Path))
}

// MethodNotAllowed answers known routes called with the wrong method
func (rs *Responder) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed", Kind: apperrors.KindValidation})
}
