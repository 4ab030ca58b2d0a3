package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"fintrack/internal/ai"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/middleware/auth"
	"fintrack/internal/storage"
)

// errorBody is the shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

// badRequest marks errors caused by malformed input rather than invalid data.
type badRequest struct{ err error }

func (e badRequest) Error() string { return e.err.Error() }
func (e badRequest) Unwrap() error { return e.err }

func malformed(err error) error { return badRequest{err: err} }

var errAIDisabled = errors.New("ai drafts are not configured")

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var br badRequest
	switch {
	case errors.As(err, &br),
		errors.Is(err, ai.ErrEmptyInput),
		errors.Is(err, ai.ErrUnsupportedImage):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict), errors.Is(err, storage.ErrStaleRule):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidFrequency),
		errors.Is(err, core.ErrEmptyDescription),
		errors.Is(err, core.ErrEmptyCategory),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrMissingReference),
		errors.Is(err, ai.ErrNoDrafts):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ai.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, errAIDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError logs err and sends it as JSON. Server errors are not echoed
// to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		log.LogError(r.Context(), "Request failed", err, log.OperationFor(r.Method),
			log.NewFields().WithHTTPResponse(status, 0).WithClientIP(r.RemoteAddr))
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	} else {
		log.FromContext(r.Context()).DebugContext(r.Context(), "Request rejected", log.FieldError, err, log.FieldStatusCode, status)
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func noContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
