package engine

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/getmockd/statemock/pkg/stateful"
)

// Error codes returned in ErrorResponse.Error.
const (
	ErrCodeNotFound       = "not_found"
	ErrCodeBodyTooLarge   = "body_too_large"
	ErrCodeBadRequest     = "bad_request"
	ErrCodeInvalidJSON    = "invalid_json"
	ErrCodeStateError     = "state_error"
	ErrCodeInvalidConfig  = "invalid_config"
	ErrCodeInternal       = "internal_error"
	ErrCodeReloadDisabled = "reload_disabled"
)

// Safe error messages for client responses.
const (
	ErrMsgInternalError = "An internal error occurred"
	ErrMsgInvalidJSON   = "Invalid JSON in request body"
	ErrMsgBodyTooLarge  = "Request body exceeds maximum allowed size"
)

// ErrorResponse is the JSON body of every error the engine writes.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Hint      string `json:"hint,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// hinted is implemented by the stateful error types.
type hinted interface {
	error
	StatusCode() int
	Hint() string
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// writeStatefulError writes err with its own status and hint when it is one
// of the stateful error types, and a sanitized 500 otherwise.
func writeStatefulError(w http.ResponseWriter, log *slog.Logger, err error, requestID string) int {
	var he hinted
	if !errors.As(err, &he) {
		log.Error("request failed", "error", err, "requestId", requestID)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:     ErrCodeInternal,
			Message:   ErrMsgInternalError,
			RequestID: requestID,
		})
		return http.StatusInternalServerError
	}

	status := he.StatusCode()
	writeJSON(w, status, ErrorResponse{
		Error:     errorCode(err),
		Message:   he.Error(),
		Hint:      he.Hint(),
		RequestID: requestID,
	})
	return status
}

func errorCode(err error) string {
	var nf *stateful.NotFoundError
	switch {
	case errors.As(err, &nf):
		return ErrCodeNotFound
	case errors.Is(err, stateful.ErrUnknownState):
		return ErrCodeStateError
	case errors.Is(err, stateful.ErrInvalidConfig):
		return ErrCodeInvalidConfig
	default:
		return ErrCodeInternal
	}
}

// sanitizeError logs err and returns a message that is safe to send to
// clients.
func sanitizeError(err error, log *slog.Logger, operation string) string {
	log.Error("operation failed", "operation", operation, "error", err)
	return ErrMsgInternalError
}
