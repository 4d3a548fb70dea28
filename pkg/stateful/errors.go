package stateful

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidConfig is wrapped by every ConfigError.
	ErrInvalidConfig = errors.New("invalid stateful config")

	// ErrUnknownState is wrapped by StateError and UnknownStateError.
	ErrUnknownState = errors.New("unknown state")
)

// ConfigError is returned by AddConfig when a config is rejected.
type ConfigError struct {
	Pattern string
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("stateful config %q: %s: %s", e.Pattern, e.Field, e.Message)
	}
	return fmt.Sprintf("stateful config %q: %s", e.Pattern, e.Message)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// StatusCode returns the HTTP status code for this error.
func (e *ConfigError) StatusCode() int {
	return http.StatusBadRequest
}

// Hint returns a user-friendly suggestion for resolving this error.
func (e *ConfigError) Hint() string {
	if e.Field != "" {
		return fmt.Sprintf("Fix %q in the stateful config for %s.", e.Field, e.Pattern)
	}
	return "Check the stateful config definition."
}

// StateError is returned when a resource is in a state its config has no
// response for. This happens when a config is replaced while resources are
// still tracked in states the new config dropped.
type StateError struct {
	Pattern    string
	ResourceID string
	State      string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("resource %q under %q is in state %q which has no response", e.ResourceID, e.Pattern, e.State)
}

func (e *StateError) Unwrap() error { return ErrUnknownState }

// StatusCode returns the HTTP status code for this error.
func (e *StateError) StatusCode() int {
	return http.StatusInternalServerError
}

// Hint returns a user-friendly suggestion for resolving this error.
func (e *StateError) Hint() string {
	return fmt.Sprintf("Add a response for state %q or reset the resources of %s (POST /state/reset).", e.State, e.Pattern)
}

// UnknownStateError is returned when a resource is asked to move into a
// state its config does not define.
type UnknownStateError struct {
	Pattern string
	State   string
}

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("state %q is not defined for %q", e.State, e.Pattern)
}

func (e *UnknownStateError) Unwrap() error { return ErrUnknownState }

// StatusCode returns the HTTP status code for this error.
func (e *UnknownStateError) StatusCode() int {
	return http.StatusBadRequest
}

// Hint returns a user-friendly suggestion for resolving this error.
func (e *UnknownStateError) Hint() string {
	return fmt.Sprintf("Use GET /state/configs to list the states of %s.", e.Pattern)
}

// NotFoundError is returned when no config is registered for a pattern.
type NotFoundError struct {
	Pattern string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no stateful config registered for %q", e.Pattern)
}

// StatusCode returns the HTTP status code for this error.
func (e *NotFoundError) StatusCode() int {
	return http.StatusNotFound
}

// Hint returns a user-friendly suggestion for resolving this error.
func (e *NotFoundError) Hint() string {
	return "Use GET /state/configs to list registered patterns."
}
