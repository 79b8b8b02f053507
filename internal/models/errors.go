package models

import (
	"errors"
	"fmt"
)

// APIError represents a standardized error response format for the API.
// @Description APIError represents a standardized error response format, including an application-specific error code, a human-readable message, and optional details.
type APIError struct {
	Code    string      `json:"code"`              // Application-specific error code (e.g., "NOT_FOUND", "VALIDATION_ERROR")
	Message string      `json:"message"`           // Human-readable message, shown to the user as a blocking notification
	Details interface{} `json:"details,omitempty"` // Optional field for additional error details
}

// Predefined application-specific error codes
const (
	// Generic Errors
	ErrorCodeInternalServerError = "INTERNAL_SERVER_ERROR"
	ErrorCodeServiceUnavailable  = "SERVICE_UNAVAILABLE"

	// Input Validation & Data Errors
	ErrorCodeValidation       = "VALIDATION_ERROR"
	ErrorCodeInvalidJSON      = "INVALID_JSON"
	ErrorCodeInvalidIDFormat  = "INVALID_ID_FORMAT"
	ErrorCodeEmptyPrompt      = "EMPTY_PROMPT"
	ErrorCodeModelNotSelected = "MODEL_NOT_SELECTED"
	ErrorCodeMissingURL       = "MISSING_URL"

	// Resource Specific Errors
	ErrorCodeNotFound       = "NOT_FOUND"
	ErrorCodeEntityNotFound = "ENTITY_NOT_FOUND"

	// Business Logic / State Errors
	ErrorCodeConflict      = "CONFLICT_ERROR"
	ErrorCodeDuplicateName = "DUPLICATE_NAME"
	ErrorCodeConfiguration = "CONFIGURATION_ERROR"
)

// ErrNotFound is wrapped by every lookup that misses (unknown entity type,
// unregistered linked type, missing document).
var ErrNotFound = errors.New("not found")

// ErrConflict is wrapped when an action collides with one already in flight
// or with a newer state of the same document.
var ErrConflict = errors.New("conflict")

// ValidationError is a user-correctable input problem detected before any
// remote call is made.
type ValidationError struct {
	Code    string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError returns a ValidationError with the generic code.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Code: ErrorCodeValidation, Field: field, Message: message}
}

// ProviderUnavailableError reports a failed or malformed remote call.
type ProviderUnavailableError struct {
	Provider string
	Err      error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports a persisted or configured value the service has
// no mapping for.
type ConfigurationError struct {
	Setting string
	Value   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: unsupported %s %q", e.Setting, e.Value)
}

// NotFoundf wraps ErrNotFound with a formatted description.
func NotFoundf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// Unavailable wraps err as a ProviderUnavailableError unless it already is one.
func Unavailable(provider string, err error) error {
	var pu *ProviderUnavailableError
	if errors.As(err, &pu) {
		return err
	}
	return &ProviderUnavailableError{Provider: provider, Err: err}
}
