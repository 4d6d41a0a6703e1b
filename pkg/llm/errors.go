// Error types and handling
package llm

import (
	"errors"
	"fmt"
)

// Error codes shared by all providers
const (
	ErrCodeMissingAPIKey       = "missing_api_key"
	ErrCodeMissingModel        = "missing_model"
	ErrCodeUnsupportedProvider = "unsupported_provider"
	ErrCodeToolNotRegistered   = "tool_not_registered"
	ErrCodeSessionNotFound     = "session_not_found"
	ErrCodeAPI                 = "api_error"
	ErrCodeBatchFailed         = "batch_failed"
	ErrCodeStreamConsumed      = "stream_consumed"
	ErrCodeInvalidRequest      = "invalid_request"
)

// Error represents a standardized LLM error
type Error struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	StatusCode int    `json:"status_code,omitempty"`
	Provider   string `json:"provider,omitempty"`
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s", e.Provider, e.Message)
	}
	return e.Message
}

// Is reports whether target is an *Error with the same code, so that
// errors.Is(err, ErrToolNotRegistered) matches any tool-not-registered error.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

var (
	// ErrToolNotRegistered is returned when executing a tool name that was never registered
	ErrToolNotRegistered = &Error{Code: ErrCodeToolNotRegistered, Message: "tool not registered", Type: "tool_error"}

	// ErrSessionNotFound is returned by Memory.GetSession when no session exists
	ErrSessionNotFound = &Error{Code: ErrCodeSessionNotFound, Message: "session not found", Type: "memory_error"}

	// ErrStreamConsumed is yielded when a TextStream is iterated a second time
	ErrStreamConsumed = &Error{Code: ErrCodeStreamConsumed, Message: "stream already consumed", Type: "stream_error"}
)

// NewToolNotRegisteredError returns a tool_not_registered error naming the tool
func NewToolNotRegisteredError(name string) *Error {
	return &Error{
		Code:    ErrCodeToolNotRegistered,
		Message: fmt.Sprintf("tool not registered: %s", name),
		Type:    "tool_error",
	}
}

// NewAPIError builds an api_error for a non-success vendor response
func NewAPIError(provider string, statusCode int, message string) *Error {
	return &Error{
		Code:       ErrCodeAPI,
		Message:    message,
		Type:       "api_error",
		StatusCode: statusCode,
		Provider:   provider,
	}
}

// NewMissingAPIKeyError is returned by constructors when no key could be resolved
func NewMissingAPIKeyError(provider string) *Error {
	return &Error{
		Code:     ErrCodeMissingAPIKey,
		Message:  fmt.Sprintf("API key is required for %s", provider),
		Type:     "authentication_error",
		Provider: provider,
	}
}
