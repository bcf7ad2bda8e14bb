package core

import (
	"fmt"
)

// Error is the error type shared by the live pipeline and the gateway API.
type Error struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Param     string    `json:"param,omitempty"`
	Code      string    `json:"code,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error wrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// Live pipeline errors.
	ErrDevice    ErrorType = "device_error"
	ErrTransport ErrorType = "transport_error"
	ErrProtocol  ErrorType = "protocol_error"
	ErrSetup     ErrorType = "setup_error"
	ErrState     ErrorType = "state_error"

	// Gateway API errors.
	ErrInvalidRequest ErrorType = "invalid_request_error"
	ErrAuthentication ErrorType = "authentication_error"
	ErrPermission     ErrorType = "permission_error"
	ErrNotFound       ErrorType = "not_found_error"
	ErrAPI            ErrorType = "api_error"
)

// NewDeviceError wraps a failure to acquire or operate an audio device.
func NewDeviceError(message string, cause error) *Error {
	return &Error{
		Type:    ErrDevice,
		Message: message,
		Cause:   cause,
	}
}

// NewTransportError wraps a websocket-level failure.
func NewTransportError(message string, cause error) *Error {
	return &Error{
		Type:    ErrTransport,
		Message: message,
		Cause:   cause,
	}
}

// NewProtocolError reports a malformed or unexpected wire message.
func NewProtocolError(message string) *Error {
	return &Error{
		Type:    ErrProtocol,
		Message: message,
	}
}

// NewSetupError reports a failure to initialize a pipeline component.
func NewSetupError(message string, cause error) *Error {
	return &Error{
		Type:    ErrSetup,
		Message: message,
		Cause:   cause,
	}
}

// NewStateError reports an operation invoked from an invalid state.
func NewStateError(message string) *Error {
	return &Error{
		Type:    ErrState,
		Message: message,
	}
}

// NewInvalidRequestError creates an invalid request error.
func NewInvalidRequestError(message string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
	}
}

// NewInvalidRequestErrorWithParam creates an invalid request error with a parameter.
func NewInvalidRequestErrorWithParam(message, param string) *Error {
	return &Error{
		Type:    ErrInvalidRequest,
		Message: message,
		Param:   param,
	}
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *Error {
	return &Error{
		Type:    ErrAuthentication,
		Message: message,
	}
}

// NewPermissionError creates a permission error.
func NewPermissionError(message string) *Error {
	return &Error{
		Type:    ErrPermission,
		Message: message,
	}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message string) *Error {
	return &Error{
		Type:    ErrNotFound,
		Message: message,
	}
}

// NewAPIError creates a generic API error.
func NewAPIError(message string) *Error {
	return &Error{
		Type:    ErrAPI,
		Message: message,
	}
}

// IsFatal reports whether the error should tear down a live session.
// Device and setup failures are fatal; transport drops leave the session
// resumable and protocol errors only skip the offending message.
func (e *Error) IsFatal() bool {
	switch e.Type {
	case ErrDevice, ErrSetup:
		return true
	default:
		return false
	}
}
