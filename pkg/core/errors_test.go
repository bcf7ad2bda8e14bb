package core

import (
	"errors"
	"testing"
)

func TestError_Error(t *testing.T) {
	err := &Error{
		Type:    ErrInvalidRequest,
		Message: "invalid session type",
	}

	expected := "invalid_request_error: invalid session type"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestError_WithCode(t *testing.T) {
	err := &Error{
		Type:    ErrTransport,
		Message: "websocket closed",
		Code:    "abnormal_closure",
	}

	expected := "transport_error: websocket closed (code: abnormal_closure)"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewDeviceError_Unwrap(t *testing.T) {
	cause := errors.New("no capture device")
	err := NewDeviceError("microphone open failed", cause)
	if err.Type != ErrDevice {
		t.Errorf("Type = %v, want %v", err.Type, ErrDevice)
	}
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false, want true")
	}
}

func TestNewProtocolError(t *testing.T) {
	err := NewProtocolError("unrecognized server message")
	if err.Type != ErrProtocol {
		t.Errorf("Type = %v, want %v", err.Type, ErrProtocol)
	}
	if err.Message != "unrecognized server message" {
		t.Errorf("Message = %q, want %q", err.Message, "unrecognized server message")
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want bool
	}{
		{"device", NewDeviceError("mic busy", nil), true},
		{"setup", NewSetupError("frame assembler", nil), true},
		{"transport", NewTransportError("dropped", nil), false},
		{"protocol", NewProtocolError("bad frame"), false},
		{"state", NewStateError("not ready"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.IsFatal(); got != tt.want {
				t.Errorf("IsFatal() = %v, want %v", got, tt.want)
			}
		})
	}
}
