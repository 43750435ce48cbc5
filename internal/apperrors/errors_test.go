package apperrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestNewError(t *testing.T) {
	err := NewError(14001, "test error")

	if err.Code != 14001 {
		t.Errorf("Expected code 14001, got %d", err.Code)
	}
	if err.Message != "test error" {
		t.Errorf("Expected message 'test error', got '%s'", err.Message)
	}
	if err.Err != nil {
		t.Error("Expected Err to be nil")
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			err:      NewError(14001, "test error"),
			expected: "[14001] test error",
		},
		{
			name:     "with wrapped error",
			err:      NewError(14001, "test error").Wrap(errors.New("original error")),
			expected: "[14001] test error: original error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, got)
			}
		})
	}
}

func TestAppError_Wrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := ErrDBError.Wrap(originalErr)

	if appErr.Code != ErrDBError.Code {
		t.Errorf("Expected code %d, got %d", ErrDBError.Code, appErr.Code)
	}
	if appErr.Err != originalErr {
		t.Error("Expected wrapped error to be the original error")
	}
	// Wrap 不应修改预定义错误本身
	if ErrDBError.Err != nil {
		t.Error("Wrap must not mutate the predefined error")
	}
}

func TestAppError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	appErr := ErrDBError.Wrap(originalErr)

	if unwrapped := errors.Unwrap(appErr); unwrapped != originalErr {
		t.Error("Expected unwrapped error to be the original error")
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		target   *AppError
		expected bool
	}{
		{
			name:     "same predefined error",
			err:      ErrPermissionDenied,
			target:   ErrPermissionDenied,
			expected: true,
		},
		{
			name:     "wrapped predefined error",
			err:      ErrPermissionDenied.Wrap(errors.New("membership check failed")),
			target:   ErrPermissionDenied,
			expected: true,
		},
		{
			name:     "wrapped twice",
			err:      fmt.Errorf("handler: %w", ErrConversationNotFound.Wrap(errors.New("no rows"))),
			target:   ErrConversationNotFound,
			expected: true,
		},
		{
			name:     "different error",
			err:      ErrConversationNotFound,
			target:   ErrPermissionDenied,
			expected: false,
		},
		{
			name:     "plain error",
			err:      errors.New("plain"),
			target:   ErrPermissionDenied,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.target); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestGetCodeAndMessage(t *testing.T) {
	if got := GetCode(ErrPermissionDenied); got != CodePermissionDenied {
		t.Errorf("Expected code %d, got %d", CodePermissionDenied, got)
	}
	if got := GetCode(errors.New("plain")); got != CodeServerError {
		t.Errorf("Expected default code %d, got %d", CodeServerError, got)
	}
	if got := GetMessage(ErrPermissionDenied); got != ErrPermissionDenied.Message {
		t.Errorf("Expected message '%s', got '%s'", ErrPermissionDenied.Message, got)
	}
}
