package types

import (
	"errors"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrNetwork, "network failed", nil)
	if err.Error() != "network failed" {
		t.Errorf("Expected message only, got %q", err.Error())
	}

	detailed := NewAppErrorWithDetails(ErrDownload, "download failed", "status 404", nil)
	if detailed.Error() != "download failed: status 404" {
		t.Errorf("Expected message with details, got %q", detailed.Error())
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewAppError(ErrInternal, "wrapped", cause)

	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to find the cause")
	}

	var appErr *AppError
	if !errors.As(error(err), &appErr) {
		t.Error("Expected errors.As to match AppError")
	}
	if appErr.Code != ErrInternal {
		t.Errorf("Expected ErrInternal, got %s", appErr.Code)
	}
}
