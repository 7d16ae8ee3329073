package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestStudioError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *StudioError
		wantStr string
	}{
		{
			name: "simple error",
			err: &StudioError{
				Code:    "TEST_001",
				Message: "test error",
			},
			wantStr: "[TEST_001] test error",
		},
		{
			name: "error with cause",
			err: &StudioError{
				Code:    "TEST_002",
				Message: "wrapped error",
				Cause:   errors.New("underlying"),
			},
			wantStr: "[TEST_002] wrapped error: underlying",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantStr {
				t.Errorf("Error() = %q, want %q", got, tt.wantStr)
			}
		})
	}
}

func TestStudioError_Unwrap(t *testing.T) {
	err := Cancelled("comp", context.Canceled)
	if !errors.Is(err, context.Canceled) {
		t.Error("Cancelled should unwrap to context.Canceled")
	}
}

func TestStudioError_WithDetail(t *testing.T) {
	err := New("TEST_001", "test").
		WithDetail("key1", "value1").
		WithDetail("key2", 42)

	if err.Details["key1"] != "value1" {
		t.Errorf("Details[key1] = %v, want value1", err.Details["key1"])
	}
	if err.Details["key2"] != 42 {
		t.Errorf("Details[key2] = %v, want 42", err.Details["key2"])
	}
}

func TestStudioError_MarshalJSON(t *testing.T) {
	err := LockFailure("/tmp/comp", errors.New("resource temporarily unavailable"))

	data, mErr := json.Marshal(err)
	if mErr != nil {
		t.Fatalf("Marshal failed: %v", mErr)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded["code"] != CodeLockFailure {
		t.Errorf("code = %v, want %s", decoded["code"], CodeLockFailure)
	}
	if decoded["cause"] != "resource temporarily unavailable" {
		t.Errorf("cause = %v", decoded["cause"])
	}
}

func TestInvalidSettings_IsIOFailure(t *testing.T) {
	err := InvalidSettings("My Component", errors.New("kind is required"))
	if !HasCode(err, CodeIOFailure) {
		t.Errorf("InvalidSettings code = %s, want %s", Code(err), CodeIOFailure)
	}
	if err.Details["invalid_settings"] != true {
		t.Error("expected invalid_settings detail")
	}
}

func TestHasCode_Wrapped(t *testing.T) {
	base := LocationMismatch("/a", "/b")
	wrapped := fmt.Errorf("saving: %w", base)

	if !HasCode(wrapped, CodeContractViolation) {
		t.Error("HasCode should see through fmt wrapping")
	}
	if HasCode(wrapped, CodeIOFailure) {
		t.Error("HasCode matched the wrong code")
	}
	if Code(errors.New("plain")) != "" {
		t.Error("Code of a plain error should be empty")
	}
}
