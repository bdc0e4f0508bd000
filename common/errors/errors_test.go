package errors

import (
	"fmt"
	"testing"
)

func TestGetExitCode(t *testing.T) {
	if code := GetExitCode(nil); code != 0 {
		t.Fatalf("Expected 0 for nil, got %v", code)
	}
	if NewError(nil, ConfigExitCode) != nil {
		t.Fatalf("Expected nil error to stay nil")
	}
	if code := GetExitCode(fmt.Errorf("plain")); code != GenericFailureExitCode {
		t.Fatalf("Expected generic failure, got %v", code)
	}
	wrapped := fmt.Errorf("submitting: %w", NewError(fmt.Errorf("no route"), UnreachableExitCode))
	if code := GetExitCode(wrapped); code != UnreachableExitCode {
		t.Fatalf("Expected unreachable exit code, got %v", code)
	}
}
