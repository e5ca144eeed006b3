package corertos

import (
	"errors"
	"testing"
)

func TestStructuredError(t *testing.T) {
	err := NewError("Malloc", ErrCodeOutOfMemory, "arena exhausted")

	if err.Op != "Malloc" {
		t.Errorf("Expected Op=Malloc, got %s", err.Op)
	}
	if err.Code != ErrCodeOutOfMemory {
		t.Errorf("Expected Code=ErrCodeOutOfMemory, got %s", err.Code)
	}

	expected := "corertos: Malloc: arena exhausted"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestWrapError(t *testing.T) {
	inner := errors.New("boom")
	err := WrapError("AcquireMutex", inner)

	if err.Op != "AcquireMutex" {
		t.Errorf("Expected Op=AcquireMutex, got %s", err.Op)
	}
	if !errors.Is(err, err) {
		t.Error("expected error to be comparable to itself via errors.Is")
	}

	rewrapped := WrapError("Retry", err)
	if rewrapped.Code != err.Code {
		t.Errorf("rewrapping a structured error should preserve its code, got %s", rewrapped.Code)
	}
}

func TestWrapErrorNil(t *testing.T) {
	if WrapError("Noop", nil) != nil {
		t.Error("WrapError(nil) should return nil")
	}
}

func TestIsCode(t *testing.T) {
	err := NewError("Open", ErrCodeBadHandle, "handle closed")

	if !IsCode(err, ErrCodeBadHandle) {
		t.Error("IsCode should return true for matching code")
	}
	if IsCode(err, ErrCodeDeadlock) {
		t.Error("IsCode should return false for non-matching code")
	}
	if IsCode(nil, ErrCodeBadHandle) {
		t.Error("IsCode should return false for nil error")
	}
}

func TestErrorIsByCode(t *testing.T) {
	a := &Error{Code: ErrCodeDeadlock, Op: "AcquireMutex"}
	b := &Error{Code: ErrCodeDeadlock, Op: "AcquireSemaphore"}

	if !errors.Is(a, b) {
		t.Error("two structured errors with the same code should satisfy errors.Is")
	}
}
