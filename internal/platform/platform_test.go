package platform

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_IsByCategory(t *testing.T) {
	err := &Error{Category: CategoryPermissionDenied, Interface: "eth0",
		Err: errors.New("operation not permitted")}

	if !errors.Is(err, ErrPermissionDenied) {
		t.Error("errors.Is(err, ErrPermissionDenied) = false, want true")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("errors.Is(err, ErrNotFound) = true, want false")
	}
}

func TestError_IsThroughWrapping(t *testing.T) {
	inner := &Error{Category: CategoryNotFound, Interface: "eth9"}
	wrapped := fmt.Errorf("engine: apply: %w", inner)

	if !errors.Is(wrapped, ErrNotFound) {
		t.Error("errors.Is(wrapped, ErrNotFound) = false, want true")
	}
}

func TestError_Message(t *testing.T) {
	err := &Error{Category: CategoryCardIncompatible, Interface: "eth0",
		Err: errors.New("EINVAL")}
	got := err.Error()
	want := "platform: card_incompatible: interface eth0: EINVAL"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	bare := &Error{Category: CategoryNotFound, Interface: "eth9"}
	if got := bare.Error(); got != "platform: not_found: interface eth9" {
		t.Errorf("Error() = %q", got)
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{Category: CategoryUnsupported, Err: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want true via Unwrap")
	}
}
