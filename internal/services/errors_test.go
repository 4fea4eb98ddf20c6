package services

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapKeepsMarkerAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrExternalService, "generation", "transcript", "request failed", cause)
	if !errors.Is(err, ErrExternalService) {
		t.Error("marker lost")
	}
	if !errors.Is(err, cause) {
		t.Error("cause lost")
	}
	want := "external service error: generation: transcript: request failed: connection refused"
	if err.Error() != want {
		t.Errorf("message = %q, want %q", err.Error(), want)
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := Wrap(nil, "audio", "", "", nil)
	if !errors.Is(err, ErrExternalService) {
		t.Errorf("nil marker should classify as external: %v", err)
	}
}

func TestKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{Wrap(ErrValidation, "api", "resolve", "topic required", nil), "validation"},
		{Wrap(ErrNotFound, "store", "topic", "missing", nil), "not_found"},
		{Wrap(ErrConflict, "lifecycle", "enqueue", "not a candidate", nil), "conflict"},
		{Wrap(ErrExternalService, "generation", "", "", nil), "external"},
		{Wrap(ErrTimeout, "audio", "", "", nil), "external"},
		{Wrap(ErrPersistence, "store", "", "", nil), "persistence"},
		{errors.New("plain"), "internal"},
	}
	for _, tc := range cases {
		if got := Kind(tc.err); got != tc.want {
			t.Errorf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(nil) {
		t.Error("nil is not retryable")
	}
	if Retryable(Wrap(ErrValidation, "", "", "bad input", nil)) {
		t.Error("validation errors must not be retried")
	}
	if Retryable(Wrap(ErrConflict, "", "", "raced", nil)) {
		t.Error("conflicts must not be retried")
	}
	if !Retryable(Wrap(ErrTimeout, "", "", "slow upstream", nil)) {
		t.Error("timeouts are retryable")
	}
	// Wrapping keeps classification through another layer.
	wrapped := fmt.Errorf("run job: %w", Wrap(ErrExternalService, "generation", "", "down", nil))
	if !Retryable(wrapped) {
		t.Error("wrapped external errors stay retryable")
	}
}
