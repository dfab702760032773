package drmoutput

import (
	"errors"
	"strings"
	"syscall"
	"testing"
)

func TestAllocErrorMessage(t *testing.T) {
	err := NewAllocError("create_buffer", "no dmabuf heap available")

	if err.Kind != KindAllocFailure {
		t.Errorf("Kind = %v, want KindAllocFailure", err.Kind)
	}

	want := "drmoutput: no dmabuf heap available (op=create_buffer)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestAtomicErrorIncludesCRTCAndReason(t *testing.T) {
	err := NewAtomicError("commit", 42, ReasonModeset, syscall.EINVAL)

	if err.CRTC != 42 {
		t.Errorf("CRTC = %d, want 42", err.CRTC)
	}
	if err.Kind != KindKmsAtomicFailure {
		t.Errorf("Kind = %v, want KindKmsAtomicFailure", err.Kind)
	}

	got := err.Error()
	if !strings.Contains(got, "invalid argument(modeset)") || !strings.Contains(got, "op=commit") {
		t.Errorf("Error() = %q, missing reason/op detail", got)
	}
}

func TestLeaseRevokedError(t *testing.T) {
	err := NewLeaseRevokedError("commit", 7)
	if err.Kind != KindLeaseRevoked {
		t.Errorf("Kind = %v, want KindLeaseRevoked", err.Kind)
	}
	if err.Connector != 7 {
		t.Errorf("Connector = %d, want 7", err.Connector)
	}
}

func TestWrapErrorPreservesInnerDrmoutputError(t *testing.T) {
	inner := NewSessionPausedError("commit")
	wrapped := WrapError("reconcile", inner)

	if wrapped.Kind != KindSessionPaused {
		t.Errorf("Kind = %v, want KindSessionPaused", wrapped.Kind)
	}
	if wrapped.Op != "reconcile" {
		t.Errorf("Op = %q, want reconcile", wrapped.Op)
	}
}

func TestWrapErrorMapsBareErrno(t *testing.T) {
	wrapped := WrapError("commit", syscall.ENOMEM)
	if wrapped.Kind != KindAllocFailure {
		t.Errorf("Kind = %v, want KindAllocFailure", wrapped.Kind)
	}
	if wrapped.Errno != syscall.ENOMEM {
		t.Errorf("Errno = %v, want ENOMEM", wrapped.Errno)
	}
}

func TestWrapErrorNilIsNil(t *testing.T) {
	if WrapError("op", nil) != nil {
		t.Error("WrapError(op, nil) should be nil")
	}
}

func TestIsKind(t *testing.T) {
	err := NewInvalidStateError("commit", "pageflip already pending")
	if !IsKind(err, KindInvalidState) {
		t.Error("IsKind should match KindInvalidState")
	}
	if IsKind(err, KindAllocFailure) {
		t.Error("IsKind should not match KindAllocFailure")
	}
	if IsKind(nil, KindInvalidState) {
		t.Error("IsKind should return false for nil error")
	}
}

func TestErrorIsMatchesByKind(t *testing.T) {
	a := NewAllocError("create_buffer", "oom")
	b := NewAllocError("swapchain_resize", "oom")

	if !errors.Is(a, b) {
		t.Error("two *Error values with the same Kind should satisfy errors.Is")
	}
}

func TestMapErrnoToKind(t *testing.T) {
	cases := []struct {
		errno syscall.Errno
		want  ErrorKind
	}{
		{syscall.ENOMEM, KindAllocFailure},
		{syscall.ENOSPC, KindAllocFailure},
		{syscall.EACCES, KindSessionPaused},
		{syscall.EPERM, KindSessionPaused},
		{syscall.EINVAL, KindKmsAtomicFailure},
		{syscall.EBUSY, KindKmsAtomicFailure},
		{syscall.ENOENT, KindInvalidState},
	}
	for _, c := range cases {
		if got := mapErrnoToKind(c.errno); got != c.want {
			t.Errorf("mapErrnoToKind(%v) = %v, want %v", c.errno, got, c.want)
		}
	}
}
