package drmoutput

import (
	"errors"
	"fmt"
	"syscall"
)

// Error represents a structured output-core error with context and errno mapping.
type Error struct {
	Op        string    // Operation that failed (e.g. "commit", "create_buffer")
	DeviceID  int       // DRM device index (-1 if not applicable)
	Connector uint32    // Connector kernel id (0 if not applicable)
	CRTC      uint32    // CRTC kernel id (0 if not applicable)
	Kind      ErrorKind // High-level error category
	Reason    Reason    // Sub-reason for KindKmsAtomicFailure
	Errno     syscall.Errno
	Msg       string
	Inner     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.DeviceID >= 0 {
		parts = append(parts, fmt.Sprintf("dev=%d", e.DeviceID))
	}
	if e.Connector != 0 {
		parts = append(parts, fmt.Sprintf("connector=%d", e.Connector))
	}
	if e.CRTC != 0 {
		parts = append(parts, fmt.Sprintf("crtc=%d", e.CRTC))
	}
	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Kind == KindKmsAtomicFailure && e.Reason != ReasonNone {
		msg = fmt.Sprintf("%s(%s)", msg, e.Reason)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("drmoutput: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("drmoutput: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support for ErrorKind comparison.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Kind == te.Kind
	}
	if k, ok := target.(ErrorKind); ok {
		return e.Kind == k
	}
	return false
}

// ErrorKind is the sum type of error categories at the core's public surface
// (spec section 7).
type ErrorKind string

func (k ErrorKind) Error() string { return string(k) }

const (
	// KindAllocFailure: buffer/blob allocation failed; commit is aborted,
	// pending cleared.
	KindAllocFailure ErrorKind = "alloc failure"
	// KindKmsAtomicFailure: kernel rejected an atomic request. Reason
	// distinguishes a modeset commit from a pageflip-only commit.
	KindKmsAtomicFailure ErrorKind = "kms atomic failure"
	// KindKmsLegacyFailure: drmModeSetCrtc/drmModePageFlip returned non-zero;
	// no retry.
	KindKmsLegacyFailure ErrorKind = "kms legacy failure"
	// KindLeaseRevoked: a lessee lost access; outputs in the lease are
	// marked destroyed and re-advertised.
	KindLeaseRevoked ErrorKind = "lease revoked"
	// KindSessionPaused: transient; the next commit may succeed after resume.
	KindSessionPaused ErrorKind = "session paused"
	// KindInvalidState: caller tried an operation forbidden by the state
	// machine (e.g. commit while pageflip pending).
	KindInvalidState ErrorKind = "invalid state"
)

// Reason further qualifies KindKmsAtomicFailure.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonModeset  Reason = "modeset"
	ReasonPageFlip Reason = "pageflip"
)

// Error constructors, one per call site, matching the teacher's pattern.

func NewAllocError(op string, msg string) *Error {
	return &Error{Op: op, DeviceID: -1, Kind: KindAllocFailure, Msg: msg}
}

func NewAtomicError(op string, crtc uint32, reason Reason, errno syscall.Errno) *Error {
	return &Error{
		Op: op, DeviceID: -1, CRTC: crtc,
		Kind: KindKmsAtomicFailure, Reason: reason,
		Errno: errno, Msg: errno.Error(),
	}
}

func NewLegacyError(op string, crtc uint32, errno syscall.Errno) *Error {
	return &Error{
		Op: op, DeviceID: -1, CRTC: crtc,
		Kind: KindKmsLegacyFailure, Errno: errno, Msg: errno.Error(),
	}
}

func NewLeaseRevokedError(op string, connector uint32) *Error {
	return &Error{Op: op, DeviceID: -1, Connector: connector, Kind: KindLeaseRevoked, Msg: "lease revoked"}
}

func NewSessionPausedError(op string) *Error {
	return &Error{Op: op, DeviceID: -1, Kind: KindSessionPaused, Msg: "session is paused"}
}

func NewInvalidStateError(op string, msg string) *Error {
	return &Error{Op: op, DeviceID: -1, Kind: KindInvalidState, Msg: msg}
}

// WrapError wraps an existing error with output-core context, mapping a raw
// errno to the closest ErrorKind when the inner error carries one.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}

	if de, ok := inner.(*Error); ok {
		return &Error{
			Op: op, DeviceID: de.DeviceID, Connector: de.Connector, CRTC: de.CRTC,
			Kind: de.Kind, Reason: de.Reason, Errno: de.Errno, Msg: de.Msg, Inner: de.Inner,
		}
	}

	if errno, ok := inner.(syscall.Errno); ok {
		return &Error{
			Op: op, DeviceID: -1, Kind: mapErrnoToKind(errno),
			Errno: errno, Msg: errno.Error(), Inner: inner,
		}
	}

	return &Error{Op: op, DeviceID: -1, Kind: KindInvalidState, Msg: inner.Error(), Inner: inner}
}

// mapErrnoToKind maps a syscall errno from a KMS ioctl to an ErrorKind.
func mapErrnoToKind(errno syscall.Errno) ErrorKind {
	switch errno {
	case syscall.ENOMEM, syscall.ENOSPC:
		return KindAllocFailure
	case syscall.EACCES, syscall.EPERM:
		return KindSessionPaused
	case syscall.EINVAL, syscall.EBUSY:
		return KindKmsAtomicFailure
	default:
		return KindInvalidState
	}
}

// IsKind checks if an error matches a specific error kind.
func IsKind(err error, kind ErrorKind) bool {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Kind == kind
	}
	return false
}
