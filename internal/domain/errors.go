package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveSession means no media source is currently registered. Retry later.
	ErrNoActiveSession = errors.New("no active media session")
	// ErrBackendUnavailable means the native service or bus cannot be reached. Retry with backoff.
	ErrBackendUnavailable = errors.New("media backend unavailable")
	// ErrUnknownStatus means the backend reported a transport state outside the known set
	ErrUnknownStatus = errors.New("unknown playback status")
	// ErrNoTimeline means the status resolved but carries no timeline
	ErrNoTimeline = errors.New("no timeline available")
	// ErrNativeCall wraps a failed native call at bag or call level
	ErrNativeCall = errors.New("native call failed")
	// ErrUnsupportedPlatform means no backend can ever serve this system. Never retried.
	ErrUnsupportedPlatform = errors.New("media sessions not supported on this platform")
	// ErrFieldUnsupported is returned by property accessors for fields a backend never provides
	ErrFieldUnsupported = errors.New("field not supported by backend")
)

// NativeCallError records which native operation failed
type NativeCallError struct {
	Op  string
	Err error
}

// NewNativeCallError wraps err as a failure of the native operation op
func NewNativeCallError(op string, err error) *NativeCallError {
	return &NativeCallError{Op: op, Err: err}
}

func (e *NativeCallError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrNativeCall, e.Op, e.Err)
}

func (e *NativeCallError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrNativeCall) hold for every NativeCallError
func (e *NativeCallError) Is(target error) bool {
	return target == ErrNativeCall
}

// Retryable reports whether err is a condition that may clear on its own
func Retryable(err error) bool {
	if errors.Is(err, ErrUnsupportedPlatform) {
		return false
	}
	return errors.Is(err, ErrNoActiveSession) || errors.Is(err, ErrBackendUnavailable)
}
