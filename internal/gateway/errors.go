// internal/gateway/errors.go
package gateway

import (
	"errors"
	"fmt"
)

// ErrNativeCall is matched by every CallError.
var ErrNativeCall = errors.New("native call failed")

// CallError is the failure result of one native call.
// The gateway does not interpret Status beyond pass/fail.
type CallError struct {
	Op     string // wp_* entry point
	Index  int    // native spectrometer index, -1 for library-wide calls
	Status int32  // raw return value
}

func (e *CallError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s(spec=%d): status %d", e.Op, e.Index, e.Status)
}

func (e *CallError) Is(target error) bool { return target == ErrNativeCall }

// Code exposes the status as a positive device-status code (1 when the
// status does not fit).
func (e *CallError) Code() uint16 {
	s := e.Status
	if s < 0 {
		s = -s
	}
	if s <= 0 || s > 0xFFFF {
		return 1
	}
	return uint16(s)
}

func fail(op string, index int, status int32) error {
	return &CallError{Op: op, Index: index, Status: status}
}
