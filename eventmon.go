// eventmon: Generic signal interception and recording for live Go objects
//
// Philosophy:
// - Attach once, record everything: no per-signal glue code
// - Never keep a monitored object alive (weak references only)
// - Fine-grained locking: registry, monitor and recorder each own their lock
// - Explicit, idempotent disposal instead of finalizer magic
//
// Example Usage:
//   registry, _ := eventmon.New(eventmon.Config{})
//   defer registry.Close()
//
//   monitor, err := eventmon.Attach(registry, door, eventmon.AllOf[*Door]())
//   if err != nil {
//       return err
//   }
//   defer monitor.Dispose()
//
//   door.Close("timeout")
//   closed, _ := monitor.Recorder("Closed")
//   for _, occ := range closed.Snapshot() {
//       fmt.Println(occ.Args)
//   }
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package eventmon

import (
	goerrors "errors"
	"time"
	"weak"

	"github.com/agilira/go-errors"
)

// Error codes for eventmon operations
const (
	ErrCodeInvalidArgument        = "EVENTMON_INVALID_ARGUMENT"
	ErrCodeUnsupportedTarget      = "EVENTMON_UNSUPPORTED_TARGET"
	ErrCodeTargetGone             = "EVENTMON_TARGET_GONE"
	ErrCodeNotFound               = "EVENTMON_NOT_FOUND"
	ErrCodeUnsupportedSignalShape = "EVENTMON_UNSUPPORTED_SIGNAL_SHAPE"
	ErrCodeSubscribeFailed        = "EVENTMON_SUBSCRIBE_FAILED"
	ErrCodeUnsubscribeFailed      = "EVENTMON_UNSUBSCRIBE_FAILED"
	ErrCodeMonitorDisposed        = "EVENTMON_MONITOR_DISPOSED"
	ErrCodeRegistryClosed         = "EVENTMON_REGISTRY_CLOSED"
	ErrCodeInvalidConfig          = "EVENTMON_INVALID_CONFIG"
	ErrCodeInvalidPrefix          = "EVENTMON_INVALID_PREFIX"
	ErrCodeInvalidAuditConfig     = "EVENTMON_INVALID_AUDIT_CONFIG"
	ErrCodeInvalidBufferSize      = "EVENTMON_INVALID_BUFFER_SIZE"
	ErrCodeInvalidFlushInterval   = "EVENTMON_INVALID_FLUSH_INTERVAL"
	ErrCodeInvalidOutputFile      = "EVENTMON_INVALID_OUTPUT_FILE"
	ErrCodeIOError                = "EVENTMON_IO_ERROR"
)

// ErrorHandler receives problems that cannot be returned to a caller, such as
// a failing Off<Name> method during Dispose. signal is empty when the problem
// is not tied to a single signal.
type ErrorHandler func(err error, signal string)

// ErrorCode returns the eventmon code carried by err, or "" when err is not a
// coded error.
func ErrorCode(err error) string {
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		return string(coder.ErrorCode())
	}
	return ""
}

// HasCode reports whether err, or any error in its tree, carries code. Like
// errors.Is it descends into every branch of a joined error.
func HasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	if coder, ok := err.(errors.ErrorCoder); ok && string(coder.ErrorCode()) == code {
		return true
	}
	switch wrapped := err.(type) {
	case interface{ Unwrap() error }:
		return HasCode(wrapped.Unwrap(), code)
	case interface{ Unwrap() []error }:
		for _, inner := range wrapped.Unwrap() {
			if HasCode(inner, code) {
				return true
			}
		}
	}
	return false
}

// Occurrence is an immutable record of one signal firing.
type Occurrence struct {
	Signal string    // Name of the signal that fired
	Source Ref       // Object that raised the signal (non-owning)
	Args   []any     // Arguments in declaration order; a variadic tail stays a slice
	Seq    uint64    // Monitor-wide sequence number, strictly increasing
	Time   time.Time // Arrival time from the configured clock
}

// Len returns the number of arguments supplied with the occurrence.
func (o Occurrence) Len() int { return len(o.Args) }

// Arg returns argument i, or nil when i is out of range.
func (o Occurrence) Arg(i int) any {
	if i < 0 || i >= len(o.Args) {
		return nil
	}
	return o.Args[i]
}

// Ref is a non-owning reference to a monitored object.
type Ref struct {
	target targetRef
}

// Value resolves the referenced object, or returns nil once it was collected.
func (r Ref) Value() any {
	if r.target == nil {
		return nil
	}
	return r.target.value()
}

// Alive reports whether the referenced object is still reachable.
func (r Ref) Alive() bool {
	return r.target != nil && r.target.alive()
}

// targetRef hides the concrete weak.Pointer type so monitors and recorders
// can hold references to objects of any type.
type targetRef interface {
	value() any
	alive() bool
	// key is comparable and equal only for references to the same object.
	key() any
	typeName() string
}

type weakTarget[T any] struct {
	ptr  weak.Pointer[T]
	name string
}

func makeTarget[T any](target *T) weakTarget[T] {
	return weakTarget[T]{ptr: weak.Make(target), name: typeNameOf[T]()}
}

func (w weakTarget[T]) value() any {
	if v := w.ptr.Value(); v != nil {
		return v
	}
	return nil
}

func (w weakTarget[T]) alive() bool { return w.ptr.Value() != nil }

func (w weakTarget[T]) key() any { return w.ptr }

func (w weakTarget[T]) typeName() string { return w.name }
