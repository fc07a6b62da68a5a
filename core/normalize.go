package core

import (
	"errors"
	"fmt"
	"reflect"
	"runtime"
)

// GenericKind is the error kind synthesized for values that carry no usable
// type information: plain strings, arbitrary panics, opaque stdlib error
// wrappers created by errors.New or fmt.Errorf.
const GenericKind = "RuntimeError"

// KindError lets an error supply its own kind, overriding the type-name
// extraction.
type KindError interface {
	error
	Kind() string
}

// NormalizedError is the canonical form every caller-supplied error value
// collapses to before submission: a kind, a message, and an ordered backtrace
// (innermost frame first). It is immutable once built and its Kind is never
// empty.
type NormalizedError struct {
	Kind    string
	Message string
	Frames  []StackFrame
}

// StackFrame is one call site in a normalized backtrace. Frames whose source
// location is unavailable keep zero File/Line rather than being dropped, so
// the frame count stays meaningful for diagnostics.
type StackFrame struct {
	Function string `json:"function"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
}

// ErrorNormalizer converts an arbitrary caller-supplied error value plus an
// optional call stack into a NormalizedError. The zero value is usable and
// logs through a no-op logger.
type ErrorNormalizer struct {
	Logger Logger
}

// Normalize builds the canonical (kind, message, frames) triple.
//
// Dispatch over the value's shape:
//   - an error exposing KindError: kind comes from the error itself
//   - any other error: kind is the concrete type's bare name (pointer and
//     package path trimmed); opaque stdlib wrappers fall back to GenericKind
//   - a non-error value: GenericKind plus the stringified value as message
//
// A nil stack emits a deprecation-class warning to the operator log and
// proceeds with an empty frame sequence. This is explicitly non-fatal.
func (n *ErrorNormalizer) Normalize(value interface{}, stack []uintptr) NormalizedError {
	kind, message := extract(value)

	if stack == nil {
		n.logger().Warn("Error reported without a stack trace", map[string]interface{}{
			"kind":       kind,
			"action":     "Pass core.CaptureStack(0) at the error site",
			"deprecated": "Reporting without a stack will be rejected in a future release",
		})
	}

	return NormalizedError{
		Kind:    kind,
		Message: message,
		Frames:  expandFrames(stack),
	}
}

func (n *ErrorNormalizer) logger() Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return &NoOpLogger{}
}

// CaptureStack records the calling goroutine's stack, skipping the given
// number of frames above the caller. Pass 0 to start at the call site.
func CaptureStack(skip int) []uintptr {
	pcs := make([]uintptr, 64)
	// +2 skips runtime.Callers and CaptureStack itself
	depth := runtime.Callers(skip+2, pcs)
	return pcs[:depth]
}

// extract pulls (kind, message) out of an arbitrary value, never panicking
// even for values whose Error or String methods misbehave.
func extract(value interface{}) (kind, message string) {
	if value == nil {
		return GenericKind, "unknown error (nil value reported)"
	}

	if err, ok := value.(error); ok {
		return errorKind(err), safeString(err.Error)
	}

	return GenericKind, safeString(func() string { return fmt.Sprint(value) })
}

// errorKind derives a kind from an error's identity
func errorKind(err error) string {
	var k KindError
	if errors.As(err, &k) {
		if name := k.Kind(); name != "" {
			return name
		}
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return GenericKind
	}

	name := t.Name()
	switch name {
	case "", "errorString", "wrapError", "joinError":
		// Anonymous types and the opaque stdlib wrappers carry no type
		// information worth surfacing
		return GenericKind
	}
	return name
}

// safeString invokes fn, absorbing panics from misbehaving implementations
func safeString(fn func() string) (s string) {
	defer func() {
		if recover() != nil {
			s = "(unstringifiable error value)"
		}
	}()
	s = fn()
	return s
}

// expandFrames maps raw program counters to StackFrames, preserving
// call-site ordering with the innermost frame first.
func expandFrames(stack []uintptr) []StackFrame {
	if len(stack) == 0 {
		return []StackFrame{}
	}

	out := make([]StackFrame, 0, len(stack))
	frames := runtime.CallersFrames(stack)
	for {
		frame, more := frames.Next()
		sf := StackFrame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		}
		if sf.Function == "" {
			// Unresolvable PC: keep the frame so counts stay honest
			sf.Function = "unknown"
		}
		out = append(out, sf)
		if !more {
			break
		}
	}
	return out
}
