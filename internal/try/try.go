// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package try converts panics and deferred close failures into plain error values.
package try

import (
	"errors"
	"fmt"
	"io"
	"runtime/debug"
)

// PanicError is the error recorded by [Recover] in place of a panic.
// Stack holds the goroutine stack at the point the panic was recovered.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the [builtin.error] interface.
func (e PanicError) Error() string {
	if len(e.Stack) == 0 {
		return fmt.Sprintf("recovered from panic: %v", e.Value)
	}
	return fmt.Sprintf("recovered from panic: %v\n%s", e.Value, e.Stack)
}

// Unwrap returns the panic value if it was itself an error.
func (e PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Recover must be deferred directly. It stores any recovered panic
// into err, joining it with an error which was already set.
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}

	perr := PanicError{
		Value: r,
		Stack: debug.Stack(),
	}
	if *err == nil {
		*err = perr
		return
	}
	*err = errors.Join(*err, perr)
}

// CloseError wraps the failure of a deferred Close.
type CloseError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e CloseError) Error() string {
	return fmt.Sprintf("failed to close: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e CloseError) Unwrap() error {
	return e.Cause
}

// Close closes v if it is an [io.Closer] and records a failure into err.
func Close(err *error, v any) {
	c, ok := v.(io.Closer)
	if !ok {
		return
	}

	cerr := c.Close()
	if cerr == nil {
		return
	}

	cerr = CloseError{Cause: cerr}
	if *err == nil {
		*err = cerr
		return
	}
	*err = errors.Join(*err, cerr)
}
