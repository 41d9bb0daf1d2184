// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package dispatch

import "fmt"

// RouteNotFoundError occurs when no handler is registered for a path key.
type RouteNotFoundError struct {
	Key string
}

// Error implements the [builtin.error] interface.
func (e RouteNotFoundError) Error() string {
	return fmt.Sprintf("no handler registered for path key: %q", e.Key)
}

// HandlerError occurs when a handler returns an error or panics.
type HandlerError struct {
	Key   string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e HandlerError) Error() string {
	return fmt.Sprintf("handler for path key %q failed: %s", e.Key, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e HandlerError) Unwrap() error {
	return e.Cause
}

// BodyReadError occurs when the request body can not be read.
type BodyReadError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e BodyReadError) Error() string {
	return fmt.Sprintf("failed to read request body: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e BodyReadError) Unwrap() error {
	return e.Cause
}

// ResponseWriteError occurs when the response can not be written back to the client.
type ResponseWriteError struct {
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ResponseWriteError) Error() string {
	return fmt.Sprintf("failed to write response: %s", e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ResponseWriteError) Unwrap() error {
	return e.Cause
}
