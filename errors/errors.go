// Package errors provides the error taxonomy shared across sigbus: typed
// configuration/lifecycle/handler errors, categorization, and retry
// helpers used by the worker-pool executor.
package errors

import "fmt"

// ConfigError reports an invalid construction-time argument.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

// NewConfig creates a ConfigError with the given message.
func NewConfig(message string) *ConfigError {
	return &ConfigError{Message: message}
}

// LifecycleError reports a state-transition violation (double start, use
// before start, ...).
type LifecycleError struct {
	Message string
}

func (e *LifecycleError) Error() string { return e.Message }

// NewLifecycle creates a LifecycleError with the given message.
func NewLifecycle(message string) *LifecycleError {
	return &LifecycleError{Message: message}
}

// HandlerError wraps an error returned by a bus handler for reporting
// through the bus's OnError callback. Handler panics are not recovered.
// It is never returned from emit or a clock's Start — it is informational
// only.
type HandlerError struct {
	Label string // e.g. "type:order.created" or "any:0"
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s failed: %v", e.Label, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// NewHandler creates a HandlerError.
func NewHandler(label string, err error) *HandlerError {
	return &HandlerError{Label: label, Err: err}
}

// MiddlewareError wraps a middleware failure. Unlike HandlerError, this
// propagates out of emit per spec (middleware errors are not caught by the
// bus).
type MiddlewareError struct {
	Err error
}

func (e *MiddlewareError) Error() string {
	return fmt.Sprintf("middleware failed: %v", e.Err)
}

func (e *MiddlewareError) Unwrap() error { return e.Err }

// NewMiddleware creates a MiddlewareError.
func NewMiddleware(err error) *MiddlewareError {
	return &MiddlewareError{Err: err}
}
