// SPDX-License-Identifier: GPL-3.0-or-later

package declare

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoTarget indicates that neither an explicit nor a default target is set.
	ErrNoTarget = errors.New("no target provided")

	// ErrUnknownOperation indicates an option outside the [*Table] allow-list.
	ErrUnknownOperation = errors.New("invalid option")

	// ErrMultipleOpeners indicates that more than one opener was provided.
	ErrMultipleOpeners = errors.New("more than one opener")

	// ErrMissingMethod indicates that the target lacks the method for an operation.
	ErrMissingMethod = errors.New("target has no such method")

	// ErrArgumentCount indicates that too many arguments were provided.
	ErrArgumentCount = errors.New("too many arguments")

	// ErrArgumentType indicates that an argument cannot be bound to a parameter.
	ErrArgumentType = errors.New("cannot bind argument")
)

// ConfigError is returned when [*Options] or the target cannot be used
// and no operation has been invoked yet.
//
// Use [errors.Is] with [ErrNoTarget], [ErrUnknownOperation], or
// [ErrMultipleOpeners] to distinguish the cases.
type ConfigError struct {
	// Err is the sentinel error.
	Err error

	// Keys contains the offending option names, if any.
	Keys []string
}

// Error implements error.
func (e *ConfigError) Error() string {
	if len(e.Keys) <= 0 {
		return "declare: " + e.Err.Error()
	}
	return fmt.Sprintf("declare: %s: %s", e.Err.Error(), strings.Join(quoteAll(e.Keys), ", "))
}

// Unwrap returns the sentinel error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

func quoteAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		out = append(out, fmt.Sprintf("%q", value))
	}
	return out
}

// InvocationError is returned when the dispatcher cannot call a method on
// the target (missing method, unbindable arguments).
//
// Errors returned by the target's own methods are never wrapped.
type InvocationError struct {
	// Operation is the option name.
	Operation string

	// Method is the Go method name derived from Operation.
	Method string

	// Target is the type of the target, formatted with %T.
	Target string

	// Err is the underlying error.
	Err error
}

// Error implements error.
func (e *InvocationError) Error() string {
	return fmt.Sprintf("declare: %s: %s.%s: %s", e.Operation, e.Target, e.Method, e.Err.Error())
}

// Unwrap returns the underlying error.
func (e *InvocationError) Unwrap() error {
	return e.Err
}
