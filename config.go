// SPDX-License-Identifier: GPL-3.0-or-later

package declare

import (
	"context"
	"net"
	"time"
)

// Dialer abstracts the [*net.Dialer] behavior.
//
// The agent package dials through this interface, which allows for unit
// testing and for using alternative dialers.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Config holds common configuration for a [*Sequencer] and its targets.
//
// Pass this to constructor functions to pre-wire dependencies.
// All fields have sensible defaults set by [NewConfig].
type Config struct {
	// Dialer is used by targets that open connections.
	//
	// Set by [NewConfig] to [*net.Dialer].
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// MethodName maps an operation name to the target's Go method name.
	//
	// Set by [NewConfig] to [ExportedMethodName].
	MethodName func(operation string) string

	// Table is the allow-list and classification of operations.
	//
	// Set by [NewConfig] to [DefaultTable].
	Table *Table

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Dialer:        &net.Dialer{},
		ErrClassifier: DefaultErrClassifier,
		MethodName:    ExportedMethodName,
		Table:         DefaultTable(),
		TimeNow:       time.Now,
	}
}
