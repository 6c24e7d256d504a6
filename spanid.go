// SPDX-License-Identifier: GPL-3.0-or-later

package declare

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewSpanID returns a UUIDv7 identifying a span.
//
// Every [*Sequencer] run logs its own span ID as runID. Callers can also
// attach an ID to a logger with [*slog.Logger.With] to correlate the
// sequencer events with the events emitted by the target.
//
// This function panics if the system random number generator fails,
// which should only happen under extraordinary circumstances.
func NewSpanID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
