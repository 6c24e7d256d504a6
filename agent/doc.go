// SPDX-License-Identifier: GPL-3.0-or-later

// Package agent implements a fluent HTTP request builder on top of resty.
//
// The [*Agent] methods are the openers of [declare.DefaultTable] and the
// [*Request] methods are its body operations and closers, so an [*Agent]
// is a suitable default target for a [*declare.Sequencer].
//
// A [*Request] is executed at most once, by [*Request.End], [*Request.Then],
// [*Request.Catch], or [*Request.Pipe]. Each execution uses a dedicated
// transport dialing through [declare.Config.Dialer] and emits
// connectStart/connectDone, httpRoundTripStart/httpRoundTripDone, and
// httpBodyStreamStart/httpBodyStreamDone events at [slog.LevelInfo].
//
// Responses whose status is not 2xx fail with [*HTTPError], unless
// overridden with [*Request.Ok].
package agent
