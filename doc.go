// SPDX-License-Identifier: GPL-3.0-or-later

// Package declare replays declarative option maps as chains of method calls
// on fluent builders, such as HTTP request builders.
//
// # Core Abstraction
//
// An [*Options] is an ordered map from operation names to argument
// specifications. A [*Sequencer] turns it into calls:
//
//	opts := declare.NewOptions().
//		Set("post", "/login").
//		Set("type", "json").
//		Set("send", map[string]any{"user": "x"}).
//		Set("end", callback)
//
// becomes, on the default target a:
//
//	req := a.Post(ctx, "/login")
//	req = req.Type("json")
//	req = req.Send(map[string]any{"user": "x"})
//	req = req.End(ctx, callback)
//
// A run has three phases:
//
//  1. at most one opener (get, post, ...) is invoked on the target;
//  2. body operations are invoked in key order;
//  3. closers are invoked in the canonical order send, end, then, catch,
//     whatever their position in the [*Options].
//
// Each invocation returns the target of the next one. The [*Table]
// defines which names are allowed and their class; see [DefaultTable].
//
// # Argument Specifications
//
// [NormalizeArgs] defines how a value expands into invocations. A scalar
// is one call with one argument. A sequence is one call with its elements
// as arguments, except that leading elements which are themselves
// sequences are separate calls. Thus the "query" value
//
//	[][]any{{"a=1"}, {"b=2"}}
//
// calls Query twice.
//
// # Dispatch
//
// Targets implementing [Invoker] dispatch operations themselves. Any
// other target is called by reflection, mapping operation names to
// method names with [Config.MethodName]. Methods whose first parameter
// is a [context.Context] receive the context of the run.
//
// # Documents
//
// [*Options] implements [yaml.Unmarshaler] preserving document order,
// so that the same options can be stored in YAML (or JSON) files. Use
// [ParseOptionsFunc] and [Compose3] to build document pipelines.
//
// # Observability
//
// The [*Sequencer] emits structured logs via [SLogger]: sequenceStart and
// sequenceDone at [slog.LevelInfo] around a run, and invokeStart and
// invokeDone at [slog.LevelDebug] around each invocation. All events of a
// run share a runID generated with [NewSpanID]. Completion events include
// err and errClass, computed using [ErrClassifier].
//
// By default, logging is disabled.
package declare
