// SPDX-License-Identifier: GPL-3.0-or-later

package declare

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	"github.com/bassosimone/runtimex"
)

// NewSequencer returns a new [*Sequencer].
//
// The cfg argument contains the common configuration.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewSequencer(cfg *Config, logger SLogger) *Sequencer {
	runtimex.Assert(cfg != nil && cfg.Table != nil)
	return &Sequencer{
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		MethodName:    cfg.MethodName,
		Table:         cfg.Table,
		TimeNow:       cfg.TimeNow,
	}
}

// Sequencer replays [*Options] as a chain of method calls on a target.
//
// A run invokes, in order:
//
//  1. the opener, if any, on the target;
//  2. every body operation, in [*Options] key order;
//  3. every closer, in the canonical order defined by the [*Table].
//
// Each invocation returns the target of the next one, so a chain may
// switch from, e.g., an agent to a request to a promise. The run returns
// the last target.
//
// Validation completes before the first invocation: [*Options] with
// unknown names or more than one opener never touch the target.
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Run].
type Sequencer struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewSequencer] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use (configurable for testing or custom logging).
	//
	// Set by [NewSequencer] to the user-provided logger.
	Logger SLogger

	// MethodName maps operation names to Go method names.
	//
	// Set by [NewSequencer] from [Config.MethodName].
	MethodName func(operation string) string

	// Table is the allow-list and classification of operations.
	//
	// Set by [NewSequencer] from [Config.Table].
	Table *Table

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewSequencer] from [Config.TimeNow].
	TimeNow func() time.Time

	// defaultTarget is used when a run has no explicit target.
	defaultTarget any
}

var _ Func[*Options, any] = &Sequencer{}

// SetDefaultTarget sets the target used by [*Sequencer.Run] and by
// [*Sequencer.RunTarget] with a nil target. A nil target clears it.
//
// This method is not synchronized with concurrent runs.
func (s *Sequencer) SetDefaultTarget(target any) {
	s.defaultTarget = target
}

// DefaultTarget returns the target set with [*Sequencer.SetDefaultTarget].
func (s *Sequencer) DefaultTarget() any {
	return s.defaultTarget
}

// Call implements [Func] by calling [*Sequencer.Run].
func (s *Sequencer) Call(ctx context.Context, opts *Options) (any, error) {
	return s.Run(ctx, opts)
}

// Run runs opts against the default target.
func (s *Sequencer) Run(ctx context.Context, opts *Options) (any, error) {
	return s.RunTarget(ctx, nil, opts)
}

// RunTarget runs opts against target, or against the default target when
// target is nil (or a typed nil), and returns the last target of the chain.
//
// Failures detected before the first invocation are [*ConfigError]. Errors
// returned by the target's methods are returned unmodified and leave the
// target in the state produced by the previous invocations.
//
// The opts argument is never modified.
func (s *Sequencer) RunTarget(ctx context.Context, target any, opts *Options) (result any, err error) {
	runID := NewSpanID()
	t0 := s.TimeNow()
	s.logSequenceStart(runID, t0, opts)
	defer func() {
		s.logSequenceDone(runID, t0, opts, err)
	}()
	return s.run(ctx, runID, target, opts)
}

func (s *Sequencer) run(ctx context.Context, runID string, target any, opts *Options) (any, error) {
	// 1. resolve the target before looking at opts
	if isNilTarget(target) {
		target = s.defaultTarget
	}
	if isNilTarget(target) {
		return nil, &ConfigError{Err: ErrNoTarget}
	}

	// 2. work on a copy so that opts is never modified
	working := opts.Clone()
	if err := s.validate(working); err != nil {
		return nil, err
	}

	// 3. find and invoke the opener
	openers := extract(working, s.Table.Openers())
	if len(openers) > 1 {
		return nil, &ConfigError{Err: ErrMultipleOpeners, Keys: openers}
	}
	var err error
	for _, name := range openers {
		spec, _ := opts.Get(name)
		if target, err = s.apply(ctx, runID, target, name, ClassOpener, spec); err != nil {
			return nil, err
		}
	}

	// 4. set the closers aside
	closers := extract(working, s.Table.Closers())

	// 5. apply what remains in key order
	for _, name := range working.Keys() {
		spec, _ := working.Get(name)
		if target, err = s.apply(ctx, runID, target, name, ClassBody, spec); err != nil {
			return nil, err
		}
	}

	// 6. closers read the caller's opts, not the working copy
	for _, name := range closers {
		spec, _ := opts.Get(name)
		if target, err = s.apply(ctx, runID, target, name, ClassCloser, spec); err != nil {
			return nil, err
		}
	}
	return target, nil
}

func (s *Sequencer) validate(opts *Options) error {
	var unknown []string
	for _, name := range opts.Keys() {
		if _, found := s.Table.Classify(name); !found {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return &ConfigError{Err: ErrUnknownOperation, Keys: unknown}
	}
	return nil
}

// isNilTarget reports whether target is nil, including a typed nil
// pointer, map, or func stored in an interface.
func isNilTarget(target any) bool {
	if target == nil {
		return true
	}
	rv := reflect.ValueOf(target)
	return isNillable(rv.Kind()) && rv.IsNil()
}

// extract removes the given names from opts and returns those that were present.
func extract(opts *Options, names []string) (found []string) {
	for _, name := range names {
		if opts.Delete(name) {
			found = append(found, name)
		}
	}
	return
}

// apply performs every invocation described by spec and threads the target.
func (s *Sequencer) apply(ctx context.Context,
	runID string, target any, name string, class Class, spec any) (any, error) {
	for _, args := range NormalizeArgs(spec) {
		t0 := s.TimeNow()
		s.logInvokeStart(runID, name, class, args, t0)
		next, err := s.invoke(ctx, target, name, args)
		s.logInvokeDone(runID, name, class, args, t0, err)
		if err != nil {
			return nil, err
		}
		target = next
	}
	return target, nil
}

func (s *Sequencer) logSequenceStart(runID string, t0 time.Time, opts *Options) {
	s.Logger.Info(
		"sequenceStart",
		slog.Any("operations", opts.Keys()),
		slog.String("runID", runID),
		slog.Time("t", t0),
	)
}

func (s *Sequencer) logSequenceDone(runID string, t0 time.Time, opts *Options, err error) {
	s.Logger.Info(
		"sequenceDone",
		slog.Any("err", err),
		slog.String("errClass", s.ErrClassifier.Classify(err)),
		slog.Any("operations", opts.Keys()),
		slog.String("runID", runID),
		slog.Time("t0", t0),
		slog.Time("t", s.TimeNow()),
	)
}

func (s *Sequencer) logInvokeStart(runID, name string, class Class, args []any, t0 time.Time) {
	s.Logger.Debug(
		"invokeStart",
		slog.Int("argc", len(args)),
		slog.String("class", class.String()),
		slog.String("method", s.MethodName(name)),
		slog.String("operation", name),
		slog.String("runID", runID),
		slog.Time("t", t0),
	)
}

func (s *Sequencer) logInvokeDone(runID, name string, class Class, args []any, t0 time.Time, err error) {
	s.Logger.Debug(
		"invokeDone",
		slog.Int("argc", len(args)),
		slog.String("class", class.String()),
		slog.Any("err", err),
		slog.String("errClass", s.ErrClassifier.Classify(err)),
		slog.String("method", s.MethodName(name)),
		slog.String("operation", name),
		slog.String("runID", runID),
		slog.Time("t0", t0),
		slog.Time("t", s.TimeNow()),
	)
}
