// SPDX-License-Identifier: GPL-3.0-or-later

package declare

import "context"

// Func is a generic operation that accepts an input and returns a result.
//
// A [*Sequencer] is a Func from [*Options] to the last target of the chain,
// and [ParseOptionsFunc] is a Func from a document to [*Options]. Use
// [Compose2] and [Compose3] to build pipelines out of them.
type Func[A, B any] interface {
	Call(ctx context.Context, input A) (B, error)
}

// FuncAdapter wraps a function as a [Func] implementation.
//
// Use this to create ad-hoc [Func] instances from closures, for example
// to turn the result of a run into a concrete type.
type FuncAdapter[A, B any] func(ctx context.Context, input A) (B, error)

// Call implements [Func].
func (f FuncAdapter[A, B]) Call(ctx context.Context, input A) (B, error) {
	return f(ctx, input)
}
