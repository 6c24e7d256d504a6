//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/ooni/probe-cli/blob/v3.20.0/internal/x/dslx/fxcore.go
//

package declare

import "context"

// Compose2 chains two [Func] instances together into a pipeline.
//
// The output of op1 becomes the input to op2. If op1 returns an error,
// op2 is not called and the error is returned immediately.
func Compose2[A, B, C any](op1 Func[A, B], op2 Func[B, C]) Func[A, C] {
	return &compose2[A, B, C]{op1, op2}
}

type compose2[A, B, C any] struct {
	op1 Func[A, B]
	op2 Func[B, C]
}

func (c *compose2[A, B, C]) Call(ctx context.Context, input A) (C, error) {
	res, err := c.op1.Call(ctx, input)
	if err != nil {
		var zero C
		return zero, err
	}
	return c.op2.Call(ctx, res)
}

// Compose3 chains three [Func] instances together.
//
// The typical use is document -> [*Options] -> run -> result:
//
//	pipe := Compose3(ParseOptionsFunc{}, seq, awaitFunc)
func Compose3[A, B, C, D any](op1 Func[A, B], op2 Func[B, C], op3 Func[C, D]) Func[A, D] {
	return Compose2(op1, Compose2(op2, op3))
}

// TargetFunc returns a [Func] that runs [*Options] against a fixed target.
//
// This is the explicit-target counterpart of using the [*Sequencer]
// itself as a [Func], which uses the default target.
func TargetFunc(seq *Sequencer, target any) Func[*Options, any] {
	return FuncAdapter[*Options, any](func(ctx context.Context, opts *Options) (any, error) {
		return seq.RunTarget(ctx, target, opts)
	})
}
