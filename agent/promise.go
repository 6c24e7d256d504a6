// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import "context"

// Promise is the eventual outcome of a request.
//
// Continuations registered with [*Promise.Then] and [*Promise.Catch] run
// in the background once the promise settles. Use [*Promise.Await] to
// block until it does.
type Promise struct {
	done  chan struct{}
	value any
	err   error
}

func newPromise(fn func() (any, error)) *Promise {
	p := &Promise{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.value, p.err = fn()
	}()
	return p
}

// Await waits for the promise to settle or for ctx to be done.
func (p *Promise) Await(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Then returns a promise resolved by onFulfilled or onRejected once p
// settles. A nil handler passes the value or the error through.
func (p *Promise) Then(onFulfilled func(value any) (any, error), onRejected func(err error) (any, error)) *Promise {
	return newPromise(func() (any, error) {
		<-p.done
		if p.err != nil {
			if onRejected != nil {
				return onRejected(p.err)
			}
			return nil, p.err
		}
		if onFulfilled != nil {
			return onFulfilled(p.value)
		}
		return p.value, nil
	})
}

// Catch is a shorthand for Then(nil, onRejected).
func (p *Promise) Catch(onRejected func(err error) (any, error)) *Promise {
	return p.Then(nil, onRejected)
}
