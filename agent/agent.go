// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bassosimone/declare"
	"github.com/bassosimone/runtimex"
)

// NewAgent returns a new [*Agent].
//
// The cfg argument contains the common configuration.
//
// The logger argument is the [declare.SLogger] to use for structured logging.
func NewAgent(cfg *declare.Config, logger declare.SLogger) *Agent {
	runtimex.Assert(cfg != nil)
	return &Agent{
		BaseURL:       "",
		Dialer:        cfg.Dialer,
		ErrClassifier: cfg.ErrClassifier,
		Header:        http.Header{},
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
	}
}

// Agent creates [*Request] instances. It is the usual default target of a
// [*declare.Sequencer], and its methods are the openers of the default table.
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with creating requests.
type Agent struct {
	// BaseURL is prepended to request URLs starting with "/".
	//
	// Set by [NewAgent] to the empty string.
	BaseURL string

	// Dialer is the [declare.Dialer] used by the default transport.
	//
	// Set by [NewAgent] from [declare.Config.Dialer].
	Dialer declare.Dialer

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewAgent] from [declare.Config.ErrClassifier].
	ErrClassifier declare.ErrClassifier

	// Header contains headers copied into every new request.
	//
	// Set by [NewAgent] to an empty header.
	Header http.Header

	// Logger is the [declare.SLogger] to use.
	//
	// Set by [NewAgent] to the user-provided logger.
	Logger declare.SLogger

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewAgent] from [declare.Config.TimeNow].
	TimeNow func() time.Time
}

// Set sets a header sent with every request created afterwards.
func (a *Agent) Set(name, value string) *Agent {
	a.Header.Set(name, value)
	return a
}

// Get creates a GET request.
//
// Each element of rest that is a func(error, *Response) ends the request
// right away using [*Request.End]. Any other non-nil element is passed to
// [*Request.Send]. Thus Get(ctx, url, data, callback) is a shorthand for
// creating, sending, and ending the request.
func (a *Agent) Get(ctx context.Context, url string, rest ...any) (*Request, error) {
	return a.open(ctx, http.MethodGet, url, rest)
}

// Put is like [*Agent.Get] but uses PUT.
func (a *Agent) Put(ctx context.Context, url string, rest ...any) (*Request, error) {
	return a.open(ctx, http.MethodPut, url, rest)
}

// Post is like [*Agent.Get] but uses POST.
func (a *Agent) Post(ctx context.Context, url string, rest ...any) (*Request, error) {
	return a.open(ctx, http.MethodPost, url, rest)
}

// Patch is like [*Agent.Get] but uses PATCH.
func (a *Agent) Patch(ctx context.Context, url string, rest ...any) (*Request, error) {
	return a.open(ctx, http.MethodPatch, url, rest)
}

// Delete is like [*Agent.Get] but uses DELETE.
func (a *Agent) Delete(ctx context.Context, url string, rest ...any) (*Request, error) {
	return a.open(ctx, http.MethodDelete, url, rest)
}

// Del is an alias for [*Agent.Delete].
func (a *Agent) Del(ctx context.Context, url string, rest ...any) (*Request, error) {
	return a.Delete(ctx, url, rest...)
}

// Head is like [*Agent.Get] but uses HEAD.
func (a *Agent) Head(ctx context.Context, url string, rest ...any) (*Request, error) {
	return a.open(ctx, http.MethodHead, url, rest)
}

// Options is like [*Agent.Get] but uses OPTIONS.
func (a *Agent) Options(ctx context.Context, url string, rest ...any) (*Request, error) {
	return a.open(ctx, http.MethodOptions, url, rest)
}

// Request creates a request using an arbitrary method.
func (a *Agent) Request(ctx context.Context, method, url string, rest ...any) (*Request, error) {
	return a.open(ctx, strings.ToUpper(method), url, rest)
}

func (a *Agent) open(ctx context.Context, method, url string, rest []any) (*Request, error) {
	req := a.newRequest(method, url)
	for _, elem := range rest {
		switch value := elem.(type) {
		case nil:
			// nothing
		case func(error, *Response):
			req.End(ctx, value)
		case Callback:
			req.End(ctx, value)
		default:
			if _, err := req.Send(value); err != nil {
				return nil, err
			}
		}
	}
	return req, nil
}

func (a *Agent) newRequest(method, url string) *Request {
	if a.BaseURL != "" && strings.HasPrefix(url, "/") {
		url = strings.TrimSuffix(a.BaseURL, "/") + url
	}
	return &Request{
		Header:    a.Header.Clone(),
		Method:    method,
		URL:       url,
		agent:     a,
		buffer:    true,
		events:    map[string][]*listener{},
		redirects: defaultRedirects,
	}
}
