// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/bassosimone/declare"
	"github.com/go-resty/resty/v2"
)

// End executes the request and calls callback with the outcome.
//
// Unlike [*Request.Then], End blocks until the response has been received
// and returns the request itself.
func (r *Request) End(ctx context.Context, callback Callback) *Request {
	resp, err := r.execute(ctx)
	if callback != nil {
		callback(err, resp)
	}
	return r
}

// Then executes the request in the background and returns a [*Promise]
// resolved by onFulfilled or onRejected. When the relevant handler is
// nil, the promise resolves to the [*Response] or rejects with the error.
func (r *Request) Then(ctx context.Context,
	onFulfilled func(resp *Response) (any, error), onRejected func(err error) (any, error)) *Promise {
	return newPromise(func() (any, error) {
		resp, err := r.execute(ctx)
		if err != nil {
			if onRejected != nil {
				return onRejected(err)
			}
			return nil, err
		}
		if onFulfilled != nil {
			return onFulfilled(resp)
		}
		return resp, nil
	})
}

// Catch is a shorthand for Then(ctx, nil, onRejected).
func (r *Request) Catch(ctx context.Context, onRejected func(err error) (any, error)) *Promise {
	return r.Then(ctx, nil, onRejected)
}

// Pipe executes the request and copies the response body to w.
//
// The body is copied even when the response is not ok, in which case the
// returned error is the [*HTTPError].
func (r *Request) Pipe(ctx context.Context, w io.Writer) (*Request, error) {
	resp, err := r.execute(ctx)
	if resp == nil {
		return nil, err
	}
	if resp.Stream != nil {
		defer resp.Stream.Close()
		if _, err := io.Copy(w, resp.Stream); err != nil {
			return nil, err
		}
	} else if _, err := io.WriteString(w, resp.Text); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// execute runs the request at most once.
func (r *Request) execute(ctx context.Context) (*Response, error) {
	r.once.Do(func() {
		r.emit("request", r)
		r.resp, r.err = r.roundTrip(ctx)
		if r.resp != nil {
			r.emit("response", r.resp)
		}
		if r.err != nil {
			r.emit("error", r.err)
		}
		r.emit("end", nil)
	})
	return r.resp, r.err
}

func (r *Request) roundTrip(ctx context.Context) (*Response, error) {
	cancel := context.CancelFunc(func() {})
	if r.deadline > 0 {
		ctx, cancel = context.WithTimeout(ctx, r.deadline)
	}

	client, err := r.newClient()
	if err != nil {
		cancel()
		return nil, err
	}
	rr := client.R().SetContext(ctx)
	rr.Header = r.Header.Clone()
	switch {
	case r.user == nil:
		// nothing
	case r.user.token != "":
		rr.SetAuthToken(r.user.token)
	default:
		rr.SetBasicAuth(r.user.username, r.user.password)
	}
	if err := r.writeBody(rr); err != nil {
		cancel()
		return nil, err
	}
	rr.SetDoNotParseResponse(!r.buffer)

	rresp, err := rr.Execute(r.Method, r.requestURL())
	if err != nil {
		cancel()
		return nil, err
	}
	resp := newResponse(r, rresp)
	if !r.buffer {
		resp.Stream = &cancelOnClose{ReadCloser: rresp.RawBody(), cancel: cancel}
	} else {
		cancel()
		if err := resp.decode(client.JSONUnmarshal); err != nil {
			return resp, err
		}
	}
	if !r.isOK(resp) {
		return resp, &HTTPError{Method: r.Method, URL: r.URL, Status: resp.Status, Response: resp}
	}
	return resp, nil
}

func (r *Request) isOK(resp *Response) bool {
	if r.okFunc != nil {
		return r.okFunc(resp)
	}
	return resp.OK()
}

// newClient returns a client configured for this request only.
func (r *Request) newClient() (*resty.Client, error) {
	txp, err := r.newTransport()
	if err != nil {
		return nil, err
	}
	client := resty.New()
	client.SetLogger(&restyLogger{r.agent.Logger})
	client.SetTransport(&loggingTransport{
		errClassifier: r.agent.ErrClassifier,
		logger:        r.agent.Logger,
		maxSize:       r.maxResponseSize,
		timeNow:       r.agent.TimeNow,
		txp:           txp,
	})
	client.SetRedirectPolicy(resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
		if len(via) > r.redirects {
			return http.ErrUseLastResponse
		}
		return nil
	}))
	client.SetRetryCount(r.retries)
	client.AddRetryCondition(func(rresp *resty.Response, err error) bool {
		if r.retryFunc != nil {
			var resp *Response
			if rresp != nil && rresp.RawResponse != nil {
				resp = newResponse(r, rresp)
			}
			return r.retryFunc(err, resp)
		}
		return err != nil || (rresp != nil && rresp.StatusCode() >= 500)
	})
	return client, nil
}

func (r *Request) newTransport() (http.RoundTripper, error) {
	if r.transport != nil {
		return r.transport, nil
	}
	tlsConfig, err := r.tlsConfig()
	if err != nil {
		return nil, err
	}
	dialer := r.agent.newDialer(tlsConfig)
	txp := http.DefaultTransport.(*http.Transport).Clone()
	txp.DialContext = dialer.DialContext
	txp.DialTLSContext = dialer.DialTLSContext
	txp.DisableKeepAlives = true
	txp.ForceAttemptHTTP2 = false
	txp.ResponseHeaderTimeout = r.responseTimeout
	txp.TLSClientConfig = tlsConfig
	return txp, nil
}

// cancelOnClose releases the request context along with the body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}

// restyLogger routes resty diagnostics to a [declare.SLogger].
type restyLogger struct {
	logger declare.SLogger
}

var _ resty.Logger = &restyLogger{}

func (l *restyLogger) Errorf(format string, v ...any) {
	l.logger.Info("restyError", slog.String("msg", fmt.Sprintf(format, v...)))
}

func (l *restyLogger) Warnf(format string, v ...any) {
	l.logger.Info("restyWarning", slog.String("msg", fmt.Sprintf(format, v...)))
}

func (l *restyLogger) Debugf(format string, v ...any) {
	l.logger.Debug("restyDebug", slog.String("msg", fmt.Sprintf(format, v...)))
}
