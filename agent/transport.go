//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/common/httpslog/httpslog.go
//

package agent

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptrace"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bassosimone/declare"
	"github.com/bassosimone/safeconn"
)

// ErrMaxResponseSize indicates that a body exceeded [*Request.MaxResponseSize].
var ErrMaxResponseSize = errors.New("agent: maximum response size reached")

// loggingTransport performs round trips with structured logging:
// httpRoundTripStart/httpRoundTripDone events are emitted around each
// round trip, and the response body is wrapped to emit
// httpBodyStreamStart/httpBodyStreamDone events and to enforce maxSize.
type loggingTransport struct {
	errClassifier declare.ErrClassifier
	logger        declare.SLogger
	maxSize       int64
	timeNow       func() time.Time
	txp           http.RoundTripper
}

var _ http.RoundTripper = &loggingTransport{}

// RoundTrip implements [http.RoundTripper].
func (lt *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// 1. Learn which connection is used, when the transport tells us
	var conn net.Conn
	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			conn = info.Conn
		},
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	// 2. Perform the round trip between the two events
	t0 := lt.timeNow()
	deadline, _ := req.Context().Deadline()
	lt.logRoundTripStart(req, t0, deadline)
	resp, err := lt.txp.RoundTrip(req)
	lt.logRoundTripDone(conn, req, t0, deadline, resp, err)
	if err != nil {
		return nil, err
	}

	// 3. Observe the body lazily
	resp.Body = &bodyWrapper{
		body:     resp.Body,
		limit:    lt.maxSize,
		laddr:    safeconn.LocalAddr(conn),
		protocol: safeconn.Network(conn),
		raddr:    safeconn.RemoteAddr(conn),
		lt:       lt,
	}
	return resp, nil
}

func (lt *loggingTransport) logRoundTripStart(req *http.Request, t0 time.Time, deadline time.Time) {
	lt.logger.Info(
		"httpRoundTripStart",
		slog.Time("deadline", deadline),
		slog.String("httpMethod", req.Method),
		slog.String("httpUrl", req.URL.String()),
		slog.Any("httpRequestHeaders", req.Header),
		slog.Time("t", t0),
	)
}

func (lt *loggingTransport) logRoundTripDone(conn net.Conn, req *http.Request,
	t0 time.Time, deadline time.Time, resp *http.Response, err error) {
	var (
		statusCode int
		headers    http.Header
	)
	if resp != nil {
		statusCode = resp.StatusCode
		headers = resp.Header
	}
	lt.logger.Info(
		"httpRoundTripDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", lt.errClassifier.Classify(err)),
		slog.String("httpMethod", req.Method),
		slog.String("httpUrl", req.URL.String()),
		slog.Any("httpRequestHeaders", req.Header),
		slog.Any("httpResponseHeaders", headers),
		slog.Int("httpResponseStatusCode", statusCode),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", safeconn.Network(conn)),
		slog.String("remoteAddr", safeconn.RemoteAddr(conn)),
		slog.Time("t0", t0),
		slog.Time("t", lt.timeNow()),
	)
}

type bodyWrapper struct {
	// body is the actual body.
	body io.ReadCloser

	// closeOnce ensures that Close has "once" semantics.
	closeOnce sync.Once

	// count is the number of bytes read so far.
	count int64

	// didRead tracks whether at least one Read happened.
	didRead atomic.Bool

	// laddr is the local address.
	laddr string

	// limit is the maximum body size, zero meaning no limit.
	limit int64

	// lt is the transport that created us.
	lt *loggingTransport

	// protocol is the network protocol.
	protocol string

	// raddr is the remote address.
	raddr string

	// readOnce ensures we log httpBodyStreamStart only once.
	readOnce sync.Once

	// t0 is the time when we started reading the body.
	t0 time.Time
}

var _ io.ReadCloser = &bodyWrapper{}

// Read implements [io.ReadCloser].
func (b *bodyWrapper) Read(buffer []byte) (int, error) {
	b.readOnce.Do(func() {
		b.t0 = b.lt.timeNow()
		b.didRead.Store(true) // release: makes t0 visible to Close
		b.lt.logger.Info(
			"httpBodyStreamStart",
			slog.String("localAddr", b.laddr),
			slog.String("protocol", b.protocol),
			slog.String("remoteAddr", b.raddr),
			slog.Time("t", b.t0),
		)
	})
	count, err := b.body.Read(buffer)
	prev := b.count
	b.count += int64(count)
	if b.limit > 0 && b.count > b.limit {
		// only hand out the bytes within the limit
		count = int(max(b.limit-prev, 0))
		return count, fmt.Errorf("%w: more than %d bytes", ErrMaxResponseSize, b.limit)
	}
	return count, err
}

// Close implements [io.ReadCloser].
func (b *bodyWrapper) Close() (err error) {
	b.closeOnce.Do(func() {
		err = b.body.Close()
		if b.didRead.Load() { // acquire: t0 is visible if this returns true
			b.lt.logger.Info(
				"httpBodyStreamDone",
				slog.Int64("count", b.count),
				slog.Any("err", err),
				slog.String("errClass", b.lt.errClassifier.Classify(err)),
				slog.String("localAddr", b.laddr),
				slog.String("protocol", b.protocol),
				slog.String("remoteAddr", b.raddr),
				slog.Time("t0", b.t0),
				slog.Time("t", b.lt.timeNow()),
			)
		}
	})
	return
}
