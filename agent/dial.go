//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/x/netcore/dialer.go
//

package agent

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"time"

	"github.com/bassosimone/declare"
	"github.com/bassosimone/safeconn"
)

// loggingDialer wraps a [declare.Dialer] to emit connectStart and
// connectDone events around each dial and to observe the connections.
type loggingDialer struct {
	dialer        declare.Dialer
	errClassifier declare.ErrClassifier
	logger        declare.SLogger
	timeNow       func() time.Time

	// tlsConfig is the base config for DialTLSContext.
	tlsConfig *tls.Config
}

func (a *Agent) newDialer(tlsConfig *tls.Config) *loggingDialer {
	if tlsConfig == nil {
		tlsConfig = &tls.Config{}
	}
	return &loggingDialer{
		dialer:        a.Dialer,
		errClassifier: a.ErrClassifier,
		logger:        a.Logger,
		timeNow:       a.TimeNow,
		tlsConfig:     tlsConfig,
	}
}

// DialContext has the same semantics of [*net.Dialer.DialContext].
func (d *loggingDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	t0 := d.timeNow()
	deadline, _ := ctx.Deadline()
	d.logConnectStart(network, address, t0, deadline)
	conn, err := d.dialer.DialContext(ctx, network, address)
	d.logConnectDone(network, address, t0, deadline, conn, err)
	if err != nil {
		return nil, err
	}
	return d.observe(conn), nil
}

func (d *loggingDialer) logConnectStart(network, address string, t0 time.Time, deadline time.Time) {
	d.logger.Info(
		"connectStart",
		slog.Time("deadline", deadline),
		slog.String("protocol", network),
		slog.String("remoteAddr", address),
		slog.Time("t", t0),
	)
}

func (d *loggingDialer) logConnectDone(
	network, address string, t0 time.Time, deadline time.Time, conn net.Conn, err error) {
	d.logger.Info(
		"connectDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", d.errClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", network),
		slog.String("remoteAddr", address),
		slog.Time("t0", t0),
		slog.Time("t", d.timeNow()),
	)
}
