//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/ooni/probe-cli/blob/v3.20.1/internal/measurexlite/conn.go
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/x/netcore/conn.go
//

package agent

import (
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bassosimone/safeconn"
)

// observe wraps conn to emit I/O events: reads and writes at debug
// level, and the close at info level.
func (d *loggingDialer) observe(conn net.Conn) net.Conn {
	return &observedConn{
		Conn:     conn,
		d:        d,
		laddr:    safeconn.LocalAddr(conn),
		protocol: safeconn.Network(conn),
		raddr:    safeconn.RemoteAddr(conn),
	}
}

type observedConn struct {
	net.Conn
	closeOnce sync.Once
	d         *loggingDialer
	laddr     string
	protocol  string
	raddr     string
}

// Close implements [net.Conn].
//
// Subsequent calls return [net.ErrClosed].
func (c *observedConn) Close() (err error) {
	err = net.ErrClosed
	c.closeOnce.Do(func() {
		t0 := c.d.timeNow()
		err = c.Conn.Close()
		c.d.logger.Info(
			"closeDone",
			slog.Any("err", err),
			slog.String("errClass", c.d.errClassifier.Classify(err)),
			slog.String("localAddr", c.laddr),
			slog.String("protocol", c.protocol),
			slog.String("remoteAddr", c.raddr),
			slog.Time("t0", t0),
			slog.Time("t", c.d.timeNow()),
		)
	})
	return
}

// Read implements [net.Conn].
func (c *observedConn) Read(buf []byte) (int, error) {
	t0 := c.d.timeNow()
	count, err := c.Conn.Read(buf)
	c.logIO("readDone", len(buf), count, t0, err)
	return count, err
}

// Write implements [net.Conn].
func (c *observedConn) Write(data []byte) (int, error) {
	t0 := c.d.timeNow()
	count, err := c.Conn.Write(data)
	c.logIO("writeDone", len(data), count, t0, err)
	return count, err
}

func (c *observedConn) logIO(event string, size, count int, t0 time.Time, err error) {
	c.d.logger.Debug(
		event,
		slog.Int("ioBufferSize", size),
		slog.Int("ioBytesCount", count),
		slog.Any("err", err),
		slog.String("errClass", c.d.errClassifier.Classify(err)),
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
		slog.Time("t0", t0),
		slog.Time("t", c.d.timeNow()),
	)
}
