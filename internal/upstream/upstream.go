// Package upstream implements the per-Handler upstream connection cache:
// a single cached origin-server connection, redialed on host:port change
// and attempted up to three times in all when a dial or a write (for
// example on a stale connection) fails.
package upstream

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sealhq/seal-proxy/internal/errors"
	"github.com/sealhq/seal-proxy/internal/stream"
)

// maxRetries bounds send-with-retry attempts, matching the source
// service's send_with_retry default.
const maxRetries = 3

// Pool holds the single cached upstream connection for one Handler. It is
// not safe for concurrent use; each connection handler owns one Pool.
type Pool struct {
	connectTimeout time.Duration

	addr string
	conn *stream.Conn
}

// New returns an empty Pool that dials with the given connect timeout.
func New(connectTimeout time.Duration) *Pool {
	return &Pool{connectTimeout: connectTimeout}
}

// Conn returns the currently cached upstream connection, or nil if none is
// held.
func (p *Pool) Conn() *stream.Conn { return p.conn }

// Close drops the cached connection, if any.
func (p *Pool) Close() {
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
		p.addr = ""
	}
}

// SendWithRetry writes data to the host:port connection, dialing fresh if
// the cached connection targets a different address or no connection is
// cached. A failed dial, or a write that fails on what was assumed to be a
// live connection, is retried; the dial-then-write is attempted at most
// maxRetries times in all. On success the dialed connection is cached for
// the next call.
func (p *Pool) SendWithRetry(ctx context.Context, host string, port int, data []byte) error {
	addr := fmt.Sprintf("%s:%d", host, port)

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if p.addr != addr {
			p.Close()
			conn, err := p.dial(ctx, addr)
			if err != nil {
				lastErr = err
				continue
			}
			p.conn = conn
			p.addr = addr
		}

		if err := p.conn.Write(data); err != nil {
			lastErr = err
			p.Close()
			continue
		}
		return nil
	}
	return errors.UpstreamUnavailable(host, port, lastErr)
}

// DialTunnel returns the raw connection to use for a CONNECT tunnel,
// reusing the cached connection if it already targets host:port and
// dialing fresh (replacing any cached connection) otherwise. Unlike
// SendWithRetry, a tunnel dial is attempted once: once traffic starts
// flowing through a tunnel, there is no request to retry.
func (p *Pool) DialTunnel(ctx context.Context, host string, port int) (net.Conn, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	if p.addr == addr && p.conn != nil {
		return p.conn.Raw(), nil
	}
	p.Close()
	conn, err := p.dial(ctx, addr)
	if err != nil {
		return nil, errors.UpstreamUnavailable(host, port, err)
	}
	p.conn = conn
	p.addr = addr
	return conn.Raw(), nil
}

func (p *Pool) dial(ctx context.Context, addr string) (*stream.Conn, error) {
	dialer := &net.Dialer{Timeout: p.connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return stream.New(conn), nil
}
