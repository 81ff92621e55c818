package upstream

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/sealhq/seal-proxy/internal/errors"
)

func listenLoopback(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	return ln
}

func splitHostPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("failed to split addr %q: %v", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("failed to parse port %q: %v", portStr, err)
	}
	return host, port
}

func TestSendWithRetryDialsAndWrites(t *testing.T) {
	ln := listenLoopback(t)
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		received <- buf[:n]
	}()

	host, port := splitHostPort(t, ln.Addr().String())
	pool := New(2 * time.Second)
	if err := pool.SendWithRetry(context.Background(), host, port, []byte("payload")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case got := <-received:
		if string(got) != "payload" {
			t.Fatalf("expected %q, got %q", "payload", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for server to receive data")
	}
}

func TestSendWithRetryReusesCachedConnection(t *testing.T) {
	ln := listenLoopback(t)
	defer ln.Close()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				buf := make([]byte, 64)
				for {
					if _, err := conn.Read(buf); err != nil {
						return
					}
				}
			}()
		}
	}()

	host, port := splitHostPort(t, ln.Addr().String())
	pool := New(2 * time.Second)

	if err := pool.SendWithRetry(context.Background(), host, port, []byte("one")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first := pool.Conn()

	if err := pool.SendWithRetry(context.Background(), host, port, []byte("two")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.Conn() != first {
		t.Fatalf("expected the same cached connection to be reused for the same address")
	}
}

func TestSendWithRetryFailsAfterRetriesOnRefusedConnection(t *testing.T) {
	ln := listenLoopback(t)
	addr := ln.Addr().String()
	ln.Close() // nothing listens here now; connections should be refused

	host, port := splitHostPort(t, addr)
	pool := New(200 * time.Millisecond)

	err := pool.SendWithRetry(context.Background(), host, port, []byte("x"))
	if err == nil {
		t.Fatalf("expected an error when the upstream refuses every attempt")
	}
	if !errors.Is(err, errors.KindUpstreamUnavailable) {
		t.Fatalf("expected KindUpstreamUnavailable, got %v", err)
	}
}
