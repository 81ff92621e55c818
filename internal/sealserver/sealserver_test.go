package sealserver

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/sealhq/seal-proxy/internal/logging"
)

func TestListenAndServeForwardsARequestToOrigin(t *testing.T) {
	origin, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen for origin: %v", err)
	}
	defer origin.Close()

	requestLine := make(chan string, 1)
	go func() {
		conn, err := origin.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		line, _ := r.ReadString('\n')
		requestLine <- strings.TrimRight(line, "\r\n")
		_, _ = conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"))
	}()

	reserved, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve a proxy port: %v", err)
	}
	addr := reserved.Addr().(*net.TCPAddr)
	host, port := addr.IP.String(), addr.Port
	reserved.Close()

	srv := New(Config{
		Addr:           host,
		Port:           port,
		ConnectTimeout: time.Second,
		ReadTimeout:    time.Second,
	}, logging.New(logging.LevelError))

	go func() { _ = srv.ListenAndServe(context.Background()) }()

	var conn net.Conn
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("tcp", fmt.Sprintf("%s:%d", host, port))
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("failed to dial the proxy: %v", err)
	}
	defer conn.Close()

	req := fmt.Sprintf("GET http://%s/ HTTP/1.1\r\nProxy-Connection: close\r\n\r\n", origin.Addr().String())
	if _, err := conn.Write([]byte(req)); err != nil {
		t.Fatalf("unexpected error writing request: %v", err)
	}

	select {
	case line := <-requestLine:
		if line != "GET / HTTP/1.1" {
			t.Fatalf("expected origin-form request line, got %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the proxy to forward the request")
	}

	r := bufio.NewReader(conn)
	status, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("unexpected error reading response: %v", err)
	}
	if strings.TrimRight(status, "\r\n") != "HTTP/1.1 200 OK" {
		t.Fatalf("expected 200 OK, got %q", status)
	}
}
