package stream

import (
	"bytes"
	"net"
	"testing"

	"github.com/sealhq/seal-proxy/internal/errors"
)

func TestConnReadLineSplitsOnCRLF(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		_, _ = client.Write([]byte("first\r\nsecond\r\n"))
	}()

	c := New(server)
	line, err := c.ReadLine()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if line != "first" {
		t.Fatalf("expected %q, got %q", "first", line)
	}
	line, err = c.ReadLine()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if line != "second" {
		t.Fatalf("expected %q, got %q", "second", line)
	}
}

func TestConnReadExactAcrossMultipleWrites(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		_, _ = client.Write([]byte("abc"))
		_, _ = client.Write([]byte("defgh"))
	}()

	c := New(server)
	got, err := c.ReadExact(8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "abcdefgh" {
		t.Fatalf("expected %q, got %q", "abcdefgh", got)
	}
}

func TestConnReadLineTooLong(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	oversized := bytes.Repeat([]byte("x"), MaxBuffer+1)
	go func() {
		_, _ = client.Write(oversized)
	}()

	c := New(server)
	_, err := c.ReadLine()
	if !errors.Is(err, errors.KindLineTooLong) {
		t.Fatalf("expected a line-too-long error, got %v", err)
	}
}

func TestConnWriteDeliversAllBytes(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := New(server)
	done := make(chan error, 1)
	go func() { done <- c.Write([]byte("payload")) }()

	buf := make([]byte, 7)
	if _, err := client.Read(buf); err != nil {
		t.Fatalf("unexpected error reading from client end: %v", err)
	}
	if string(buf) != "payload" {
		t.Fatalf("expected %q, got %q", "payload", buf)
	}
	if err := <-done; err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
}

func TestConnReadSomeReturnsAvailableBytes(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		_, _ = client.Write([]byte("hello"))
	}()

	c := New(server)
	got, err := c.ReadSome(1024)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("expected %q, got %q", "hello", got)
	}
}
