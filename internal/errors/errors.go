// Package errors provides structured error types shared across the proxy.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// Kind classifies an error the way callers need to branch on it, rather
// than on a message string.
type Kind string

const (
	// KindConnectionClosed means a peer closed its side (zero-length read
	// or a clean shutdown) before the operation completed.
	KindConnectionClosed Kind = "connection_closed"
	// KindConnectionReset means a transport error occurred on a live socket.
	KindConnectionReset Kind = "connection_reset"
	// KindLineTooLong means read_line accumulated more than the buffer
	// capacity without finding a CRLF.
	KindLineTooLong Kind = "line_too_long"
	// KindBadMessage means the start-line or headers could not be parsed.
	KindBadMessage Kind = "bad_message"
	// KindBadHeader means a numeric header accessor found a value present
	// but unparseable.
	KindBadHeader Kind = "bad_header"
	// KindBadMethod means the request used a method the proxy does not
	// recognize.
	KindBadMethod Kind = "bad_method"
	// KindBadTarget means the request-target could not be parsed into a
	// usable authority.
	KindBadTarget Kind = "bad_target"
	// KindUpstreamUnavailable means the Upstream Pool could not reach the
	// upstream: SendWithRetry exhausted its attempts without completing a
	// write, or the single dial of a CONNECT tunnel failed.
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	// KindTunnelTerminated means a CONNECT tunnel ended, normally via EOF
	// on either leg.
	KindTunnelTerminated Kind = "tunnel_terminated"

	// KindIO, KindProtocol, KindValidation and KindTimeout cover internal
	// plumbing errors (dial failures, deadline errors) that don't map to
	// one of the proxy-specific kinds above.
	KindIO         Kind = "io"
	KindProtocol   Kind = "protocol"
	KindValidation Kind = "validation"
	KindTimeout    Kind = "timeout"
)

// Error is a structured error carrying enough context to log and to branch
// on without parsing strings.
type Error struct {
	Kind      Kind
	Op        string
	Message   string
	Cause     error
	Host      string
	Port      int
	Addr      string
	Timestamp time.Time
}

// New creates a structured error of the given kind.
func New(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Cause: cause, Timestamp: time.Now()}
}

// WithAddr attaches host/port/addr context to an error and returns it.
func (e *Error) WithAddr(host string, port int) *Error {
	e.Host = host
	e.Port = port
	if port > 0 {
		e.Addr = fmt.Sprintf("%s:%d", host, port)
	} else {
		e.Addr = host
	}
	return e
}

// Error implements the error interface: "[kind] op addr: message: cause".
func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", e.Kind))
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	if e.Addr != "" {
		parts = append(parts, e.Addr)
	}
	s := strings.Join(parts, " ")
	if e.Message != "" {
		s += ": " + e.Message
	}
	if e.Cause != nil {
		s += ": " + e.Cause.Error()
	}
	return s
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// GetKind returns the Kind of err if it is a structured *Error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether the first *Error found in err's chain carries the
// given Kind; *Error values nested deeper in the chain are not examined.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// ConnectionClosed builds a KindConnectionClosed error for op.
func ConnectionClosed(op string) *Error {
	return New(KindConnectionClosed, op, "connection closed", nil)
}

// ConnectionReset builds a KindConnectionReset error wrapping cause.
func ConnectionReset(op string, cause error) *Error {
	return New(KindConnectionReset, op, "connection reset", cause)
}

// LineTooLong builds a KindLineTooLong error for op.
func LineTooLong(op string) *Error {
	return New(KindLineTooLong, op, "line exceeds buffer capacity", nil)
}

// BadMessage builds a KindBadMessage error wrapping cause.
func BadMessage(op, message string, cause error) *Error {
	return New(KindBadMessage, op, message, cause)
}

// BadHeader builds a KindBadHeader error for an unparseable header value.
func BadHeader(name, value string, cause error) *Error {
	return New(KindBadHeader, "header", fmt.Sprintf("header %q has unparseable value %q", name, value), cause)
}

// BadMethod builds a KindBadMethod error naming the offending method.
func BadMethod(method string) *Error {
	return New(KindBadMethod, "dispatch", fmt.Sprintf("unknown method %q", method), nil)
}

// BadTarget builds a KindBadTarget error describing why target failed to parse.
func BadTarget(target, reason string) *Error {
	return New(KindBadTarget, "parse-target", fmt.Sprintf("target %q: %s", target, reason), nil)
}

// UpstreamUnavailable builds a KindUpstreamUnavailable error after retries
// against host:port were exhausted.
func UpstreamUnavailable(host string, port int, cause error) *Error {
	return New(KindUpstreamUnavailable, "dial", "upstream unavailable after retries", cause).WithAddr(host, port)
}

// TunnelTerminated builds a KindTunnelTerminated error.
func TunnelTerminated(cause error) *Error {
	return New(KindTunnelTerminated, "tunnel", "tunnel closed", cause)
}

// IOError builds a KindIO error wrapping cause.
func IOError(op string, cause error) *Error {
	return New(KindIO, op, "I/O error", cause)
}

// Timeout builds a KindTimeout error for the named operation.
func Timeout(op string, d time.Duration) *Error {
	return New(KindTimeout, op, fmt.Sprintf("operation timed out after %v", d), nil)
}

// IsTimeout reports whether err is a timeout in any of the ways the net
// package or this package can express one.
func IsTimeout(err error) bool {
	if Is(err, KindTimeout) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsContextCanceled reports whether err is due to context cancellation.
func IsContextCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
