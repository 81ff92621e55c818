package httpmsg

import (
	"strings"

	"github.com/sealhq/seal-proxy/internal/errors"
)

// bodyLessMethods never carry a request body, regardless of what framing
// headers claim (spec 4.3's request-side refinement).
var bodyLessMethods = map[string]bool{
	"GET":     true,
	"HEAD":    true,
	"DELETE":  true,
	"CONNECT": true,
	"TRACE":   true,
}

// KnownMethods is the set of methods the proxy dispatches on. PATCH is an
// addition beyond the original implementation's forwarding dispatch list,
// which does not include it; it is treated like POST and PUT. See
// SPEC_FULL.md 4.5.
var KnownMethods = map[string]bool{
	"GET": true, "HEAD": true, "POST": true, "PUT": true, "PATCH": true,
	"DELETE": true, "CONNECT": true, "TRACE": true, "OPTIONS": true,
}

// Request is an HTTP request message: start-line "METHOD SP target SP version".
type Request struct {
	Message
}

// ParseRequest reads a request off r, applying the request-side
// body_pending refinement: GET/HEAD/DELETE/CONNECT/TRACE are forced
// body-less regardless of what Content-Length/Transfer-Encoding claim.
// bufCap is the ByteStream's buffer capacity (spec: 128 KiB), the
// threshold under which a Content-Length body is eagerly buffered.
func ParseRequest(r LineReader, bufCap int64) (*Request, error) {
	m, err := parseMessage(r, bufCap)
	if err != nil {
		return nil, err
	}
	req := &Request{Message: m}
	if bodyLessMethods[req.Method()] {
		req.BodyPending = false
	}
	return req, nil
}

// Method returns the request method, upper-cased as written on the wire.
func (r *Request) Method() string {
	i := strings.IndexByte(r.StartLine, ' ')
	if i < 0 {
		return ""
	}
	return r.StartLine[:i]
}

// Target returns the request-target (the middle token of the start line).
func (r *Request) Target() string {
	a := strings.IndexByte(r.StartLine, ' ')
	b := strings.LastIndexByte(r.StartLine, ' ')
	if a < 0 || b <= a {
		return ""
	}
	return strings.Trim(r.StartLine[a+1:b], " \t")
}

// Version returns the trailing HTTP-version token.
func (r *Request) Version() string {
	b := strings.LastIndexByte(r.StartLine, ' ')
	if b < 0 {
		return ""
	}
	return strings.Trim(r.StartLine[b+1:], " \t")
}

// SetRequestLine builds the start line from method, target and version.
func (r *Request) SetRequestLine(method, target, version string) {
	r.StartLine = method + " " + target + " " + version
}

// NewRequest validates method against KnownMethods and builds a fresh
// Request with the given target/version and empty headers.
func NewRequest(method, target, version string) (*Request, error) {
	if !KnownMethods[method] {
		return nil, errors.BadMethod(method)
	}
	r := &Request{}
	r.SetRequestLine(method, target, version)
	return r, nil
}
