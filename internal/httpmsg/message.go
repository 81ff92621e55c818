// Package httpmsg implements the HTTP/1.1 message codec: the header
// multimap, start-line parsing for requests and responses, and the
// parse/serialize pair described by the proxy's wire protocol.
package httpmsg

import (
	"strconv"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/sealhq/seal-proxy/internal/errors"
)

// LineReader is the subset of stream.Conn the codec needs to parse a
// message off the wire. Declared locally (rather than importing
// internal/stream) so the codec has no dependency on the transport.
type LineReader interface {
	ReadLine() (string, error)
	ReadExact(n int) ([]byte, error)
}

// Message is the common base of Request and Response.
type Message struct {
	StartLine   string
	Headers     Headers
	Body        []byte
	BodyPending bool
}

// GetInt returns the integer value of header name, or def if absent. It
// returns a KindBadHeader error if the header is present but unparseable.
func (m *Message) GetInt(name string, def int64) (int64, error) {
	v, ok := m.Headers.Get(name)
	if !ok {
		return def, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, errors.BadHeader(name, v, err)
	}
	return n, nil
}

// IsChunked reports whether Transfer-Encoding ends with "chunked",
// case-insensitively, per RFC 7230 Section 3.3.1.
func (m *Message) IsChunked() bool {
	v, ok := m.Headers.Get("Transfer-Encoding")
	if !ok {
		return false
	}
	return strings.HasSuffix(strings.ToLower(strings.TrimSpace(v)), "chunked")
}

// Serialize renders the start line, headers, blank line, and body (when
// not pending) as wire bytes.
func (m *Message) Serialize() []byte {
	var b strings.Builder
	b.WriteString(m.StartLine)
	b.WriteString("\r\n")
	b.WriteString(m.Headers.String())
	b.WriteString("\r\n")
	out := []byte(b.String())
	if !m.BodyPending {
		out = append(out, m.Body...)
	}
	return out
}

// parseMessage reads a start-line and header block from r, per spec 4.2:
// obsolete line folding is honored, and Content-Length bodies that fit
// within stream.MaxBuffer are eagerly read. Transfer-Encoding: chunked
// always wins over Content-Length (RFC 7230) and defers body reading to
// the Body Transfer stage.
func parseMessage(r LineReader, bufCap int64) (Message, error) {
	m := Message{}

	startLine, err := r.ReadLine()
	if err != nil {
		return m, err
	}
	if startLine == "" {
		return m, errors.BadMessage("parse", "empty start line", nil)
	}
	m.StartLine = startLine

	var prevLine string
	for {
		line, err := r.ReadLine()
		if err != nil {
			return m, err
		}
		if line == "" {
			break
		}
		if line[0] == ' ' || line[0] == '\t' {
			// Obsolete line folding (RFC 7230 Section 3.2.4): fold the
			// continuation into the previous logical header.
			if prevLine != "" {
				prevLine += " " + strings.TrimSpace(line)
			}
			continue
		}
		if prevLine != "" {
			if err := appendHeaderLine(&m.Headers, prevLine); err != nil {
				return m, err
			}
		}
		prevLine = line
	}
	if prevLine != "" {
		if err := appendHeaderLine(&m.Headers, prevLine); err != nil {
			return m, err
		}
	}

	if m.IsChunked() {
		m.BodyPending = true
		return m, nil
	}

	if cl, ok := m.Headers.Get("Content-Length"); ok {
		n, err := strconv.ParseInt(strings.TrimSpace(cl), 10, 64)
		if err == nil && n >= 0 && n <= bufCap {
			body, err := r.ReadExact(int(n))
			if err != nil {
				return m, err
			}
			m.Body = body
			m.BodyPending = false
			return m, nil
		}
	}

	m.BodyPending = true
	return m, nil
}

func appendHeaderLine(h *Headers, line string) error {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return errors.BadMessage("parse-header", "header line missing colon", nil)
	}
	name := strings.Trim(line[:idx], " \t")
	value := strings.Trim(line[idx+1:], " \t")
	if !httpguts.ValidHeaderFieldName(name) {
		return errors.BadMessage("parse-header", "invalid header field name", nil)
	}
	h.Append(name, value)
	return nil
}
