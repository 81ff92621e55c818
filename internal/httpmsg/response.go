package httpmsg

import (
	"strconv"
	"strings"

	"github.com/sealhq/seal-proxy/internal/errors"
)

// Response is an HTTP response message: start-line "version SP code SP phrase".
type Response struct {
	Message
}

// ParseResponse reads a response off r. bufCap is the ByteStream's buffer
// capacity, as for ParseRequest.
func ParseResponse(r LineReader, bufCap int64) (*Response, error) {
	m, err := parseMessage(r, bufCap)
	if err != nil {
		return nil, err
	}
	return &Response{Message: m}, nil
}

// Version returns the leading HTTP-version token.
func (r *Response) Version() string {
	i := strings.IndexByte(r.StartLine, ' ')
	if i < 0 {
		return r.StartLine
	}
	return r.StartLine[:i]
}

// Code returns the numeric status code.
func (r *Response) Code() (int, error) {
	parts := strings.SplitN(r.StartLine, " ", 3)
	if len(parts) < 2 {
		return 0, errors.BadMessage("parse-status", "malformed status line", nil)
	}
	code, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, errors.BadMessage("parse-status", "non-numeric status code", err)
	}
	return code, nil
}

// Phrase returns the reason phrase, which may itself contain spaces.
func (r *Response) Phrase() string {
	parts := strings.SplitN(r.StartLine, " ", 3)
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}

// SetStatusLine builds the start line from version, code and phrase.
func (r *Response) SetStatusLine(version string, code int, phrase string) {
	r.StartLine = version + " " + strconv.Itoa(code) + " " + phrase
}
