// Package proxyhandler implements the per-connection proxy state machine:
// parse a request, rewrite it into origin-form, forward it (or tunnel it,
// for CONNECT), relay the response, and loop while the client asks for
// keep-alive.
package proxyhandler

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sealhq/seal-proxy/internal/bodytransfer"
	"github.com/sealhq/seal-proxy/internal/errors"
	"github.com/sealhq/seal-proxy/internal/httpmsg"
	"github.com/sealhq/seal-proxy/internal/logging"
	"github.com/sealhq/seal-proxy/internal/stream"
	"github.com/sealhq/seal-proxy/internal/timing"
	"github.com/sealhq/seal-proxy/internal/tunnel"
	"github.com/sealhq/seal-proxy/internal/upstream"
)

// keepAliveDefault matches the source service's HttpProxyHandler.KEEP_ALIVE_DEFAULT:
// a connection is kept alive unless the client explicitly says otherwise.
const keepAliveDefault = true

const connectOK = "HTTP/1.1 200 OK\r\nHost: seal\r\n\r\n"
const connectUnavailable = "HTTP/1.1 503 Service Unavailable\r\nHost: seal\r\n\r\n"

// Handler drives one accepted client connection.
type Handler struct {
	client      *stream.Conn
	pool        *upstream.Pool
	log         *logging.Logger
	readTimeout time.Duration
}

// New returns a Handler for a freshly accepted client connection, with its
// own upstream connection cache.
func New(conn net.Conn, connectTimeout, readTimeout time.Duration, log *logging.Logger) *Handler {
	return &Handler{
		client:      stream.New(conn),
		pool:        upstream.New(connectTimeout),
		log:         log,
		readTimeout: readTimeout,
	}
}

// Run reads and dispatches requests until the client disconnects, a
// keep-alive negotiation ends the session, or an unrecoverable protocol
// error occurs. It always tears down both the client and any cached
// upstream connection before returning.
func (h *Handler) Run(ctx context.Context) {
	defer h.finalClean()

	keepAlive := true
	for keepAlive {
		if h.readTimeout > 0 {
			_ = h.client.SetReadDeadline(time.Now().Add(h.readTimeout))
		}

		req, err := httpmsg.ParseRequest(h.client, stream.MaxBuffer)
		if err != nil {
			if !errors.Is(err, errors.KindConnectionClosed) {
				h.log.Info(err.Error())
			}
			return
		}

		keepAlive = keepAliveDefault
		if v, ok := req.Headers.Get("Proxy-Connection"); ok {
			keepAlive = strings.EqualFold(strings.TrimSpace(v), "keep-alive")
		}

		if err := h.handleRequest(ctx, req); err != nil {
			h.log.Info(err.Error())
			return
		}
	}
}

func (h *Handler) finalClean() {
	_ = h.client.Close()
	h.pool.Close()
}

func (h *Handler) handleRequest(ctx context.Context, req *httpmsg.Request) error {
	method := req.Method()
	if method == "CONNECT" {
		return h.handleConnect(ctx, req)
	}
	if !httpmsg.KnownMethods[method] {
		return errors.BadMethod(method)
	}
	return h.handleForward(ctx, req, method)
}

func (h *Handler) handleForward(ctx context.Context, req *httpmsg.Request, method string) error {
	if method == "GET" {
		h.log.Hit(req.Target())
	}
	timer := timing.Start()

	hostHeader, _ := req.Headers.Get("Host")
	host, port, path, authority, err := splitTarget(req.Target(), hostHeader)
	if err != nil {
		return err
	}

	// The forwarded start-line is always pinned to HTTP/1.1 regardless of
	// what the client spoke, matching the source service's set_request
	// default (it never echoes the client's version upstream) and the
	// Pool's keep-alive contract, which assumes an HTTP/1.1 upstream.
	fwd, err := httpmsg.NewRequest(method, path, "HTTP/1.1")
	if err != nil {
		return err
	}
	for _, f := range req.Headers.Fields() {
		if strings.HasPrefix(strings.ToLower(f.Name), "proxy-") {
			continue
		}
		fwd.Headers.Append(f.Name, f.Value)
	}
	if !req.Headers.Has("Host") {
		fwd.Headers.Append("Host", authority)
	}
	fwd.Body = req.Body
	fwd.BodyPending = req.BodyPending

	timer.StartConnect()
	err = h.pool.SendWithRetry(ctx, host, port, fwd.Serialize())
	timer.EndConnect()
	if err != nil {
		return err
	}
	if fwd.BodyPending {
		if err := bodytransfer.Transfer(h.pool.Conn(), h.client, &fwd.Message); err != nil {
			return err
		}
	}

	timer.StartTTFB()
	resp, err := httpmsg.ParseResponse(h.pool.Conn(), stream.MaxBuffer)
	timer.EndTTFB()
	if err != nil {
		return err
	}
	if err := h.client.Write(resp.Serialize()); err != nil {
		return err
	}
	if resp.BodyPending {
		if err := bodytransfer.Transfer(h.client, h.pool.Conn(), &resp.Message); err != nil {
			return err
		}
	}

	m := timer.Metrics()
	h.log.Info(fmt.Sprintf("%s %s -> connect %s ttfb %s total %s", method, req.Target(), m.Connect, m.TTFB, m.Total))
	return nil
}

func (h *Handler) handleConnect(ctx context.Context, req *httpmsg.Request) error {
	host, port, err := parseConnectTarget(req.StartLine)
	if err != nil {
		_ = h.client.Write([]byte(connectUnavailable))
		return err
	}

	h.log.Info(fmt.Sprintf("%s <--> %s:%d", h.client.RemoteAddr(), host, port))

	remote, err := h.pool.DialTunnel(ctx, host, port)
	if err != nil {
		_ = h.client.Write([]byte(connectUnavailable))
		return err
	}

	if err := h.client.Write([]byte(connectOK)); err != nil {
		return err
	}

	// A client is allowed to pipeline its first tunnel bytes immediately
	// behind the CONNECT request; drain whatever the codec already read
	// off the socket before handing the raw connection to the tunnel.
	if pending := h.client.TakeBuffered(); len(pending) > 0 {
		if _, err := remote.Write(pending); err != nil {
			return errors.IOError("connect-prefix", err)
		}
	}

	tunnel.Run(h.client.Raw(), remote)
	// The tunnel has taken over and run to completion; the connection is
	// done regardless of which side closed first.
	return errors.TunnelTerminated(nil)
}

// parseConnectTarget extracts host and port from a CONNECT start line
// "CONNECT host:port HTTP/1.1", locating the authority between the first
// and last space and its first colon, mirroring the source service's
// exact parse.
func parseConnectTarget(startLine string) (string, int, error) {
	a := strings.IndexByte(startLine, ' ')
	b := strings.LastIndexByte(startLine, ' ')
	if a < 0 || b <= a {
		return "", 0, errors.BadTarget(startLine, "malformed CONNECT line")
	}
	authority := startLine[a+1 : b]
	c := strings.IndexByte(authority, ':')
	if c < 0 {
		return "", 0, errors.BadTarget(authority, "missing port")
	}
	host := strings.Trim(authority[:c], " \t")
	port, err := strconv.Atoi(strings.Trim(authority[c+1:], " \t"))
	if err != nil || host == "" || port <= 0 {
		return "", 0, errors.BadTarget(authority, "bad host or port")
	}
	return host, port, nil
}

// splitTarget parses a request-target into the host/port to dial, the
// origin-form path to send upstream, and the raw authority to use for a
// synthesized Host header. Absolute-form targets carry their own
// authority; an origin-form target (no authority, e.g. "GET /foo") falls
// back to the request's own Host header for (host, port) and the
// authority, and the target itself is forwarded verbatim as the path.
func splitTarget(target, hostHeader string) (host string, port int, path string, authority string, err error) {
	u, parseErr := url.Parse(target)
	if parseErr != nil {
		return "", 0, "", "", errors.BadTarget(target, "unparseable request-target")
	}
	if u.Hostname() == "" {
		if hostHeader == "" {
			return "", 0, "", "", errors.BadTarget(target, "origin-form target with no Host header")
		}
		host, port, err = splitAuthority(hostHeader)
		if err != nil {
			return "", 0, "", "", err
		}
		return host, port, target, hostHeader, nil
	}

	host = u.Hostname()
	port = 80
	if p := u.Port(); p != "" {
		n, convErr := strconv.Atoi(p)
		if convErr != nil {
			return "", 0, "", "", errors.BadTarget(target, "bad port")
		}
		port = n
	}
	path = u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return host, port, path, u.Host, nil
}

// splitAuthority parses a "host:port" or bare "host" authority (as found
// in a Host header), defaulting to port 80 when no port is given.
func splitAuthority(authority string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(authority)
	if err != nil {
		return authority, 80, nil
	}
	port, convErr := strconv.Atoi(portStr)
	if convErr != nil {
		return "", 0, errors.BadTarget(authority, "bad port")
	}
	return host, port, nil
}
