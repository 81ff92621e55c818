// Package sealserver implements the proxy's accept loop: bind once,
// spawn one Handler per accepted connection, and keep the whole service
// alive across unexpected listener failures with a linear-backoff
// restart, exactly as the source ThreadingServer/main loop did.
package sealserver

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/sealhq/seal-proxy/internal/logging"
	"github.com/sealhq/seal-proxy/internal/proxyhandler"
)

// backlog is the TCP listen backlog the source service used.
const backlog = 50

// restartInitial, restartStep and restartUpperBound reproduce main()'s
// restart_time / restart_time_upper_bound schedule: 3s, then +3s on every
// failed restart, giving up once the wait would exceed 30s.
const (
	restartInitial    = 3 * time.Second
	restartStep       = 3 * time.Second
	restartUpperBound = 30 * time.Second
)

// Config holds the bind address and per-connection timeouts.
type Config struct {
	Addr           string
	Port           int
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

// Server accepts connections at Config.Addr:Config.Port and dispatches
// each to its own proxyhandler.Handler.
type Server struct {
	cfg Config
	log *logging.Logger
}

// New returns a Server for cfg, logging through log.
func New(cfg Config, log *logging.Logger) *Server {
	return &Server{cfg: cfg, log: log}
}

// ListenAndServe binds the listener and accepts connections, one Handler
// goroutine per connection, until Accept fails. It blocks until every
// spawned Handler has returned before reporting the Accept error, so a
// caller that restarts never races an in-flight handler's cleanup.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Addr, s.cfg.Port)

	// Go's net.Listen always asks the kernel for SOMAXCONN; backlog is
	// kept as a named constant purely to document the source service's
	// explicit listen(2) backlog rather than leave the figure unstated.
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	s.log.Info(fmt.Sprintf("Starting proxy service at %s", addr))

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			wg.Wait()
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer s.recoverHandler(conn)
			h := proxyhandler.New(conn, s.cfg.ConnectTimeout, s.cfg.ReadTimeout, s.log)
			h.Run(ctx)
		}()
	}
}

// recoverHandler isolates a single connection's panic from the rest of the
// server: one misbehaving request must not bring down every other
// in-flight connection.
func (s *Server) recoverHandler(conn net.Conn) {
	if r := recover(); r != nil {
		s.log.Error(fmt.Sprintf("recovered from a panic handling %s: %v", conn.RemoteAddr(), r))
	}
}

// Run wraps ListenAndServe with the supervised restart: on any Accept
// failure it waits restartInitial, then restartInitial+restartStep, and
// so on, exiting the process with status 1 once the wait would exceed
// restartUpperBound.
func (s *Server) Run(ctx context.Context) {
	wait := restartInitial
	for {
		err := s.ListenAndServe(ctx)
		s.log.Error(fmt.Sprintf("Caught an unhandled exception, exit service loop... (%v)", err))

		if wait > restartUpperBound {
			s.log.Error("Too many errors, stop trying to restart service. BYE BYE.")
			os.Exit(1)
		}

		s.log.Warn(fmt.Sprintf("Service down!!! Restarting service after %s.", wait))
		time.Sleep(wait)
		wait += restartStep
	}
}
