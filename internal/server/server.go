// SPDX-License-Identifier: MIT
/*
Package server implements the TCP pull protocol.

A client sends one byte (any value) per pull and receives one bar line: the
encoded levels, no newline and no length prefix. A zero-length read means
the client has gone and ends the session. Clients are served one at a time;
a second client waits in the listen backlog until the first disconnects.
*/
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"listener/internal/log"
	"listener/internal/observe"
	"listener/internal/transport"
)

// ErrServerClosed is returned by Serve after Close or context cancellation.
var ErrServerClosed = errors.New("server closed")

// Config holds the TCP server settings.
type Config struct {
	Addr          string // host:port to bind.
	SendBuffer    int    // SO_SNDBUF in bytes; 0 keeps the system default.
	SingleSession bool   // Return from Serve after the first client leaves.
}

type Server struct {
	cfg     Config
	puller  transport.Puller
	metrics *observe.Metrics

	mu     sync.Mutex
	ln     net.Listener
	conn   net.Conn // Active client, if any.
	closed bool
}

// New returns a server for cfg that answers pulls from puller.
func New(cfg Config, puller transport.Puller, metrics *observe.Metrics) *Server {
	return &Server{cfg: cfg, puller: puller, metrics: metrics}
}

// Listen binds the configured address. A bind failure is fatal for the
// caller; there is no retry.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts clients one at a time and runs their sessions. It returns
// nil when SingleSession is set and the first session has ended, the
// session's error if a cycle fails, and ErrServerClosed once closed.
func (s *Server) Serve(ctx context.Context) error {
	if s.isClosed() {
		return ErrServerClosed
	}
	if s.Addr() == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	log.Infof("Pull server listening on %s", s.Addr())
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.isClosed() {
				return ErrServerClosed
			}
			return err
		}

		if !s.track(conn) {
			conn.Close()
			return ErrServerClosed
		}
		err = s.ServeConn(ctx, conn)
		s.track(nil)
		if err != nil {
			return err
		}
		if s.cfg.SingleSession {
			return nil
		}
	}
}

// track records the active connection. It reports false if the server was
// closed meanwhile.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
	return !s.closed
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ServeConn runs the pull loop on conn until the client disconnects, and
// closes conn. Client I/O errors end the session normally; only a failed
// cycle is returned.
func (s *Server) ServeConn(ctx context.Context, conn net.Conn) error {
	defer conn.Close()

	if tc, ok := conn.(*net.TCPConn); ok && s.cfg.SendBuffer > 0 {
		if err := tc.SetWriteBuffer(s.cfg.SendBuffer); err != nil {
			log.Warnf("Failed to set send buffer to %d bytes: %v", s.cfg.SendBuffer, err)
		}
	}

	sess := transport.NewSession(ctx, "tcp", conn.RemoteAddr().String(), s.puller, s.metrics)
	defer sess.End(ctx)

	pull := make([]byte, 1)
	for {
		n, err := conn.Read(pull)
		if n == 0 {
			if err != nil && !errors.Is(err, io.EOF) && !s.isClosed() {
				log.Debugf("Pull read ended: %v", err)
			}
			return nil
		}

		line, err := sess.Pull(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := writeFull(conn, line); err != nil {
			log.Debugf("Reply write failed: %v", err)
			return nil
		}
	}
}

// writeFull writes all of b, continuing after partial writes.
func writeFull(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		b = b[n:]
	}
	return nil
}

// Close stops accepting and drops the active client.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn != nil {
		s.conn.Close()
	}
	if s.ln != nil {
		return s.ln.Close()
	}
	return nil
}

var _ transport.Transport = (*Server)(nil)
