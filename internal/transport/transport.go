// SPDX-License-Identifier: MIT
// Package transport defines what a pull transport serves and the per-client
// session bookkeeping shared by the TCP and websocket servers.
package transport

import (
	"context"
	"errors"

	"listener/internal/audio"
	"listener/internal/log"
	"listener/internal/observe"
)

// Puller produces one encoded bar line per pull. Implementations serialize
// concurrent calls.
type Puller interface {
	Cycle(ctx context.Context) ([]byte, error)
}

// Transport serves pulls until its context is cancelled or Close is called.
type Transport interface {
	Serve(ctx context.Context) error
	Close() error
}

// Session tracks one connected client.
type Session struct {
	transport string
	remote    string
	puller    Puller
	metrics   *observe.Metrics

	pulls      int
	overflowed bool
}

// NewSession records a client connection on transport.
func NewSession(ctx context.Context, transport, remote string, puller Puller, metrics *observe.Metrics) *Session {
	metrics.SessionStarted(ctx, transport)
	log.Infof("%s client connected: %s", transport, remote)
	return &Session{
		transport: transport,
		remote:    remote,
		puller:    puller,
		metrics:   metrics,
	}
}

// Pull runs one cycle. An input overflow is warned about once per session
// and does not fail the pull.
func (s *Session) Pull(ctx context.Context) ([]byte, error) {
	s.pulls++
	s.metrics.RecordPull(ctx, s.transport)

	line, err := s.puller.Cycle(ctx)
	if errors.Is(err, audio.ErrOverflow) {
		if !s.overflowed {
			log.Warnf("%s client %s: %v (further overflows not logged)", s.transport, s.remote, err)
			s.overflowed = true
		}
		return line, nil
	}
	return line, err
}

// Pulls returns how many pulls the session has served.
func (s *Session) Pulls() int {
	return s.pulls
}

// End records the disconnect.
func (s *Session) End(ctx context.Context) {
	s.metrics.SessionEnded(ctx, s.transport)
	log.Infof("%s client disconnected: %s after %d pulls", s.transport, s.remote, s.pulls)
}
