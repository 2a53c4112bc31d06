// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"listener/internal/log"
	"listener/internal/observe"

	"github.com/gorilla/websocket"
)

// PullPath is the websocket endpoint.
const PullPath = "/pull"

// WebSocketServer serves the pull protocol to one websocket client at a time.
// Each non-empty message is a pull and is answered with one text message
// holding the bar line. An empty message ends the session.
type WebSocketServer struct {
	addr     string
	puller   Puller
	metrics  *observe.Metrics
	upgrader websocket.Upgrader
	server   *http.Server

	busy   atomic.Bool
	mu     sync.Mutex
	ln     net.Listener
	conn   *websocket.Conn // Active client, if any.
	closed bool
}

// NewWebSocketServer creates a server for addr; call Listen and Serve to run it.
func NewWebSocketServer(addr string, puller Puller, metrics *observe.Metrics) *WebSocketServer {
	t := &WebSocketServer{
		addr:    addr,
		puller:  puller,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  512,
			WriteBufferSize: 512,
			CheckOrigin: func(r *http.Request) bool {
				return true // Any origin; the endpoint only serves bar lines.
			},
		},
	}
	t.server = &http.Server{
		Handler:           t.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return t
}

// Handler returns the HTTP handler serving PullPath.
func (t *WebSocketServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(PullPath, t.handleWebSocket)
	return mux
}

// Listen binds the server address.
func (t *WebSocketServer) Listen() error {
	ln, err := net.Listen("tcp", t.addr)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.ln = ln
	t.mu.Unlock()
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (t *WebSocketServer) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ln == nil {
		return nil
	}
	return t.ln.Addr()
}

// Serve accepts websocket clients until ctx is done or Close is called.
func (t *WebSocketServer) Serve(ctx context.Context) error {
	if t.Addr() == nil {
		if err := t.Listen(); err != nil {
			return err
		}
	}
	stop := context.AfterFunc(ctx, func() { t.Close() })
	defer stop()

	t.server.BaseContext = func(net.Listener) context.Context { return ctx }
	log.Infof("WebSocket pull server listening on ws://%s%s", t.Addr(), PullPath)

	err := t.server.Serve(t.ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (t *WebSocketServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !t.busy.CompareAndSwap(false, true) {
		http.Error(w, "another client is connected", http.StatusServiceUnavailable)
		return
	}
	defer t.busy.Store(false)

	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.conn = conn
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.conn = nil
		t.mu.Unlock()
	}()

	ctx := r.Context()
	sess := NewSession(ctx, "websocket", r.RemoteAddr, t.puller, t.metrics)
	defer sess.End(ctx)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if len(msg) == 0 {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}

		line, err := sess.Pull(ctx)
		if err != nil {
			log.Errorf("WebSocket pull failed: %v", err)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, ""),
				time.Now().Add(time.Second))
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, line); err != nil {
			return
		}
	}
}

// Close stops the listener and drops the active client.
func (t *WebSocketServer) Close() error {
	t.mu.Lock()
	t.closed = true
	if t.conn != nil {
		t.conn.Close()
	}
	ln := t.ln
	t.mu.Unlock()

	err := t.server.Close()
	if ln != nil {
		ln.Close()
	}
	return err
}

var _ Transport = (*WebSocketServer)(nil)
