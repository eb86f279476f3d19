package client

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// scriptServer runs handler for every accepted WebSocket connection.
func scriptServer(t *testing.T, handler func(conn *websocket.Conn)) (endpoint string) {
	t.Helper()
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// sendAll writes each frame as a text message.
func sendAll(t *testing.T, conn *websocket.Conn, frames ...string) {
	t.Helper()
	for _, f := range frames {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			t.Errorf("server write: %v", err)
			return
		}
	}
}

// drain blocks until the peer closes the connection.
func drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func newTestSession(t *testing.T, endpoint string, mutate func(*Config)) *Session {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Endpoint = endpoint
	if mutate != nil {
		mutate(cfg)
	}
	s := NewSession(cfg, WithLogger(quietLogger))
	t.Cleanup(func() { s.Close() })
	return s
}

func requireConnected(t *testing.T, s *Session) {
	t.Helper()
	require.Eventually(t, s.Connected, waitFor, tick, "session never connected")
}
