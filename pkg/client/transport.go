package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Transport errors.
var (
	// ErrNotConnected is returned when writing without an open connection.
	ErrNotConnected = errors.New("client: not connected")

	// ErrNoEndpoint is returned by Connect when Config.Endpoint is empty.
	ErrNoEndpoint = errors.New("client: no endpoint configured")
)

// closeGrace bounds the close handshake write.
const closeGrace = time.Second

// Listener receives connection lifecycle callbacks. Callbacks for a handle
// that has since been replaced or closed locally are dropped. Callbacks
// must not call Handle.Close or Transport.Close.
type Listener struct {
	OnOpen           func(h *Handle)
	OnFrame          func(h *Handle, data []byte)
	OnClose          func(h *Handle, err error)
	OnTransportError func(h *Handle, err error)
}

// Transport owns at most one live WebSocket connection.
type Transport struct {
	config   *Config
	listener Listener
	logger   *slog.Logger
	dialer   *websocket.Dialer

	mu         sync.Mutex
	current    *Handle
	generation uint64
}

// NewTransport creates a Transport. A nil logger uses slog.Default().
func NewTransport(config *Config, listener Listener, logger *slog.Logger) *Transport {
	config = config.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		config:   config,
		listener: listener,
		logger:   logger,
		dialer: &websocket.Dialer{
			Proxy:             http.ProxyFromEnvironment,
			HandshakeTimeout:  config.HandshakeTimeout,
			EnableCompression: config.EnableCompression,
		},
	}
}

// Handle is one open connection.
type Handle struct {
	t          *Transport
	conn       *websocket.Conn
	generation uint64

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// Generation returns the sequence number assigned when the handle opened.
func (h *Handle) Generation() uint64 {
	return h.generation
}

// Done is closed once the handle's read loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Open dials endpoint and makes the new connection the live one. A handle
// that was already open is closed first; its callbacks are dropped.
func (t *Transport) Open(ctx context.Context, endpoint string) (*Handle, error) {
	conn, resp, err := t.dialer.DialContext(ctx, endpoint, t.config.Header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("client: dial %s: %w (status %d)", endpoint, err, resp.StatusCode)
		} else {
			err = fmt.Errorf("client: dial %s: %w", endpoint, err)
		}
		t.logger.Warn("connect failed", "endpoint", endpoint, "error", err)
		return nil, err
	}
	conn.SetReadLimit(t.config.ReadLimit)

	t.mu.Lock()
	t.generation++
	h := &Handle{
		t:          t,
		conn:       conn,
		generation: t.generation,
		done:       make(chan struct{}),
	}
	prev := t.current
	t.current = h
	t.mu.Unlock()

	if prev != nil {
		t.logger.Debug("replacing connection",
			"previous", prev.generation,
			"generation", h.generation)
		prev.Close()
	}

	t.logger.Info("connected", "endpoint", endpoint, "generation", h.generation)
	if t.isCurrent(h) && t.listener.OnOpen != nil {
		t.listener.OnOpen(h)
	}
	go h.readLoop()
	return h, nil
}

// Send writes data on the live connection. It reports false without an
// error when nothing is open or the write fails.
func (t *Transport) Send(data []byte) bool {
	return t.Write(data) == nil
}

// Write writes data on the live connection.
func (t *Transport) Write(data []byte) error {
	t.mu.Lock()
	h := t.current
	t.mu.Unlock()
	if h == nil {
		return ErrNotConnected
	}
	return h.Write(data)
}

// Connected reports whether a connection is live.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current != nil
}

// Close closes the live connection, if any. No OnClose callback fires for
// a connection closed this way.
func (t *Transport) Close() error {
	t.mu.Lock()
	h := t.current
	t.current = nil
	t.mu.Unlock()
	if h == nil {
		return nil
	}
	return h.Close()
}

func (t *Transport) isCurrent(h *Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current == h
}

// release clears h if it is still live and reports whether it was.
func (t *Transport) release(h *Handle) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != h {
		return false
	}
	t.current = nil
	return true
}

// Write sends one text message.
func (h *Handle) Write(data []byte) error {
	if h.closed.Load() {
		return ErrNotConnected
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	h.conn.SetWriteDeadline(time.Now().Add(h.t.config.WriteTimeout))
	if err := h.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.t.logger.Warn("write failed", "generation", h.generation, "error", err)
		return fmt.Errorf("client: write: %w", err)
	}
	return nil
}

// Close sends a normal close and waits for the read loop to exit.
func (h *Handle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		h.closed.Store(true)

		h.writeMu.Lock()
		h.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGrace),
		)
		h.writeMu.Unlock()

		err = h.conn.Close()
	})
	<-h.done
	return err
}

// readLoop delivers frames in arrival order until the connection ends.
// Frames over MaxFrameSize are delivered truncated to MaxFrameSize+1 bytes
// so the listener can reject them without losing the connection.
func (h *Handle) readLoop() {
	defer close(h.done)

	for {
		_, r, err := h.conn.NextReader()
		if err != nil {
			h.finish(err)
			return
		}
		data, err := readFrame(r, h.t.config.MaxFrameSize)
		if err != nil {
			h.finish(err)
			return
		}
		if !h.t.isCurrent(h) {
			continue
		}
		if h.t.listener.OnFrame != nil {
			h.t.listener.OnFrame(h, data)
		}
	}
}

// readFrame reads at most limit+1 bytes of one message and discards the
// rest.
func readFrame(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		if _, err := io.Copy(io.Discard, r); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// finish reports the end of the connection if h is still live.
func (h *Handle) finish(err error) {
	t := h.t
	live := t.release(h)
	h.conn.Close()

	if !live || h.closed.Load() {
		t.logger.Debug("connection closed", "generation", h.generation)
		return
	}

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		t.logger.Info("connection closed by peer", "generation", h.generation)
		err = nil
	} else {
		t.logger.Warn("connection lost", "generation", h.generation, "error", err)
		if t.listener.OnTransportError != nil {
			t.listener.OnTransportError(h, err)
		}
	}
	if t.listener.OnClose != nil {
		t.listener.OnClose(h, err)
	}
}
