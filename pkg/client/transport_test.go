package client

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type recordingListener struct {
	mu     sync.Mutex
	opens  []uint64
	frames []string
	closes []uint64
	errs   int
}

func (r *recordingListener) listener() Listener {
	return Listener{
		OnOpen: func(h *Handle) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.opens = append(r.opens, h.Generation())
		},
		OnFrame: func(h *Handle, data []byte) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.frames = append(r.frames, string(data))
		},
		OnClose: func(h *Handle, err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.closes = append(r.closes, h.Generation())
		},
		OnTransportError: func(h *Handle, err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.errs++
		},
	}
}

func (r *recordingListener) counts() (opens, frames, closes, errs int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.opens), len(r.frames), len(r.closes), r.errs
}

func TestTransport_SendWithoutConnection(t *testing.T) {
	tr := NewTransport(DefaultConfig(), Listener{}, quietLogger)

	if tr.Send([]byte("hello")) {
		t.Error("Send() = true without a connection, want false")
	}
	if err := tr.Write([]byte("hello")); err != ErrNotConnected {
		t.Errorf("Write() error = %v, want ErrNotConnected", err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("Close() on idle transport = %v, want nil", err)
	}
}

func TestTransport_DeliversFramesInOrder(t *testing.T) {
	endpoint := scriptServer(t, func(conn *websocket.Conn) {
		sendAll(t, conn, "one", "two", "three")
		drain(conn)
	})

	rec := &recordingListener{}
	tr := NewTransport(DefaultConfig(), rec.listener(), quietLogger)
	if _, err := tr.Open(context.Background(), endpoint); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer tr.Close()

	deadline := time.Now().Add(waitFor)
	for {
		if _, frames, _, _ := rec.counts(); frames == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("frames not delivered")
		}
		time.Sleep(tick)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	want := []string{"one", "two", "three"}
	for i, f := range rec.frames {
		if f != want[i] {
			t.Errorf("frame[%d] = %q, want %q", i, f, want[i])
		}
	}
	if len(rec.opens) != 1 || rec.opens[0] != 1 {
		t.Errorf("opens = %v, want [1]", rec.opens)
	}
}

func TestTransport_ReplacesHandle(t *testing.T) {
	endpoint := scriptServer(t, drain)

	rec := &recordingListener{}
	tr := NewTransport(DefaultConfig(), rec.listener(), quietLogger)

	first, err := tr.Open(context.Background(), endpoint)
	if err != nil {
		t.Fatalf("first Open() error: %v", err)
	}
	second, err := tr.Open(context.Background(), endpoint)
	if err != nil {
		t.Fatalf("second Open() error: %v", err)
	}

	select {
	case <-first.Done():
	case <-time.After(waitFor):
		t.Fatal("replaced handle still running")
	}
	if first.Write([]byte("late")) != ErrNotConnected {
		t.Error("write on replaced handle should fail")
	}
	if first.Generation() != 1 {
		t.Errorf("first.Generation() = %d, want 1", first.Generation())
	}
	if second.Generation() != 2 {
		t.Errorf("second.Generation() = %d, want 2", second.Generation())
	}
	if !tr.Send([]byte("hi")) {
		t.Error("Send() on live handle = false, want true")
	}

	if err := tr.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	opens, _, closes, errs := rec.counts()
	if opens != 2 {
		t.Errorf("opens = %d, want 2", opens)
	}
	if closes != 0 {
		t.Errorf("closes = %d, want 0 for locally closed handles", closes)
	}
	if errs != 0 {
		t.Errorf("transport errors = %d, want 0", errs)
	}
	if tr.Connected() {
		t.Error("Connected() = true after Close")
	}
}

func TestTransport_PeerCloseReported(t *testing.T) {
	endpoint := scriptServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	})

	rec := &recordingListener{}
	tr := NewTransport(DefaultConfig(), rec.listener(), quietLogger)
	h, err := tr.Open(context.Background(), endpoint)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	select {
	case <-h.Done():
	case <-time.After(waitFor):
		t.Fatal("read loop did not exit")
	}
	_, _, closes, errs := rec.counts()
	if closes != 1 {
		t.Errorf("closes = %d, want 1", closes)
	}
	if errs != 0 {
		t.Errorf("transport errors = %d, want 0 for a normal close", errs)
	}
	if tr.Connected() {
		t.Error("Connected() = true after peer close")
	}
}

func TestTransport_AbruptDropIsTransportError(t *testing.T) {
	endpoint := scriptServer(t, func(conn *websocket.Conn) {
		conn.UnderlyingConn().Close()
	})

	rec := &recordingListener{}
	tr := NewTransport(DefaultConfig(), rec.listener(), quietLogger)
	h, err := tr.Open(context.Background(), endpoint)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	select {
	case <-h.Done():
	case <-time.After(waitFor):
		t.Fatal("read loop did not exit")
	}
	_, _, closes, errs := rec.counts()
	if closes != 1 || errs != 1 {
		t.Errorf("closes, errs = %d, %d, want 1, 1", closes, errs)
	}
}

func TestConfig_Clone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Header = map[string][]string{"X-Test": {"a"}}

	clone := cfg.Clone()
	clone.Header.Set("X-Test", "b")
	clone.WriteTimeout = time.Minute

	if cfg.Header.Get("X-Test") != "a" {
		t.Error("Clone shares the header map")
	}
	if cfg.WriteTimeout == time.Minute {
		t.Error("Clone shares fields")
	}
	var nilCfg *Config
	if nilCfg.Clone() != nil {
		t.Error("nil Clone() should be nil")
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := (&Config{Endpoint: "ws://x"}).withDefaults()
	def := DefaultConfig()

	if cfg.Schema != def.Schema {
		t.Errorf("Schema = %v, want %v", cfg.Schema, def.Schema)
	}
	if cfg.HandshakeTimeout != def.HandshakeTimeout {
		t.Errorf("HandshakeTimeout = %v, want %v", cfg.HandshakeTimeout, def.HandshakeTimeout)
	}
	if cfg.MaxFrameSize != def.MaxFrameSize {
		t.Errorf("MaxFrameSize = %d, want %d", cfg.MaxFrameSize, def.MaxFrameSize)
	}
	if cfg.ReadLimit != def.ReadLimit {
		t.Errorf("ReadLimit = %d, want %d", cfg.ReadLimit, def.ReadLimit)
	}
	if cfg.Endpoint != "ws://x" {
		t.Errorf("Endpoint = %q, want ws://x", cfg.Endpoint)
	}

	small := (&Config{MaxFrameSize: 4096, ReadLimit: 1024}).withDefaults()
	if small.ReadLimit != 8192 {
		t.Errorf("ReadLimit = %d, want it raised to 8192", small.ReadLimit)
	}
}

func TestReadFrame(t *testing.T) {
	tests := []struct {
		name  string
		input string
		limit int64
		want  string
	}{
		{name: "under limit", input: "abc", limit: 5, want: "abc"},
		{name: "at limit", input: "abcde", limit: 5, want: "abcde"},
		{name: "over limit is truncated", input: "abcdefgh", limit: 5, want: "abcdef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := strings.NewReader(tt.input)
			got, err := readFrame(r, tt.limit)
			if err != nil {
				t.Fatalf("readFrame() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("readFrame() = %q, want %q", got, tt.want)
			}
			if r.Len() != 0 {
				t.Errorf("%d bytes left unread", r.Len())
			}
		})
	}
}
