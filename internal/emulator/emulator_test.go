package emulator

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vango-dev/chatstream/pkg/client"
	"github.com/vango-dev/chatstream/pkg/conversation"
	"github.com/vango-dev/chatstream/pkg/protocol"
)

var (
	quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	fixedNow    = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
)

func newTestServer(t *testing.T, cfg *Config, opts ...Option) (*Server, string) {
	t.Helper()
	opts = append([]Option{
		WithLogger(quietLogger),
		WithClock(func() time.Time { return fixedNow }),
	}, opts...)
	s := New(cfg, opts...)
	hs := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Shutdown(ctx)
		hs.Close()
	})
	return s, "ws" + strings.TrimPrefix(hs.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

// readUntil reads frames until one has a terminal type.
func readUntil(t *testing.T, ws *websocket.Conn, schema protocol.Schema) []protocol.Event {
	t.Helper()
	var events []protocol.Event
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)
		ev, err := protocol.Decode(protocol.Strict(schema), data)
		require.NoError(t, err, "frame %s", data)
		events = append(events, ev)
		if ev.Kind.Terminal() {
			return events
		}
	}
}

func kinds(events []protocol.Event) []protocol.Kind {
	out := make([]protocol.Kind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func TestHealth(t *testing.T) {
	s := New(nil, WithLogger(quietLogger))

	for _, path := range []string{"/healthz", "/health"} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String(), path)
	}

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "metrics route without handler")
}

func TestAgent_TransactionsPrompt(t *testing.T) {
	_, base := newTestServer(t, nil)
	ws := dial(t, base+"/ws/agent")

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("show my transactions")))
	events := readUntil(t, ws, protocol.Agent)

	ks := kinds(events)
	require.GreaterOrEqual(t, len(ks), 6)
	assert.Equal(t, protocol.KindStart, ks[0])
	assert.Equal(t, protocol.KindToolCall, ks[1])
	assert.Equal(t, protocol.KindToolResult, ks[2])
	assert.Equal(t, protocol.KindContentComplete, ks[len(ks)-2])
	assert.Equal(t, protocol.KindEnd, ks[len(ks)-1])
	for _, k := range ks[3 : len(ks)-2] {
		assert.Equal(t, protocol.KindContentDelta, k)
	}

	call, result := events[1], events[2]
	assert.Equal(t, TransactionsTool, call.ToolName)
	assert.True(t, strings.HasPrefix(call.ToolCallID, "call_"))
	assert.Equal(t, call.ToolCallID, result.ToolCallID)
	assert.JSONEq(t, `{"data":[{"id":"1","amount":"-10.99","date_time":"2025-10-05T00:00:00Z"},{"id":"2","amount":"100.45","date_time":"2025-10-04T00:00:00Z"}]}`,
		string(result.ToolResult))

	complete := events[len(events)-2]
	require.NotNil(t, complete.Content)
	assert.Equal(t, "You have 2 recent transactions: -10.99 on 2025-10-05 and 100.45 on 2025-10-04.", *complete.Content)

	lastDelta := events[len(events)-3]
	require.NotNil(t, lastDelta.Content)
	assert.Equal(t, *complete.Content, *lastDelta.Content, "accumulated equals final content")
}

func TestAgent_Timestamps(t *testing.T) {
	_, base := newTestServer(t, nil)
	ws := dial(t, base+"/ws/agent")

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("hello")))
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)

	var start protocol.StartFrame
	require.NoError(t, json.Unmarshal(data, &start))
	assert.Equal(t, "start", start.Type)
	assert.Equal(t, "2025-01-02T03:04:05Z", start.Timestamp)
}

func TestAgent_PlainPromptHasNoToolCall(t *testing.T) {
	_, base := newTestServer(t, nil)
	ws := dial(t, base+"/ws/agent")

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("what is the weather")))
	for _, k := range kinds(readUntil(t, ws, protocol.Agent)) {
		assert.NotEqual(t, protocol.KindToolCall, k)
		assert.NotEqual(t, protocol.KindToolResult, k)
	}
}

func TestNarrative_Haiku(t *testing.T) {
	_, base := newTestServer(t, nil)
	ws := dial(t, base+"/ws/chat")

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("autumn leaves")))
	events := readUntil(t, ws, protocol.Narrative)

	assert.Equal(t, protocol.KindStart, events[0].Kind)
	end := events[len(events)-1]
	require.Equal(t, protocol.KindEnd, end.Kind)
	assert.JSONEq(t, `"Autumn Leaves"`, string(end.Fields["title"]))
	assert.JSONEq(t, `"autumn leaves at first light\nquiet as falling water\nthe autumn remains"`, string(end.Fields["haiku"]))
	assert.Nil(t, end.Content)
}

func TestFailPrompt(t *testing.T) {
	tests := []struct {
		path   string
		schema protocol.Schema
		want   string
		code   string
	}{
		{"/ws/agent", protocol.Agent, agentErrorMessage, protocol.CodeProcessing},
		{"/ws/chat", protocol.Narrative, narrativeErrorMessage, ""},
	}
	for _, tt := range tests {
		t.Run(tt.schema.Name(), func(t *testing.T) {
			_, base := newTestServer(t, nil)
			ws := dial(t, base+tt.path)

			require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(FailPrompt)))
			events := readUntil(t, ws, tt.schema)
			require.Equal(t, []protocol.Kind{protocol.KindStart, protocol.KindError}, kinds(events))
			assert.Equal(t, tt.want, events[1].Message)
			assert.Equal(t, tt.code, events[1].Code)

			// The connection survives a failed prompt.
			require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("again")))
			events = readUntil(t, ws, tt.schema)
			assert.Equal(t, protocol.KindEnd, events[len(events)-1].Kind)
		})
	}
}

func TestIdleTimeout(t *testing.T) {
	tests := []struct {
		path   string
		schema protocol.Schema
		code   string
	}{
		{"/ws/agent", protocol.Agent, protocol.CodeTimeout},
		{"/ws/chat", protocol.Narrative, ""},
	}
	for _, tt := range tests {
		t.Run(tt.schema.Name(), func(t *testing.T) {
			reg := prometheus.NewRegistry()
			m := NewMetrics(reg)
			_, base := newTestServer(t, &Config{IdleTimeout: 50 * time.Millisecond}, WithMetrics(m))
			ws := dial(t, base+tt.path)

			events := readUntil(t, ws, tt.schema)
			require.Len(t, events, 1)
			assert.Equal(t, protocol.KindError, events[0].Kind)
			assert.Equal(t, timeoutMessage, events[0].Message)
			assert.Equal(t, tt.code, events[0].Code)

			_, _, err := ws.ReadMessage()
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
			assert.Equal(t, 1.0, testutil.ToFloat64(m.timeouts.WithLabelValues(tt.schema.Name())))
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	s, base := newTestServer(t, nil,
		WithMetrics(m),
		WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	ws := dial(t, base+"/ws/agent")
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("hi")))
	readUntil(t, ws, protocol.Agent)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.prompts.WithLabelValues("agent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connections.WithLabelValues("agent")))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "chatstream_emulator_prompts_total")
}

func TestServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(nil, WithLogger(quietLogger))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	ws := dial(t, "ws://"+ln.Addr().String()+"/ws/agent")
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.conns) == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = ws.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestClientEndToEnd_Agent(t *testing.T) {
	_, base := newTestServer(t, nil)

	cfg := client.DefaultConfig()
	cfg.Endpoint = base + protocol.Agent.Path()
	cfg.StrictValidation = true
	sess := client.NewSession(cfg, client.WithLogger(quietLogger))
	t.Cleanup(func() { sess.Close() })

	require.NoError(t, sess.Connect(context.Background()))
	require.True(t, sess.Submit("how much did I spend?"))

	require.Eventually(t, func() bool {
		snap := sess.Snapshot()
		return len(snap.History) == 2 && snap.Draft == nil
	}, 5*time.Second, 5*time.Millisecond)

	reply := sess.Snapshot().History[1]
	assert.Equal(t, conversation.RoleAssistant, reply.Role)
	assert.Equal(t, summarize(Transactions), reply.Content)
	require.Len(t, reply.ToolInvocations, 1)
	assert.True(t, reply.ToolInvocations[0].Resolved)
	assert.Equal(t, TransactionsTool, reply.ToolInvocations[0].Name)

	stats := sess.Stats()
	assert.Zero(t, stats.DecodeErrors)
	assert.Zero(t, stats.Violations)
}

func TestClientEndToEnd_Narrative(t *testing.T) {
	_, base := newTestServer(t, nil)

	cfg := client.DefaultConfig()
	cfg.Endpoint = base + protocol.Narrative.Path()
	cfg.Schema = protocol.Narrative
	sess := client.NewSession(cfg, client.WithLogger(quietLogger))
	t.Cleanup(func() { sess.Close() })

	require.NoError(t, sess.Connect(context.Background()))
	require.True(t, sess.Submit("the sea"))

	require.Eventually(t, func() bool {
		return len(sess.Snapshot().History) == 2
	}, 5*time.Second, 5*time.Millisecond)

	reply := sess.Snapshot().History[1]
	title, ok := reply.Field("title")
	assert.True(t, ok)
	assert.Equal(t, "The Sea", title)
	haiku, _ := reply.Field("haiku")
	assert.Contains(t, haiku, "quiet as falling water")
}

func TestClientEndToEnd_IdleTimeoutBecomesErrorTurn(t *testing.T) {
	_, base := newTestServer(t, &Config{IdleTimeout: 50 * time.Millisecond})

	cfg := client.DefaultConfig()
	cfg.Endpoint = base + protocol.Agent.Path()
	sess := client.NewSession(cfg, client.WithLogger(quietLogger))
	t.Cleanup(func() { sess.Close() })

	require.NoError(t, sess.Connect(context.Background()))
	require.Eventually(t, func() bool {
		snap := sess.Snapshot()
		return !snap.Connected && len(snap.History) == 1
	}, 5*time.Second, 5*time.Millisecond)

	turn := sess.Snapshot().History[0]
	assert.Equal(t, conversation.RoleError, turn.Role)
	assert.Equal(t, protocol.CodeTimeout, turn.Code)
}
