package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/chatstream/internal/emulator"
	"github.com/vango-dev/chatstream/internal/errors"
	"github.com/vango-dev/chatstream/pkg/client"
	"github.com/vango-dev/chatstream/pkg/conversation"
	"github.com/vango-dev/chatstream/pkg/protocol"
)

// run executes the CLI with args and returns stdout and stderr.
func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	for _, key := range []string{"CHATSTREAM_URL", "CHATSTREAM_MODE", "CHATSTREAM_LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfgPath := filepath.Join(t.TempDir(), "chatstream.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log_level: error\n"), 0o644))

	var stdout, stderr bytes.Buffer
	a := &app{stdin: strings.NewReader(stdin), stdout: &stdout, stderr: &stderr}
	root := a.rootCmd()
	root.SetArgs(append([]string{"--config", cfgPath, "--no-color"}, args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frames.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestVersion_Short(t *testing.T) {
	out, _, err := run(t, "", "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}

func TestVersion_Full(t *testing.T) {
	out, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version:    "+version)
	assert.Contains(t, out, "OS/Arch:")
}

func TestReplay(t *testing.T) {
	lines := []string{
		`> what did I spend?`,
		`{"type":"start","timestamp":"2025-01-02T03:04:05Z"}`,
		`{"type":"tool_call","tool_call_id":"c1","tool_name":"get_transactions","tool_args":{}}`,
		`{"type":"tool_result","tool_call_id":"c1","result":{"data":[]}}`,
		`{"type":"content_delta","delta":"Nothing","accumulated":"Nothing"}`,
		`not json`,
		`{"type":"typing"}`,
		``,
		`{"type":"content_complete","content":"Nothing yet."}`,
		`{"type":"end"}`,
		`{"type":"end"}`,
	}

	res, err := replay(strings.NewReader(strings.Join(lines, "\n")), protocol.Agent, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	assert.Equal(t, ReplayStats{
		Lines:        10,
		Prompts:      1,
		Responses:    1,
		Applied:      6,
		DecodeErrors: 1,
		Unrecognized: 1,
		Violations:   1,
	}, res.Stats)
	require.Len(t, res.History, 2)
	assert.Nil(t, res.Draft)

	reply := res.History[1]
	assert.Equal(t, conversation.RoleAssistant, reply.Role)
	assert.Equal(t, "Nothing yet.", reply.Content)
	require.Len(t, reply.ToolInvocations, 1)
	assert.True(t, reply.ToolInvocations[0].Resolved)
}

func TestReplay_OversizedLineIsDropped(t *testing.T) {
	lines := []string{
		`{"type":"start"}`,
		`{"type":"content_delta","accumulated":"` + strings.Repeat("a", protocol.MaxFrameSize) + `"}`,
		`{"type":"content_delta","accumulated":"ok"}`,
		`{"type":"end"}`,
	}

	res, err := replay(strings.NewReader(strings.Join(lines, "\n")), protocol.Agent, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	assert.Equal(t, 4, res.Stats.Lines)
	assert.Equal(t, 1, res.Stats.DecodeErrors)
	assert.Equal(t, 3, res.Stats.Applied)
	require.Len(t, res.History, 1)
	assert.Equal(t, "ok", res.History[0].Content)
}

func TestReadLine(t *testing.T) {
	br := bufio.NewReaderSize(strings.NewReader("short\n"+strings.Repeat("x", 100)+"\n\nlast"), 16)

	var got []string
	for {
		line, err := readLine(br, 10)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, string(line))
	}
	assert.Equal(t, []string{"short", strings.Repeat("x", 11), "", "last"}, got)
}

func TestReplayCmd_JSON(t *testing.T) {
	path := writeLog(t,
		`{"source":"bot","type":"start","message":{"title":null,"haiku":null,"content":null}}`,
		`{"source":"bot","type":"stream","message":{"title":"Sea","haiku":null,"content":null}}`,
	)

	out, _, err := run(t, "", "--mode", "narrative", "replay", "--json", path)
	require.NoError(t, err)

	var res ReplayResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Empty(t, res.History)
	require.NotNil(t, res.Draft)
	title, ok := res.Draft.Field("title")
	assert.True(t, ok)
	assert.Equal(t, "Sea", title)
}

func TestReplayCmd_Transcript(t *testing.T) {
	path := writeLog(t,
		`> hi`,
		`{"type":"start"}`,
		`{"type":"error","message":"overloaded","code":"BUSY"}`,
	)

	out, _, err := run(t, "", "replay", path)
	require.NoError(t, err)
	assert.Contains(t, out, "you › hi\n")
	assert.Contains(t, out, "error › overloaded [BUSY]\n")
	assert.Contains(t, out, "3 lines, 2 applied")
}

func TestReplayCmd_MissingFile(t *testing.T) {
	_, _, err := run(t, "", "replay", filepath.Join(t.TempDir(), "missing.jsonl"))
	require.Error(t, err)

	var ce *errors.ChatError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "C302", ce.Code)
}

func TestReportError(t *testing.T) {
	tests := []struct {
		name       string
		jsonErrors bool
		err        error
		wantOut    string
		wantErr    string
	}{
		{
			name:    "compact when not a terminal",
			err:     errors.New("C302").Wrap(stderrors.New("no such file")),
			wantErr: "C302: Replay file unreadable: no such file\n",
		},
		{
			name:    "plain errors become invalid arguments",
			err:     stderrors.New(`unknown command "chit"`),
			wantErr: `C301: Invalid arguments: unknown command "chit"` + "\n",
		},
		{
			name:       "json",
			jsonErrors: true,
			err:        errors.New("C302"),
			wantOut:    `"code":"C302"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			a := &app{stdout: &stdout, stderr: &stderr, jsonErrors: tt.jsonErrors}
			a.reportError(tt.err)

			if tt.wantOut != "" {
				assert.Contains(t, stdout.String(), tt.wantOut)
				assert.True(t, json.Valid(stdout.Bytes()))
			}
			assert.Equal(t, tt.wantErr, stderr.String())
		})
	}
}

func TestReplayCmd_JSONErrors(t *testing.T) {
	out, _, err := run(t, "", "replay", "--json", filepath.Join(t.TempDir(), "missing.jsonl"))
	require.Error(t, err)
	assert.Empty(t, out)

	var stdout bytes.Buffer
	a := &app{stdout: &stdout, stderr: io.Discard, jsonErrors: true}
	a.reportError(err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &got))
	assert.Equal(t, "C302", got["code"])
	assert.Equal(t, "cli", got["category"])
}

func TestExplain(t *testing.T) {
	out, _, err := run(t, "", "explain")
	require.NoError(t, err)
	assert.Contains(t, out, "C101")
	assert.Contains(t, out, "C304")

	out, _, err = run(t, "", "explain", "c101")
	require.NoError(t, err)
	assert.Contains(t, out, "C101: ")
	assert.Contains(t, out, "chatstream serve")

	_, _, err = run(t, "", "explain", "C999")
	var ce *errors.ChatError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "C301", ce.Code)
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatstream.yaml")

	out, _, err := run(t, "", "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote ")

	_, _, err = run(t, "", "config", "init", path)
	var ce *errors.ChatError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "C301", ce.Code)

	_, _, err = run(t, "", "config", "init", "--force", path)
	require.NoError(t, err)

	out, _, err = run(t, "", "--mode", "narrative", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# from ")
	assert.Contains(t, out, "# endpoint ws://localhost:3000/ws/chat")
	assert.Contains(t, out, "mode: narrative")
}

func TestInvalidMode(t *testing.T) {
	_, _, err := run(t, "", "--mode", "poetry", "replay", "x")

	var ce *errors.ChatError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "C003", ce.Code)
}

func TestChat_AgainstEmulator(t *testing.T) {
	srv := emulator.New(emulator.DefaultConfig(),
		emulator.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + protocol.Agent.Path()
	out, _, err := run(t, "what did I spend?\n", "--url", url, "chat")
	require.NoError(t, err)

	assert.Contains(t, out, "Connected to "+url)
	assert.Contains(t, out, "● connected")
	assert.Contains(t, out, "You have 2 recent transactions")
	assert.Contains(t, out, "⚙ get_transactions")
}

func TestChat_ConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/agent"
	ts.Close()

	_, _, err := run(t, "", "--url", url, "chat")

	var ce *errors.ChatError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "C101", ce.Code)
}

func TestChat_HandshakeRejected(t *testing.T) {
	ts := httptest.NewServer(nil)
	t.Cleanup(ts.Close)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/agent"

	_, _, err := run(t, "", "--url", url, "chat")

	var ce *errors.ChatError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "C102", ce.Code)
}

func TestBusy(t *testing.T) {
	user := conversation.Turn{Role: conversation.RoleUser}

	assert.False(t, busy(client.Snapshot{}))
	assert.True(t, busy(client.Snapshot{History: []conversation.Turn{user}}))
	assert.True(t, busy(client.Snapshot{Draft: &conversation.Turn{}}))
	assert.False(t, busy(client.Snapshot{History: []conversation.Turn{user, {Role: conversation.RoleError}}}))
}
