package main

import (
	"bufio"
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vango-dev/chatstream/internal/config"
	"github.com/vango-dev/chatstream/internal/errors"
	"github.com/vango-dev/chatstream/internal/terminal"
	"github.com/vango-dev/chatstream/pkg/client"
	"github.com/vango-dev/chatstream/pkg/conversation"
	"github.com/vango-dev/chatstream/pkg/protocol"
	"github.com/vango-dev/chatstream/pkg/telemetry"
)

const quitCommand = "/quit"

func (a *app) chatCmd() *cobra.Command {
	var (
		metricsAddr  string
		strict       bool
		draftTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive conversation",
		Long: `Connect to the assistant and chat line by line.

Each line read from stdin is sent as one prompt. Lines typed while a
response is streaming are queued. Type /quit or press Ctrl-D to leave.

Examples:
  chatstream chat
  chatstream chat --mode=narrative
  chatstream chat --url=ws://localhost:8080/ws/agent --strict
  echo "show my transactions" | chatstream chat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("strict") {
				cfg.Strict = strict
			}
			if cmd.Flags().Changed("draft-timeout") {
				cfg.DraftTimeout = config.Duration(draftTimeout)
			}
			if metricsAddr != "" {
				cfg.Metrics.Addr = metricsAddr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runChat(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&strict, "strict", false, "Validate frames against the JSON Schema documents")
	cmd.Flags().DurationVar(&draftTimeout, "draft-timeout", 0, "Abandon a response that stays silent this long (0 disables)")

	return cmd
}

func (a *app) runChat(ctx context.Context, cfg *config.Config) error {
	logger := a.newLogger(cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := telemetry.NewMetrics(telemetry.WithRegistry(reg))

	if cfg.Metrics.Addr != "" {
		stopMetrics, err := serveMetrics(ctx, cfg.Metrics.Addr, reg, logger)
		if err != nil {
			return err
		}
		defer stopMetrics()
	}

	session := client.NewSession(cfg.ClientConfig(),
		client.WithLogger(logger),
		client.WithMetrics(metrics),
		client.WithTracer(telemetry.NewTracer()),
	)

	endpoint := cfg.Endpoint()
	if err := session.Connect(ctx); err != nil {
		return connectError(endpoint, err)
	}
	defer func() {
		_ = session.Close()
		st := session.Stats()
		logger.Info("session closed",
			"frames", st.FramesReceived,
			"events", st.EventsApplied,
			"decode_errors", st.DecodeErrors,
			"violations", st.Violations,
			"drafts_abandoned", st.DraftsAbandoned)
	}()

	a.success("Connected to %s (%s)", endpoint, cfg.Schema().Name())

	presenter := terminal.NewPresenter(a.stdout, terminal.WithTheme(a.theme()))
	presenter.Update(session.Snapshot())

	lines := readLines(ctx, a.stdin)
	var (
		queue []string
		eof   bool
	)
	for {
		snap := session.Snapshot()
		if len(queue) > 0 && !busy(snap) {
			prompt := queue[0]
			queue = queue[1:]
			if !session.Submit(prompt) {
				a.errorMsg("Not sent: %q", prompt)
			}
			continue
		}
		if eof && len(queue) == 0 && !busy(snap) {
			presenter.Update(snap)
			return nil
		}

		select {
		case <-ctx.Done():
			return nil

		case <-session.Changes():
			snap := session.Snapshot()
			presenter.Update(snap)
			if !snap.Connected {
				return errors.New("C103").WithDetail("The connection to " + endpoint + " closed.")
			}

		case line, ok := <-lines:
			if !ok {
				eof = true
				lines = nil
				continue
			}
			line = strings.TrimSpace(line)
			switch line {
			case "":
			case quitCommand:
				return nil
			default:
				queue = append(queue, line)
			}
		}
	}
}

// busy reports whether a submitted prompt is still awaiting its response.
func busy(s client.Snapshot) bool {
	if s.Draft != nil {
		return true
	}
	n := len(s.History)
	return n > 0 && s.History[n-1].Role == conversation.RoleUser
}

// readLines streams lines from r until EOF or ctx is done.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		br := bufio.NewReader(r)
		for {
			line, err := readLine(br, protocol.MaxCommandSize)
			if err != nil {
				return
			}
			select {
			case out <- string(line):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// connectError maps a dial failure onto a user-facing error.
func connectError(endpoint string, err error) error {
	if stderrors.Is(err, websocket.ErrBadHandshake) {
		return errors.New("C102").
			WithDetail("Endpoint: " + endpoint).
			Wrap(err)
	}
	return errors.New("C101").
		WithDetail("Endpoint: " + endpoint).
		Wrap(err)
}

// serveMetrics exposes reg on addr until the returned stop func is called.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.New("C303").WithDetail("Address: " + addr).Wrap(err)
	}

	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Info("metrics listening", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}, nil
}
