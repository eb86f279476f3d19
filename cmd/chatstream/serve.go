package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/vango-dev/chatstream/internal/config"
	"github.com/vango-dev/chatstream/internal/emulator"
	"github.com/vango-dev/chatstream/internal/errors"
)

func (a *app) serveCmd() *cobra.Command {
	var (
		addr        string
		idleTimeout time.Duration
		chunkDelay  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local assistant emulator",
		Long: `Run a scripted assistant that speaks both wire vocabularies.

Endpoints:
  /ws/chat     narrative vocabulary (titled haiku)
  /ws/agent    agent vocabulary (tool calls for transaction questions)
  /healthz     liveness
  /metrics     Prometheus metrics

A prompt of "/fail" answers with an error frame. A connection that
sends nothing for the idle timeout receives a timeout error and is closed.

Examples:
  chatstream serve
  chatstream serve --addr=0.0.0.0:3000 --chunk-delay=50ms`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Emulator.Addr = addr
			}
			if cmd.Flags().Changed("idle-timeout") {
				cfg.Emulator.IdleTimeout = config.Duration(idleTimeout)
			}
			if cmd.Flags().Changed("chunk-delay") {
				cfg.Emulator.ChunkDelay = config.Duration(chunkDelay)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector())

			ec := emulator.DefaultConfig()
			ec.Addr = cfg.Emulator.Addr
			ec.IdleTimeout = cfg.Emulator.IdleTimeout.Std()
			ec.ChunkDelay = cfg.Emulator.ChunkDelay.Std()

			srv := emulator.New(ec,
				emulator.WithLogger(a.newLogger(cfg)),
				emulator.WithMetrics(emulator.NewMetrics(reg)),
				emulator.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})),
			)

			a.printBanner()
			a.info("serve")
			a.info("narrative: ws://%s/ws/chat", ec.Addr)
			a.info("agent:     ws://%s/ws/agent", ec.Addr)
			a.info("")

			if err := srv.Run(ctx); err != nil {
				return errors.New("C304").WithDetail("Address: " + ec.Addr).Wrap(err)
			}
			a.success("Emulator stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default 127.0.0.1:3000)")
	cmd.Flags().DurationVar(&idleTimeout, "idle-timeout", config.DefaultIdleTimeout, "Close connections idle this long")
	cmd.Flags().DurationVar(&chunkDelay, "chunk-delay", 0, "Pause between streamed chunks")

	return cmd
}
