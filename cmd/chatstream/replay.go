package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/chatstream/internal/errors"
	"github.com/vango-dev/chatstream/internal/terminal"
	"github.com/vango-dev/chatstream/pkg/client"
	"github.com/vango-dev/chatstream/pkg/conversation"
	"github.com/vango-dev/chatstream/pkg/protocol"
)

// promptPrefix marks a replay line as a user prompt instead of a frame.
const promptPrefix = "> "

// ReplayStats counts what happened to each line of a replay.
type ReplayStats struct {
	Lines        int `json:"lines"`
	Prompts      int `json:"prompts"`
	Responses    int `json:"responses"`
	Applied      int `json:"applied"`
	DecodeErrors int `json:"decodeErrors"`
	Unrecognized int `json:"unrecognized"`
	Violations   int `json:"violations"`
}

// ReplayResult is the JSON output of replay.
type ReplayResult struct {
	History []conversation.Turn `json:"history"`
	Draft   *conversation.Turn  `json:"draft,omitempty"`
	Stats   ReplayStats         `json:"stats"`
}

func (a *app) replayCmd() *cobra.Command {
	var (
		asJSON bool
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Fold a recorded frame log into a transcript",
		Long: `Replay reads one frame per line and prints the resulting conversation.

Lines starting with "> " are treated as user prompts. Empty lines are
skipped. Malformed frames and protocol violations are reported on stderr
and otherwise ignored, exactly as a live session would.

Examples:
  chatstream replay session.jsonl
  chatstream replay --mode=narrative --json haiku.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.jsonErrors = asJSON

			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return errors.New("C302").WithDetail("File: " + args[0]).Wrap(err)
			}
			defer f.Close()

			schema := cfg.Schema()
			if strict || cfg.Strict {
				schema = protocol.Strict(schema)
			}

			res, err := replay(f, schema, a.newLogger(cfg))
			if err != nil {
				return errors.New("C302").WithDetail("File: " + args[0]).Wrap(err)
			}

			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			p := terminal.NewPresenter(a.stdout, terminal.WithTheme(a.theme()), terminal.WithEchoUser(true))
			fmt.Fprint(a.stdout, p.Render(client.Snapshot{History: res.History, Draft: res.Draft}))
			s := res.Stats
			a.info("%d lines, %d applied, %d malformed, %d unrecognized, %d violations",
				s.Lines, s.Applied, s.DecodeErrors, s.Unrecognized, s.Violations)
			if res.Draft != nil {
				a.warn("Log ends in the middle of a response")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the transcript as JSON")
	cmd.Flags().BoolVar(&strict, "strict", false, "Validate frames against the JSON Schema documents")

	return cmd
}

// replay decodes and applies every line of r.
func replay(r io.Reader, schema protocol.Schema, logger *slog.Logger) (*ReplayResult, error) {
	reducer := conversation.NewReducer(nil)
	var stats ReplayStats

	br := bufio.NewReader(r)
	n := 0
	for {
		raw, err := readLine(br, protocol.MaxFrameSize)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		n++
		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			continue
		}
		stats.Lines++

		if len(raw) > protocol.MaxFrameSize {
			stats.DecodeErrors++
			logger.Warn("malformed frame", "line", n, "error", protocol.ErrFrameTooLarge)
			continue
		}

		if prompt, ok := bytes.CutPrefix(line, []byte(promptPrefix)); ok {
			reducer.AppendUser(string(prompt))
			stats.Prompts++
			continue
		}

		ev, err := protocol.Decode(schema, line)
		if err != nil {
			stats.DecodeErrors++
			logger.Warn("malformed frame", "line", n, "error", err)
			continue
		}
		if ev.Kind == protocol.KindUnrecognized {
			stats.Unrecognized++
			logger.Debug("ignored event", "line", n, "type", ev.Type)
			continue
		}

		if err := reducer.Apply(ev); err != nil {
			var v *conversation.Violation
			if !stderrors.As(err, &v) {
				return nil, fmt.Errorf("line %d: %w", n, err)
			}
			stats.Violations++
			logger.Warn("protocol violation", "line", n, "violation", v.Kind.String())
			if !v.Applied() {
				continue
			}
		}
		stats.Applied++
		if ev.Kind.Terminal() {
			stats.Responses++
		}
	}

	history, draft := reducer.Snapshot()
	return &ReplayResult{History: history, Draft: draft, Stats: stats}, nil
}
