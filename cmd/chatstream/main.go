package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/vango-dev/chatstream/internal/config"
	"github.com/vango-dev/chatstream/internal/errors"
	"github.com/vango-dev/chatstream/internal/terminal"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌─┐┬ ┬┌─┐┌┬┐┌─┐┌┬┐┬─┐┌─┐┌─┐┌┬┐
  │  ├─┤├─┤ │ └─┐ │ ├┬┘├┤ ├─┤│││
  └─┘┴ ┴┴ ┴ ┴ └─┘ ┴ ┴└─└─┘┴ ┴┴ ┴
`

var (
	styleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("#fffb96"))
	styleFail    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f"))
)

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	url        string
	mode       string
	logLevel   string
	noColor    bool
}

// app carries what commands need from the root.
type app struct {
	flags  globalFlags
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// jsonErrors reports failures as JSON on stdout. Commands with a
	// --json output mode set it.
	jsonErrors bool
}

func main() {
	a := &app{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	if err := a.rootCmd().Execute(); err != nil {
		a.reportError(err)
		os.Exit(1)
	}
}

// reportError prints err as JSON for --json output, as one line when
// stderr is not a terminal, and as a full report otherwise. Errors that
// are not ChatErrors are reported as invalid arguments.
func (a *app) reportError(err error) {
	ce := errors.FromError(err, "C301")
	switch {
	case a.jsonErrors:
		fmt.Fprintln(a.stdout, ce.FormatJSON())
	case !isTerminal(a.stderr):
		fmt.Fprintln(a.stderr, ce.FormatCompact())
	default:
		errors.Fprint(a.stderr, ce)
	}
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (a *app) rootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chatstream",
		Short: "Streaming chat client for conversational assistants",
		Long: `chatstream talks to a streaming assistant over WebSocket.

It understands two wire vocabularies:

  • narrative  titled haiku responses on /ws/chat
  • agent      tool-calling responses on /ws/agent

Run "chatstream serve" for a local emulator of both.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			errors.SetColor(!a.flags.noColor && isTerminal(a.stderr))
		},
	}
	rootCmd.SetIn(a.stdin)
	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&a.flags.configPath, "config", "c", "", "Config file (default ~/.chatstream/chatstream.yaml then ./chatstream.yaml)")
	pf.StringVar(&a.flags.url, "url", "", "WebSocket endpoint, overrides host and port")
	pf.StringVarP(&a.flags.mode, "mode", "m", "", "Wire vocabulary: narrative or agent")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVar(&a.flags.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		a.chatCmd(),
		a.serveCmd(),
		a.replayCmd(),
		a.configCmd(),
		a.explainCmd(),
		a.versionCmd(),
	)
	return rootCmd
}

// loadConfig reads the config files and applies flag overrides.
func (a *app) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if a.flags.configPath != "" {
		cfg, err = config.LoadFile(a.flags.configPath)
		if err == nil {
			cfg.ApplyEnv(os.LookupEnv)
		}
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if a.flags.url != "" {
		cfg.URL = a.flags.url
	}
	if a.flags.mode != "" {
		cfg.Mode = a.flags.mode
	}
	if a.flags.logLevel != "" {
		cfg.LogLevel = a.flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger writes text logs to stderr at the configured level.
func (a *app) newLogger(cfg *config.Config) *slog.Logger {
	level, err := cfg.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))
}

// theme returns the presenter styles, honouring --no-color.
func (a *app) theme() terminal.Theme {
	if a.flags.noColor {
		return terminal.PlainTheme()
	}
	return terminal.NewTheme()
}

// printBanner prints the chatstream ASCII art banner.
func (a *app) printBanner() {
	fmt.Fprint(a.stdout, banner)
}

// success prints a success message.
func (a *app) success(format string, args ...any) {
	fmt.Fprintf(a.stdout, "%s %s\n", styleSuccess.Render("✓"), fmt.Sprintf(format, args...))
}

// info prints an info message.
func (a *app) info(format string, args ...any) {
	fmt.Fprintf(a.stdout, "  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func (a *app) warn(format string, args ...any) {
	fmt.Fprintf(a.stderr, "%s %s\n", styleWarn.Render("⚠"), fmt.Sprintf(format, args...))
}

// errorMsg prints an error message.
func (a *app) errorMsg(format string, args ...any) {
	fmt.Fprintf(a.stderr, "%s %s\n", styleFail.Render("✗"), fmt.Sprintf(format, args...))
}
