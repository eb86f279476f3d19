package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vango-dev/chatstream/internal/errors"
	"github.com/vango-dev/chatstream/pkg/client"
	"github.com/vango-dev/chatstream/pkg/protocol"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "chatstream.yaml"

	// UserConfigDir holds the user-level configuration file under $HOME.
	UserConfigDir = ".chatstream"

	// DefaultHost is the default backend host.
	DefaultHost = "localhost"

	// DefaultBackendPort is the port the backend listens on directly.
	DefaultBackendPort = 3000

	// ProxyPort is the port of the reverse proxy that fronts the backend.
	// A client configured with this port talks through the proxy.
	ProxyPort = 8080

	// DefaultEmulatorAddr is where `chatstream serve` listens.
	DefaultEmulatorAddr = "127.0.0.1:3000"

	// DefaultIdleTimeout is how long the emulator waits for a prompt.
	DefaultIdleTimeout = 15 * time.Second
)

// Modes select the wire vocabulary.
const (
	ModeNarrative = "narrative"
	ModeAgent     = "agent"
)

// Environment variables that override file values.
const (
	EnvURL      = "CHATSTREAM_URL"
	EnvMode     = "CHATSTREAM_MODE"
	EnvLogLevel = "CHATSTREAM_LOG_LEVEL"
)

// Config represents chatstream.yaml.
type Config struct {
	// URL is an explicit endpoint. When set it wins over Host/Port/Secure.
	URL string `yaml:"url,omitempty"`

	// Mode is "narrative" or "agent".
	Mode string `yaml:"mode,omitempty"`

	// Host is the backend host used when URL is empty.
	Host string `yaml:"host,omitempty"`

	// Port is the port the client was told to use. 8080 routes through the
	// reverse proxy; anything else reaches the backend on 3000.
	Port int `yaml:"port,omitempty"`

	// Secure selects wss:// over ws://.
	Secure bool `yaml:"secure,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level,omitempty"`

	// Strict validates frames against the JSON Schema documents.
	Strict bool `yaml:"strict,omitempty"`

	// DraftTimeout abandons a silent in-progress response. Zero disables.
	DraftTimeout Duration `yaml:"draft_timeout,omitempty"`

	// HandshakeTimeout bounds the WebSocket handshake.
	HandshakeTimeout Duration `yaml:"handshake_timeout,omitempty"`

	// Emulator configures `chatstream serve`.
	Emulator EmulatorConfig `yaml:"emulator,omitempty"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics,omitempty"`

	// sources lists the files merged into this Config, in load order.
	sources []string
}

// EmulatorConfig contains settings for the local assistant emulator.
type EmulatorConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr,omitempty"`

	// IdleTimeout closes a connection that sends no prompt for this long.
	IdleTimeout Duration `yaml:"idle_timeout,omitempty"`

	// ChunkDelay paces streamed chunks.
	ChunkDelay Duration `yaml:"chunk_delay,omitempty"`
}

// MetricsConfig contains Prometheus endpoint settings.
type MetricsConfig struct {
	// Addr serves /metrics when non-empty.
	Addr string `yaml:"addr,omitempty"`
}

// Duration is a time.Duration written as a Go duration string in YAML.
type Duration time.Duration

// UnmarshalYAML parses values such as "30s" or "2m".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Mode:             ModeAgent,
		Host:             DefaultHost,
		LogLevel:         "info",
		HandshakeTimeout: Duration(10 * time.Second),
		Emulator: EmulatorConfig{
			Addr:        DefaultEmulatorAddr,
			IdleTimeout: Duration(DefaultIdleTimeout),
		},
	}
}

// Load reads the user file, then the working-directory file, then the
// environment, and validates the result.
func Load() (*Config, error) {
	home, _ := os.UserHomeDir()
	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.New("C001").Wrap(err)
	}
	return LoadFrom(home, wd, os.LookupEnv)
}

// LoadFrom is Load with explicit directories and environment. An empty
// home skips the user file.
func LoadFrom(home, wd string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := New()

	var paths []string
	if home != "" {
		paths = append(paths, filepath.Join(home, UserConfigDir, ConfigFileName))
	}
	paths = append(paths, filepath.Join(wd, ConfigFileName))

	for _, path := range paths {
		if err := cfg.MergeFile(path); err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
	}

	cfg.ApplyEnv(lookup)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a single file over the defaults and validates it.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if err := cfg.MergeFile(path); err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.New("C001").
				WithDetail("No configuration file at " + path).
				Wrap(err)
		}
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var yamlLine = regexp.MustCompile(`line (\d+)`)

// MergeFile unmarshals path over c. Fields present in the file replace
// the current values; absent fields are kept. A missing file returns an
// error matching fs.ErrNotExist.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return err
		}
		ce := errors.New("C001").Wrap(err)
		ce.Location = &errors.Location{File: path}
		return ce
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		ce := errors.New("C002").Wrap(err)
		if m := yamlLine.FindStringSubmatch(err.Error()); m != nil {
			line, _ := strconv.Atoi(m[1])
			ce.WithLocation(path, line, 0)
		} else {
			ce.Location = &errors.Location{File: path}
		}
		return ce
	}
	c.sources = append(c.sources, path)
	return nil
}

// ApplyEnv overrides fields from CHATSTREAM_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		return
	}
	if v, ok := lookup(EnvURL); ok && v != "" {
		c.URL = v
	}
	if v, ok := lookup(EnvMode); ok && v != "" {
		c.Mode = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
}

// Sources returns the files merged into c, in load order.
func (c *Config) Sources() []string {
	return c.sources
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, err := protocol.SchemaByName(c.Mode); err != nil {
		return errors.New("C003").
			WithDetail(fmt.Sprintf("Unknown mode %q.", c.Mode))
	}
	if c.URL != "" {
		u, err := url.Parse(c.URL)
		if err != nil {
			return errors.New("C004").Wrap(err)
		}
		if (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
			return errors.New("C004").
				WithSuggestionf("Got %q. Example: ws://localhost:3000/ws/agent", c.URL)
		}
	}
	if _, err := c.SlogLevel(); err != nil {
		return errors.New("C005").
			WithDetail(fmt.Sprintf("Unknown log level %q.", c.LogLevel))
	}
	if c.Port < 0 || c.Port > 65535 {
		return errors.New("C006").
			WithDetail(fmt.Sprintf("Port %d is outside 1-65535.", c.Port))
	}
	for name, d := range map[string]Duration{
		"draft_timeout":         c.DraftTimeout,
		"handshake_timeout":     c.HandshakeTimeout,
		"emulator.idle_timeout": c.Emulator.IdleTimeout,
		"emulator.chunk_delay":  c.Emulator.ChunkDelay,
	} {
		if d < 0 {
			return errors.New("C007").
				WithDetail(fmt.Sprintf("%s must not be negative, got %s.", name, d.Std()))
		}
	}
	return nil
}

// Schema returns the wire vocabulary selected by Mode.
func (c *Config) Schema() protocol.Schema {
	s, err := protocol.SchemaByName(c.Mode)
	if err != nil {
		return protocol.Agent
	}
	return s
}

// Endpoint resolves the WebSocket URL. An explicit URL wins. Otherwise the
// backend is reached through the proxy when Port is 8080 and directly on
// 3000 in every other case.
func (c *Config) Endpoint() string {
	if c.URL != "" {
		return c.URL
	}
	scheme := "ws"
	if c.Secure {
		scheme = "wss"
	}
	host := c.Host
	if host == "" {
		host = DefaultHost
	}
	port := DefaultBackendPort
	if c.Port == ProxyPort {
		port = ProxyPort
	}
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   c.Schema().Path(),
	}
	return u.String()
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel)))
	return level, err
}

// ClientConfig builds the runtime settings for a client session.
func (c *Config) ClientConfig() *client.Config {
	cc := client.DefaultConfig()
	cc.Endpoint = c.Endpoint()
	cc.Schema = c.Schema()
	cc.StrictValidation = c.Strict
	cc.DraftTimeout = c.DraftTimeout.Std()
	if c.HandshakeTimeout > 0 {
		cc.HandshakeTimeout = c.HandshakeTimeout.Std()
	}
	return cc
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.New("C002").Wrap(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("C001").Wrap(err)
	}
	return nil
}
