// Package config loads chatstream.yaml.
//
// Values are layered: defaults, then ~/.chatstream/chatstream.yaml, then
// chatstream.yaml in the working directory, then CHATSTREAM_URL,
// CHATSTREAM_MODE and CHATSTREAM_LOG_LEVEL. Command-line flags are applied
// last by the CLI.
//
// # Configuration File Structure
//
//	url: ws://localhost:3000/ws/agent   # wins over host/port/secure
//	mode: agent                         # or narrative
//	host: localhost
//	port: 8080                          # 8080 routes through the proxy
//	secure: false
//	log_level: info
//	strict: false
//	draft_timeout: 2m
//	handshake_timeout: 10s
//	emulator:
//	  addr: 127.0.0.1:3000
//	  idle_timeout: 15s
//	  chunk_delay: 40ms
//	metrics:
//	  addr: 127.0.0.1:9090
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    errors.Fprint(os.Stderr, err)
//	    os.Exit(1)
//	}
//	sess := client.NewSession(cfg.ClientConfig())
package config
