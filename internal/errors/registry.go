package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Config Errors (C001-C099)
	// ============================================

	"C001": {
		Category:   CategoryConfig,
		Message:    "Configuration file unreadable",
		Detail:     "The configuration file exists but could not be read.",
		Suggestion: "Check the file permissions or remove the file to use defaults.",
	},
	"C002": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "The configuration file is not valid YAML or has fields of the wrong type.",
	},
	"C003": {
		Category:   CategoryConfig,
		Message:    "Invalid mode",
		Detail:     "The mode selects the wire vocabulary spoken by the assistant backend.",
		Suggestion: `Use "narrative" for /ws/chat backends or "agent" for /ws/agent backends.`,
	},
	"C004": {
		Category:   CategoryConfig,
		Message:    "Invalid endpoint URL",
		Detail:     "The assistant endpoint must be an absolute ws:// or wss:// URL.",
		Suggestion: "Example: ws://localhost:8080/ws/agent",
	},
	"C005": {
		Category:   CategoryConfig,
		Message:    "Invalid log level",
		Suggestion: "Use one of debug, info, warn or error.",
	},
	"C006": {
		Category: CategoryConfig,
		Message:  "Invalid port",
		Detail:   "Ports must be between 1 and 65535.",
	},
	"C007": {
		Category: CategoryConfig,
		Message:  "Invalid duration",
		Detail:   "Timeouts must be zero or positive Go durations such as 30s or 2m.",
	},

	// ============================================
	// Transport Errors (C101-C199)
	// ============================================

	"C101": {
		Category:   CategoryTransport,
		Message:    "Connection failed",
		Detail:     "The assistant backend could not be reached.",
		Suggestion: "Start one locally with: chatstream serve",
	},
	"C102": {
		Category: CategoryTransport,
		Message:  "Handshake rejected",
		Detail:   "The server answered but refused the WebSocket upgrade. The path may not match the selected mode.",
	},
	"C103": {
		Category: CategoryTransport,
		Message:  "Connection lost",
		Detail:   "The connection to the assistant backend closed unexpectedly.",
	},
	"C104": {
		Category: CategoryTransport,
		Message:  "Not connected",
		Detail:   "Messages can only be sent while connected.",
	},

	// ============================================
	// Protocol Errors (C201-C299)
	// ============================================

	"C201": {
		Category: CategoryProtocol,
		Message:  "Malformed frame",
		Detail:   "A frame could not be decoded under the selected schema.",
	},
	"C202": {
		Category: CategoryProtocol,
		Message:  "Protocol violation",
		Detail:   "An event arrived that is not valid in the current conversation state.",
	},
	"C203": {
		Category:   CategoryProtocol,
		Message:    "Unknown schema",
		Suggestion: `Use "narrative" or "agent".`,
	},
	"C204": {
		Category: CategoryProtocol,
		Message:  "Frame too large",
		Detail:   "A frame exceeded the configured size limit.",
	},

	// ============================================
	// CLI Errors (C301-C399)
	// ============================================

	"C301": {
		Category: CategoryCLI,
		Message:  "Invalid arguments",
	},
	"C302": {
		Category: CategoryCLI,
		Message:  "Replay file unreadable",
		Detail:   "Replay files contain one JSON frame per line.",
	},
	"C303": {
		Category: CategoryCLI,
		Message:  "Metrics listener failed",
		Detail:   "The address given to --metrics-addr could not be bound.",
	},
	"C304": {
		Category: CategoryCLI,
		Message:  "Emulator failed",
		Detail:   "The local assistant emulator stopped with an error.",
	},
}

// GetAllCodes returns all registered error codes in order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
