// Package errors provides structured, actionable errors for the chatstream
// command line.
//
// Library packages return plain errors and sentinels. The CLI converts them
// at its boundary into a ChatError carrying a stable code, a category, a
// plain-language explanation and a hint.
//
// # Error Categories
//
//   - config: configuration file, environment and flag problems
//   - transport: connecting to or losing the assistant backend
//   - protocol: frames the client could not use
//   - cli: bad arguments and local I/O
//
// # Error Codes
//
// Codes are grouped by category: C0xx config, C1xx transport, C2xx
// protocol, C3xx cli.
//
// # Usage
//
//	err := errors.New("C002").
//	    WithLocation("chatstream.yaml", 4, 7).
//	    WithSuggestion("mode must be \"narrative\" or \"agent\"").
//	    Wrap(yamlErr)
//
//	errors.Fprint(os.Stderr, err)
//	// ERROR C002: Invalid configuration file
//	//
//	//   chatstream.yaml:4:7
//	//
//	//      3 │ url: ws://localhost:8080/ws/agent
//	//   →  4 │ mode: poetry
//	//        │       ^
//	//
//	//   Hint: mode must be "narrative" or "agent"
package errors
