// Package emulator serves scripted assistant backends for local use and
// tests.
//
// Two WebSocket routes mirror the production backends:
//
//	/ws/chat   narrative vocabulary: a titled haiku about the prompt
//	/ws/agent  agent vocabulary: streamed text, with a get_transactions
//	           tool call when the prompt mentions transactions
//
// Each connection waits for a prompt, answers it, and waits again. A
// connection that sends nothing for Config.IdleTimeout receives an error
// frame and a normal close. A prompt of "/fail" produces the processing
// error a failing model would.
//
// The router also serves /healthz and, when configured, /metrics.
package emulator
