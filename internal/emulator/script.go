package emulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/oklog/ulid/v2"
	"github.com/vango-dev/chatstream/pkg/protocol"
)

const (
	timeoutMessage        = "Connection timed out due to user inactivity."
	narrativeErrorMessage = "error processing message, please try again later."
	agentErrorMessage     = "Error processing message, please try again later."

	// FailPrompt makes either script fail after its start frame.
	FailPrompt = "/fail"

	// TransactionsTool is the only tool the agent script calls.
	TransactionsTool = "get_transactions"
)

// errScripted is returned by a script asked to fail.
var errScripted = errors.New("emulator: scripted processing failure")

// script answers prompts in one wire vocabulary.
type script interface {
	schema() protocol.Schema
	respond(ctx context.Context, x *exchange, prompt string) error
	timeoutFrame() any
	errorFrame() any
}

// exchange writes the frames of one response.
type exchange struct {
	c     *conn
	delay time.Duration
}

func (x *exchange) emit(frame any) error {
	return x.c.writeJSON(frame)
}

// pause waits for the chunk delay or until ctx is done.
func (x *exchange) pause(ctx context.Context) error {
	if x.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(x.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (x *exchange) timestamp() string {
	return x.c.srv.now().UTC().Format(time.RFC3339)
}

// words splits s after each space so the pieces concatenate back to s.
func words(s string) []string {
	return strings.SplitAfter(s, " ")
}

func topic(prompt string) string {
	t := strings.Join(strings.Fields(prompt), " ")
	if r := []rune(t); len(r) > 40 {
		t = strings.TrimSpace(string(r[:40]))
	}
	if t == "" {
		t = "silence"
	}
	return t
}

func titleCase(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		r := []rune(f)
		r[0] = unicode.ToUpper(r[0])
		fields[i] = string(r)
	}
	return strings.Join(fields, " ")
}

// narrativeScript writes a titled haiku, streaming the growing object the
// way a JSON output parser would.
type narrativeScript struct{}

func (narrativeScript) schema() protocol.Schema { return protocol.Narrative }

func (narrativeScript) frame(tag string, msg protocol.NarrativeMessage) protocol.NarrativeFrame {
	return protocol.NarrativeFrame{Source: "bot", Message: msg, Type: tag}
}

func (s narrativeScript) respond(ctx context.Context, x *exchange, prompt string) error {
	if err := x.emit(s.frame(protocol.TypeStart, protocol.NarrativeMessage{})); err != nil {
		return err
	}
	if strings.TrimSpace(prompt) == FailPrompt {
		return errScripted
	}

	t := topic(prompt)
	title := titleCase(t)
	lines := []string{
		t + " at first light",
		"quiet as falling water",
		"the " + strings.ToLower(strings.Fields(t)[0]) + " remains",
	}

	var partial string
	for _, w := range words(title) {
		if err := x.pause(ctx); err != nil {
			return err
		}
		partial += w
		msg := protocol.NarrativeMessage{Title: protocol.Str(partial)}
		if err := x.emit(s.frame(protocol.TypeStream, msg)); err != nil {
			return err
		}
	}

	var haiku string
	for i, line := range lines {
		if err := x.pause(ctx); err != nil {
			return err
		}
		if i > 0 {
			haiku += "\n"
		}
		haiku += line
		msg := protocol.NarrativeMessage{Title: protocol.Str(title), Haiku: protocol.Str(haiku)}
		if err := x.emit(s.frame(protocol.TypeStream, msg)); err != nil {
			return err
		}
	}

	final := protocol.NarrativeMessage{Title: protocol.Str(title), Haiku: protocol.Str(haiku)}
	return x.emit(s.frame(protocol.TypeEnd, final))
}

func (s narrativeScript) timeoutFrame() any {
	return s.frame(protocol.TypeError, protocol.NarrativeMessage{Content: protocol.Str(timeoutMessage)})
}

func (s narrativeScript) errorFrame() any {
	return s.frame(protocol.TypeError, protocol.NarrativeMessage{Content: protocol.Str(narrativeErrorMessage)})
}

// Transaction is one record returned by the get_transactions tool.
type Transaction struct {
	ID       string `json:"id"`
	Amount   string `json:"amount"`
	DateTime string `json:"date_time"`
}

// Transactions is the fixed data set behind get_transactions.
var Transactions = []Transaction{
	{ID: "1", Amount: "-10.99", DateTime: "2025-10-05T00:00:00Z"},
	{ID: "2", Amount: "100.45", DateTime: "2025-10-04T00:00:00Z"},
}

func mentionsTransactions(prompt string) bool {
	p := strings.ToLower(prompt)
	for _, kw := range []string{"transaction", "spend", "spent", "payment"} {
		if strings.Contains(p, kw) {
			return true
		}
	}
	return false
}

func summarize(txs []Transaction) string {
	parts := make([]string, len(txs))
	for i, tx := range txs {
		parts[i] = fmt.Sprintf("%s on %s", tx.Amount, tx.DateTime[:10])
	}
	return fmt.Sprintf("You have %d recent transactions: %s.", len(txs), strings.Join(parts, " and "))
}

// agentScript streams text, calling get_transactions when the prompt asks
// about money.
type agentScript struct{}

func (agentScript) schema() protocol.Schema { return protocol.Agent }

func (s agentScript) respond(ctx context.Context, x *exchange, prompt string) error {
	if err := x.emit(protocol.StartFrame{Type: protocol.TypeStart, Timestamp: x.timestamp()}); err != nil {
		return err
	}
	if strings.TrimSpace(prompt) == FailPrompt {
		return errScripted
	}

	reply := fmt.Sprintf("You asked: %s. I can look up your recent transactions if you ask about them.", topic(prompt))
	if mentionsTransactions(prompt) {
		id := "call_" + ulid.Make().String()
		call := protocol.ToolCallFrame{
			Type:       protocol.TypeToolCall,
			ToolName:   TransactionsTool,
			ToolArgs:   json.RawMessage(`{}`),
			ToolCallID: id,
		}
		if err := x.emit(call); err != nil {
			return err
		}
		if err := x.pause(ctx); err != nil {
			return err
		}
		result, err := json.Marshal(map[string]any{"data": Transactions})
		if err != nil {
			return err
		}
		res := protocol.ToolResultFrame{
			Type:       protocol.TypeToolResult,
			ToolCallID: id,
			ToolName:   TransactionsTool,
			Result:     result,
		}
		if err := x.emit(res); err != nil {
			return err
		}
		reply = summarize(Transactions)
	}

	var accumulated string
	for _, chunk := range words(reply) {
		if err := x.pause(ctx); err != nil {
			return err
		}
		accumulated += chunk
		delta := protocol.ContentDeltaFrame{
			Type:        protocol.TypeContentDelta,
			Delta:       chunk,
			Accumulated: accumulated,
		}
		if err := x.emit(delta); err != nil {
			return err
		}
	}
	if accumulated != "" {
		done := protocol.ContentCompleteFrame{Type: protocol.TypeContentComplete, Content: accumulated}
		if err := x.emit(done); err != nil {
			return err
		}
	}
	return x.emit(protocol.EndFrame{Type: protocol.TypeEnd, Timestamp: x.timestamp()})
}

func (agentScript) timeoutFrame() any {
	return protocol.ErrorFrame{Type: protocol.TypeError, Message: timeoutMessage, Code: protocol.CodeTimeout}
}

func (agentScript) errorFrame() any {
	return protocol.ErrorFrame{Type: protocol.TypeError, Message: agentErrorMessage, Code: protocol.CodeProcessing}
}
