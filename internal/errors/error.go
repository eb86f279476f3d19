package errors

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"
)

// Category groups codes by the layer that raised them.
type Category string

const (
	CategoryConfig    Category = "config"
	CategoryTransport Category = "transport"
	CategoryProtocol  Category = "protocol"
	CategoryCLI       Category = "cli"
)

// Location points into a file the user wrote, usually chatstream.yaml or a
// replay transcript.
type Location struct {
	File   string
	Line   int
	Column int
}

// String returns the location as file:line[:column].
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// ChatError is a structured error with a code, an explanation and a hint.
type ChatError struct {
	// Code is a unique error identifier (e.g., "C101").
	Code string

	// Category is the error type.
	Category Category

	// Message is the one-line summary shown after the code.
	Message string

	// Detail explains what went wrong in this instance.
	Detail string

	// Location is the file position the error refers to, if any.
	Location *Location

	// Context holds the lines around Location.
	Context []string

	// Suggestion tells the user what to try next.
	Suggestion string

	// Wrapped is the cause, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *ChatError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the cause.
func (e *ChatError) Unwrap() error {
	return e.Wrapped
}

// WithLocation points the error at file:line:column and loads the
// surrounding lines.
func (e *ChatError) WithLocation(file string, line, column int) *ChatError {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Context = readContextLines(file, line, 3)
	return e
}

// WithSuggestion replaces the registered hint.
func (e *ChatError) WithSuggestion(s string) *ChatError {
	e.Suggestion = s
	return e
}

// WithSuggestionf adds a formatted fix suggestion to the error.
func (e *ChatError) WithSuggestionf(format string, args ...any) *ChatError {
	e.Suggestion = fmt.Sprintf(format, args...)
	return e
}

// WithDetail replaces the registered explanation.
func (e *ChatError) WithDetail(d string) *ChatError {
	e.Detail = d
	return e
}

// Wrap records err as the cause.
func (e *ChatError) Wrap(err error) *ChatError {
	e.Wrapped = err
	return e
}

// readContextLines returns up to size lines of filename centred on
// targetLine. Unreadable files yield nil.
func readContextLines(filename string, targetLine, size int) []string {
	data, err := os.ReadFile(filename)
	if err != nil || targetLine < 1 {
		return nil
	}
	all := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	from := max(targetLine-size/2, 1)
	to := min(targetLine+size/2, len(all))
	if from > to {
		return nil
	}
	return all[from-1 : to]
}

// New creates a ChatError from a registered error code.
func New(code string) *ChatError {
	template, ok := registry[code]
	if !ok {
		return &ChatError{Code: code, Message: "Unregistered error code"}
	}
	return &ChatError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Detail:     template.Detail,
		Suggestion: template.Suggestion,
	}
}

// FromError wraps err in a ChatError with code. An err that already
// contains a ChatError is returned as that ChatError.
func FromError(err error, code string) *ChatError {
	if err == nil {
		return nil
	}
	var ce *ChatError
	if stderrors.As(err, &ce) {
		return ce
	}
	return New(code).Wrap(err)
}
