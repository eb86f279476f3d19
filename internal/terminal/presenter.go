// Package terminal renders conversation snapshots for a line-oriented
// terminal.
package terminal

import (
	"fmt"
	"io"
	"strings"

	"github.com/vango-dev/chatstream/pkg/client"
	"github.com/vango-dev/chatstream/pkg/conversation"
)

const maxResult = 80

// Presenter writes snapshot changes to w as they arrive. It is not safe
// for concurrent use.
type Presenter struct {
	w        io.Writer
	theme    Theme
	echoUser bool

	printed   int
	connected bool
	streamed  string
	streaming bool
}

// Option configures a Presenter.
type Option func(*Presenter)

// WithTheme sets the styles.
func WithTheme(t Theme) Option {
	return func(p *Presenter) {
		p.theme = t
	}
}

// WithEchoUser prints user turns. Interactive sessions leave it off since
// the terminal already shows what was typed.
func WithEchoUser(echo bool) Option {
	return func(p *Presenter) {
		p.echoUser = echo
	}
}

// NewPresenter creates a Presenter writing to w.
func NewPresenter(w io.Writer, opts ...Option) *Presenter {
	p := &Presenter{w: w, theme: NewTheme()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Update prints whatever changed since the previous call: connectivity,
// newly finalized turns, and the growing draft.
func (p *Presenter) Update(s client.Snapshot) {
	if s.Connected != p.connected {
		p.endStream()
		p.connected = s.Connected
		fmt.Fprintln(p.w, p.Status(s.Connected))
	}

	for _, t := range s.History[min(p.printed, len(s.History)):] {
		p.printTurn(t)
	}
	p.printed = len(s.History)

	if s.Draft != nil {
		p.stream(s.Draft.Content)
	} else if p.streaming {
		p.endStream()
	}
}

// Status renders the connectivity indicator.
func (p *Presenter) Status(connected bool) string {
	if connected {
		return p.theme.Online.Render("● connected")
	}
	return p.theme.Offline.Render("○ disconnected")
}

// stream prints the part of content not yet shown.
func (p *Presenter) stream(content string) {
	if !p.streaming {
		fmt.Fprint(p.w, p.theme.Assistant.Render("assistant ›")+" ")
		p.streaming = true
	}
	if !strings.HasPrefix(content, p.streamed) {
		fmt.Fprint(p.w, "\n"+indent(content))
		p.streamed = content
		return
	}
	fmt.Fprint(p.w, content[len(p.streamed):])
	p.streamed = content
}

func (p *Presenter) endStream() {
	if p.streaming {
		fmt.Fprintln(p.w)
	}
	p.streaming = false
	p.streamed = ""
}

func (p *Presenter) printTurn(t conversation.Turn) {
	switch {
	case t.Role == conversation.RoleUser && !p.echoUser:
		return
	case t.Role == conversation.RoleAssistant && p.streaming:
		// Finish the streamed line, then add what streaming did not show.
		// Final text that replaced the streamed text is printed again.
		if strings.HasPrefix(t.Content, p.streamed) {
			fmt.Fprint(p.w, t.Content[len(p.streamed):])
		} else {
			fmt.Fprint(p.w, "\n"+indent(t.Content))
		}
		p.endStream()
		if extra := p.details(t); extra != "" {
			fmt.Fprint(p.w, extra)
		}
		return
	}
	p.endStream()
	fmt.Fprint(p.w, p.RenderTurn(t))
}

// RenderTurn renders one finalized turn, ending with a newline.
func (p *Presenter) RenderTurn(t conversation.Turn) string {
	var b strings.Builder
	switch t.Role {
	case conversation.RoleUser:
		b.WriteString(p.theme.User.Render("you ›") + " " + t.Content + "\n")
	case conversation.RoleError:
		b.WriteString(p.theme.Error.Render("error ›") + " " + t.Content)
		if t.Code != "" {
			b.WriteString(" " + p.theme.Muted.Render("["+t.Code+"]"))
		}
		b.WriteString("\n")
	default:
		b.WriteString(p.theme.Assistant.Render("assistant ›"))
		if t.Content != "" {
			b.WriteString(" " + t.Content)
		}
		b.WriteString("\n")
		b.WriteString(p.details(t))
	}
	return b.String()
}

// details renders the narrative fields and tool invocations of a turn.
func (p *Presenter) details(t conversation.Turn) string {
	var b strings.Builder
	if title, ok := t.Field("title"); ok && title != "" {
		b.WriteString("  " + p.theme.Title.Render(title) + "\n")
	}
	if haiku, ok := t.Field("haiku"); ok && haiku != "" {
		b.WriteString(indent(haiku) + "\n")
	}
	for _, inv := range t.ToolInvocations {
		line := "⚙ " + inv.Name
		if len(inv.Arguments) > 0 && string(inv.Arguments) != "{}" && string(inv.Arguments) != "null" {
			line += " " + string(inv.Arguments)
		}
		if inv.Resolved {
			line += " → " + truncate(string(inv.Result), maxResult)
		} else {
			line += " … no result"
		}
		b.WriteString("  " + p.theme.Tool.Render(line) + "\n")
	}
	return b.String()
}

// Render renders a whole snapshot, user turns included.
func (p *Presenter) Render(s client.Snapshot) string {
	var b strings.Builder
	for _, t := range s.History {
		b.WriteString(p.RenderTurn(t))
	}
	if s.Draft != nil {
		b.WriteString(p.theme.Muted.Render("(unfinished)") + " ")
		b.WriteString(p.RenderTurn(*s.Draft))
	}
	return b.String()
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
