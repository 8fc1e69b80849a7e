// Package console renders a conversation in the terminal: the welcome lines,
// the listening and processing prompts, the transcript and response times.
//
// A Console is the Printer behind the speech adapters, the Notifier behind
// the microphone listener and an Observer of the session, so everything the
// user sees goes through one writer.
package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/nadzzz/solace/internal/persona"
	"github.com/nadzzz/solace/internal/session"
)

// Options controls how the console renders.
type Options struct {
	// Markdown renders assistant replies with glamour.
	Markdown bool

	// WordWrap is the markdown wrap width. Default 80.
	WordWrap int
}

// Console writes the user-facing side of a conversation to a terminal.
type Console struct {
	mu       sync.Mutex
	out      io.Writer
	persona  persona.Persona
	markdown *glamour.TermRenderer

	title     lipgloss.Style
	hint      lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	status    lipgloss.Style
}

// New creates a Console writing to out. Colours follow the capabilities of
// out, so a plain io.Writer gets unstyled text.
func New(out io.Writer, p persona.Persona, opts Options) *Console {
	r := lipgloss.NewRenderer(out)
	c := &Console{
		out:       out,
		persona:   p,
		title:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("105")),
		hint:      r.NewStyle().Faint(true),
		user:      r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		assistant: r.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		status:    r.NewStyle().Italic(true).Foreground(lipgloss.Color("244")),
	}

	if opts.Markdown {
		wrap := opts.WordWrap
		if wrap <= 0 {
			wrap = 80
		}
		md, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wrap),
		)
		if err != nil {
			slog.Warn("markdown rendering disabled", "error", err)
		} else {
			c.markdown = md
		}
	}
	return c
}

// Welcome prints the persona's welcome lines.
func (c *Console) Welcome() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, line := range c.persona.Welcome {
		style := c.hint
		if i == 0 {
			style = c.title
		}
		fmt.Fprintln(c.out, style.Render(line))
	}
}

// PrintReply prints an assistant utterance.
func (c *Console) PrintReply(text string) {
	body := text
	if c.markdown != nil {
		if rendered, err := c.markdown.Render(text); err == nil {
			body = strings.Trim(rendered, "\n")
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if strings.Contains(body, "\n") {
		fmt.Fprintf(c.out, "%s\n%s\n", c.assistant.Render("Assistant:"), body)
		return
	}
	fmt.Fprintf(c.out, "%s %s\n", c.assistant.Render("Assistant:"), body)
}

// Listening prints a random listening prompt.
func (c *Console) Listening() {
	c.printStatus(persona.Pick(c.persona.ListeningPrompts))
}

// Processing prints a random processing prompt.
func (c *Console) Processing() {
	c.printStatus(persona.Pick(c.persona.ProcessingPrompts))
}

// Heard echoes what the recognizer understood.
func (c *Console) Heard(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s %s\n", c.user.Render("You:"), text)
}

// OnEvent prints the response time of each completion.
func (c *Console) OnEvent(_ context.Context, e session.Event) {
	if e.Type != session.EventCompletion {
		return
	}
	latency, ok := e.Data["latency"].(time.Duration)
	if !ok {
		return
	}
	c.printStatus(fmt.Sprintf("Response time: %.2f seconds", latency.Seconds()))
}

func (c *Console) printStatus(line string) {
	if line == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, c.status.Render(line))
}
