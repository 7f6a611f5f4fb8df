// Package console is the operator's terminal: it shows the agent's
// thoughts and command results and reads the operator's replies.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/martinemde/autoagent/agentloop"
)

// Styles holds the title styles used for console output.
type Styles struct {
	Thoughts lipgloss.Style
	Action   lipgloss.Style
	System   lipgloss.Style
	Warning  lipgloss.Style
	Plain    lipgloss.Style
}

// DefaultStyles returns the console palette rendered for r.
func DefaultStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Thoughts: r.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
		Action:   r.NewStyle().Foreground(lipgloss.Color("6")).Bold(true),
		System:   r.NewStyle().Foreground(lipgloss.Color("3")),
		Warning:  r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		Plain:    r.NewStyle().Foreground(lipgloss.Color("5")),
	}
}

// Config configures a Console.
type Config struct {
	In  io.Reader
	Out io.Writer
	// Typewriter paces agent output one character at a time.
	Typewriter bool
	// TypeDelay overrides the typewriter pacing.
	TypeDelay func() time.Duration
	Logger    *slog.Logger
}

// Console implements agentloop.Operator over a line-oriented terminal.
type Console struct {
	out    io.Writer
	w      io.Writer
	typer  *Typewriter
	styles Styles
	logger *slog.Logger

	in        io.Reader
	readOnce  sync.Once
	lines     chan string
	readErr   error
	readErrMu sync.Mutex
}

var _ agentloop.Operator = (*Console)(nil)

// New creates a Console. Nil In and Out default to stdin and stdout.
func New(cfg Config) *Console {
	in := cfg.In
	if in == nil {
		in = os.Stdin
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Console{
		out:    out,
		w:      out,
		styles: DefaultStyles(lipgloss.NewRenderer(out)),
		logger: logger.With("component", "console"),
		in:     in,
		lines:  make(chan string),
	}
	if cfg.Typewriter {
		c.typer = NewTypewriter(out, cfg.TypeDelay)
		c.w = c.typer
	}
	return c
}

// IsInteractive reports whether f is a terminal.
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Close flushes pending output.
func (c *Console) Close() error {
	if c.typer != nil {
		return c.typer.Close()
	}
	return nil
}

func (c *Console) flush() {
	if c.typer != nil {
		c.typer.Flush()
	}
}

// say writes a titled line. Titles are written directly; the content goes
// through the typewriter when enabled.
func (c *Console) say(style lipgloss.Style, title, content string) {
	c.flush()
	if title != "" {
		fmt.Fprint(c.out, style.Render(title)+" ")
	}
	fmt.Fprint(c.w, content+"\n")
}

// ShowReply prints the model's thoughts.
func (c *Console) ShowReply(aiName string, reply agentloop.Reply, action agentloop.Action) {
	t := reply.Thoughts
	if t == nil {
		return
	}
	c.say(c.styles.Thoughts, strings.ToUpper(aiName)+" THOUGHTS:", t.Text)
	c.say(c.styles.Thoughts, "REASONING:", t.Reasoning)
	if plan := planLines(t.Plan); len(plan) > 0 {
		c.say(c.styles.Thoughts, "PLAN:", "")
		for _, line := range plan {
			c.say(c.styles.Plain, "", "- "+line)
		}
	}
	c.say(c.styles.Thoughts, "CRITICISM:", t.Criticism)
	if t.Speak != "" {
		c.say(c.styles.Thoughts, "SPEAK:", t.Speak)
	}
}

// planLines splits a plan into bullet texts, dropping existing "- "
// markers and blank lines.
func planLines(plan string) []string {
	var out []string
	for _, line := range strings.Split(plan, "\n") {
		line = strings.TrimSpace(line)
		if i := strings.Index(line, "- "); i >= 0 {
			line = strings.TrimSpace(line[i+2:])
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Notify prints a titled message.
func (c *Console) Notify(title, text string) {
	style := c.styles.System
	switch {
	case strings.HasPrefix(title, "NEXT ACTION"):
		style = c.styles.Action
	case strings.HasPrefix(title, "WARNING"), strings.HasPrefix(title, "ERROR"):
		style = c.styles.Warning
	case strings.HasPrefix(title, "-=-="):
		style = c.styles.Plain
	}
	c.say(style, title, text)
}

// Println writes an unstyled line.
func (c *Console) Println(text string) {
	c.say(c.styles.Plain, "", text)
}

// ReadLine prints prompt and waits for one line. It returns ctx.Err() when
// ctx ends first and io.EOF when input is exhausted.
func (c *Console) ReadLine(ctx context.Context, prompt string) (string, error) {
	c.flush()
	c.readOnce.Do(func() { go c.readLoop() })
	if prompt != "" {
		fmt.Fprint(c.out, prompt)
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-c.lines:
		if !ok {
			c.readErrMu.Lock()
			defer c.readErrMu.Unlock()
			return "", c.readErr
		}
		return line, nil
	}
}

// readLoop feeds input lines to ReadLine. It outlives a cancelled read so
// the next ReadLine gets the next line.
func (c *Console) readLoop() {
	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		c.lines <- strings.TrimRight(scanner.Text(), "\r")
	}
	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	c.readErrMu.Lock()
	c.readErr = err
	c.readErrMu.Unlock()
	close(c.lines)
}
