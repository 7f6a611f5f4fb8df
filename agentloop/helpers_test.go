package agentloop

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/martinemde/autoagent/unifiedllm"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// charCounter counts one token per byte, plus a fixed overhead per message.
type charCounter struct{}

func (charCounter) CountString(text, model string) int { return len(text) }

func (charCounter) Count(messages []unifiedllm.Message, model string) int {
	n := 3
	for _, m := range messages {
		n += len(m.Content) + 4
	}
	return n
}

type modelCall struct {
	Messages  []unifiedllm.Message
	Model     string
	MaxTokens int
}

// scriptedModel replies with the given texts in order. When the script runs
// out it repeats the last reply.
type scriptedModel struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   []modelCall
}

func (m *scriptedModel) ChatComplete(ctx context.Context, messages []unifiedllm.Message, model string, temperature float64, maxTokens int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := len(m.calls)
	m.calls = append(m.calls, modelCall{Messages: append([]unifiedllm.Message(nil), messages...), Model: model, MaxTokens: maxTokens})
	if i < len(m.errs) && m.errs[i] != nil {
		return "", m.errs[i]
	}
	if len(m.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	if i >= len(m.replies) {
		i = len(m.replies) - 1
	}
	return m.replies[i], nil
}

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// routedModel answers by the model name requested.
type routedModel struct {
	mu     sync.Mutex
	byName map[string][]string
	calls  map[string]int
}

func (m *routedModel) ChatComplete(ctx context.Context, messages []unifiedllm.Message, model string, temperature float64, maxTokens int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	replies := m.byName[model]
	if len(replies) == 0 {
		return "", errors.New("no reply for " + model)
	}
	i := m.calls[model]
	m.calls[model]++
	if i >= len(replies) {
		i = len(replies) - 1
	}
	return replies[i], nil
}

type notice struct {
	Title string
	Text  string
}

// scriptedOperator feeds input lines and records everything shown.
type scriptedOperator struct {
	lines   []string
	reads   int
	replies []Action
	notices []notice
}

func (o *scriptedOperator) ShowReply(aiName string, reply Reply, action Action) {
	o.replies = append(o.replies, action)
}

func (o *scriptedOperator) Notify(title, text string) {
	o.notices = append(o.notices, notice{Title: title, Text: text})
}

func (o *scriptedOperator) ReadLine(ctx context.Context, prompt string) (string, error) {
	if o.reads >= len(o.lines) {
		return "", io.EOF
	}
	line := o.lines[o.reads]
	o.reads++
	return line, nil
}

func (o *scriptedOperator) noticesTitled(title string) []string {
	var out []string
	for _, n := range o.notices {
		if n.Title == title {
			out = append(out, n.Text)
		}
	}
	return out
}

func (o *scriptedOperator) sawText(substr string) bool {
	for _, n := range o.notices {
		if strings.Contains(n.Title, substr) || strings.Contains(n.Text, substr) {
			return true
		}
	}
	return false
}

type fakeMemory struct {
	added []string
	err   error
}

func (m *fakeMemory) Add(ctx context.Context, text string) error {
	if m.err != nil {
		return m.err
	}
	m.added = append(m.added, text)
	return nil
}

// replyJSON renders a well-formed model reply for command name and args.
func replyJSON(name string, args string) string {
	return `{"thoughts": {"text": "t", "reasoning": "r", "plan": "- p", "criticism": "c", "speak": "s"}, "command": {"name": "` + name + `", "args": ` + args + `}}`
}
