package tools

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/martinemde/autoagent/unifiedllm"
	"github.com/martinemde/autoagent/workspace"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	ws, err := workspace.New(t.TempDir(), true)
	if err != nil {
		t.Fatal(err)
	}
	return ws
}

type charCounter struct{}

func (charCounter) CountString(text, model string) int { return len(text) }

func (charCounter) Count(messages []unifiedllm.Message, model string) int {
	n := 3
	for _, m := range messages {
		n += len(m.Content) + 4
	}
	return n
}

// echoModel answers with a fixed prefix and the length of the last message,
// and records every prompt.
type echoModel struct {
	mu      sync.Mutex
	prompts []string
	models  []string
	fail    bool
}

func (m *echoModel) ChatComplete(ctx context.Context, messages []unifiedllm.Message, model string, temperature float64, maxTokens int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", errors.New("model unavailable")
	}
	var parts []string
	for _, msg := range messages {
		parts = append(parts, msg.Content)
	}
	m.prompts = append(m.prompts, strings.Join(parts, "\n"))
	m.models = append(m.models, model)
	return "summary", nil
}

type recordingMemory struct {
	mu    sync.Mutex
	texts []string
}

func (m *recordingMemory) Add(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	return nil
}
