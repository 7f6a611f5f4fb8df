package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/martinemde/autoagent/unifiedllm"
)

// SeedSummary is the running summary of a fresh agent.
const SeedSummary = "I was created"

const nothingNew = "Nothing new happened"

const summaryPrompt = `Your task is to create a concise running summary of actions and information results in the provided text, focusing on key and potentially important information to remember.

You will receive the current summary and the your latest actions. Combine them, adding relevant key information from the latest development in 1st person past tense and keeping the summary concise.

Summary So Far:
"""
%s
"""

Latest Development:
"""
%s
"""
`

// Summary is the running summary of history older than the context window.
type Summary struct {
	Text string
	// LastIndex is the history index of the last message folded in, or -1.
	LastIndex int
}

// NewSummary returns the seed summary.
func NewSummary() Summary {
	return Summary{Text: SeedSummary, LastIndex: -1}
}

// Message renders the summary as the system message placed ahead of the
// history window.
func (s Summary) Message() unifiedllm.Message {
	return unifiedllm.SystemMessage("This reminds you of these events from your past: \n" + s.Text)
}

// CompactorConfig configures a Compactor.
type CompactorConfig struct {
	Model ChatModel
	// ModelName is the model used for summarization, normally the fast one.
	ModelName string
	Logger    *slog.Logger
}

// Compactor folds messages that fell out of the context window into the
// running summary.
type Compactor struct {
	model     ChatModel
	modelName string
	logger    *slog.Logger
}

// NewCompactor creates a Compactor.
func NewCompactor(cfg CompactorConfig) *Compactor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Compactor{
		model:     cfg.Model,
		modelName: cfg.ModelName,
		logger:    logger.With("component", "compactor"),
	}
}

// Compact folds history[prev.LastIndex+1 : boundary] into the summary.
// boundary is the index of the oldest message in the current context
// window. When nothing new fell out of the window, prev is returned
// unchanged and no model call is made. On error prev is returned alongside
// the error so the caller keeps the old summary.
func (c *Compactor) Compact(ctx context.Context, prev Summary, history []unifiedllm.Message, boundary int) (Summary, error) {
	if boundary > len(history) {
		boundary = len(history)
	}
	start := prev.LastIndex + 1
	if start >= boundary {
		return prev, nil
	}

	events := summaryEvents(history[start:boundary])
	prompt := fmt.Sprintf(summaryPrompt, prev.Text, events)

	text, err := c.model.ChatComplete(ctx, []unifiedllm.Message{unifiedllm.UserMessage(prompt)}, c.modelName, 0, 0)
	if err != nil {
		return prev, fmt.Errorf("update running summary: %w", err)
	}
	c.logger.Debug("running summary updated", "folded", boundary-start, "last_index", boundary-1)
	return Summary{Text: text, LastIndex: boundary - 1}, nil
}

type summaryEvent struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// summaryEvents relabels messages for the summarizer. Assistant replies lose
// their thoughts and become "you"; system messages become "your computer";
// operator messages are dropped.
func summaryEvents(msgs []unifiedllm.Message) string {
	var events []summaryEvent
	for _, m := range msgs {
		switch m.Role {
		case unifiedllm.RoleAssistant:
			events = append(events, summaryEvent{Role: "you", Content: withoutThoughts(m.Content)})
		case unifiedllm.RoleSystem:
			events = append(events, summaryEvent{Role: "your computer", Content: m.Content})
		}
	}
	if len(events) == 0 {
		return nothingNew
	}
	b, err := json.Marshal(events)
	if err != nil {
		return nothingNew
	}
	return string(b)
}

func withoutThoughts(content string) string {
	obj, ok := Repair(content)
	if !ok {
		return content
	}
	delete(obj, "thoughts")
	b, err := json.Marshal(obj)
	if err != nil {
		return content
	}
	return string(b)
}
