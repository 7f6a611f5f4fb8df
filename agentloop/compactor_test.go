package agentloop

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/martinemde/autoagent/unifiedllm"
)

func newTestCompactor(model ChatModel) *Compactor {
	return NewCompactor(CompactorConfig{Model: model, ModelName: "fast", Logger: quietLogger()})
}

func sampleHistory() []unifiedllm.Message {
	return []unifiedllm.Message{
		unifiedllm.UserMessage(TriggerPrompt),
		unifiedllm.AssistantMessage(replyJSON("google", `{"query": "weather"}`)),
		unifiedllm.SystemMessage("Command google returned: sunny"),
		unifiedllm.UserMessage(generateNext),
		unifiedllm.AssistantMessage(replyJSON("writeFile", `{"fileName": "w.txt", "content": "sunny"}`)),
		unifiedllm.SystemMessage("Command writeFile returned: File written successfully."),
	}
}

func TestCompactNoOpWhenWindowCoversHistory(t *testing.T) {
	model := &scriptedModel{replies: []string{"should not be used"}}
	c := newTestCompactor(model)
	prev := NewSummary()

	got, err := c.Compact(context.Background(), prev, sampleHistory(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != prev {
		t.Errorf("summary changed: %+v", got)
	}
	if model.callCount() != 0 {
		t.Errorf("model called %d times", model.callCount())
	}
}

func TestCompactFoldsEvictedMessages(t *testing.T) {
	model := &scriptedModel{replies: []string{"I searched for the weather."}}
	c := newTestCompactor(model)

	got, err := c.Compact(context.Background(), NewSummary(), sampleHistory(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "I searched for the weather." || got.LastIndex != 2 {
		t.Errorf("summary = %+v", got)
	}

	prompt := model.calls[0].Messages[0].Content
	if model.calls[0].Model != "fast" {
		t.Errorf("model = %q", model.calls[0].Model)
	}
	for _, want := range []string{"Summary So Far:", SeedSummary, `"role":"you"`, `"role":"your computer"`, "Command google returned: sunny"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	for _, unwanted := range []string{`"reasoning`, TriggerPrompt} {
		if strings.Contains(prompt, unwanted) {
			t.Errorf("prompt should not contain %q:\n%s", unwanted, prompt)
		}
	}
}

func TestCompactIsIdempotent(t *testing.T) {
	model := &scriptedModel{replies: []string{"first", "second"}}
	c := newTestCompactor(model)
	h := sampleHistory()

	once, err := c.Compact(context.Background(), NewSummary(), h, 3)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := c.Compact(context.Background(), once, h, 3)
	if err != nil {
		t.Fatal(err)
	}
	if once != twice {
		t.Errorf("second compaction changed the summary: %+v -> %+v", once, twice)
	}
	if model.callCount() != 1 {
		t.Errorf("model calls = %d, want 1", model.callCount())
	}
}

func TestCompactOnlyFoldsNewMessages(t *testing.T) {
	model := &scriptedModel{replies: []string{"first", "second"}}
	c := newTestCompactor(model)
	h := sampleHistory()

	s, _ := c.Compact(context.Background(), NewSummary(), h, 3)
	s, err := c.Compact(context.Background(), s, h, 6)
	if err != nil {
		t.Fatal(err)
	}
	if s.LastIndex != 5 || s.Text != "second" {
		t.Errorf("summary = %+v", s)
	}
	prompt := model.calls[1].Messages[0].Content
	if strings.Contains(prompt, "Command google returned") {
		t.Error("already folded message was folded again")
	}
	if !strings.Contains(prompt, "first") || !strings.Contains(prompt, "File written successfully.") {
		t.Errorf("prompt = %s", prompt)
	}
}

func TestCompactNothingNew(t *testing.T) {
	model := &scriptedModel{replies: []string{"still created"}}
	c := newTestCompactor(model)
	h := []unifiedllm.Message{unifiedllm.UserMessage("hello"), unifiedllm.UserMessage("again")}

	if _, err := c.Compact(context.Background(), NewSummary(), h, 2); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(model.calls[0].Messages[0].Content, "Nothing new happened") {
		t.Errorf("prompt = %s", model.calls[0].Messages[0].Content)
	}
}

func TestCompactFailureKeepsPrevious(t *testing.T) {
	model := &scriptedModel{errs: []error{errors.New("rate limited")}}
	c := newTestCompactor(model)
	prev := Summary{Text: "I did things", LastIndex: 0}

	got, err := c.Compact(context.Background(), prev, sampleHistory(), 4)
	if err == nil {
		t.Fatal("expected error")
	}
	if got != prev {
		t.Errorf("summary = %+v, want previous", got)
	}
}

func TestSummaryMessage(t *testing.T) {
	m := NewSummary().Message()
	if m.Role != unifiedllm.RoleSystem {
		t.Errorf("role = %s", m.Role)
	}
	if m.Content != "This reminds you of these events from your past: \nI was created" {
		t.Errorf("content = %q", m.Content)
	}
}
