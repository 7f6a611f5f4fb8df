package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/martinemde/autoagent/agentloop"
)

// CodeCommands asks the model to act as a code-analysis function.
type CodeCommands struct {
	model     agentloop.ChatModel
	modelName string
}

// NewCodeCommands creates the code commands.
func NewCodeCommands(model agentloop.ChatModel, modelName string) *CodeCommands {
	return &CodeCommands{model: model, modelName: modelName}
}

// Analyze returns a list of suggested improvements for code.
func (c *CodeCommands) Analyze(ctx context.Context, code string) (string, error) {
	return agentloop.CallFunction(ctx, c.model, c.modelName,
		"def analyze_code(code: str) -> List[str]:",
		[]string{code},
		"Analyzes the given code and returns a list of suggestions for improvements.")
}

// Improve applies suggestions to code. suggestions may be a JSON array or
// a comma separated list.
func (c *CodeCommands) Improve(ctx context.Context, suggestions, code string) (string, error) {
	return agentloop.CallFunction(ctx, c.model, c.modelName,
		"def generate_improved_code(suggestions: List[str], code: str) -> str:",
		[]string{jsonList(suggestions), code},
		"Improves the provided code based on the suggestions provided, making no other changes.")
}

// WriteTests generates tests for code, optionally focused on some areas.
func (c *CodeCommands) WriteTests(ctx context.Context, code, focus string) (string, error) {
	args := []string{code}
	if strings.TrimSpace(focus) != "" {
		args = append(args, jsonList(focus))
	}
	return agentloop.CallFunction(ctx, c.model, c.modelName,
		"def create_test_cases(code: str, focus: Optional[str] = None) -> str:",
		args,
		"Generates test cases for the existing code, focusing on specific areas if required.")
}

// jsonList normalises a list argument to a JSON array.
func jsonList(s string) string {
	var list []string
	if json.Unmarshal([]byte(s), &list) == nil {
		data, _ := json.Marshal(list)
		return string(data)
	}
	parts := strings.Split(s, ",")
	list = make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			list = append(list, p)
		}
	}
	data, _ := json.Marshal(list)
	return string(data)
}
