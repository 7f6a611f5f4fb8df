package tools

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/martinemde/autoagent/agentloop"
)

// ErrInvalidAgentKey is returned when an agent key is not an integer.
var ErrInvalidAgentKey = errors.New("Invalid key, must be an integer")

// AgentCommands exposes sub-agent delegation as commands.
type AgentCommands struct {
	mgr   *agentloop.AgentManager
	model string
}

// NewAgentCommands creates the commands over mgr. New sub-agents talk to
// model.
func NewAgentCommands(mgr *agentloop.AgentManager, model string) *AgentCommands {
	return &AgentCommands{mgr: mgr, model: model}
}

// Start creates a sub-agent named name, introduces it, then sends prompt.
func (a *AgentCommands) Start(ctx context.Context, name, task, prompt string) (string, error) {
	voice := strings.ReplaceAll(name, "_", " ")
	intro := fmt.Sprintf("You are %s. Respond with 'Acknowledged'.", voice)
	key, _, err := a.mgr.Create(ctx, task, intro, a.model)
	if err != nil {
		return "", err
	}
	reply, err := a.mgr.Message(ctx, key, prompt)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Agent %s created with key %d. First response: %s", name, key, reply), nil
}

// Message sends message to the sub-agent with the given key.
func (a *AgentCommands) Message(ctx context.Context, key, message string) (string, error) {
	k, err := parseKey(key)
	if err != nil {
		return "", err
	}
	return a.mgr.Message(ctx, k, message)
}

// List returns "key: task" lines for every sub-agent.
func (a *AgentCommands) List() string {
	var b strings.Builder
	b.WriteString("List of agents:\n")
	lines := make([]string, 0)
	for _, sub := range a.mgr.List() {
		lines = append(lines, fmt.Sprintf("%d: %s", sub.Key, sub.Task))
	}
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}

// Delete removes the sub-agent with the given key.
func (a *AgentCommands) Delete(key string) (string, error) {
	k, err := parseKey(key)
	if err != nil {
		return "", err
	}
	if a.mgr.Delete(k) {
		return fmt.Sprintf("Agent %s deleted.", key), nil
	}
	return fmt.Sprintf("Agent %s does not exist.", key), nil
}

func parseKey(key string) (int, error) {
	k, err := strconv.Atoi(strings.TrimSpace(key))
	if err != nil {
		return 0, ErrInvalidAgentKey
	}
	return k, nil
}
