package agentloop

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/martinemde/autoagent/unifiedllm"
)

// SubAgent is a delegated conversation. Each one owns its own history; no
// state is shared with the parent agent or other sub-agents.
type SubAgent struct {
	Key      int
	Task     string
	Model    string
	messages []unifiedllm.Message
	mu       sync.Mutex
}

// Messages returns a copy of the sub-agent's history.
func (s *SubAgent) Messages() []unifiedllm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]unifiedllm.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// ErrSubAgentNotFound is returned for an unknown key.
type ErrSubAgentNotFound struct {
	Key int
}

func (e *ErrSubAgentNotFound) Error() string {
	return fmt.Sprintf("Agent %d not found", e.Key)
}

// AgentManager manages delegated sub-agents under integer keys.
type AgentManager struct {
	model   ChatModel
	agents  map[int]*SubAgent
	nextKey int
	mu      sync.RWMutex
}

// NewAgentManager creates an AgentManager that talks to model.
func NewAgentManager(model ChatModel) *AgentManager {
	return &AgentManager{
		model:  model,
		agents: make(map[int]*SubAgent),
	}
}

// Create starts a sub-agent with an opening prompt and returns its key and
// first reply.
func (m *AgentManager) Create(ctx context.Context, task, prompt, model string) (int, string, error) {
	sub := &SubAgent{Task: task, Model: model}
	reply, err := m.exchange(ctx, sub, prompt)
	if err != nil {
		return 0, "", err
	}

	m.mu.Lock()
	sub.Key = m.nextKey
	m.nextKey++
	m.agents[sub.Key] = sub
	m.mu.Unlock()
	return sub.Key, reply, nil
}

// Message sends message to the sub-agent and returns its reply.
func (m *AgentManager) Message(ctx context.Context, key int, message string) (string, error) {
	sub := m.Get(key)
	if sub == nil {
		return "", &ErrSubAgentNotFound{Key: key}
	}
	return m.exchange(ctx, sub, message)
}

// exchange appends message and the model's reply to the sub-agent history.
// A failed call leaves the history unchanged.
func (m *AgentManager) exchange(ctx context.Context, sub *SubAgent, message string) (string, error) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	messages := append(append([]unifiedllm.Message(nil), sub.messages...), unifiedllm.UserMessage(message))
	reply, err := m.model.ChatComplete(ctx, messages, sub.Model, 0, 0)
	if err != nil {
		return "", fmt.Errorf("message agent: %w", err)
	}
	sub.messages = append(messages, unifiedllm.AssistantMessage(reply))
	return reply, nil
}

// Get returns a sub-agent by key, or nil.
func (m *AgentManager) Get(key int) *SubAgent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.agents[key]
}

// List returns all sub-agents ordered by key.
func (m *AgentManager) List() []*SubAgent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*SubAgent, 0, len(m.agents))
	for _, sub := range m.agents {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Delete removes a sub-agent. It reports whether the key existed.
func (m *AgentManager) Delete(key int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.agents[key]; !ok {
		return false
	}
	delete(m.agents, key)
	return true
}

// CloseAll forgets every sub-agent.
func (m *AgentManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents = make(map[int]*SubAgent)
}
