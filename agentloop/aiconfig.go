package agentloop

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// MaxGoals is the most goals an agent identity may carry.
const MaxGoals = 5

// Defaults offered when the operator leaves the identity prompts empty.
const (
	DefaultAIName = "Smith"
	DefaultAIRole = "an AI designed to autonomously develop and run businesses with the sole goal of increasing your net worth."
)

// DefaultAIGoals are offered when the operator enters no goals.
var DefaultAIGoals = []string{
	"Increase net worth",
	"Grow Twitter Account",
	"Develop and manage multiple businesses autonomously",
}

const independencePreamble = "Your decisions must always be made independently without seeking user assistance. Play to your strengths as an LLM and pursue simple strategies with no legal complications."

// AIConfig is the persisted identity of an agent.
type AIConfig struct {
	Name  string   `json:"name"`
	Role  string   `json:"role"`
	Goals []string `json:"goals"`
	// APIBudget is the spend ceiling in USD. Zero means unlimited.
	APIBudget float64 `json:"api_budget"`
}

// LoadAIConfig reads an identity file. A missing file yields a zero config
// and no error.
func LoadAIConfig(path string) (*AIConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &AIConfig{}, nil
		}
		return nil, fmt.Errorf("read AI settings %s: %w", path, err)
	}
	var cfg AIConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse AI settings %s: %w", path, err)
	}
	if len(cfg.Goals) > MaxGoals {
		cfg.Goals = cfg.Goals[:MaxGoals]
	}
	return &cfg, nil
}

// Save writes the identity to path.
func (c *AIConfig) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal AI settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write AI settings %s: %w", path, err)
	}
	return nil
}

// IsZero reports whether no identity has been set.
func (c *AIConfig) IsZero() bool {
	return c.Name == "" && c.Role == "" && len(c.Goals) == 0
}

// FullPrompt renders the system prompt: identity, goals, then the
// generator's instruction block.
func (c *AIConfig) FullPrompt(gen *PromptGenerator) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, %s\n%s\n\nGOALS:\n\n", c.Name, c.Role, independencePreamble)
	for i, goal := range c.Goals {
		fmt.Fprintf(&b, "%d. %s\n", i+1, goal)
	}
	b.WriteString("\n")
	b.WriteString(gen.String())
	return b.String()
}
