package console

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/martinemde/autoagent/agentloop"
)

// ConstructAIConfig returns the agent identity stored at path, offering to
// reuse it, or builds a new one interactively and saves it. With
// skipReprompt a stored identity is used without asking.
func (c *Console) ConstructAIConfig(ctx context.Context, path string, skipReprompt bool) (*agentloop.AIConfig, error) {
	cfg, err := agentloop.LoadAIConfig(path)
	if err != nil {
		return nil, err
	}

	if cfg.Name != "" {
		if skipReprompt {
			c.Notify("Name :", cfg.Name)
			c.Notify("Role :", cfg.Role)
			c.Notify("Goals:", strings.Join(cfg.Goals, "; "))
			return cfg, nil
		}
		c.Notify("Welcome back!", fmt.Sprintf("Would you like me to return to being %s?", cfg.Name))
		answer, err := c.ReadLine(ctx, describeSettings(cfg)+"Continue (y/n): ")
		if err != nil {
			return nil, err
		}
		if !strings.EqualFold(strings.TrimSpace(answer), "n") {
			return cfg, nil
		}
	}

	cfg, err = c.PromptAIConfig(ctx)
	if err != nil {
		return nil, err
	}
	if err := cfg.Save(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func describeSettings(cfg *agentloop.AIConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Continue with the last settings?\nName:  %s\nRole:  %s\n", cfg.Name, cfg.Role)
	if len(cfg.Goals) > 0 {
		b.WriteString("Goals:\n")
		for _, g := range cfg.Goals {
			fmt.Fprintf(&b, "\t- %s\n", g)
		}
	}
	if cfg.APIBudget > 0 {
		fmt.Fprintf(&b, "API Budget: $%.2f\n", cfg.APIBudget)
	}
	return b.String()
}

// PromptAIConfig asks the operator for a name, role, up to five goals and
// a budget. Empty answers take the defaults.
func (c *Console) PromptAIConfig(ctx context.Context) (*agentloop.AIConfig, error) {
	cfg := &agentloop.AIConfig{}

	c.Notify("Create an AI-Assistant:", "Enter the name of your AI and its role below. Entering nothing will load defaults.")
	name, err := c.ReadLine(ctx, "AI Name: ")
	if err != nil {
		return nil, err
	}
	cfg.Name = strings.TrimSpace(name)
	if cfg.Name == "" {
		cfg.Name = agentloop.DefaultAIName
	}
	c.Notify(cfg.Name+" here!", "I am at your service.")

	c.Notify("Describe your AI's role:", "For example, '"+agentloop.DefaultAIRole+"'")
	role, err := c.ReadLine(ctx, cfg.Name+" is: ")
	if err != nil {
		return nil, err
	}
	cfg.Role = strings.TrimSpace(role)
	if cfg.Role == "" {
		cfg.Role = agentloop.DefaultAIRole
	}

	c.Notify(fmt.Sprintf("Enter up to %d goals for your AI:", agentloop.MaxGoals),
		"For example: Increase net worth, Grow Twitter Account, Develop and manage multiple businesses autonomously")
	c.Println("Enter nothing to load defaults, enter nothing when finished.")
	for i := 0; i < agentloop.MaxGoals; i++ {
		goal, err := c.ReadLine(ctx, fmt.Sprintf("Goal %d: ", i+1))
		if err != nil {
			return nil, err
		}
		goal = strings.TrimSpace(goal)
		if goal == "" {
			break
		}
		cfg.Goals = append(cfg.Goals, goal)
	}
	if len(cfg.Goals) == 0 {
		cfg.Goals = append([]string(nil), agentloop.DefaultAIGoals...)
	}

	c.Notify("Enter your budget for API calls:", "For example: $1.50")
	c.Println("Enter nothing to let the AI run without monetary limit")
	answer, err := c.ReadLine(ctx, "Budget: $")
	if err != nil {
		return nil, err
	}
	if budget, ok := parseBudget(answer); ok {
		cfg.APIBudget = budget
	} else {
		c.Notify("WARNING:", "Invalid budget input. Setting budget to unlimited.")
	}
	return cfg, nil
}

// parseBudget reads "$1.50", "1.50" or "" (unlimited).
func parseBudget(s string) (float64, bool) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if s == "" {
		return 0, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
