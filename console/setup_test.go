package console

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/martinemde/autoagent/agentloop"
)

func TestPromptAIConfigDefaults(t *testing.T) {
	c, _ := newTestConsole("\n\n\n\n")
	cfg, err := c.PromptAIConfig(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Name != agentloop.DefaultAIName || cfg.Role != agentloop.DefaultAIRole {
		t.Errorf("identity = %+v", cfg)
	}
	if len(cfg.Goals) != 3 || cfg.APIBudget != 0 {
		t.Errorf("goals/budget = %v / %v", cfg.Goals, cfg.APIBudget)
	}
}

func TestPromptAIConfigAnswers(t *testing.T) {
	input := "Researcher\nan AI that reads papers\ng1\ng2\ng3\ng4\ng5\n$2.50\n"
	c, _ := newTestConsole(input)
	cfg, err := c.PromptAIConfig(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Name != "Researcher" || cfg.Role != "an AI that reads papers" {
		t.Errorf("identity = %+v", cfg)
	}
	if len(cfg.Goals) != agentloop.MaxGoals || cfg.Goals[4] != "g5" {
		t.Errorf("goals = %v", cfg.Goals)
	}
	if cfg.APIBudget != 2.5 {
		t.Errorf("budget = %v", cfg.APIBudget)
	}
}

func TestParseBudget(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"", 0, true},
		{"$1.50", 1.5, true},
		{" 3 ", 3, true},
		{"lots", 0, false},
		{"-1", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseBudget(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("parseBudget(%q) = %v, %v", tt.in, got, ok)
		}
	}
}

func TestConstructAIConfig(t *testing.T) {
	saved := &agentloop.AIConfig{Name: "Saved", Role: "a saved agent", Goals: []string{"stay"}}

	tests := []struct {
		name         string
		stored       *agentloop.AIConfig
		input        string
		skipReprompt bool
		wantName     string
	}{
		{"reuse", saved, "y\n", false, "Saved"},
		{"skip reprompt", saved, "", true, "Saved"},
		{"replace", saved, "n\nFresh\nrole\ngoal\n\n\n", false, "Fresh"},
		{"first run", nil, "New\nrole\n\n\n", false, "New"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ai_settings.json")
			if tt.stored != nil {
				if err := tt.stored.Save(path); err != nil {
					t.Fatal(err)
				}
			}
			c, _ := newTestConsole(tt.input)
			cfg, err := c.ConstructAIConfig(context.Background(), path, tt.skipReprompt)
			if err != nil {
				t.Fatal(err)
			}
			if cfg.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", cfg.Name, tt.wantName)
			}
			onDisk, err := agentloop.LoadAIConfig(path)
			if err != nil || onDisk.Name != tt.wantName {
				t.Errorf("saved = %+v, %v", onDisk, err)
			}
		})
	}
}
