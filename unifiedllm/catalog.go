package unifiedllm

// ModelInfo describes a known model in the catalog.
type ModelInfo struct {
	ID                   string   `json:"id"`
	Provider             string   `json:"provider"`
	DisplayName          string   `json:"display_name"`
	ContextWindow        int      `json:"context_window"`
	InputCostPerMillion  *float64 `json:"input_cost_per_million,omitempty"`
	OutputCostPerMillion *float64 `json:"output_cost_per_million,omitempty"`
	Aliases              []string `json:"aliases,omitempty"`
}

func floatPtr(v float64) *float64 { return &v }

// Models is the built-in model catalog. The first entry for a provider is
// its default.
var Models = []ModelInfo{
	// OpenAI
	{
		ID: "gpt-3.5-turbo", Provider: "openai", DisplayName: "GPT-3.5 Turbo",
		ContextWindow:       4096,
		InputCostPerMillion: floatPtr(2.0), OutputCostPerMillion: floatPtr(2.0),
		Aliases: []string{"gpt-3.5-turbo-0301", "gpt3"},
	},
	{
		ID: "gpt-4", Provider: "openai", DisplayName: "GPT-4",
		ContextWindow:       8192,
		InputCostPerMillion: floatPtr(30.0), OutputCostPerMillion: floatPtr(60.0),
		Aliases: []string{"gpt-4-0314", "gpt4"},
	},
	{
		ID: "gpt-4-32k", Provider: "openai", DisplayName: "GPT-4 32k",
		ContextWindow:       32768,
		InputCostPerMillion: floatPtr(60.0), OutputCostPerMillion: floatPtr(120.0),
		Aliases: []string{"gpt-4-32k-0314"},
	},
	{
		ID: "gpt-4o-mini", Provider: "openai", DisplayName: "GPT-4o Mini",
		ContextWindow:       128000,
		InputCostPerMillion: floatPtr(0.15), OutputCostPerMillion: floatPtr(0.60),
	},

	// Anthropic
	{
		ID: "claude-sonnet-4-5", Provider: "anthropic", DisplayName: "Claude Sonnet 4.5",
		ContextWindow:       200000,
		InputCostPerMillion: floatPtr(3.0), OutputCostPerMillion: floatPtr(15.0),
		Aliases: []string{"sonnet", "claude-sonnet"},
	},
	{
		ID: "claude-opus-4-6", Provider: "anthropic", DisplayName: "Claude Opus 4.6",
		ContextWindow:       200000,
		InputCostPerMillion: floatPtr(15.0), OutputCostPerMillion: floatPtr(75.0),
		Aliases: []string{"opus", "claude-opus"},
	},
}

// GetModelInfo returns the catalog entry for a model, or nil if unknown.
func GetModelInfo(modelID string) *ModelInfo {
	for i := range Models {
		if Models[i].ID == modelID {
			return &Models[i]
		}
		for _, alias := range Models[i].Aliases {
			if alias == modelID {
				return &Models[i]
			}
		}
	}
	return nil
}

// DefaultModel returns the first catalog model for a provider, or nil.
func DefaultModel(provider string) *ModelInfo {
	for i := range Models {
		if Models[i].Provider == provider {
			return &Models[i]
		}
	}
	return nil
}

// Cost returns the USD cost of a call with the given token counts. Models
// without catalog pricing cost nothing.
func Cost(modelID string, inputTokens, outputTokens int) float64 {
	info := GetModelInfo(modelID)
	if info == nil {
		return 0
	}
	var cost float64
	if info.InputCostPerMillion != nil {
		cost += float64(inputTokens) * *info.InputCostPerMillion / 1_000_000
	}
	if info.OutputCostPerMillion != nil {
		cost += float64(outputTokens) * *info.OutputCostPerMillion / 1_000_000
	}
	return cost
}
