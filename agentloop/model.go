package agentloop

import (
	"context"

	"github.com/martinemde/autoagent/unifiedllm"
)

// ChatModel is the model-call boundary. *unifiedllm.Client implements it;
// retries and backoff happen behind it.
type ChatModel interface {
	ChatComplete(ctx context.Context, messages []unifiedllm.Message, model string, temperature float64, maxTokens int) (string, error)
}

// TokenCounter counts tokens for a model. Implementations must be
// deterministic for a given model and input.
type TokenCounter interface {
	Count(messages []unifiedllm.Message, model string) int
	CountString(text, model string) int
}
