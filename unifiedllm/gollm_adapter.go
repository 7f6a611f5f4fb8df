package unifiedllm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/teilomillet/gollm"
)

// GollmAdapter wraps a gollm.LLM instance and implements ProviderAdapter.
// gollm takes a single prompt plus a system prompt, so the adapter folds the
// leading system messages into the system prompt and renders the rest of the
// conversation as labelled turns.
type GollmAdapter struct {
	provider string
	llm      gollm.LLM
	model    string
	counter  *TokenCounter

	// gollm options are set on the shared LLM before each call.
	mu sync.Mutex
}

// defaultMaxTokens applies when a request does not set MaxTokens.
const defaultMaxTokens = 1024

// GollmAdapterOption configures a GollmAdapter.
type GollmAdapterOption func(*gollmAdapterConfig)

type gollmAdapterConfig struct {
	apiKey      string
	model       string
	temperature float64
	counter     *TokenCounter
}

// WithModel sets the default model for the adapter.
func WithModel(model string) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.model = model
	}
}

// WithTemperature sets the default temperature.
func WithTemperature(t float64) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.temperature = t
	}
}

// WithTokenCounter makes the adapter report usage counted with counter
// instead of the character estimate.
func WithTokenCounter(counter *TokenCounter) GollmAdapterOption {
	return func(c *gollmAdapterConfig) {
		c.counter = counter
	}
}

// NewGollmAdapter creates a new GollmAdapter for the given provider.
// If apiKey is empty, gollm will attempt to read it from environment variables.
func NewGollmAdapter(provider string, apiKey string, opts ...GollmAdapterOption) (*GollmAdapter, error) {
	cfg := &gollmAdapterConfig{
		apiKey: apiKey,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	model := cfg.model
	if model == "" {
		if info := DefaultModel(provider); info != nil {
			model = info.ID
		} else {
			model = "gpt-3.5-turbo"
		}
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(defaultMaxTokens),
		gollm.SetTemperature(cfg.temperature),
		gollm.SetMaxRetries(0), // Client.ChatComplete owns retries.
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}

	if cfg.apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(cfg.apiKey))
	}

	llm, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gollm LLM for provider %s: %w", provider, err)
	}

	return &GollmAdapter{
		provider: provider,
		llm:      llm,
		model:    model,
		counter:  cfg.counter,
	}, nil
}

// Name returns the provider identifier.
func (a *GollmAdapter) Name() string {
	return a.provider
}

// Complete sends a blocking request and returns the full response.
func (a *GollmAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	system, conversation := renderConversation(req.Messages)

	promptOpts := []gollm.PromptOption{}
	if system != "" {
		promptOpts = append(promptOpts, gollm.WithSystemPrompt(system, gollm.CacheTypeEphemeral))
	}
	prompt := gollm.NewPrompt(conversation, promptOpts...)

	a.mu.Lock()
	a.applyRequestOptions(req)
	text, err := a.llm.Generate(ctx, prompt)
	a.mu.Unlock()
	if err != nil {
		return nil, a.translateError(err)
	}

	return a.buildResponse(req, text), nil
}

// renderConversation splits messages into a system prompt (the leading run of
// system messages) and a transcript of everything after it. Later system
// messages keep their position in the transcript.
func renderConversation(messages []Message) (string, string) {
	var system []string
	i := 0
	for ; i < len(messages) && messages[i].Role == RoleSystem; i++ {
		system = append(system, messages[i].Content)
	}

	var turns []string
	for _, msg := range messages[i:] {
		switch msg.Role {
		case RoleUser:
			turns = append(turns, msg.Content)
		case RoleAssistant:
			turns = append(turns, "[Assistant]: "+msg.Content)
		case RoleSystem:
			turns = append(turns, "[System]: "+msg.Content)
		}
	}

	conversation := strings.Join(turns, "\n\n")
	if conversation == "" {
		conversation = "Hello"
	}
	return strings.TrimSpace(strings.Join(system, "\n\n")), conversation
}

// applyRequestOptions applies request-level parameters to the gollm LLM.
func (a *GollmAdapter) applyRequestOptions(req Request) {
	if req.Model != "" {
		a.llm.SetOption("model", req.Model)
	}
	if req.Temperature != nil {
		a.llm.SetOption("temperature", *req.Temperature)
	}
	if req.MaxTokens != nil {
		a.llm.SetOption("max_tokens", *req.MaxTokens)
	}
}

// buildResponse constructs a unified Response from the generated text.
func (a *GollmAdapter) buildResponse(req Request, text string) *Response {
	model := req.Model
	if model == "" {
		model = a.model
	}

	// gollm doesn't expose provider usage; count it locally.
	var in, out int
	if a.counter != nil {
		in = a.counter.Count(req.Messages, model)
		out = a.counter.CountString(text, model)
	} else {
		for _, m := range req.Messages {
			in += estimateTokens(m.Content)
		}
		out = estimateTokens(text)
	}

	return &Response{
		ID:           "resp_" + uuid.New().String()[:8],
		Model:        model,
		Provider:     a.provider,
		Message:      AssistantMessage(text),
		FinishReason: FinishReason{Reason: "stop", Raw: "stop"},
		Usage: Usage{
			InputTokens:  in,
			OutputTokens: out,
			TotalTokens:  in + out,
		},
	}
}

// translateError converts a gollm error into the unified error hierarchy.
func (a *GollmAdapter) translateError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()

	// gollm surfaces provider failures as formatted strings.
	msgLower := strings.ToLower(msg)
	base := func(status int, retryable bool) ProviderError {
		return ProviderError{
			SDKError: SDKError{Message: msg, Cause: err}, Provider: a.provider, StatusCode: status, Retryable: retryable,
		}
	}
	switch {
	case strings.Contains(msgLower, "401") || strings.Contains(msgLower, "unauthorized") || strings.Contains(msgLower, "invalid api key") || strings.Contains(msgLower, "incorrect api key"):
		return &AuthenticationError{ProviderError: base(401, false)}
	case strings.Contains(msgLower, "403") || strings.Contains(msgLower, "forbidden"):
		return &AccessDeniedError{ProviderError: base(403, false)}
	case strings.Contains(msgLower, "model_not_found") || strings.Contains(msgLower, "does not exist") || strings.Contains(msgLower, "404"):
		return &NotFoundError{ProviderError: base(404, false)}
	case strings.Contains(msgLower, "insufficient_quota"):
		return &QuotaExceededError{ProviderError: base(429, false)}
	case strings.Contains(msgLower, "429") || strings.Contains(msgLower, "rate limit"):
		return &RateLimitError{ProviderError: base(429, true)}
	case strings.Contains(msgLower, "context length") || strings.Contains(msgLower, "context_length_exceeded") || strings.Contains(msgLower, "too many tokens"):
		return &ContextLengthError{ProviderError: base(413, false)}
	case strings.Contains(msgLower, "400") || strings.Contains(msgLower, "invalid_request"):
		return &InvalidRequestError{ProviderError: base(400, false)}
	case strings.Contains(msgLower, "500") || strings.Contains(msgLower, "502") || strings.Contains(msgLower, "503") || strings.Contains(msgLower, "internal server") || strings.Contains(msgLower, "overloaded"):
		return &ServerError{ProviderError: base(500, true)}
	case strings.Contains(msgLower, "timeout") || strings.Contains(msgLower, "deadline exceeded"):
		return &RequestTimeoutError{SDKError: SDKError{Message: msg, Cause: err}}
	case strings.Contains(msgLower, "connection refused") || strings.Contains(msgLower, "no such host") || strings.Contains(msgLower, "connection reset"):
		return &NetworkError{SDKError: SDKError{Message: msg, Cause: err}}
	case strings.Contains(msgLower, "content filter") || strings.Contains(msgLower, "safety"):
		return &ContentFilterError{ProviderError: base(0, false)}
	default:
		// Wrap as a generic provider error (retryable by default).
		pe := base(0, true)
		return &pe
	}
}
