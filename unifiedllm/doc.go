// Package unifiedllm is the model-call boundary of the agent. It wraps the
// gollm library (github.com/teilomillet/gollm) behind a provider-agnostic
// chat client.
//
// # Architecture
//
//   - ProviderAdapter and the shared message types
//   - Retry with exponential backoff and typed error classification
//   - Client with provider routing and middleware
//   - TokenCounter and the model catalog used for budgeting and cost
//
// # Quick Start
//
//	adapter, _ := unifiedllm.NewGollmAdapter("openai", os.Getenv("OPENAI_API_KEY"))
//	client := unifiedllm.NewClient(unifiedllm.WithProvider("openai", adapter))
//
//	text, err := client.ChatComplete(ctx, []unifiedllm.Message{
//	    unifiedllm.SystemMessage("You are terse."),
//	    unifiedllm.UserMessage("Hello"),
//	}, "gpt-3.5-turbo", 0, 0)
//
// ChatComplete retries rate limits and server failures. Authentication,
// access and unknown-model failures are fatal (see IsFatal) and are returned
// at once so the caller can shut down.
//
// # Token counting
//
// TokenCounter counts tokens with tiktoken encodings and the OpenAI chat
// framing overhead. Models without a known encoding use cl100k_base.
package unifiedllm
