// Package agentloop implements an autonomous agent interaction loop.
//
// An Agent repeatedly asks a language model for its next action as a JSON
// reply, executes that action through a command registry, and feeds the
// result back into the conversation until the model declares the task
// complete, the operator exits, or a continuous-mode limit is reached.
//
// # Architecture
//
// The package is organized around these components:
//
//   - Normalizer: repairs malformed model output into a reply object
//     (fence stripping, newline escaping, a salvage parser for truncated
//     JSON, brace slicing, and one model-assisted fix). It never fails.
//   - Assemble: builds the bounded context for a turn from the system
//     prompt, running summary, recent history and the new user input.
//   - Compactor: folds history that fell out of the context window into a
//     single running summary message.
//   - Dispatcher: resolves an Action to a registered Command (exact name,
//     synonyms, then the prompt's command list), rewrites path arguments
//     into the workspace, and guards against oversized results.
//   - Agent: the interaction loop, including operator authorization and
//     pre-authorized runs.
//
// The model and token counter are consumed through the ChatModel and
// TokenCounter interfaces; *unifiedllm.Client and *unifiedllm.TokenCounter
// implement them.
//
// # Quick Start
//
//	registry := agentloop.NewCommandRegistry()
//	prompt := agentloop.NewPromptGenerator(registry)
//	agent := agentloop.NewAgent(agentloop.AgentConfig{
//	    AI:         ai,
//	    Prompt:     prompt,
//	    Model:      client,
//	    Counter:    counter,
//	    Normalizer: agentloop.NewNormalizer(agentloop.NormalizerConfig{Model: client, FixModel: "gpt-3.5-turbo"}),
//	    Dispatcher: agentloop.NewDispatcher(agentloop.DispatcherConfig{Registry: registry, Prompt: prompt}),
//	    Compactor:  agentloop.NewCompactor(agentloop.CompactorConfig{Model: client, ModelName: "gpt-3.5-turbo"}),
//	    Operator:   operator,
//	    ModelName:  "gpt-3.5-turbo",
//	    TokenLimit: 4000,
//	})
//	defer agent.Close()
//
//	if err := agent.Run(ctx); err != nil && !errors.Is(err, agentloop.ErrTaskComplete) {
//	    log.Fatal(err)
//	}
package agentloop
