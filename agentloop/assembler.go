package agentloop

import (
	"errors"
	"time"

	"github.com/martinemde/autoagent/unifiedllm"
)

// ErrContextOverflow means the newest history message cannot fit in the
// send limit. It is a configuration problem: the token limit is too small
// for the prompt.
var ErrContextOverflow = errors.New("context overflow: newest message does not fit the token limit")

// ReservedMargin is kept free for the model's reply.
const ReservedMargin = 1000

// AssembleInput is everything Assemble reads. History and Summary belong to
// the agent; Assemble never retains them.
type AssembleInput struct {
	SystemPrompt string
	History      []unifiedllm.Message
	Summary      unifiedllm.Message
	UserInput    string
	Model        string
	TokenLimit   int
	// BudgetWarning is added as a system message when non-empty.
	BudgetWarning string
	Now           time.Time
}

// Context is the message list sent to the model for one turn.
type Context struct {
	Messages []unifiedllm.Message
	// TokensUsed is the counted size of Messages.
	TokensUsed int
	// MaxTokens is what remains of the token limit for the reply.
	MaxTokens int
	// Boundary is the index in History of the oldest message included.
	// It equals len(History) when no history was included.
	Boundary int
}

// Assemble builds the bounded context for a turn: system prompt, timestamp,
// running summary, as much recent history as fits, then the user input.
// History is walked newest first, so older messages are the ones dropped.
func Assemble(counter TokenCounter, in AssembleInput) (Context, error) {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	messages := []unifiedllm.Message{
		unifiedllm.SystemMessage(in.SystemPrompt),
		unifiedllm.SystemMessage("The current time and date is " + now.Format("Mon Jan 2 15:04:05 2006")),
	}
	sendLimit := in.TokenLimit - ReservedMargin

	user := unifiedllm.UserMessage(in.UserInput)
	used := counter.Count(messages, in.Model)
	used += counter.Count([]unifiedllm.Message{user}, in.Model)
	// The summary has no size cap, so it is counted, not reserved.
	if len(in.History) > 0 {
		used += counter.Count([]unifiedllm.Message{in.Summary}, in.Model)
	}

	var budget []unifiedllm.Message
	if in.BudgetWarning != "" {
		budget = []unifiedllm.Message{unifiedllm.SystemMessage(in.BudgetWarning)}
		used += counter.Count(budget, in.Model)
	}
	if used > sendLimit {
		return Context{}, ErrContextOverflow
	}

	boundary := len(in.History)
	for i := len(in.History) - 1; i >= 0; i-- {
		cost := counter.Count([]unifiedllm.Message{in.History[i]}, in.Model)
		if used+cost > sendLimit {
			break
		}
		used += cost
		boundary = i
	}
	if len(in.History) > 0 && boundary == len(in.History) {
		return Context{}, ErrContextOverflow
	}
	window := in.History[boundary:]

	out := make([]unifiedllm.Message, 0, len(messages)+len(window)+4)
	out = append(out, messages...)
	if len(in.History) > 0 {
		out = append(out, in.Summary)
	}
	out = append(out, window...)
	out = append(out, budget...)
	out = append(out, user)

	return Context{
		Messages:   out,
		TokensUsed: used,
		MaxTokens:  in.TokenLimit - used,
		Boundary:   boundary,
	}, nil
}
