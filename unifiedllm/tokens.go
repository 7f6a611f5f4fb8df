package unifiedllm

import (
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// fallbackEncoding is used for models tiktoken does not know.
const fallbackEncoding = "cl100k_base"

// TokenCounter counts tokens the way the OpenAI chat format does. It is
// deterministic for a given model and input and safe for concurrent use.
// When no BPE encoding can be loaded it falls back to a four characters per
// token estimate.
type TokenCounter struct {
	mu        sync.Mutex
	encodings map[string]*tiktoken.Tiktoken
	failed    map[string]bool
}

// NewTokenCounter creates an empty counter. Encodings load lazily.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{
		encodings: make(map[string]*tiktoken.Tiktoken),
		failed:    make(map[string]bool),
	}
}

func (c *TokenCounter) encoding(model string) *tiktoken.Tiktoken {
	c.mu.Lock()
	defer c.mu.Unlock()

	if enc, ok := c.encodings[model]; ok {
		return enc
	}
	if c.failed[model] {
		return nil
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(fallbackEncoding)
	}
	if err != nil {
		c.failed[model] = true
		return nil
	}
	c.encodings[model] = enc
	return enc
}

// CountString returns the number of tokens in text.
func (c *TokenCounter) CountString(text, model string) int {
	if enc := c.encoding(model); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return estimateTokens(text)
}

// Count returns the number of tokens a list of messages uses, including the
// per-message framing and the three tokens that prime the reply.
func (c *TokenCounter) Count(messages []Message, model string) int {
	perMessage, perName := messageOverhead(model)
	total := 0
	for _, m := range messages {
		total += perMessage
		total += c.CountString(string(m.Role), model)
		total += c.CountString(m.Content, model)
		if m.Name != "" {
			total += c.CountString(m.Name, model) + perName
		}
	}
	return total + 3
}

// messageOverhead returns the per-message and per-name token overhead.
func messageOverhead(model string) (int, int) {
	if strings.HasPrefix(model, "gpt-3.5-turbo") {
		return 4, -1
	}
	return 3, 1
}

func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(text)/4 + 1
}
