// Package usage accounts for model token usage and cost against an
// optional session budget, and keeps a persistent ledger of every call.
package usage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/martinemde/autoagent/unifiedllm"
)

// Recorder persists usage records. *Store implements it.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// Totals is a snapshot of a Tracker.
type Totals struct {
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
	BudgetUSD        float64
}

// TrackerConfig configures a Tracker.
type TrackerConfig struct {
	// BudgetUSD is the session budget. Zero means unlimited.
	BudgetUSD float64
	// Ledger receives one record per model call. Optional.
	Ledger    Recorder
	SessionID string
	Logger    *slog.Logger
}

// Tracker accumulates token counts and cost for a session. It is safe for
// concurrent use. Delegated agents get their own Tracker from Delegate.
type Tracker struct {
	mu               sync.Mutex
	promptTokens     int
	completionTokens int
	cost             float64
	budget           float64

	ledger    Recorder
	sessionID string
	logger    *slog.Logger
}

// NewTracker creates a Tracker.
func NewTracker(cfg TrackerConfig) *Tracker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		budget:    cfg.BudgetUSD,
		ledger:    cfg.Ledger,
		sessionID: cfg.SessionID,
		logger:    logger.With("component", "usage"),
	}
}

// SetBudget replaces the session budget.
func (t *Tracker) SetBudget(usd float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.budget = usd
}

// Delegate returns a Tracker with its own counters and no budget that
// writes to the same ledger under the session ID suffixed with name.
func (t *Tracker) Delegate(name string) *Tracker {
	return &Tracker{
		ledger:    t.ledger,
		sessionID: t.sessionID + "/" + name,
		logger:    t.logger.With("delegate", name),
	}
}

// Totals returns the current counters.
func (t *Tracker) Totals() Totals {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Totals{
		PromptTokens:     t.promptTokens,
		CompletionTokens: t.completionTokens,
		CostUSD:          t.cost,
		BudgetUSD:        t.budget,
	}
}

// Update adds one call's usage, priced from the model catalog, and writes
// it to the ledger. Ledger failures are logged, never returned.
func (t *Tracker) Update(ctx context.Context, model, provider string, u unifiedllm.Usage) {
	cost := unifiedllm.Cost(model, u.InputTokens, u.OutputTokens)

	t.mu.Lock()
	t.promptTokens += u.InputTokens
	t.completionTokens += u.OutputTokens
	t.cost += cost
	total := t.cost
	t.mu.Unlock()

	t.logger.Debug("model usage",
		"model", model, "input_tokens", u.InputTokens, "output_tokens", u.OutputTokens,
		"cost_usd", cost, "total_cost", fmt.Sprintf("$%.3f", total))

	if t.ledger == nil {
		return
	}
	err := t.ledger.Record(ctx, Record{
		Timestamp:    time.Now(),
		SessionID:    t.sessionID,
		Model:        model,
		Provider:     provider,
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
		CostUSD:      cost,
	})
	if err != nil {
		t.logger.Warn("failed to record usage", "error", err)
	}
}

// Warning returns the budget notice injected into the model's context, or
// "" when no budget is set.
func (t *Tracker) Warning() string {
	t.mu.Lock()
	budget, cost := t.budget, t.cost
	t.mu.Unlock()
	if budget <= 0 {
		return ""
	}
	remaining := budget - cost
	if remaining < 0 {
		remaining = 0
	}
	msg := fmt.Sprintf("Your remaining API budget is $%.3f", remaining)
	switch {
	case remaining == 0:
		msg += " BUDGET EXCEEDED! SHUT DOWN!"
	case remaining < 0.005:
		msg += " Budget very nearly exceeded! Shut down gracefully!"
	case remaining < 0.01:
		msg += " Budget nearly exceeded. Finish up."
	}
	return msg + "\n\n"
}

// Middleware returns a unifiedllm middleware that feeds every successful
// response's usage into t.
func (t *Tracker) Middleware() unifiedllm.Middleware {
	return func(ctx context.Context, req unifiedllm.Request, next func(context.Context, unifiedllm.Request) (*unifiedllm.Response, error)) (*unifiedllm.Response, error) {
		resp, err := next(ctx, req)
		if err != nil || resp == nil {
			return resp, err
		}
		provider := resp.Provider
		if provider == "" {
			provider = req.Provider
		}
		t.Update(ctx, req.Model, provider, resp.Usage)
		return resp, nil
	}
}
