package agentloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/martinemde/autoagent/unifiedllm"
)

// ErrOperatorExit is returned by Run when the operator chooses to exit.
var ErrOperatorExit = errors.New("operator exited")

const (
	// TriggerPrompt is the first user turn of every session.
	TriggerPrompt = "Determine which next command to use, and respond using the format specified above:"
	// generateNext is the user turn that follows an authorized command.
	generateNext = "GENERATE NEXT COMMAND JSON"

	humanFeedbackName = "human_feedback"
)

// Files written to the cycle log each cycle.
const (
	FullMessageHistoryFile = "full_message_history.json"
	CurrentContextFile     = "current_context.json"
	NextActionFile         = "next_action.json"
	UserInputFile          = "user_input.txt"
	SelfFeedbackFile       = "supervisor_feedback.txt"
)

// Operator is the human at the console.
type Operator interface {
	// ShowReply presents the model's thoughts and the action it proposes.
	ShowReply(aiName string, reply Reply, action Action)
	// Notify prints a titled line such as a command result or warning.
	Notify(title, text string)
	// ReadLine blocks for one line of input.
	ReadLine(ctx context.Context, prompt string) (string, error)
}

// BudgetReporter reports the remaining-budget warning for the next prompt.
// An empty string means no budget is set.
type BudgetReporter interface {
	Warning() string
}

// CycleLogger records per-cycle artifacts for auditing.
type CycleLogger interface {
	LogCycle(cycle int, file string, data any)
}

// AgentConfig holds the collaborators and settings of an Agent.
type AgentConfig struct {
	AI         *AIConfig
	Prompt     *PromptGenerator
	Model      ChatModel
	Counter    TokenCounter
	Normalizer *Normalizer
	Dispatcher *Dispatcher
	Compactor  *Compactor
	Operator   Operator
	// Budget and CycleLog are optional.
	Budget   BudgetReporter
	CycleLog CycleLogger

	// ModelName and TokenLimit select the model that chooses actions.
	ModelName   string
	TokenLimit  int
	Temperature float64
	// ReviewModel answers self-review requests.
	ReviewModel string

	Continuous      bool
	ContinuousLimit int
	AuthorizeKey    string
	ExitKey         string
	// LoopDetectionWindow is the number of recent actions checked for a
	// repeating pattern. Zero disables detection.
	LoopDetectionWindow int

	Logger *slog.Logger
	// Now overrides the clock used for the timestamp message.
	Now func() time.Time
}

// Agent runs the interaction loop. It owns the full history, the running
// summary and the pre-authorization counter; none are shared.
type Agent struct {
	id        string
	cfg       AgentConfig
	prompt    string
	history   []unifiedllm.Message
	summary   Summary
	cycle     int
	nextCount int
	recent    []string
	emitter   *EventEmitter
	logger    *slog.Logger
}

// NewAgent creates an Agent from cfg.
func NewAgent(cfg AgentConfig) *Agent {
	if cfg.AuthorizeKey == "" {
		cfg.AuthorizeKey = "y"
	}
	if cfg.ExitKey == "" {
		cfg.ExitKey = "n"
	}
	if cfg.ReviewModel == "" {
		cfg.ReviewModel = cfg.ModelName
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.New().String()
	return &Agent{
		id:      id,
		cfg:     cfg,
		prompt:  cfg.AI.FullPrompt(cfg.Prompt),
		summary: NewSummary(),
		emitter: NewEventEmitter(id, 256),
		logger:  logger.With("component", "agent", "agent_id", id),
	}
}

// ID returns the agent identifier.
func (a *Agent) ID() string { return a.id }

// SystemPrompt returns the prompt sent at the head of every context.
func (a *Agent) SystemPrompt() string { return a.prompt }

// History returns a copy of the full message history.
func (a *Agent) History() []unifiedllm.Message {
	h := make([]unifiedllm.Message, len(a.history))
	copy(h, a.history)
	return h
}

// Summary returns the running summary.
func (a *Agent) Summary() Summary { return a.summary }

// Cycle returns the number of cycles started.
func (a *Agent) Cycle() int { return a.cycle }

// NextActionCount returns the remaining pre-authorized actions.
func (a *Agent) NextActionCount() int { return a.nextCount }

// Events returns the event channel for the host application.
func (a *Agent) Events() <-chan Event { return a.emitter.Events() }

// Close closes the event channel.
func (a *Agent) Close() { a.emitter.Close() }

// Run drives the loop until the task completes, the operator exits, the
// continuous limit is reached, ctx is cancelled, or a fatal model error
// occurs. Completion returns an error wrapping ErrTaskComplete; an operator
// exit returns ErrOperatorExit; reaching the limit returns nil.
func (a *Agent) Run(ctx context.Context) error {
	a.emitter.Emit(EventSessionStart, 0, map[string]any{"ai_name": a.cfg.AI.Name})
	err := a.loop(ctx)
	data := map[string]any{"cycles": a.cycle}
	if err != nil {
		data["reason"] = err.Error()
	}
	a.emitter.Emit(EventSessionEnd, a.cycle, data)
	return err
}

func (a *Agent) loop(ctx context.Context) error {
	userInput := TriggerPrompt
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		a.cycle++
		a.logCycle(FullMessageHistoryFile, a.history)

		if a.cfg.Continuous && a.cfg.ContinuousLimit > 0 && a.cycle > a.cfg.ContinuousLimit {
			a.cfg.Operator.Notify("Continuous Limit Reached:", strconv.Itoa(a.cfg.ContinuousLimit))
			return nil
		}
		a.emitter.Emit(EventCycleStart, a.cycle, nil)

		boundary, raw, err := a.think(ctx, userInput)
		if err != nil {
			a.emitter.Emit(EventError, a.cycle, map[string]any{"error": err.Error()})
			return err
		}

		obj, action := a.cfg.Normalizer.Check(ctx, raw)
		reply := DecodeReply(obj)
		a.cfg.Operator.ShowReply(a.cfg.AI.Name, reply, action)
		a.emitter.Emit(EventThoughts, a.cycle, map[string]any{"thoughts": reply.Thoughts})
		a.emitter.Emit(EventAction, a.cycle, map[string]any{"name": action.Name, "args": action.ArgsString()})

		if !a.cfg.Continuous && a.nextCount == 0 {
			a.cfg.Operator.Notify("NEXT ACTION:", nextActionText(action))
			a.cfg.Operator.Notify("", fmt.Sprintf(
				"Enter '%s' to authorise command, '%s -N' to run N continuous commands, 's' to run self-feedback commands, '%s' to exit program, or enter feedback for %s...",
				a.cfg.AuthorizeKey, a.cfg.AuthorizeKey, a.cfg.ExitKey, a.cfg.AI.Name))

			d, err := a.authorize(ctx, reply)
			if err != nil {
				return err
			}
			switch d.Kind {
			case DecisionExit:
				a.cfg.Operator.Notify("", "Exiting...")
				return ErrOperatorExit
			case DecisionFeedback:
				userInput = d.Feedback
				action = Action{Kind: ActionHumanFeedback, Name: humanFeedbackName, Args: map[string]string{}}
				a.emitter.Emit(EventHumanFeedback, a.cycle, map[string]any{"feedback": d.Feedback})
			default:
				userInput = generateNext
				a.cfg.Operator.Notify("-=-=-=-=-=-=-= COMMAND AUTHORISED BY USER -=-=-=-=-=-=-=", "")
				a.emitter.Emit(EventAuthorized, a.cycle, map[string]any{"count": a.nextCount})
			}
		} else {
			a.cfg.Operator.Notify("NEXT ACTION:", nextActionText(action))
		}

		result, dispatchErr := a.execute(ctx, action, userInput)
		a.history = append(a.history, unifiedllm.SystemMessage(result))
		a.cfg.Operator.Notify("SYSTEM:", result)
		a.emitter.Emit(EventResult, a.cycle, map[string]any{"name": action.Name, "result": result})
		if errors.Is(dispatchErr, ErrTaskComplete) {
			return dispatchErr
		}

		a.detectLoop(action)
		a.compact(ctx, boundary)
	}
}

// think assembles the context, calls the model, and records the user turn
// and the reply in history. It returns the context boundary and the raw
// reply text.
func (a *Agent) think(ctx context.Context, userInput string) (int, string, error) {
	var warning string
	if a.cfg.Budget != nil {
		warning = a.cfg.Budget.Warning()
		if warning != "" {
			a.emitter.Emit(EventBudgetWarning, a.cycle, map[string]any{"warning": warning})
		}
	}

	c, err := Assemble(a.cfg.Counter, AssembleInput{
		SystemPrompt:  a.prompt,
		History:       a.history,
		Summary:       a.summary.Message(),
		UserInput:     userInput,
		Model:         a.cfg.ModelName,
		TokenLimit:    a.cfg.TokenLimit,
		BudgetWarning: warning,
		Now:           a.cfg.Now(),
	})
	if err != nil {
		return 0, "", fmt.Errorf("assemble context: %w", err)
	}
	a.logCycle(CurrentContextFile, c.Messages)
	a.logger.Debug("context assembled", "cycle", a.cycle, "messages", len(c.Messages), "tokens", c.TokensUsed, "boundary", c.Boundary)

	raw, err := a.cfg.Model.ChatComplete(ctx, c.Messages, a.cfg.ModelName, a.cfg.Temperature, c.MaxTokens)
	if err != nil {
		return 0, "", fmt.Errorf("model call: %w", err)
	}

	a.history = append(a.history, unifiedllm.UserMessage(userInput), unifiedllm.AssistantMessage(raw))
	a.logCycle(NextActionFile, raw)
	return c.Boundary, raw, nil
}

// authorize prompts until the operator gives a usable answer. A self-review
// is resolved here into authorization or feedback.
func (a *Agent) authorize(ctx context.Context, reply Reply) (Decision, error) {
	for {
		line, err := a.cfg.Operator.ReadLine(ctx, "Input:")
		if err != nil {
			return Decision{}, fmt.Errorf("read operator input: %w", err)
		}
		d := ParseDecision(line, a.cfg.AuthorizeKey, a.cfg.ExitKey)
		switch d.Kind {
		case DecisionInvalid:
			a.cfg.Operator.Notify("WARNING:", d.Problem)
			continue
		case DecisionSelfReview:
			return a.selfReview(ctx, reply)
		case DecisionAuthorize:
			a.nextCount = d.Count
		case DecisionFeedback:
			a.logCycle(UserInputFile, d.Feedback)
		}
		return d, nil
	}
}

// selfReview asks the model to judge its own thoughts. A reply starting
// with the authorize key authorizes the action; anything else is feedback.
func (a *Agent) selfReview(ctx context.Context, reply Reply) (Decision, error) {
	a.cfg.Operator.Notify("-=-=-=-=-=-=-= THOUGHTS, REASONING, PLAN AND CRITICISM WILL NOW BE VERIFIED BY AGENT -=-=-=-=-=-=-=", "")
	msg := selfFeedbackMessage(a.cfg.AI.Role, reply.Thoughts)
	resp, err := a.cfg.Model.ChatComplete(ctx, []unifiedllm.Message{unifiedllm.UserMessage(msg)}, a.cfg.ReviewModel, a.cfg.Temperature, 0)
	if err != nil {
		return Decision{}, fmt.Errorf("self review: %w", err)
	}
	a.logCycle(SelfFeedbackFile, resp)
	a.cfg.Operator.Notify("SELF FEEDBACK:", resp)

	trimmed := strings.ToLower(strings.TrimSpace(resp))
	if trimmed != "" && strings.HasPrefix(trimmed, strings.ToLower(a.cfg.AuthorizeKey)) {
		return Decision{Kind: DecisionAuthorize}, nil
	}
	return Decision{Kind: DecisionFeedback, Feedback: resp}, nil
}

// execute turns an action into the result text recorded in history.
func (a *Agent) execute(ctx context.Context, action Action, userInput string) (string, error) {
	switch action.Kind {
	case ActionInvalid:
		return fmt.Sprintf("Command %s threw the following error: %s", action.Name, action.ArgsString()), nil
	case ActionHumanFeedback:
		return "Human feedback: " + userInput, nil
	}

	res, err := a.cfg.Dispatcher.Dispatch(ctx, action, a.summary.Text)
	if a.nextCount > 0 {
		a.nextCount--
	}
	var tooLarge *OutputTooLargeError
	if errors.As(res.Err, &tooLarge) {
		return tooLarge.Error(), err
	}
	return fmt.Sprintf("Command %s returned: %s", action.Name, res.String()), err
}

func (a *Agent) detectLoop(action Action) {
	window := a.cfg.LoopDetectionWindow
	if window <= 0 || action.Kind != ActionCommand {
		return
	}
	a.recent = append(a.recent, actionSignature(action))
	if len(a.recent) > window {
		a.recent = a.recent[len(a.recent)-window:]
	}
	if DetectLoop(a.recent, window) {
		warning := loopWarning(window)
		a.history = append(a.history, unifiedllm.SystemMessage(warning))
		a.emitter.Emit(EventLoopDetection, a.cycle, map[string]any{"message": warning})
		a.logger.Warn("repeating actions detected", "window", window)
		a.recent = a.recent[:0]
	}
}

// compact folds messages that fell out of this turn's window into the
// summary. A failure keeps the previous summary.
func (a *Agent) compact(ctx context.Context, boundary int) {
	next, err := a.cfg.Compactor.Compact(ctx, a.summary, a.history, boundary)
	if err != nil {
		a.logger.Warn("running summary not updated", "error", err)
		a.emitter.Emit(EventWarning, a.cycle, map[string]any{"message": err.Error()})
		return
	}
	if next.LastIndex != a.summary.LastIndex {
		a.summary = next
		a.emitter.Emit(EventSummaryUpdated, a.cycle, map[string]any{"last_index": next.LastIndex})
	}
}

func (a *Agent) logCycle(file string, data any) {
	if a.cfg.CycleLog != nil {
		a.cfg.CycleLog.LogCycle(a.cycle, file, data)
	}
}

func nextActionText(action Action) string {
	return fmt.Sprintf("COMMAND = %s  ARGUMENTS = %s", action.Name, action.ArgsString())
}
