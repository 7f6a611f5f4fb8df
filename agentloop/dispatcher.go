package agentloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/martinemde/autoagent/workspace"
)

// ErrTaskComplete is returned by Dispatch when the model issues
// task_complete. The session should flush and shut down.
var ErrTaskComplete = errors.New("task complete")

// Memory is the long-term memory the dispatcher commits to.
type Memory interface {
	Add(ctx context.Context, text string) error
}

// UnknownCommandError reports a command name no lookup strategy resolved.
type UnknownCommandError struct {
	Name        string
	Suggestions []string
}

func (e *UnknownCommandError) Error() string {
	msg := fmt.Sprintf("Unknown command '%s'. Please refer to the 'COMMANDS' list for available commands and only respond in the specified JSON format.", e.Name)
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" Did you mean: %s?", strings.Join(e.Suggestions, ", "))
	}
	return msg
}

// OutputTooLargeError replaces a result that would overflow the context.
type OutputTooLargeError struct {
	Name string
}

func (e *OutputTooLargeError) Error() string {
	return fmt.Sprintf("Failure: command %s returned too much output. Do not execute this command again with the same arguments.", e.Name)
}

// synonyms maps command names models commonly invent to registered ones.
// Keys are lower case.
var synonyms = map[string]string{
	"createfile":  "writeFile",
	"create_file": "writeFile",
	"write_file":  "writeFile",
	"search":      "google",
}

// pathArgs are rewritten to live inside the workspace before dispatch.
var pathArgs = []string{"fileName", "directory", "clonePath"}

const (
	cmdMemoryAdd    = "memory_add"
	cmdTaskComplete = "task_complete"
	cmdDoNothing    = "do_nothing"

	// resultMargin is the token headroom kept beside a result and the
	// running summary.
	resultMargin = 600
)

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Registry  *CommandRegistry
	Prompt    *PromptGenerator
	Workspace *workspace.Workspace
	Memory    Memory
	Counter   TokenCounter
	// FastModel and FastTokenLimit bound the size of a single result.
	FastModel      string
	FastTokenLimit int
	Logger         *slog.Logger
}

// Dispatcher resolves actions to registered commands and runs them.
type Dispatcher struct {
	registry   *CommandRegistry
	prompt     *PromptGenerator
	ws         *workspace.Workspace
	memory     Memory
	counter    TokenCounter
	fastModel  string
	tokenLimit int
	logger     *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = NewCommandRegistry()
	}
	return &Dispatcher{
		registry:   registry,
		prompt:     cfg.Prompt,
		ws:         cfg.Workspace,
		memory:     cfg.Memory,
		counter:    cfg.Counter,
		fastModel:  cfg.FastModel,
		tokenLimit: cfg.FastTokenLimit,
		logger:     logger.With("component", "dispatcher"),
	}
}

// Dispatch runs action and returns its result. Command failures are
// reported in the Result; the only error is ErrTaskComplete. summary is
// the current running summary, used to bound the size of the result.
func (d *Dispatcher) Dispatch(ctx context.Context, action Action, summary string) (Result, error) {
	name, ok := d.resolve(action.Name)
	if !ok {
		d.logger.Debug("unknown command", "name", action.Name)
		return Failure(&UnknownCommandError{Name: action.Name, Suggestions: d.suggest(action.Name)}), nil
	}

	args, err := d.resolvePathArgs(action.Args)
	if err != nil {
		return Failure(err), nil
	}

	var res Result
	switch name {
	case cmdTaskComplete:
		reason := args["reason"]
		d.logger.Info("task complete", "reason", reason)
		return Successf("Shutting down: %s", reason), fmt.Errorf("%w: %s", ErrTaskComplete, reason)
	case cmdDoNothing:
		res = Success("No action performed.")
	case cmdMemoryAdd:
		res = d.memoryAdd(ctx, args["string"])
	default:
		res = d.call(ctx, d.registry.Get(name), args)
	}

	return d.guard(action.Name, res, summary), nil
}

// resolve finds the canonical command for name: an exact registry match,
// a built-in, a known synonym, or a command in the prompt's list matched
// by name or description.
func (d *Dispatcher) resolve(name string) (string, bool) {
	if d.registry.Get(name) != nil {
		return name, true
	}
	lower := strings.ToLower(name)
	switch lower {
	case cmdMemoryAdd, cmdTaskComplete, cmdDoNothing:
		return lower, true
	}
	if canonical, ok := synonyms[lower]; ok && d.registry.Get(canonical) != nil {
		return canonical, true
	}
	if d.prompt != nil {
		for _, c := range d.prompt.Commands() {
			if strings.EqualFold(name, c.Name) || strings.EqualFold(name, c.Label) {
				if d.registry.Get(c.Name) != nil || isBuiltin(c.Name) {
					return c.Name, true
				}
			}
		}
	}
	return "", false
}

func isBuiltin(name string) bool {
	return name == cmdMemoryAdd || name == cmdTaskComplete || name == cmdDoNothing
}

func (d *Dispatcher) suggest(name string) []string {
	candidates := d.registry.Names()
	candidates = append(candidates, cmdTaskComplete, cmdDoNothing, cmdMemoryAdd)
	matches := fuzzy.Find(name, candidates)
	var out []string
	for i := 0; i < len(matches) && i < 3; i++ {
		out = append(out, matches[i].Str)
	}
	return out
}

// resolvePathArgs rewrites path-like arguments into the workspace. An
// empty or "/" directory means the workspace root.
func (d *Dispatcher) resolvePathArgs(args map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for k, v := range args {
		out[k] = v
	}
	if d.ws == nil {
		return out, nil
	}
	for _, key := range pathArgs {
		v, ok := out[key]
		if !ok {
			continue
		}
		if key == "directory" && (v == "" || v == "/") {
			out[key] = d.ws.Root()
			continue
		}
		if v == "" {
			continue
		}
		p, err := d.ws.Path(v)
		if err != nil {
			return nil, err
		}
		out[key] = p
	}
	return out, nil
}

func (d *Dispatcher) memoryAdd(ctx context.Context, text string) Result {
	if d.memory == nil {
		return Failure(errors.New("no memory backend configured"))
	}
	if err := d.memory.Add(ctx, text); err != nil {
		return Failure(fmt.Errorf("add to memory: %w", err))
	}
	return Successf("Committing memory with string \"%s\"", text)
}

// call runs cmd, converting a panic into a failed Result.
func (d *Dispatcher) call(ctx context.Context, cmd *Command, args map[string]string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("command panicked", "command", cmd.Name, "panic", r)
			res = Failure(fmt.Errorf("command %s panicked: %v", cmd.Name, r))
		}
	}()
	res = cmd.Call(ctx, args)
	if !res.OK() {
		d.logger.Debug("command failed", "command", cmd.Name, "error", res.Err)
	}
	return res
}

// guard replaces a result that would not fit beside the running summary in
// the fast model's window.
func (d *Dispatcher) guard(name string, res Result, summary string) Result {
	if d.counter == nil || d.tokenLimit <= 0 {
		return res
	}
	resultTokens := d.counter.CountString(res.String(), d.fastModel)
	summaryTokens := d.counter.CountString(summary, d.fastModel)
	if resultTokens+summaryTokens+resultMargin > d.tokenLimit {
		d.logger.Warn("command output too large", "command", name, "tokens", resultTokens)
		return Failure(&OutputTooLargeError{Name: name})
	}
	return res
}
