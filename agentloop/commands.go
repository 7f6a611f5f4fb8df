package agentloop

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Executor runs a command. args holds the argument values in the order the
// command declares its parameters.
type Executor func(ctx context.Context, args []string) (string, error)

// Param is a declared command argument.
type Param struct {
	Name string
	// Placeholder is shown to the model in the command list, e.g. "<url>".
	Placeholder string
}

// Command is a registered tool the model can ask for by name.
type Command struct {
	Name           string
	Description    string
	Params         []Param
	Enabled        bool
	DisabledReason string
	Execute        Executor
}

// String renders the command the way the prompt lists it.
func (c *Command) String() string {
	args := make([]string, len(c.Params))
	for i, p := range c.Params {
		args[i] = fmt.Sprintf("%q: %q", p.Name, p.Placeholder)
	}
	return fmt.Sprintf("%s: %q, args: %s", c.Description, c.Name, strings.Join(args, ", "))
}

// Call binds args to the declared parameters and runs the command. A
// disabled command reports why instead of running.
func (c *Command) Call(ctx context.Context, args map[string]string) Result {
	if !c.Enabled {
		return Successf("Command %s is disabled: %s", c.Name, c.DisabledReason)
	}
	out, err := c.Execute(ctx, c.bind(args))
	if err != nil {
		return Failure(err)
	}
	return Success(out)
}

// bind orders args by the declared parameters. Arguments are matched by
// name, then case-insensitively; leftovers fill the remaining parameters in
// key order.
func (c *Command) bind(args map[string]string) []string {
	out := make([]string, len(c.Params))
	used := make(map[string]bool, len(args))
	filled := make([]bool, len(c.Params))

	for i, p := range c.Params {
		if v, ok := args[p.Name]; ok {
			out[i], filled[i], used[p.Name] = v, true, true
		}
	}
	for i, p := range c.Params {
		if filled[i] {
			continue
		}
		for k, v := range args {
			if !used[k] && strings.EqualFold(k, p.Name) {
				out[i], filled[i], used[k] = v, true, true
				break
			}
		}
	}

	var rest []string
	for k := range args {
		if !used[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for i := range c.Params {
		if filled[i] || len(rest) == 0 {
			continue
		}
		out[i], filled[i] = args[rest[0]], true
		rest = rest[1:]
	}
	return out
}

// CommandRegistry manages command registration and lookup. Commands keep
// their registration order.
type CommandRegistry struct {
	commands map[string]*Command
	order    []string
	mu       sync.RWMutex
}

// NewCommandRegistry creates an empty CommandRegistry.
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[string]*Command),
	}
}

// Register adds or replaces a command in the registry.
func (r *CommandRegistry) Register(cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[cmd.Name]; !exists {
		r.order = append(r.order, cmd.Name)
	}
	r.commands[cmd.Name] = &cmd
}

// Get returns a registered command by name, or nil if not found.
func (r *CommandRegistry) Get(name string) *Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.commands[name]
}

// Commands returns all commands in registration order.
func (r *CommandRegistry) Commands() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmds := make([]*Command, 0, len(r.order))
	for _, name := range r.order {
		cmds = append(cmds, r.commands[name])
	}
	return cmds
}

// Enabled returns the enabled commands in registration order.
func (r *CommandRegistry) Enabled() []*Command {
	var cmds []*Command
	for _, c := range r.Commands() {
		if c.Enabled {
			cmds = append(cmds, c)
		}
	}
	return cmds
}

// Names returns the names of all registered commands.
func (r *CommandRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Count returns the number of registered commands.
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}
