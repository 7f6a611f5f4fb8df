package agentloop

import (
	"fmt"
	"strings"
)

// PromptCommand is a command as it is listed in the prompt.
type PromptCommand struct {
	// Label is the human description shown before the name.
	Label  string
	Name   string
	Params []Param
}

func (c PromptCommand) String() string {
	args := make([]string, len(c.Params))
	for i, p := range c.Params {
		args[i] = fmt.Sprintf("%q: %q", p.Name, p.Placeholder)
	}
	return fmt.Sprintf("%s: %q, args: %s", c.Label, c.Name, strings.Join(args, ", "))
}

// PromptGenerator builds the instruction block that tells the model what it
// may do and how to answer. Built-in commands come first, followed by the
// enabled commands of the registry at the time the prompt is rendered.
type PromptGenerator struct {
	constraints []string
	builtins    []PromptCommand
	resources   []string
	evaluations []string
	registry    *CommandRegistry
}

// NewPromptGenerator returns a generator with the default constraints,
// resources and performance evaluations.
func NewPromptGenerator(registry *CommandRegistry) *PromptGenerator {
	return &PromptGenerator{
		constraints: []string{
			"~4000 word limit for short term memory. Your short term memory is short, so immediately save important information to files.",
			"If you are unsure how you previously did something or want to recall past events, thinking about similar events will help you remember.",
			"No user assistance",
			`Exclusively use the commands listed in double quotes e.g. "command name"`,
		},
		builtins: []PromptCommand{
			{Label: "Do Nothing", Name: cmdDoNothing},
			{Label: "Task Complete (Shutdown)", Name: cmdTaskComplete, Params: []Param{{Name: "reason", Placeholder: "<reason>"}}},
			{Label: "Memory Add", Name: cmdMemoryAdd, Params: []Param{{Name: "string", Placeholder: "<string>"}}},
		},
		resources: []string{
			"Internet access for searches and information gathering.",
			"Long Term memory management.",
			"GPT-3.5 powered Agents for delegation of simple tasks.",
			"File output.",
		},
		evaluations: []string{
			"Continuously review and analyze your actions to ensure you are performing to the best of your abilities.",
			"Constructively self-criticize your big-picture behavior constantly.",
			"Reflect on past decisions and strategies to refine your approach.",
			"Every command has a cost, so be smart and efficient. Aim to complete tasks in the least number of steps.",
			"Write all code to a file.",
		},
		registry: registry,
	}
}

// AddConstraint appends a constraint.
func (g *PromptGenerator) AddConstraint(c string) { g.constraints = append(g.constraints, c) }

// AddResource appends a resource.
func (g *PromptGenerator) AddResource(r string) { g.resources = append(g.resources, r) }

// AddPerformanceEvaluation appends a performance evaluation.
func (g *PromptGenerator) AddPerformanceEvaluation(e string) {
	g.evaluations = append(g.evaluations, e)
}

// AddCommand lists an extra built-in command.
func (g *PromptGenerator) AddCommand(label, name string, params ...Param) {
	g.builtins = append(g.builtins, PromptCommand{Label: label, Name: name, Params: params})
}

// Commands returns every command the prompt lists, in prompt order.
func (g *PromptGenerator) Commands() []PromptCommand {
	cmds := make([]PromptCommand, 0, len(g.builtins))
	cmds = append(cmds, g.builtins...)
	if g.registry != nil {
		for _, c := range g.registry.Enabled() {
			cmds = append(cmds, PromptCommand{Label: c.Description, Name: c.Name, Params: c.Params})
		}
	}
	return cmds
}

// String renders the full instruction block.
func (g *PromptGenerator) String() string {
	cmds := g.Commands()
	rendered := make([]string, len(cmds))
	for i, c := range cmds {
		rendered[i] = c.String()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Constraints:\n%s\n\n", numbered(g.constraints))
	fmt.Fprintf(&b, "Commands:\n%s\n\n", numbered(rendered))
	fmt.Fprintf(&b, "Resources:\n%s\n\n", numbered(g.resources))
	fmt.Fprintf(&b, "Performance Evaluation:\n%s\n\n", numbered(g.evaluations))
	b.WriteString("You should only respond in JSON format matching the JSON schema described below: \nResponse Format:\n```\n")
	b.WriteString(ResponseSchema())
	b.WriteString("\n```\n\n")
	b.WriteString("Ensure the response can be parsed by a strict JSON parser.")
	return b.String()
}

func numbered(items []string) string {
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = fmt.Sprintf("%d. %s", i+1, item)
	}
	return strings.Join(lines, "\n")
}
