package agentloop

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
)

// Thoughts is the advisory half of a model reply. It is shown to the
// operator and recorded in logs, but never executed.
type Thoughts struct {
	Text      string `json:"text" validate:"required" jsonschema_description:"thought"`
	Reasoning string `json:"reasoning" validate:"required" jsonschema_description:"reasoning"`
	Plan      string `json:"plan" validate:"required" jsonschema_description:"- short bulleted\n- list that conveys\n- long-term plan"`
	Criticism string `json:"criticism" validate:"required" jsonschema_description:"constructive self-criticism"`
	Progress  string `json:"progress,omitempty" jsonschema_description:"- short bulleted\n- list of progress made so far"`
	Speak     string `json:"speak,omitempty" jsonschema_description:"thoughts summary to say to user"`
}

// CommandCall is the command half of a model reply.
type CommandCall struct {
	Name string         `json:"name" validate:"required" jsonschema_description:"command name"`
	Args map[string]any `json:"args" validate:"required"`
}

// Reply is the structured response the model is asked to produce.
type Reply struct {
	Thoughts *Thoughts    `json:"thoughts" validate:"required"`
	Command  *CommandCall `json:"command" validate:"required"`
}

var (
	schemaOnce sync.Once
	schemaText string

	validate = validator.New(validator.WithRequiredStructEnabled())
)

// ResponseSchema returns the JSON schema of Reply, indented for inclusion
// in prompts.
func ResponseSchema() string {
	schemaOnce.Do(func() {
		r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
		s := r.Reflect(&Reply{})
		s.Version = ""
		b, err := json.MarshalIndent(s, "", "    ")
		if err != nil {
			panic(fmt.Sprintf("agentloop: marshal response schema: %v", err))
		}
		schemaText = string(b)
	})
	return schemaText
}

// DecodeReply converts a normalized object into a Reply. Fields that have
// the wrong shape are left nil; use ValidateReply to report them.
func DecodeReply(obj map[string]any) Reply {
	var r Reply
	if raw, ok := obj["thoughts"].(map[string]any); ok {
		r.Thoughts = &Thoughts{
			Text:      thoughtField(raw["text"]),
			Reasoning: thoughtField(raw["reasoning"]),
			Plan:      thoughtField(raw["plan"]),
			Criticism: thoughtField(raw["criticism"]),
			Progress:  thoughtField(raw["progress"]),
			Speak:     thoughtField(raw["speak"]),
		}
	}
	if raw, ok := obj["command"].(map[string]any); ok {
		var c CommandCall
		if remarshal(raw, &c) == nil {
			r.Command = &c
		}
	}
	return r
}

// ValidateReply checks obj against the response format: both thoughts and
// command present with their required fields, and no other top-level keys.
func ValidateReply(obj map[string]any) []string {
	var problems []string

	var extra []string
	for k := range obj {
		if k != "thoughts" && k != "command" {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		problems = append(problems, fmt.Sprintf("unexpected top-level key %q", k))
	}

	if v, ok := obj["thoughts"]; ok {
		if _, isObj := v.(map[string]any); !isObj {
			problems = append(problems, "thoughts must be an object")
		}
	}
	if v, ok := obj["command"]; ok {
		if _, isObj := v.(map[string]any); !isObj {
			problems = append(problems, "command must be an object")
		}
	}

	reply := DecodeReply(obj)
	if err := validate.Struct(reply); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				problems = append(problems, fmt.Sprintf("%s is %s", strings.TrimPrefix(fe.Namespace(), "Reply."), fe.Tag()))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}
	return problems
}

// thoughtField accepts the list-shaped plans some models emit.
func thoughtField(v any) string {
	items, ok := v.([]any)
	if !ok {
		return argString(v)
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + strings.TrimPrefix(argString(item), "- ")
	}
	return strings.Join(lines, "\n")
}

func remarshal(in any, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// ActionKind distinguishes model-issued commands from the synthetic actions
// the loop creates itself.
type ActionKind int

const (
	// ActionCommand is a command the model asked to run.
	ActionCommand ActionKind = iota
	// ActionHumanFeedback carries operator feedback instead of a command.
	ActionHumanFeedback
	// ActionInvalid marks a reply that did not yield a usable command.
	ActionInvalid
)

// Action is a command decoded from a model reply.
type Action struct {
	Kind ActionKind
	Name string
	Args map[string]string
	// Err explains why an ActionInvalid could not be decoded.
	Err error
}

// ArgsString renders the arguments in a stable order for display.
func (a Action) ArgsString() string {
	if a.Kind == ActionInvalid && a.Err != nil {
		return a.Err.Error()
	}
	keys := make([]string, 0, len(a.Args))
	for k := range a.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("'%s': '%s'", k, a.Args[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Decode errors for replies without a usable command. The texts are fed
// back to the model as results, so they keep its capitalized wording.
var (
	ErrMissingCommand     = errors.New("Missing 'command' object in JSON")
	ErrCommandNotObject   = errors.New("'command' object is not a dictionary")
	ErrMissingCommandName = errors.New("Missing 'name' field in 'command' object")
)

// ParseAction extracts the action from a normalized reply object. A reply
// without a usable command yields an ActionInvalid, never an error.
func ParseAction(obj map[string]any) Action {
	raw, ok := obj["command"]
	if !ok {
		return invalidAction(ErrMissingCommand)
	}
	cmd, ok := raw.(map[string]any)
	if !ok {
		return invalidAction(ErrCommandNotObject)
	}
	name, _ := cmd["name"].(string)
	if strings.TrimSpace(name) == "" {
		return invalidAction(ErrMissingCommandName)
	}

	args := make(map[string]string)
	if rawArgs, ok := cmd["args"].(map[string]any); ok {
		for k, v := range rawArgs {
			args[k] = argString(v)
		}
	}
	return Action{Kind: ActionCommand, Name: name, Args: args}
}

func invalidAction(err error) Action {
	return Action{Kind: ActionInvalid, Name: "Error:", Args: map[string]string{}, Err: err}
}

// argString flattens a decoded JSON value into a command argument.
func argString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
