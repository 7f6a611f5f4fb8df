package agentloop

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestResponseSchema(t *testing.T) {
	schema := ResponseSchema()
	var parsed map[string]any
	if err := json.Unmarshal([]byte(schema), &parsed); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	for _, field := range []string{"thoughts", "command", "reasoning", "criticism", "args"} {
		if !strings.Contains(schema, `"`+field+`"`) {
			t.Errorf("schema missing %q", field)
		}
	}
	if schema != ResponseSchema() {
		t.Error("schema is not stable across calls")
	}
}

func TestValidateReply(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		problems []string
	}{
		{"valid", replyJSON("google", `{"query": "x"}`), nil},
		{"extra key", `{"thoughts": {"text": "t", "reasoning": "r", "plan": "p", "criticism": "c"}, "command": {"name": "x", "args": {}}, "extra": 1}`, []string{`unexpected top-level key "extra"`}},
		{"missing thoughts", `{"command": {"name": "x", "args": {}}}`, []string{"Thoughts is required"}},
		{"thoughts not object", `{"thoughts": "hmm", "command": {"name": "x", "args": {}}}`, []string{"thoughts must be an object"}},
		{"missing command name", `{"thoughts": {"text": "t", "reasoning": "r", "plan": "p", "criticism": "c"}, "command": {"args": {}}}`, []string{"Command.Name is required"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, ok := Repair(tt.input)
			if !ok {
				t.Fatal("test input does not parse")
			}
			got := ValidateReply(obj)
			if len(tt.problems) == 0 && len(got) != 0 {
				t.Fatalf("unexpected problems: %v", got)
			}
			joined := strings.Join(got, "; ")
			for _, want := range tt.problems {
				if !strings.Contains(joined, want) {
					t.Errorf("problems %q missing %q", joined, want)
				}
			}
		})
	}
}

func TestDecodeReplyListPlan(t *testing.T) {
	obj, _ := Repair(`{"thoughts": {"text": "t", "plan": ["first", "- second"]}}`)
	r := DecodeReply(obj)
	if r.Thoughts == nil {
		t.Fatal("thoughts not decoded")
	}
	if r.Thoughts.Plan != "- first\n- second" {
		t.Errorf("plan = %q", r.Thoughts.Plan)
	}
	if r.Command != nil {
		t.Errorf("command = %+v, want nil", r.Command)
	}
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		kind    ActionKind
		action  string
		args    map[string]string
		wantErr error
	}{
		{"command", `{"command": {"name": "readFile", "args": {"fileName": "a"}}}`, ActionCommand, "readFile", map[string]string{"fileName": "a"}, nil},
		{"non-string args", `{"command": {"name": "x", "args": {"n": 3, "f": 1.5, "b": true, "z": null}}}`, ActionCommand, "x", map[string]string{"n": "3", "f": "1.5", "b": "true", "z": ""}, nil},
		{"missing args", `{"command": {"name": "do_nothing"}}`, ActionCommand, "do_nothing", map[string]string{}, nil},
		{"no command", `{"thoughts": {}}`, ActionInvalid, "Error:", nil, ErrMissingCommand},
		{"command not object", `{"command": "google"}`, ActionInvalid, "Error:", nil, ErrCommandNotObject},
		{"blank name", `{"command": {"name": "  ", "args": {}}}`, ActionInvalid, "Error:", nil, ErrMissingCommandName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, ok := Repair(tt.input)
			if !ok {
				t.Fatal("test input does not parse")
			}
			a := ParseAction(obj)
			if a.Kind != tt.kind || a.Name != tt.action {
				t.Fatalf("action = %+v", a)
			}
			if tt.wantErr != nil && !errors.Is(a.Err, tt.wantErr) {
				t.Errorf("err = %v, want %v", a.Err, tt.wantErr)
			}
			for k, v := range tt.args {
				if a.Args[k] != v {
					t.Errorf("args[%q] = %q, want %q", k, a.Args[k], v)
				}
			}
		})
	}
}

func TestActionArgsString(t *testing.T) {
	a := Action{Kind: ActionCommand, Name: "x", Args: map[string]string{"b": "2", "a": "1"}}
	if got := a.ArgsString(); got != "{'a': '1', 'b': '2'}" {
		t.Errorf("ArgsString = %q", got)
	}
	inv := invalidAction(ErrMissingCommand)
	if got := inv.ArgsString(); got != ErrMissingCommand.Error() {
		t.Errorf("invalid ArgsString = %q", got)
	}
}
