package agentloop

import (
	"strings"
	"testing"
)

func TestPromptGeneratorString(t *testing.T) {
	var calls []recordedCall
	reg := newTestRegistry(&calls)
	gen := NewPromptGenerator(reg)
	gen.AddConstraint("Stay polite")
	gen.AddResource("A calculator.")

	s := gen.String()
	for _, want := range []string{
		"Constraints:\n1. ~4000 word limit",
		"5. Stay polite",
		"Commands:\n1. Do Nothing: \"do_nothing\", args: \n",
		`2. Task Complete (Shutdown): "task_complete", args: "reason": "<reason>"`,
		`4. Write to file: "writeFile", args: "fileName": "<fileName>", "content": "<content>"`,
		"5. A calculator.",
		"Performance Evaluation:\n1. Continuously review",
		"Response Format:\n```\n{",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if !strings.HasSuffix(s, "Ensure the response can be parsed by a strict JSON parser.") {
		t.Errorf("prompt ends with %q", s[len(s)-80:])
	}
}

func TestPromptGeneratorSkipsDisabledCommands(t *testing.T) {
	reg := NewCommandRegistry()
	shell := echoCommand("executeShell", "commandLine")
	shell.Enabled = false
	reg.Register(shell)
	reg.Register(echoCommand("readFile", "fileName"))

	gen := NewPromptGenerator(reg)
	gen.AddCommand("Ask Operator", "ask", Param{Name: "question", Placeholder: "<question>"})
	var names []string
	for _, c := range gen.Commands() {
		names = append(names, c.Name)
	}
	want := []string{cmdDoNothing, cmdTaskComplete, cmdMemoryAdd, "ask", "readFile"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("commands = %v, want %v", names, want)
	}
	if strings.Contains(gen.String(), "executeShell") {
		t.Error("disabled command listed")
	}
}
