package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/martinemde/autoagent/agentloop"
)

func TestRegisterAll(t *testing.T) {
	ws := newWorkspace(t)
	reg := agentloop.NewCommandRegistry()
	err := RegisterAll(context.Background(), reg, Config{
		Workspace: ws,
		Model:     &echoModel{},
		FastModel: "fast",
		Counter:   charCounter{},
		Agents:    agentloop.NewAgentManager(&echoModel{}),
		Logger:    quietLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{
		"google", "browseWebsite", "createDir", "writeFile", "appendToFile", "readFile", "deleteFile",
		"searchFiles", "startAgent", "messageAgent", "listAgents", "deleteAgent",
		"analyzeCode", "improveCode", "writeTests", "executeShell",
	} {
		if reg.Get(name) == nil {
			t.Errorf("%s not registered", name)
		}
	}
	for _, name := range []string{"google", "executeShell"} {
		if reg.Get(name).Enabled {
			t.Errorf("%s enabled without configuration", name)
		}
	}

	ctx := context.Background()
	res := reg.Get("google").Call(ctx, map[string]string{"query": "x"})
	if res.String() != "Command google is disabled: Configure google_api_key." {
		t.Errorf("google = %q", res.String())
	}
	res = reg.Get("executeShell").Call(ctx, map[string]string{"commandLine": "ls"})
	if !strings.HasPrefix(res.String(), "Command executeShell is disabled: You are not allowed") {
		t.Errorf("executeShell = %q", res.String())
	}

	res = reg.Get("writeFile").Call(ctx, map[string]string{"fileName": "a.txt", "content": "hello"})
	if !res.OK() {
		t.Fatalf("writeFile = %+v", res)
	}
	res = reg.Get("readFile").Call(ctx, map[string]string{"fileName": "a.txt"})
	if res.Output != "hello" {
		t.Errorf("readFile = %+v", res)
	}
	res = reg.Get("appendToFile").Call(ctx, map[string]string{"fileName": "a.txt", "content": "!", "shouldLog": "False"})
	if !res.OK() {
		t.Errorf("appendToFile = %+v", res)
	}
}

func TestRegisterAllEnablesShell(t *testing.T) {
	reg := agentloop.NewCommandRegistry()
	if err := RegisterAll(context.Background(), reg, Config{
		Workspace: newWorkspace(t), Model: &echoModel{}, Counter: charCounter{},
		ExecuteLocalCommands: true, Logger: quietLogger(),
	}); err != nil {
		t.Fatal(err)
	}
	if !reg.Get("executeShell").Enabled {
		t.Error("executeShell disabled")
	}
	if reg.Get("startAgent") != nil {
		t.Error("agent commands registered without a manager")
	}
	res := reg.Get("executeShell").Call(context.Background(), map[string]string{"commandLine": "echo hi"})
	if res.Output != "STDOUT:\nhi\n\nSTDERR:\n" {
		t.Errorf("executeShell = %q", res.Output)
	}
}
