// Package tools implements the commands the agent can run: file
// operations, web search and browsing, sub-agent delegation, code
// analysis and local shell execution.
package tools

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"google.golang.org/api/option"

	"github.com/martinemde/autoagent/agentloop"
	"github.com/martinemde/autoagent/workspace"
)

// Config wires the commands to their collaborators.
type Config struct {
	Workspace *workspace.Workspace
	Model     agentloop.ChatModel
	// FastModel serves browsing summaries, sub-agents and code commands.
	FastModel string
	Counter   agentloop.TokenCounter
	Memory    agentloop.Memory
	Agents    *agentloop.AgentManager

	GoogleAPIKey   string
	SearchEngineID string
	// SearchOptions are extra API client options for the search service.
	SearchOptions []option.ClientOption

	HTTPClient        *http.Client
	BrowseChunkTokens int

	ExecuteLocalCommands bool
	ShellTimeout         time.Duration

	Logger *slog.Logger
}

// RegisterAll registers every command on reg. Commands whose prerequisites
// are missing are registered disabled with the reason.
func RegisterAll(ctx context.Context, reg *agentloop.CommandRegistry, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	files, err := NewFileOps(cfg.Workspace)
	if err != nil {
		return err
	}

	search := agentloop.Command{
		Name:           "google",
		Description:    "Google Search",
		Params:         params("query"),
		Enabled:        cfg.GoogleAPIKey != "",
		DisabledReason: "Configure google_api_key.",
	}
	if search.Enabled {
		g, err := NewGoogleSearch(ctx, cfg.GoogleAPIKey, cfg.SearchEngineID, cfg.SearchOptions...)
		if err != nil {
			return err
		}
		search.Execute = func(ctx context.Context, args []string) (string, error) {
			return g.Search(ctx, args[0], DefaultSearchResults)
		}
	}
	register(reg, search)

	browser := NewBrowser(BrowserConfig{
		HTTPClient:  cfg.HTTPClient,
		Model:       cfg.Model,
		ModelName:   cfg.FastModel,
		Counter:     cfg.Counter,
		Memory:      cfg.Memory,
		ChunkTokens: cfg.BrowseChunkTokens,
		Logger:      logger,
	})
	register(reg, agentloop.Command{
		Name: "browseWebsite", Description: "Browse Website", Params: params("url", "question"), Enabled: true,
		Execute: func(ctx context.Context, args []string) (string, error) {
			return browser.Browse(ctx, args[0], args[1])
		},
	})

	register(reg, agentloop.Command{
		Name: "createDir", Description: "Create directory", Params: params("directory"), Enabled: true,
		Execute: func(ctx context.Context, args []string) (string, error) { return files.CreateDir(args[0]) },
	})
	register(reg, agentloop.Command{
		Name: "writeFile", Description: "Write to file", Params: params("fileName", "content"), Enabled: true,
		Execute: func(ctx context.Context, args []string) (string, error) { return files.WriteFile(args[0], args[1]) },
	})
	register(reg, agentloop.Command{
		Name: "appendToFile", Description: "Append to file", Params: params("fileName", "content", "shouldLog"), Enabled: true,
		Execute: func(ctx context.Context, args []string) (string, error) {
			return files.AppendToFile(args[0], args[1], parseBool(args[2], true))
		},
	})
	register(reg, agentloop.Command{
		Name: "readFile", Description: "Read file", Params: params("fileName"), Enabled: true,
		Execute: func(ctx context.Context, args []string) (string, error) { return files.ReadFile(args[0]) },
	})
	register(reg, agentloop.Command{
		Name: "deleteFile", Description: "Delete file", Params: params("fileName"), Enabled: true,
		Execute: func(ctx context.Context, args []string) (string, error) { return files.DeleteFile(args[0]) },
	})
	register(reg, agentloop.Command{
		Name: "searchFiles", Description: "Search Files", Params: params("directory"), Enabled: true,
		Execute: func(ctx context.Context, args []string) (string, error) { return files.SearchFiles(args[0]) },
	})

	if cfg.Agents != nil {
		agents := NewAgentCommands(cfg.Agents, cfg.FastModel)
		register(reg, agentloop.Command{
			Name: "startAgent", Description: "Start GPT Agent", Params: params("name", "task", "prompt"), Enabled: true,
			Execute: func(ctx context.Context, args []string) (string, error) {
				return agents.Start(ctx, args[0], args[1], args[2])
			},
		})
		register(reg, agentloop.Command{
			Name: "messageAgent", Description: "Message GPT Agent", Params: params("key", "message"), Enabled: true,
			Execute: func(ctx context.Context, args []string) (string, error) {
				return agents.Message(ctx, args[0], args[1])
			},
		})
		register(reg, agentloop.Command{
			Name: "listAgents", Description: "List GPT Agents", Enabled: true,
			Execute: func(ctx context.Context, args []string) (string, error) { return agents.List(), nil },
		})
		register(reg, agentloop.Command{
			Name: "deleteAgent", Description: "Delete GPT Agent", Params: params("key"), Enabled: true,
			Execute: func(ctx context.Context, args []string) (string, error) { return agents.Delete(args[0]) },
		})
	}

	code := NewCodeCommands(cfg.Model, cfg.FastModel)
	register(reg, agentloop.Command{
		Name: "analyzeCode", Description: "Analyze Code", Params: params("code"), Enabled: true,
		Execute: func(ctx context.Context, args []string) (string, error) { return code.Analyze(ctx, args[0]) },
	})
	register(reg, agentloop.Command{
		Name: "improveCode", Description: "Get Improved Code", Params: params("suggestions", "code"), Enabled: true,
		Execute: func(ctx context.Context, args []string) (string, error) {
			return code.Improve(ctx, args[0], args[1])
		},
	})
	register(reg, agentloop.Command{
		Name: "writeTests", Description: "Write Tests", Params: params("code", "focus"), Enabled: true,
		Execute: func(ctx context.Context, args []string) (string, error) {
			return code.WriteTests(ctx, args[0], args[1])
		},
	})

	timeout := cfg.ShellTimeout
	if timeout <= 0 {
		timeout = DefaultShellTimeout
	}
	register(reg, agentloop.Command{
		Name: "executeShell", Description: "Execute Shell Command, non-interactive commands only", Params: params("commandLine"),
		Enabled: cfg.ExecuteLocalCommands, DisabledReason: shellDisabledReason,
		Execute: func(ctx context.Context, args []string) (string, error) {
			return ExecuteShell(ctx, cfg.Workspace, args[0], timeout)
		},
	})

	logger.Debug("commands registered", "component", "tools", "count", reg.Count(), "enabled", len(reg.Enabled()))
	return nil
}

// register adds cmd with its output bounded by the per-command limits.
func register(reg *agentloop.CommandRegistry, cmd agentloop.Command) {
	if exec := cmd.Execute; exec != nil {
		name := cmd.Name
		cmd.Execute = func(ctx context.Context, args []string) (string, error) {
			out, err := exec(ctx, args)
			if err != nil {
				return "", err
			}
			return Truncate(out, name), nil
		}
	}
	reg.Register(cmd)
}

func params(names ...string) []agentloop.Param {
	ps := make([]agentloop.Param, len(names))
	for i, n := range names {
		ps[i] = agentloop.Param{Name: n, Placeholder: "<" + n + ">"}
	}
	return ps
}

// parseBool reads an optional boolean argument, defaulting to def.
func parseBool(s string, def bool) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return b
}
