// Autoagent runs an autonomous LLM agent toward a set of goals, asking the
// operator to authorise each command unless running in continuous mode.
//
// Usage:
//
//	autoagent [-config file] [-c] [-l N] [-debug] [-budget USD] ...
//
// Configuration is read from the first of ./autoagent.yaml,
// ~/.config/autoagent/config.yaml and /etc/autoagent/config.yaml, then
// overridden by environment variables and finally by flags.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/martinemde/autoagent/agentloop"
	"github.com/martinemde/autoagent/config"
	"github.com/martinemde/autoagent/console"
	"github.com/martinemde/autoagent/cyclelog"
	"github.com/martinemde/autoagent/memory"
	"github.com/martinemde/autoagent/tools"
	"github.com/martinemde/autoagent/unifiedllm"
	"github.com/martinemde/autoagent/usage"
	"github.com/martinemde/autoagent/workspace"
)

func main() {
	if err := run(context.Background(), os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// options are the command-line flags. set records which were given
// explicitly so only those override the configuration.
type options struct {
	configPath      string
	continuous      bool
	continuousLimit int
	debug           bool
	aiSettings      string
	skipReprompt    bool
	memoryBackend   string
	budget          float64
	fastOnly        bool
	smartOnly       bool
	workspace       string
	set             map[string]bool
}

func parseFlags(stderr io.Writer, args []string) (*options, error) {
	o := &options{set: make(map[string]bool)}
	fs := flag.NewFlagSet("autoagent", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&o.configPath, "config", "", "path to the YAML config file")
	fs.BoolVar(&o.continuous, "continuous", false, "run without asking the operator to authorise commands")
	fs.BoolVar(&o.continuous, "c", false, "shorthand for -continuous")
	fs.IntVar(&o.continuousLimit, "continuous-limit", 0, "stop after this many cycles in continuous mode")
	fs.IntVar(&o.continuousLimit, "l", 0, "shorthand for -continuous-limit")
	fs.BoolVar(&o.debug, "debug", false, "enable debug logging")
	fs.StringVar(&o.aiSettings, "ai-settings", "", "AI settings file")
	fs.BoolVar(&o.skipReprompt, "skip-reprompt", false, "reuse the saved AI settings without asking")
	fs.StringVar(&o.memoryBackend, "memory-backend", "", "memory backend: local or sqlite")
	fs.Float64Var(&o.budget, "budget", 0, "API budget in USD for this session")
	fs.BoolVar(&o.fastOnly, "gpt3only", false, "use the fast model for everything")
	fs.BoolVar(&o.smartOnly, "gpt4only", false, "use the smart model for everything")
	fs.StringVar(&o.workspace, "workspace", "", "workspace directory")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	if o.fastOnly && o.smartOnly {
		return nil, errors.New("-gpt3only and -gpt4only are mutually exclusive")
	}
	return o, nil
}

// apply overlays explicitly set flags onto cfg.
func (o *options) apply(cfg *config.Config) {
	if o.set["continuous"] || o.set["c"] {
		cfg.Continuous = o.continuous
	}
	if o.set["continuous-limit"] || o.set["l"] {
		cfg.ContinuousLimit = o.continuousLimit
	}
	if o.set["debug"] {
		cfg.Debug = o.debug
	}
	if o.set["ai-settings"] {
		cfg.AISettingsFile = o.aiSettings
	}
	if o.set["skip-reprompt"] {
		cfg.SkipReprompt = o.skipReprompt
	}
	if o.set["memory-backend"] {
		cfg.MemoryBackend = o.memoryBackend
	}
	if o.set["budget"] {
		cfg.BudgetUSD = o.budget
	}
	if o.set["workspace"] {
		cfg.WorkspaceDirectory = o.workspace
	}
	if o.fastOnly {
		cfg.UseFastModelOnly()
	}
	if o.smartOnly {
		cfg.UseSmartModelOnly()
	}
}

func loadConfig(o *options) (*config.Config, error) {
	path, err := config.FindConfig(o.configPath)
	if err != nil && !errors.Is(err, config.ErrNoConfigFile) {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	o.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Provider == "openai" && cfg.OpenAIAPIKey == "" {
		return nil, errors.New("please set your OpenAI API key in the config file or the OPENAI_API_KEY environment variable")
	}
	return cfg, nil
}

// openLogger writes logs to LogDir/activity.log, keeping stdout for the
// operator. It falls back to stderr when the file cannot be opened.
func openLogger(cfg *config.Config, stderr io.Writer) (*slog.Logger, func(), error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(cfg.LogDir, "activity.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(stderr, "cannot open log file, logging to stderr: %v\n", err)
		return config.NewLogger(stderr, level, cfg.LogFormat), func() {}, nil
	}
	return config.NewLogger(f, level, cfg.LogFormat), func() { f.Close() }, nil
}

func newLLMClient(cfg *config.Config, counter *unifiedllm.TokenCounter, tracker *usage.Tracker, logger *slog.Logger) (*unifiedllm.Client, error) {
	var apiKey string
	if cfg.Provider == "openai" {
		apiKey = cfg.OpenAIAPIKey
	}
	adapter, err := unifiedllm.NewGollmAdapter(cfg.Provider, apiKey,
		unifiedllm.WithModel(cfg.SmartLLMModel),
		unifiedllm.WithTemperature(cfg.Temperature),
		unifiedllm.WithTokenCounter(counter),
	)
	if err != nil {
		return nil, err
	}
	policy := unifiedllm.DefaultRetryPolicy()
	policy.MaxRetries = cfg.RetryMaxAttempts
	policy.BaseDelay = cfg.RetryBaseDelay.Seconds()
	return unifiedllm.NewClient(
		unifiedllm.WithProvider(cfg.Provider, adapter),
		unifiedllm.WithMiddleware(tracker.Middleware()),
		unifiedllm.WithRetryPolicy(policy),
		unifiedllm.WithLogger(logger),
	), nil
}

func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	opts, err := parseFlags(stderr, args)
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, closeLog, err := openLogger(cfg, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	ws, err := workspace.New(cfg.WorkspaceDirectory, cfg.RestrictToWorkspace)
	if err != nil {
		return err
	}

	ledger, err := usage.NewStore(filepath.Join(cfg.DataDir, "usage.db"))
	if err != nil {
		return err
	}
	sessionID := time.Now().UTC().Format("20060102T150405Z")
	tracker := usage.NewTracker(usage.TrackerConfig{
		BudgetUSD: cfg.BudgetUSD,
		Ledger:    ledger,
		SessionID: sessionID,
		Logger:    logger,
	})

	counter := unifiedllm.NewTokenCounter()
	client, err := newLLMClient(cfg, counter, tracker, logger)
	if err != nil {
		ledger.Close()
		return err
	}
	// Sub-agents spend against their own tracker, not the agent's budget.
	subTracker := tracker.Delegate("subagents")
	subClient, err := newLLMClient(cfg, counter, subTracker, logger)
	if err != nil {
		client.Close()
		ledger.Close()
		return err
	}

	mem, err := memory.New(memory.Config{
		Backend: cfg.MemoryBackend,
		Index:   cfg.MemoryIndex,
		Dir:     cfg.DataDir,
		Embedder: memory.NewEmbeddingClient(memory.EmbeddingConfig{
			BaseURL: cfg.EmbeddingURL,
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.EmbeddingModel,
		}),
		Logger: logger,
	})
	if err != nil {
		subClient.Close()
		client.Close()
		ledger.Close()
		return err
	}

	con := console.New(console.Config{Out: stdout, Typewriter: cfg.Typewriter, Logger: logger})
	agents := agentloop.NewAgentManager(subClient)

	// Everything opened above is flushed and closed together on the way out.
	defer shutdown(logger, con, agents, mem, ledger, client, subClient)

	if !cfg.Continuous && !console.IsInteractive(os.Stdin) {
		logger.Warn("stdin is not a terminal; operator prompts will read from it")
	}
	if cfg.Continuous {
		con.Notify("WARNING:", "Continuous mode is not recommended. It is potentially dangerous and may cause your AI to run forever or carry out actions you would not usually authorise. Use at your own risk.")
	}

	if err := mem.Clear(ctx); err != nil {
		return fmt.Errorf("reset memory: %w", err)
	}
	con.Notify("Using memory of type:", cfg.MemoryBackend)

	ai, err := con.ConstructAIConfig(ctx, cfg.AISettingsFile, cfg.SkipReprompt)
	if err != nil {
		return err
	}
	if !opts.set["budget"] && ai.APIBudget > 0 {
		tracker.SetBudget(ai.APIBudget)
	}

	registry := agentloop.NewCommandRegistry()
	err = tools.RegisterAll(ctx, registry, tools.Config{
		Workspace:            ws,
		Model:                client,
		FastModel:            cfg.FastLLMModel,
		Counter:              counter,
		Memory:               mem,
		Agents:               agents,
		GoogleAPIKey:         cfg.GoogleAPIKey,
		SearchEngineID:       cfg.CustomSearchEngineID,
		BrowseChunkTokens:    cfg.BrowseChunkMaxLength,
		ExecuteLocalCommands: cfg.ExecuteLocalCommands,
		ShellTimeout:         cfg.ShellTimeout,
		Logger:               logger,
	})
	if err != nil {
		return err
	}

	prompt := agentloop.NewPromptGenerator(registry)
	normalizer := agentloop.NewNormalizer(agentloop.NormalizerConfig{
		Model:    client,
		FixModel: cfg.FastLLMModel,
		Debug:    cfg.Debug,
		Logger:   logger,
	})
	dispatcher := agentloop.NewDispatcher(agentloop.DispatcherConfig{
		Registry:       registry,
		Prompt:         prompt,
		Workspace:      ws,
		Memory:         mem,
		Counter:        counter,
		FastModel:      cfg.FastLLMModel,
		FastTokenLimit: cfg.FastTokenLimit,
		Logger:         logger,
	})
	compactor := agentloop.NewCompactor(agentloop.CompactorConfig{
		Model:     client,
		ModelName: cfg.FastLLMModel,
		Logger:    logger,
	})
	cycles := cyclelog.New(cyclelog.Config{
		Dir:       cfg.LogDir,
		AIName:    ai.Name,
		Overwrite: cfg.OverwriteDebug,
		Logger:    logger,
	})

	agent := agentloop.NewAgent(agentloop.AgentConfig{
		AI:                  ai,
		Prompt:              prompt,
		Model:               client,
		Counter:             counter,
		Normalizer:          normalizer,
		Dispatcher:          dispatcher,
		Compactor:           compactor,
		Operator:            con,
		Budget:              tracker,
		CycleLog:            cycles,
		ModelName:           cfg.SmartLLMModel,
		TokenLimit:          cfg.SmartTokenLimit,
		Temperature:         cfg.Temperature,
		ReviewModel:         cfg.FastLLMModel,
		Continuous:          cfg.Continuous,
		ContinuousLimit:     cfg.ContinuousLimit,
		AuthorizeKey:        cfg.AuthoriseKey,
		ExitKey:             cfg.ExitKey,
		LoopDetectionWindow: cfg.LoopDetectionWindow,
		Logger:              logger,
	})
	logger.Debug("system prompt", "prompt", agent.SystemPrompt())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		drainEvents(gctx, agent.Events(), logger)
		return nil
	})
	var runErr error
	g.Go(func() error {
		defer agent.Close()
		runErr = agent.Run(ctx)
		return nil
	})
	_ = g.Wait()

	totals := tracker.Totals()
	con.Notify("Total running cost:", fmt.Sprintf("$%.3f (%d prompt tokens, %d completion tokens)",
		totals.CostUSD, totals.PromptTokens, totals.CompletionTokens))
	if sub := subTracker.Totals(); sub.PromptTokens > 0 {
		con.Notify("Sub-agent running cost:", fmt.Sprintf("$%.3f", sub.CostUSD))
	}

	switch {
	case runErr == nil, errors.Is(runErr, agentloop.ErrTaskComplete), errors.Is(runErr, agentloop.ErrOperatorExit):
		return nil
	case errors.Is(runErr, context.Canceled) && ctx.Err() != nil:
		con.Notify("", "Interrupted. Shutting down.")
		return nil
	default:
		return runErr
	}
}

// drainEvents logs agent events until the channel closes.
func drainEvents(ctx context.Context, events <-chan agentloop.Event, logger *slog.Logger) {
	for e := range events {
		logger.Log(ctx, config.LevelTrace, "agent event", "kind", e.Kind, "cycle", e.Cycle, "data", e.Data)
	}
}

// shutdown flushes and closes every long-lived resource concurrently.
func shutdown(logger *slog.Logger, con *console.Console, agents *agentloop.AgentManager, closers ...io.Closer) {
	agents.CloseAll()
	var g errgroup.Group
	g.Go(con.Close)
	for _, c := range closers {
		g.Go(c.Close)
	}
	if err := g.Wait(); err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}
}
