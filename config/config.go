// Package config loads autoagent configuration from a YAML file overlaid
// by environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrNoConfigFile is returned by FindConfig when no file exists in the
// default search paths. Callers fall back to Default.
var ErrNoConfigFile = errors.New("no config file found")

// DefaultSearchPaths returns the config file search order.
func DefaultSearchPaths() []string {
	paths := []string{"autoagent.yaml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "autoagent", "config.yaml"))
	}
	return append(paths, "/etc/autoagent/config.yaml")
}

// FindConfig locates a config file. If explicit is non-empty it must exist.
// Otherwise the first existing DefaultSearchPaths entry is returned, or
// ErrNoConfigFile.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}
	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w (searched: %v)", ErrNoConfigFile, DefaultSearchPaths())
}

// Config holds all autoagent configuration. Every field can be set from
// YAML or from the environment variable named in its env tag; the
// environment wins.
type Config struct {
	Provider     string `yaml:"provider" env:"LLM_PROVIDER" validate:"required"`
	OpenAIAPIKey string `yaml:"openai_api_key" env:"OPENAI_API_KEY"`

	FastLLMModel    string  `yaml:"fast_llm_model" env:"FAST_LLM_MODEL" validate:"required"`
	SmartLLMModel   string  `yaml:"smart_llm_model" env:"SMART_LLM_MODEL" validate:"required"`
	FastTokenLimit  int     `yaml:"fast_token_limit" env:"FAST_TOKEN_LIMIT" validate:"gt=0"`
	SmartTokenLimit int     `yaml:"smart_token_limit" env:"SMART_TOKEN_LIMIT" validate:"gt=0"`
	Temperature     float64 `yaml:"temperature" env:"TEMPERATURE" validate:"gte=0,lte=2"`

	RetryMaxAttempts int           `yaml:"retry_max_attempts" env:"RETRY_MAX_ATTEMPTS" validate:"gte=0"`
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay" env:"RETRY_BASE_DELAY" validate:"gte=0"`

	MemoryBackend  string `yaml:"memory_backend" env:"MEMORY_BACKEND" validate:"oneof=local sqlite"`
	MemoryIndex    string `yaml:"memory_index" env:"MEMORY_INDEX" validate:"required"`
	EmbeddingURL   string `yaml:"embedding_base_url" env:"EMBEDDING_BASE_URL"`
	EmbeddingModel string `yaml:"embedding_model" env:"EMBEDDING_MODEL"`

	WorkspaceDirectory   string        `yaml:"workspace_directory" env:"WORKSPACE_DIRECTORY" validate:"required"`
	RestrictToWorkspace  bool          `yaml:"restrict_to_workspace" env:"RESTRICT_TO_WORKSPACE"`
	ExecuteLocalCommands bool          `yaml:"execute_local_commands" env:"EXECUTE_LOCAL_COMMANDS"`
	ShellTimeout         time.Duration `yaml:"shell_timeout" env:"SHELL_TIMEOUT" validate:"gte=0"`

	GoogleAPIKey         string `yaml:"google_api_key" env:"GOOGLE_API_KEY"`
	CustomSearchEngineID string `yaml:"custom_search_engine_id" env:"CUSTOM_SEARCH_ENGINE_ID" validate:"required_with=GoogleAPIKey"`
	BrowseChunkMaxLength int    `yaml:"browse_chunk_max_length" env:"BROWSE_CHUNK_MAX_LENGTH" validate:"gt=0"`

	AISettingsFile      string  `yaml:"ai_settings_file" env:"AI_SETTINGS_FILE" validate:"required"`
	SkipReprompt        bool    `yaml:"skip_reprompt" env:"SKIP_REPROMPT"`
	AuthoriseKey        string  `yaml:"authorise_key" env:"AUTHORISE_COMMAND_KEY" validate:"required"`
	ExitKey             string  `yaml:"exit_key" env:"EXIT_KEY" validate:"required,nefield=AuthoriseKey"`
	Continuous          bool    `yaml:"continuous" env:"CONTINUOUS_MODE"`
	ContinuousLimit     int     `yaml:"continuous_limit" env:"CONTINUOUS_LIMIT" validate:"gte=0"`
	LoopDetectionWindow int     `yaml:"loop_detection_window" env:"LOOP_DETECTION_WINDOW" validate:"gte=0"`
	BudgetUSD           float64 `yaml:"budget" env:"API_BUDGET" validate:"gte=0"`
	Typewriter          bool    `yaml:"typewriter" env:"TYPEWRITER"`

	DataDir        string `yaml:"data_dir" env:"DATA_DIR" validate:"required"`
	LogDir         string `yaml:"log_dir" env:"LOG_DIR" validate:"required"`
	LogLevel       string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat      string `yaml:"log_format" env:"LOG_FORMAT" validate:"omitempty,oneof=text json"`
	Debug          bool   `yaml:"debug" env:"DEBUG_MODE"`
	OverwriteDebug bool   `yaml:"overwrite_debug" env:"OVERWRITE_DEBUG"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Provider:             "openai",
		FastLLMModel:         "gpt-3.5-turbo",
		SmartLLMModel:        "gpt-4",
		FastTokenLimit:       4000,
		SmartTokenLimit:      8000,
		Temperature:          0,
		RetryMaxAttempts:     10,
		RetryBaseDelay:       4 * time.Second,
		MemoryBackend:        "local",
		MemoryIndex:          "auto-gpt",
		WorkspaceDirectory:   "auto_gpt_workspace",
		RestrictToWorkspace:  true,
		ShellTimeout:         2 * time.Minute,
		BrowseChunkMaxLength: 3000,
		AISettingsFile:       "ai_settings.json",
		AuthoriseKey:         "y",
		ExitKey:              "n",
		LoopDetectionWindow:  6,
		DataDir:              "data",
		LogDir:               "logs",
		LogLevel:             "info",
		LogFormat:            "text",
	}
}

// Load reads the YAML file at path over Default, expanding ${VAR}
// references, and then applies environment overrides. An empty path skips
// the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the rules that span fields.
func (c *Config) Validate() error {
	var problems []string
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}
	if c.ContinuousLimit > 0 && !c.Continuous {
		problems = append(problems, "continuous_limit can only be used with continuous mode")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", fe.Field(), fe.Param(), fe.Value())
	case "nefield":
		return fmt.Sprintf("%s must differ from %s", fe.Field(), fe.Param())
	case "required_with":
		return fmt.Sprintf("%s is required when %s is set", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s=%s (got %v)", fe.Field(), fe.Tag(), fe.Param(), fe.Value())
	}
}

// UseFastModelOnly points the smart model at the fast model.
func (c *Config) UseFastModelOnly() {
	c.SmartLLMModel = c.FastLLMModel
	c.SmartTokenLimit = c.FastTokenLimit
}

// UseSmartModelOnly points the fast model at the smart model.
func (c *Config) UseSmartModelOnly() {
	c.FastLLMModel = c.SmartLLMModel
	c.FastTokenLimit = c.SmartTokenLimit
}
