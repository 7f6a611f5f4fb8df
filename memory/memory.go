// Package memory stores text the agent wants to remember and retrieves the
// entries most relevant to a query by embedding similarity.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
)

// Backend names accepted by New.
const (
	BackendLocal  = "local"
	BackendSQLite = "sqlite"
)

// ErrUnknownBackend is returned by New for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown memory backend")

// commandErrorMarker marks failed command results, which are never stored.
const commandErrorMarker = "Command Error:"

// Memory is a persistent store of remembered text.
type Memory interface {
	// Add stores text. Text containing a failed command result is ignored.
	Add(ctx context.Context, text string) error
	// GetRelevant returns up to k stored texts, most relevant first.
	GetRelevant(ctx context.Context, text string, k int) ([]string, error)
	Stats(ctx context.Context) (Stats, error)
	Clear(ctx context.Context) error
	Close() error
}

// Stats describes the contents of a Memory.
type Stats struct {
	Count      int `json:"count"`
	Dimensions int `json:"dimensions"`
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config selects and configures a backend.
type Config struct {
	Backend string
	// Index names the store; files are created as Dir/Index.json or
	// Dir/Index.db.
	Index    string
	Dir      string
	Embedder Embedder
	Logger   *slog.Logger
}

// New opens the configured backend.
func New(cfg Config) (Memory, error) {
	if cfg.Embedder == nil {
		return nil, errors.New("memory: embedder is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	index := cfg.Index
	if index == "" {
		index = "auto-gpt"
	}
	switch cfg.Backend {
	case BackendLocal, "":
		return NewLocalCache(filepath.Join(cfg.Dir, index+".json"), cfg.Embedder, logger)
	case BackendSQLite:
		return NewSQLiteStore(filepath.Join(cfg.Dir, index+".db"), cfg.Embedder, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

func skipText(text string) bool {
	return strings.Contains(text, commandErrorMarker)
}
