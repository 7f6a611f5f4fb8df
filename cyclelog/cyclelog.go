// Package cyclelog writes the agent's per-cycle artifacts (history,
// context, raw replies) to disk as JSON for later inspection.
package cyclelog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	defaultPrefix = "agent"
	// overwriteFolder replaces the per-session folder when Overwrite is set.
	overwriteFolder = "auto_gpt"
	maxNameLen      = 15
)

// Config configures a Handler.
type Config struct {
	// Dir is the log root; files go under Dir/DEBUG.
	Dir       string
	AIName    string
	CreatedAt time.Time
	// Overwrite writes every session to the same folder.
	Overwrite bool
	Logger    *slog.Logger
}

// Handler writes one numbered JSON file per LogCycle call into a folder per
// cycle. Write failures are logged and otherwise ignored.
type Handler struct {
	outer  string
	logger *slog.Logger

	mu    sync.Mutex
	cycle int
	count int
}

// New creates a Handler. No directories are created until the first write.
func New(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	created := cfg.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return &Handler{
		outer:  filepath.Join(cfg.Dir, "DEBUG", folderName(cfg.AIName, created, cfg.Overwrite)),
		logger: logger.With("component", "cyclelog"),
		cycle:  -1,
	}
}

func folderName(aiName string, created time.Time, overwrite bool) string {
	if overwrite {
		return overwriteFolder
	}
	short := aiName
	if short == "" {
		short = defaultPrefix
	}
	if r := []rune(short); len(r) > maxNameLen {
		short = string(r[:maxNameLen])
	}
	// Colons are not portable in file names.
	stamp := strings.ReplaceAll(created.UTC().Format("2006-01-02T15:04:05.000Z"), ":", "-")
	return stamp + "_" + short
}

// Dir returns the session folder.
func (h *Handler) Dir() string { return h.outer }

// LogCycle writes data as indented JSON to {cycle:03d}/{n}_{file}, where n
// counts writes within the cycle.
func (h *Handler) LogCycle(cycle int, file string, data any) {
	h.mu.Lock()
	if cycle != h.cycle {
		h.cycle = cycle
		h.count = 0
	}
	n := h.count
	h.count++
	h.mu.Unlock()

	dir := filepath.Join(h.outer, fmt.Sprintf("%03d", cycle))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		h.logger.Warn("create cycle log dir", "dir", dir, "error", err)
		return
	}
	body, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		h.logger.Warn("marshal cycle log", "file", file, "error", err)
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("%d_%s", n, file))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		h.logger.Warn("write cycle log", "path", path, "error", err)
		return
	}
	h.logger.Debug("cycle artifact written", "path", path)
}
