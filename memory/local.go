package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

type cacheContent struct {
	Texts      []string    `json:"texts"`
	Embeddings [][]float32 `json:"embeddings"`
}

// LocalCache keeps memories in a JSON file and ranks them by dot product.
type LocalCache struct {
	path     string
	embedder Embedder
	data     cacheContent
	mu       sync.Mutex
	logger   *slog.Logger
}

// NewLocalCache loads the cache at path. A missing or unreadable file
// starts an empty cache.
func NewLocalCache(path string, embedder Embedder, logger *slog.Logger) (*LocalCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &LocalCache{path: path, embedder: embedder, logger: logger.With("component", "memory", "backend", BackendLocal)}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c.logger.Info("memory file does not exist, starting empty", "path", path)
	case err != nil:
		return nil, fmt.Errorf("read memory file %s: %w", path, err)
	case strings.TrimSpace(string(raw)) == "":
		if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
			return nil, fmt.Errorf("initialise memory file %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(raw, &c.data); err != nil || len(c.data.Texts) != len(c.data.Embeddings) {
			c.logger.Warn("memory file is corrupt, starting empty", "path", path, "error", err)
			c.data = cacheContent{}
		}
	}
	return c, nil
}

// Add embeds and stores text, then rewrites the file.
func (c *LocalCache) Add(ctx context.Context, text string) error {
	if skipText(text) {
		return nil
	}
	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed memory: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data.Texts = append(c.data.Texts, text)
	c.data.Embeddings = append(c.data.Embeddings, vec)
	return c.save()
}

// GetRelevant ranks stored texts by dot product with the query embedding.
func (c *LocalCache) GetRelevant(ctx context.Context, text string, k int) ([]string, error) {
	c.mu.Lock()
	empty := len(c.data.Texts) == 0
	c.mu.Unlock()
	if empty || k <= 0 {
		return nil, nil
	}
	query, err := c.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	scores := make([]float32, len(c.data.Embeddings))
	for i, v := range c.data.Embeddings {
		scores[i] = Dot(query, v)
	}
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	if k > len(idx) {
		k = len(idx)
	}
	out := make([]string, k)
	for i := 0; i < k; i++ {
		out[i] = c.data.Texts[idx[i]]
	}
	return out, nil
}

// Stats reports the number of memories and the embedding width.
func (c *LocalCache) Stats(ctx context.Context) (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{Count: len(c.data.Texts)}
	if len(c.data.Embeddings) > 0 {
		s.Dimensions = len(c.data.Embeddings[0])
	}
	return s, nil
}

// Clear forgets everything and rewrites the file.
func (c *LocalCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = cacheContent{}
	return c.save()
}

// Close is a no-op; every change is already on disk.
func (c *LocalCache) Close() error { return nil }

// save writes the cache through a temporary file so a crash never leaves a
// truncated file behind.
func (c *LocalCache) save() error {
	data, err := json.Marshal(c.data)
	if err != nil {
		return fmt.Errorf("marshal memory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("create memory dir: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write memory file: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replace memory file: %w", err)
	}
	return nil
}
