package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps memories in a SQLite database and ranks them by cosine
// similarity. It is safe for concurrent use.
type SQLiteStore struct {
	db       *sql.DB
	embedder Embedder
	logger   *slog.Logger
}

// NewSQLiteStore opens or creates the database at dbPath.
func NewSQLiteStore(dbPath string, embedder Embedder, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open memory database: %w", err)
	}
	s := &SQLiteStore{db: db, embedder: embedder, logger: logger.With("component", "memory", "backend", BackendSQLite)}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate memory schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id         TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		content    TEXT NOT NULL,
		embedding  TEXT NOT NULL,
		dimensions INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Add embeds and inserts text.
func (s *SQLiteStore) Add(ctx context.Context, text string) error {
	if skipText(text) {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed memory: %w", err)
	}
	encoded, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate memory ID: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memories (id, created_at, content, embedding, dimensions) VALUES (?, ?, ?, ?, ?)`,
		id.String(), time.Now().UTC().Format(time.RFC3339Nano), text, string(encoded), len(vec))
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

type scored struct {
	content string
	score   float32
}

// GetRelevant returns the k memories most similar to text. Ties keep
// insertion order.
func (s *SQLiteStore) GetRelevant(ctx context.Context, text string, k int) ([]string, error) {
	if k <= 0 {
		return nil, nil
	}
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&count); err != nil {
		return nil, fmt.Errorf("count memories: %w", err)
	}
	if count == 0 {
		return nil, nil
	}
	query, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT content, embedding FROM memories ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var results []scored
	for rows.Next() {
		var content, encoded string
		if err := rows.Scan(&content, &encoded); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		var vec []float32
		if err := json.Unmarshal([]byte(encoded), &vec); err != nil {
			s.logger.Warn("skipping memory with unreadable embedding", "error", err)
			continue
		}
		results = append(results, scored{content: content, score: CosineSimilarity(query, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
	if k > len(results) {
		k = len(results)
	}
	out := make([]string, k)
	for i := range out {
		out[i] = results[i].content
	}
	return out, nil
}

// Stats reports the number of memories and the embedding width.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(MAX(dimensions), 0) FROM memories`).Scan(&st.Count, &st.Dimensions)
	if err != nil {
		return Stats{}, fmt.Errorf("memory stats: %w", err)
	}
	return st, nil
}

// Clear deletes every memory.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memories`); err != nil {
		return fmt.Errorf("clear memories: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
