package memory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// keywordEmbedder maps text onto a fixed vocabulary, one dimension per word.
type keywordEmbedder struct {
	calls int
	err   error
}

var vocabulary = []string{"cat", "dog", "fish", "bird"}

func (e *keywordEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	vec := make([]float32, len(vocabulary))
	lower := strings.ToLower(text)
	for i, w := range vocabulary {
		vec[i] = float32(strings.Count(lower, w))
	}
	return vec, nil
}

func backends(t *testing.T) map[string]func(dir string, e Embedder) (Memory, error) {
	t.Helper()
	return map[string]func(string, Embedder) (Memory, error){
		BackendLocal: func(dir string, e Embedder) (Memory, error) {
			return New(Config{Backend: BackendLocal, Dir: dir, Embedder: e, Logger: quietLogger()})
		},
		BackendSQLite: func(dir string, e Embedder) (Memory, error) {
			return New(Config{Backend: BackendSQLite, Dir: dir, Embedder: e, Logger: quietLogger()})
		},
	}
}

func TestMemoryBackends(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			m, err := open(t.TempDir(), &keywordEmbedder{})
			if err != nil {
				t.Fatal(err)
			}
			defer m.Close()

			got, err := m.GetRelevant(ctx, "cat", 3)
			if err != nil || len(got) != 0 {
				t.Fatalf("empty GetRelevant = %q, %v", got, err)
			}

			for _, text := range []string{"the dog barked", "a cat and a cat", "fish swim", "Command Error: cat failed"} {
				if err := m.Add(ctx, text); err != nil {
					t.Fatal(err)
				}
			}

			st, err := m.Stats(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if st.Count != 3 || st.Dimensions != len(vocabulary) {
				t.Errorf("Stats = %+v, want 3 entries of %d dims", st, len(vocabulary))
			}

			got, err = m.GetRelevant(ctx, "cat", 2)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 2 || got[0] != "a cat and a cat" {
				t.Errorf("GetRelevant = %q", got)
			}

			got, _ = m.GetRelevant(ctx, "dog", 10)
			if len(got) != 3 || got[0] != "the dog barked" {
				t.Errorf("GetRelevant(k>count) = %q", got)
			}

			if err := m.Clear(ctx); err != nil {
				t.Fatal(err)
			}
			if st, _ := m.Stats(ctx); st.Count != 0 {
				t.Errorf("Stats after Clear = %+v", st)
			}
		})
	}
}

func TestMemoryPersists(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()
			m, err := open(dir, &keywordEmbedder{})
			if err != nil {
				t.Fatal(err)
			}
			if err := m.Add(ctx, "bird song"); err != nil {
				t.Fatal(err)
			}
			m.Close()

			m, err = open(dir, &keywordEmbedder{})
			if err != nil {
				t.Fatal(err)
			}
			defer m.Close()
			got, err := m.GetRelevant(ctx, "bird", 1)
			if err != nil || len(got) != 1 || got[0] != "bird song" {
				t.Errorf("after reopen GetRelevant = %q, %v", got, err)
			}
		})
	}
}

func TestMemoryEmbedFailure(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			boom := errors.New("boom")
			m, err := open(t.TempDir(), &keywordEmbedder{err: boom})
			if err != nil {
				t.Fatal(err)
			}
			defer m.Close()
			if err := m.Add(context.Background(), "cat"); !errors.Is(err, boom) {
				t.Errorf("Add = %v, want wrapped boom", err)
			}
		})
	}
}

func TestSkippedTextIsNotEmbedded(t *testing.T) {
	e := &keywordEmbedder{}
	m, err := NewLocalCache(filepath.Join(t.TempDir(), "m.json"), e, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Add(context.Background(), "Command Error: nope"); err != nil {
		t.Fatal(err)
	}
	if e.calls != 0 {
		t.Errorf("embedder called %d times", e.calls)
	}
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(Config{Backend: "pinecone", Dir: t.TempDir(), Embedder: &keywordEmbedder{}})
	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("New = %v, want ErrUnknownBackend", err)
	}
	if _, err := New(Config{Backend: BackendLocal, Dir: t.TempDir()}); err == nil {
		t.Error("New without embedder succeeded")
	}
}

func TestLocalCacheFileStates(t *testing.T) {
	tests := []struct {
		name    string
		content string
		count   int
	}{
		{"empty file", "", 0},
		{"corrupt file", "{not json", 0},
		{"mismatched lengths", `{"texts":["a","b"],"embeddings":[[1,0,0,0]]}`, 0},
		{"valid file", `{"texts":["cat"],"embeddings":[[1,0,0,0]]}`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "m.json")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			c, err := NewLocalCache(path, &keywordEmbedder{}, quietLogger())
			if err != nil {
				t.Fatal(err)
			}
			st, _ := c.Stats(context.Background())
			if st.Count != tt.count {
				t.Errorf("Count = %d, want %d", st.Count, tt.count)
			}
		})
	}
}

func TestLocalCacheFileName(t *testing.T) {
	dir := t.TempDir()
	m, err := New(Config{Backend: BackendLocal, Index: "idx", Dir: dir, Embedder: &keywordEmbedder{}})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Add(context.Background(), "cat"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "idx.json")); err != nil {
		t.Errorf("cache file not written: %v", err)
	}
}

func TestVectorMath(t *testing.T) {
	if got := Dot([]float32{1, 2, 3}, []float32{4, 5, 6}); got != 32 {
		t.Errorf("Dot = %v", got)
	}
	if got := Dot([]float32{1}, []float32{1, 2}); got != 0 {
		t.Errorf("Dot mismatched = %v", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{2, 0}); got < 0.999 || got > 1.001 {
		t.Errorf("CosineSimilarity parallel = %v", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("CosineSimilarity orthogonal = %v", got)
	}
	if got := CosineSimilarity([]float32{0, 0}, []float32{1, 1}); got != 0 {
		t.Errorf("CosineSimilarity zero = %v", got)
	}
}
