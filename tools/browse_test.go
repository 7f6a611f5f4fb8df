package tools

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/martinemde/autoagent/unifiedllm"
)

const testPage = `<!DOCTYPE html>
<html>
<head><title>Gophers</title><style>.x { color: red; }</style></head>
<body>
<script>var tracking = 1;</script>
<h1>All about gophers</h1>
<p>Gophers dig tunnels.  They eat roots. Go has a gopher mascot!</p>
<a href="/about">About us</a>
<a href="https://example.com/news">News</a>
<a href="/about">About again</a>
<a href="/empty"> </a>
</body>
</html>`

func TestPageText(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(testPage))
	if err != nil {
		t.Fatal(err)
	}
	text := pageText(doc)
	for _, want := range []string{"All about gophers", "Gophers dig tunnels.\nThey eat roots."} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q:\n%s", want, text)
		}
	}
	for _, unwanted := range []string{"tracking", "color: red", "Gophers\n"} {
		if strings.Contains(text, unwanted) {
			t.Errorf("text contains %q:\n%s", unwanted, text)
		}
	}
}

func TestPageLinks(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(testPage))
	if err != nil {
		t.Fatal(err)
	}
	got := pageLinks(doc, "https://gophers.test/index.html")
	want := []string{"About us (https://gophers.test/about)", "News (https://example.com/news)"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("links = %q, want %q", got, want)
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("One. Two!  Three? v1.2 is out. Trailing")
	want := []string{"One.", "Two!", "Three?", "v1.2 is out.", "Trailing"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("sentences = %q", got)
	}
}

func TestSplitTextRespectsChunkLimit(t *testing.T) {
	b := NewBrowser(BrowserConfig{Counter: charCounter{}, ChunkTokens: 250, Logger: quietLogger()})
	text := strings.Repeat("The quick brown fox jumps. ", 40)
	chunks, err := b.splitText(text, "what jumps?")
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 2 {
		t.Fatalf("chunks = %d, want several", len(chunks))
	}
	total := 0
	for _, c := range chunks {
		if n := (charCounter{}).Count([]unifiedllm.Message{chunkMessage(c, "what jumps?")}, "") + 1; n > 250 {
			t.Errorf("chunk of %d tokens exceeds limit", n)
		}
		total += strings.Count(c, "jumps.")
	}
	if total != 40 {
		t.Errorf("sentences across chunks = %d, want 40", total)
	}

	if _, err := b.splitText(strings.Repeat("x", 400), "q"); !errors.Is(err, ErrSentenceTooBig) {
		t.Errorf("err = %v, want ErrSentenceTooBig", err)
	}
}

func TestBrowse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("no user agent")
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(testPage))
	}))
	defer srv.Close()

	model := &echoModel{}
	mem := &recordingMemory{}
	b := NewBrowser(BrowserConfig{
		HTTPClient: srv.Client(), Model: model, ModelName: "fast", Counter: charCounter{},
		Memory: mem, Logger: quietLogger(),
	})
	b.allowLocal = true

	got, err := b.Browse(context.Background(), srv.URL, "What do gophers eat?")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "Answer gathered from website: summary \n\n Links: About us (") {
		t.Errorf("result = %q", got)
	}
	if len(model.prompts) != 2 {
		t.Errorf("model calls = %d, want one chunk plus the combined summary", len(model.prompts))
	}
	if !strings.Contains(model.prompts[0], `answer the following question: "What do gophers eat?"`) {
		t.Errorf("prompt = %q", model.prompts[0])
	}
	if len(mem.texts) != 2 ||
		!strings.HasPrefix(mem.texts[0], "Source: "+srv.URL+"\n Raw content part#1: ") ||
		mem.texts[1] != "Source: "+srv.URL+"\n Content summary part#1: summary" {
		t.Errorf("memory = %q", mem.texts)
	}
}

func TestBrowseRejects(t *testing.T) {
	b := NewBrowser(BrowserConfig{Model: &echoModel{}, Counter: charCounter{}, Logger: quietLogger()})
	tests := []struct {
		url  string
		want error
	}{
		{"file:///etc/passwd", ErrLocalAccess},
		{"http://localhost:8080/", ErrLocalAccess},
		{"http://127.0.0.1/admin", ErrLocalAccess},
		{"https://0.0.0.0/", ErrLocalAccess},
		{"http://[::1]/", ErrLocalAccess},
		{"ftp://example.com/file", ErrInvalidURL},
		{"example.com", ErrInvalidURL},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if _, err := b.Browse(context.Background(), tt.url, "q"); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBrowseHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	b := NewBrowser(BrowserConfig{HTTPClient: srv.Client(), Model: &echoModel{}, Counter: charCounter{}, Logger: quietLogger()})
	b.allowLocal = true
	_, err := b.Browse(context.Background(), srv.URL, "q")
	if err == nil || err.Error() != "HTTP 404 error" {
		t.Errorf("err = %v", err)
	}
}
