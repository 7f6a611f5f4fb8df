package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/sync/errgroup"

	"github.com/martinemde/autoagent/agentloop"
	"github.com/martinemde/autoagent/unifiedllm"
)

const (
	// DefaultBrowseChunkTokens bounds each chunk sent for summarisation.
	DefaultBrowseChunkTokens = 3000
	browseTimeout            = 10 * time.Second
	browseMaxBytes     int64 = 5 * 1024 * 1024
	maxLinks                 = 5
	userAgent                = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/112.0.5615.49 Safari/537.36"
)

// Browse errors are returned to the model verbatim.
var (
	ErrLocalAccess    = errors.New("Access to local files is restricted")
	ErrInvalidURL     = errors.New("Invalid URL format")
	ErrNothingToRead  = errors.New("no text to summarize")
	ErrSentenceTooBig = errors.New("sentence is too long in webpage")
)

// BrowserConfig configures a Browser.
type BrowserConfig struct {
	HTTPClient *http.Client
	Model      agentloop.ChatModel
	// ModelName is the model that summarises chunks.
	ModelName string
	Counter   agentloop.TokenCounter
	// Memory receives every raw chunk and chunk summary. Optional.
	Memory agentloop.Memory
	// ChunkTokens bounds each summarisation request.
	ChunkTokens int
	// Concurrency bounds parallel chunk summaries.
	Concurrency int
	Logger      *slog.Logger
}

// Browser fetches a page and answers a question about it.
type Browser struct {
	client      *http.Client
	model       agentloop.ChatModel
	modelName   string
	counter     agentloop.TokenCounter
	memory      agentloop.Memory
	chunkTokens int
	concurrency int
	logger      *slog.Logger
	allowLocal  bool
}

// NewBrowser creates a Browser.
func NewBrowser(cfg BrowserConfig) *Browser {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: browseTimeout}
	}
	chunk := cfg.ChunkTokens
	if chunk <= 0 {
		chunk = DefaultBrowseChunkTokens
	}
	conc := cfg.Concurrency
	if conc <= 0 {
		conc = 4
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Browser{
		client:      client,
		model:       cfg.Model,
		modelName:   cfg.ModelName,
		counter:     cfg.Counter,
		memory:      cfg.Memory,
		chunkTokens: chunk,
		concurrency: conc,
		logger:      logger.With("component", "browse"),
	}
}

// Browse answers question from the page at rawURL and lists up to five
// links found on it.
func (b *Browser) Browse(ctx context.Context, rawURL, question string) (string, error) {
	page, err := b.fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", rawURL, err)
	}
	text := pageText(doc)
	links := pageLinks(doc, rawURL)
	if len(links) > maxLinks {
		links = links[:maxLinks]
	}

	summary, err := b.summarize(ctx, rawURL, text, question)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Answer gathered from website: %s \n\n Links: %s", summary, strings.Join(links, ",")), nil
}

func (b *Browser) fetch(ctx context.Context, rawURL string) (string, error) {
	if err := b.checkURL(rawURL); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, browseTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,text/plain;q=0.8,*/*;q=0.7")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HTTP %d error", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, browseMaxBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rawURL, err)
	}
	return string(body), nil
}

// checkURL rejects non-HTTP schemes and loopback hosts.
func (b *Browser) checkURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme == "file" {
		return ErrLocalAccess
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return ErrInvalidURL
	}
	if b.allowLocal {
		return nil
	}
	host := u.Hostname()
	switch host {
	case "localhost", "0.0.0.0", "0000", "2130706433":
		return ErrLocalAccess
	}
	if ip := net.ParseIP(host); ip != nil && (ip.IsLoopback() || ip.IsUnspecified()) {
		return ErrLocalAccess
	}
	return nil
}

func chunkMessage(chunk, question string) unifiedllm.Message {
	return unifiedllm.UserMessage(fmt.Sprintf(
		`"""%s""" Using the above text, answer the following question: "%s" -- if the question cannot be answered using the text, summarize the text.`,
		chunk, question))
}

// summarize splits text into chunks, summarises each against question and
// then summarises the summaries. Raw chunks and their summaries are added
// to memory in page order.
func (b *Browser) summarize(ctx context.Context, source, text, question string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrNothingToRead
	}
	chunks, err := b.splitText(text, question)
	if err != nil {
		return "", err
	}
	b.logger.Debug("summarizing page", "url", source, "chars", len(text), "chunks", len(chunks))

	summaries := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			s, err := b.model.ChatComplete(gctx, []unifiedllm.Message{chunkMessage(chunk, question)}, b.modelName, 0, 0)
			if err != nil {
				return fmt.Errorf("summarize chunk %d of %s: %w", i+1, source, err)
			}
			summaries[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	if b.memory != nil {
		for i := range chunks {
			if err := b.memory.Add(ctx, fmt.Sprintf("Source: %s\n Raw content part#%d: %s", source, i+1, chunks[i])); err != nil {
				b.logger.Warn("memory add failed", "url", source, "error", err)
			}
			if err := b.memory.Add(ctx, fmt.Sprintf("Source: %s\n Content summary part#%d: %s", source, i+1, summaries[i])); err != nil {
				b.logger.Warn("memory add failed", "url", source, "error", err)
			}
		}
	}

	combined := strings.Join(summaries, "\n")
	return b.model.ChatComplete(ctx, []unifiedllm.Message{chunkMessage(combined, question)}, b.modelName, 0, 0)
}

// splitText groups sentences into chunks whose summarisation request fits
// the chunk token limit.
func (b *Browser) splitText(text, question string) ([]string, error) {
	cost := func(chunk string) int {
		return b.counter.Count([]unifiedllm.Message{chunkMessage(chunk, question)}, b.modelName) + 1
	}

	var chunks []string
	current := ""
	for _, sentence := range splitSentences(strings.ReplaceAll(text, "\n", " ")) {
		candidate := sentence
		if current != "" {
			candidate = current + " " + sentence
		}
		if cost(candidate) <= b.chunkTokens {
			current = candidate
			continue
		}
		if n := cost(sentence); n > b.chunkTokens {
			return nil, fmt.Errorf("%w: %d tokens", ErrSentenceTooBig, n)
		}
		if current != "" {
			chunks = append(chunks, current)
		}
		current = sentence
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks, nil
}

// splitSentences breaks text after '.', '!' or '?' followed by whitespace.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 == len(text) || text[i+1] == ' ' || text[i+1] == '\t' {
				if s := strings.TrimSpace(text[start : i+1]); s != "" {
					out = append(out, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

var skipElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Head:     true,
	atom.Svg:      true,
	atom.Iframe:   true,
}

// pageText returns the visible text of doc, one phrase per line.
func pageText(doc *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipElements[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			for _, line := range strings.Split(n.Data, "\n") {
				for _, phrase := range strings.Split(line, "  ") {
					if p := strings.TrimSpace(phrase); p != "" {
						b.WriteString(p)
						b.WriteByte('\n')
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimSpace(b.String())
}

// pageLinks returns "text (url)" for each anchor with visible text, resolved
// against base and deduplicated by URL.
func pageLinks(doc *html.Node, base string) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	var links []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipElements[n.DataAtom] {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				ref, err := url.Parse(attr.Val)
				if err != nil {
					break
				}
				target := baseURL.ResolveReference(ref).String()
				if seen[target] {
					break
				}
				seen[target] = true
				text := strings.NewReplacer("\n", "", "\t", "").Replace(textContent(n))
				if strings.TrimSpace(text) != "" {
					links = append(links, fmt.Sprintf("%s (%s)", strings.TrimSpace(text), target))
				}
				break
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}
