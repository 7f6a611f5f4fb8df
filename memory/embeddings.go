package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/martinemde/autoagent/unifiedllm"
)

// Embedding client defaults.
const (
	DefaultEmbeddingURL   = "https://api.openai.com/v1"
	DefaultEmbeddingModel = "text-embedding-ada-002"
)

// EmbeddingConfig configures an EmbeddingClient.
type EmbeddingConfig struct {
	// BaseURL is an OpenAI-compatible API root, e.g. "http://localhost:11434/v1".
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// EmbeddingClient generates embeddings through an OpenAI-compatible
// /embeddings endpoint.
type EmbeddingClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewEmbeddingClient creates an embedding client.
func NewEmbeddingClient(cfg EmbeddingConfig) *EmbeddingClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultEmbeddingURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultEmbeddingModel
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &EmbeddingClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  client,
	}
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed returns the embedding of text. Newlines are replaced by spaces
// before embedding.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: c.model, Input: strings.ReplaceAll(text, "\n", " ")})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &unifiedllm.NetworkError{SDKError: unifiedllm.SDKError{Message: "embedding request failed", Cause: err}}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var parsed embeddingResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		if decodeErr == nil && parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return nil, unifiedllm.ErrorFromStatusCode(resp.StatusCode, msg, "embeddings", retryAfter(resp))
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, errors.New("embedding response contained no vectors")
	}
	return parsed.Data[0].Embedding, nil
}

func retryAfter(resp *http.Response) *float64 {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &secs
}
