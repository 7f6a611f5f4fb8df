package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// DefaultSearchResults is the number of links a search returns.
const DefaultSearchResults = 8

// GoogleSearch queries a Programmable Search Engine.
type GoogleSearch struct {
	svc      *customsearch.Service
	engineID string
}

// NewGoogleSearch creates a search client for the engine cx. Extra options
// are passed to the API client, e.g. option.WithEndpoint in tests.
func NewGoogleSearch(ctx context.Context, apiKey, cx string, opts ...option.ClientOption) (*GoogleSearch, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create custom search client: %w", err)
	}
	return &GoogleSearch{svc: svc, engineID: cx}, nil
}

// Search returns the result links for query as a JSON array.
func (g *GoogleSearch) Search(ctx context.Context, query string, num int) (string, error) {
	if num <= 0 {
		num = DefaultSearchResults
	}
	resp, err := g.svc.Cse.List().Q(query).Cx(g.engineID).Num(int64(num)).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("google search: %w", err)
	}
	links := []string{}
	for _, item := range resp.Items {
		if item != nil && item.Link != "" {
			links = append(links, item.Link)
		}
	}
	data, err := json.Marshal(links)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
