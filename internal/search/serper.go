package search

import (
	"context"
	"fmt"
)

// SerperClient implements Provider using serper.dev. Serper returns link
// results with snippets only; page text comes from the fallback fetcher.
type SerperClient struct {
	apiKey string
	http   *HTTPClient
}

func (s *SerperClient) Name() string { return "serper" }

func (s *SerperClient) Search(ctx context.Context, query string, limit int) ([]PageResult, error) {
	if limit <= 0 {
		limit = 5
	}
	var resp struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	headers := map[string]string{"X-API-KEY": s.apiKey}
	body := map[string]interface{}{"q": query, "num": limit}
	if err := s.http.DoJSON(ctx, "POST", "https://google.serper.dev/search", headers, body, &resp); err != nil {
		return nil, fmt.Errorf("serper search: %w", err)
	}

	out := make([]PageResult, 0, len(resp.Organic))
	for _, r := range resp.Organic {
		if r.Link == "" {
			continue
		}
		out = append(out, PageResult{URL: r.Link, Title: r.Title, Description: r.Snippet})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
