package search

import (
	"context"
	"fmt"
)

// FirecrawlClient implements Provider using the Firecrawl search API with
// markdown scraping enabled, so hits come back with page text attached.
type FirecrawlClient struct {
	apiKey  string
	baseURL string
	http    *HTTPClient
}

func (f *FirecrawlClient) Name() string { return "firecrawl" }

func (f *FirecrawlClient) Search(ctx context.Context, query string, limit int) ([]PageResult, error) {
	base := f.baseURL
	if base == "" {
		base = "https://api.firecrawl.dev/v1"
	}
	if limit <= 0 {
		limit = 5
	}

	req := map[string]interface{}{
		"query": query,
		"limit": limit,
		"scrapeOptions": map[string]interface{}{
			"formats": []string{"markdown"},
		},
	}
	var resp struct {
		Success bool `json:"success"`
		Data    []struct {
			URL         string `json:"url"`
			Title       string `json:"title"`
			Description string `json:"description"`
			Markdown    string `json:"markdown"`
		} `json:"data"`
		Error string `json:"error"`
	}
	headers := map[string]string{"Authorization": "Bearer " + f.apiKey}
	if err := f.http.DoJSON(ctx, "POST", base+"/search", headers, req, &resp); err != nil {
		return nil, fmt.Errorf("firecrawl search: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("firecrawl search: %s", resp.Error)
	}

	out := make([]PageResult, 0, len(resp.Data))
	for _, d := range resp.Data {
		if d.URL == "" {
			continue
		}
		out = append(out, PageResult{URL: d.URL, Title: d.Title, Description: d.Description, Markdown: d.Markdown})
	}
	return out, nil
}
