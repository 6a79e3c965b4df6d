package search

import (
	"context"
	"fmt"
	"time"

	"github.com/harvestlabs/grantscout/config"
)

// PageResult is a single web search hit. Markdown holds scraped page text
// when the provider returns it; it may be empty for link-only providers.
type PageResult struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Markdown    string `json:"markdown,omitempty"`
}

// Provider is the interface for web search backends
type Provider interface {
	// Search runs one query and returns up to limit page results
	Search(ctx context.Context, query string, limit int) ([]PageResult, error)

	// Name returns the provider identifier for logs and metrics
	Name() string
}

// NewProvider creates a search provider based on configuration.
// An apiKey override (from request cookies) replaces the configured key.
func NewProvider(cfg config.SearchConfig, apiKey string) (Provider, error) {
	httpc := NewHTTPClient(cfg.Timeout, 2, 300*time.Millisecond)
	switch cfg.Provider {
	case "firecrawl":
		key := cfg.Firecrawl.APIKey
		if apiKey != "" {
			key = apiKey
		}
		if key == "" {
			return nil, fmt.Errorf("firecrawl API key not configured")
		}
		return &FirecrawlClient{apiKey: key, baseURL: cfg.Firecrawl.BaseURL, http: httpc}, nil
	case "serper":
		key := cfg.Serper.APIKey
		if apiKey != "" {
			key = apiKey
		}
		if key == "" {
			return nil, fmt.Errorf("serper API key not configured")
		}
		return &SerperClient{apiKey: key, http: httpc}, nil
	default:
		return nil, fmt.Errorf("unsupported search provider: %s", cfg.Provider)
	}
}
