package research

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/harvestlabs/grantscout/config"
	"github.com/harvestlabs/grantscout/internal/fetch"
	"github.com/harvestlabs/grantscout/internal/llm"
	"github.com/harvestlabs/grantscout/internal/search"
)

type stubLLM struct {
	generate func(ctx context.Context, prompt, model string) (string, error)
	mu       sync.Mutex
	calls    int
}

func (s *stubLLM) Generate(ctx context.Context, prompt, model string, _ map[string]interface{}) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.generate(ctx, prompt, model)
}

func (s *stubLLM) GenerateWithTokens(ctx context.Context, prompt, model string, opts map[string]interface{}) (string, int64, int64, error) {
	out, err := s.Generate(ctx, prompt, model, opts)
	return out, 0, 0, err
}

func (s *stubLLM) GetAvailableModels() []string { return []string{"fast"} }

func (s *stubLLM) GetModelInfo(model string) (llm.ModelInfo, error) {
	return llm.ModelInfo{Name: model}, nil
}

func (s *stubLLM) CalculateCost(inputTokens, outputTokens int64, model string) float64 { return 0 }

type stubSearch struct {
	pages map[string][]search.PageResult
	errs  map[string]error
}

func (s *stubSearch) Name() string { return "stub" }

func (s *stubSearch) Search(ctx context.Context, query string, limit int) ([]search.PageResult, error) {
	if err := s.errs[query]; err != nil {
		return nil, err
	}
	return s.pages[query], nil
}

type fetcherFunc func(ctx context.Context, url string) (string, error)

func (f fetcherFunc) Fetch(ctx context.Context, url string) (fetch.Result, error) {
	text, err := f(ctx, url)
	return fetch.Result{URL: url, Text: text}, err
}

type recordEmitter struct {
	messages []string
}

func (r *recordEmitter) Progress(message string) { r.messages = append(r.messages, message) }

func (r *recordEmitter) contains(substr string) bool {
	for _, m := range r.messages {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func newTestConfig() *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			Routing: config.LLMRoutingConfig{Fallback: "fast"},
		},
		Search: config.SearchConfig{
			Provider:   "firecrawl",
			MaxResults: 3,
			Timeout:    time.Second,
		},
		Research: config.ResearchConfig{
			DefaultNumQueries: 5,
			MaxContentLength:  25000,
			ExtractionTimeout: 5 * time.Second,
			TemplateGrants:    3,
		},
	}
}
