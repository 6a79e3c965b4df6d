package llm

import (
	"context"
	"fmt"

	"github.com/harvestlabs/grantscout/config"
)

// Provider is the interface for LLM interactions
type Provider interface {
	// Generate generates text using the specified model
	Generate(ctx context.Context, prompt string, model string, options map[string]interface{}) (string, error)

	// GenerateWithTokens generates text and returns token usage
	GenerateWithTokens(ctx context.Context, prompt string, model string, options map[string]interface{}) (string, int64, int64, error)

	// GetAvailableModels returns the configured model keys
	GetAvailableModels() []string

	// GetModelInfo returns information about a specific model
	GetModelInfo(model string) (ModelInfo, error)

	// CalculateCost calculates cost for a given token usage
	CalculateCost(inputTokens, outputTokens int64, model string) float64
}

// ModelInfo represents information about an LLM model
type ModelInfo struct {
	Name            string  `json:"name"`
	Provider        string  `json:"provider"`
	MaxTokens       int     `json:"max_tokens"`
	CostPer1KInput  float64 `json:"cost_per_1k_input"`
	CostPer1KOutput float64 `json:"cost_per_1k_output"`
	Description     string  `json:"description"`
}

// NewProvider creates an LLM provider based on configuration.
// An apiKey override (from request cookies) replaces the configured key
// for the lifetime of the returned provider.
func NewProvider(cfg config.LLMConfig, apiKey string) (Provider, error) {
	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("no LLM providers configured")
	}

	for _, provider := range cfg.Providers {
		switch provider.Type {
		case "openai":
			if apiKey != "" {
				provider.APIKey = apiKey
			}
			return NewOpenAIProvider(provider), nil
		default:
			return nil, fmt.Errorf("unsupported LLM provider type: %s", provider.Type)
		}
	}

	return nil, fmt.Errorf("no valid LLM providers found")
}
