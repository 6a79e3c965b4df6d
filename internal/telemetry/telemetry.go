// Package telemetry tracks pipeline metrics and LLM spend. Counters are
// exported through prometheus and scraped from /metrics.
package telemetry

import (
	"log"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/harvestlabs/grantscout/config"
)

// Telemetry provides monitoring and cost tracking for research runs
type Telemetry struct {
	config config.TelemetryConfig
	logger *log.Logger

	requestsTotal  *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec
	grantsFound    prometheus.Counter
	llmTokensTotal *prometheus.CounterVec

	mu          sync.RWMutex
	totalCost   float64
	totalTokens int64
	modelCosts  map[string]float64
}

// NewTelemetry creates a telemetry instance and registers its collectors
func NewTelemetry(cfg config.TelemetryConfig, reg prometheus.Registerer) *Telemetry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	t := &Telemetry{
		config:     cfg,
		logger:     log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		modelCosts: make(map[string]float64),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grantscout_research_requests_total",
			Help: "Research requests by outcome.",
		}, []string{"outcome"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grantscout_stage_duration_seconds",
			Help:    "Duration of pipeline stages.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"stage"}),
		grantsFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grantscout_grants_extracted_total",
			Help: "Grant records extracted across all runs.",
		}),
		llmTokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grantscout_llm_tokens_total",
			Help: "LLM tokens consumed by model and direction.",
		}, []string{"model", "direction"}),
	}
	if cfg.Enabled {
		reg.MustRegister(t.requestsTotal, t.stageDuration, t.grantsFound, t.llmTokensTotal)
	}
	return t
}

// RecordRequest records the terminal outcome of one research run
func (t *Telemetry) RecordRequest(outcome string) {
	if !t.config.Enabled {
		return
	}
	t.requestsTotal.WithLabelValues(outcome).Inc()
}

// RecordStage records the wall-clock duration of one pipeline stage
func (t *Telemetry) RecordStage(stage string, seconds float64) {
	if !t.config.Enabled {
		return
	}
	t.stageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordGrants records how many grant records a run extracted
func (t *Telemetry) RecordGrants(n int) {
	if !t.config.Enabled || n <= 0 {
		return
	}
	t.grantsFound.Add(float64(n))
}

// RecordLLMUsage records token usage and cost for one model call
func (t *Telemetry) RecordLLMUsage(model string, inputTokens, outputTokens int64, cost float64) {
	if !t.config.Enabled {
		return
	}
	t.llmTokensTotal.WithLabelValues(model, "input").Add(float64(inputTokens))
	t.llmTokensTotal.WithLabelValues(model, "output").Add(float64(outputTokens))

	if !t.config.CostTracking {
		return
	}
	t.mu.Lock()
	t.totalCost += cost
	t.totalTokens += inputTokens + outputTokens
	t.modelCosts[model] += cost
	t.mu.Unlock()
}

// CostSummary is a snapshot of accumulated LLM spend
type CostSummary struct {
	TotalCost   float64            `json:"total_cost"`
	TotalTokens int64              `json:"total_tokens"`
	ModelCosts  map[string]float64 `json:"model_costs"`
}

// GetCostSummary returns accumulated spend since process start
func (t *Telemetry) GetCostSummary() CostSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()
	models := make(map[string]float64, len(t.modelCosts))
	for k, v := range t.modelCosts {
		models[k] = v
	}
	return CostSummary{TotalCost: t.totalCost, TotalTokens: t.totalTokens, ModelCosts: models}
}
