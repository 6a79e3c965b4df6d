package research

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/harvestlabs/grantscout/config"
	"github.com/harvestlabs/grantscout/internal/llm"
	"github.com/harvestlabs/grantscout/internal/search"
	"github.com/harvestlabs/grantscout/internal/telemetry"
)

// Engine runs the research pipeline for one request: query generation,
// sequential search-then-extract per query, aggregation, then synthesis.
// Per-query failures are tolerated; query generation and synthesis
// failures are terminal.
type Engine struct {
	cfg       *config.Config
	provider  llm.Provider
	searcher  search.Provider
	queryGen  *QueryGenerator
	extractor *Extractor
	synth     *Synthesizer
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

func NewEngine(cfg *config.Config, provider llm.Provider, searcher search.Provider, fetcher PageFetcher, tel *telemetry.Telemetry, logger *log.Logger, modelID string) *Engine {
	if logger == nil {
		logger = log.New(log.Writer(), "[ENGINE] ", log.LstdFlags)
	}
	if tel != nil {
		provider = meteredProvider{Provider: provider, tel: tel}
	}
	routing := cfg.LLM.Routing
	model := func(stage string) string {
		if modelID != "" {
			return modelID
		}
		return routing.ModelFor(stage)
	}
	return &Engine{
		cfg:      cfg,
		provider: provider,
		searcher: searcher,
		queryGen: NewQueryGenerator(provider, model("query_gen"), logger),
		extractor: NewExtractor(provider, model("extraction"),
			cfg.Research.MaxContentLength, cfg.Research.ExtractionTimeout, fetcher, logger),
		synth: NewSynthesizer(provider, model("synthesis"), model("templates"),
			cfg.Research.TemplateGrants, logger),
		telemetry: tel,
		logger:    logger,
	}
}

// Run executes the pipeline to completion. Progress messages are pushed to
// emit as they occur, never buffered. The returned report carries the fixed
// no-grants message when nothing was found; synthesis is skipped entirely
// in that case.
func (e *Engine) Run(ctx context.Context, req Request, emit ProgressEmitter) (Report, error) {
	if strings.TrimSpace(req.Query) == "" {
		return Report{}, fmt.Errorf("farm description is required")
	}
	numQueries := req.NumQueries
	if numQueries <= 0 {
		numQueries = e.cfg.Research.DefaultNumQueries
	}

	start := time.Now()
	queries, err := e.queryGen.Generate(ctx, req, numQueries, emit)
	if err != nil {
		e.recordOutcome("error")
		return Report{}, err
	}
	e.recordStage("query_gen", start)

	var extractions []Extraction
	for _, q := range queries {
		emit.Progress(fmt.Sprintf("Searching: \"%s\"", q.Query))

		searchStart := time.Now()
		pages, err := e.searcher.Search(ctx, q.Query, e.cfg.Search.MaxResults)
		e.recordStage("search", searchStart)
		if err != nil {
			e.logger.Printf("search failed for %q: %v", q.Query, err)
			emit.Progress(fmt.Sprintf("Search failed for \"%s\": %v. Continuing with remaining queries.", q.Query, err))
			continue
		}
		emit.Progress(fmt.Sprintf("Found %d results for \"%s\"", len(pages), q.Query))

		extractStart := time.Now()
		ext, err := e.extractor.Extract(ctx, q, pages, emit)
		e.recordStage("extract", extractStart)
		if err != nil {
			e.logger.Printf("extraction failed for %q: %v", q.Query, err)
			emit.Progress(fmt.Sprintf("Could not analyze results for \"%s\": %v. Continuing with remaining queries.", q.Query, err))
			// keep the URLs the failed extraction already visited
			extractions = append(extractions, Extraction{Query: q, VisitedURLs: ext.VisitedURLs})
			continue
		}
		extractions = append(extractions, ext)
	}

	result := Aggregate(extractions)
	if e.telemetry != nil {
		e.telemetry.RecordGrants(len(result.Grants))
	}

	if len(result.Grants) == 0 {
		emit.Progress(NoGrantsMessage)
		e.recordOutcome("no_grants")
		return Report{ExecutiveSummary: NoGrantsMessage, Sources: result.VisitedURLs}, nil
	}

	synthStart := time.Now()
	report, err := e.synth.Synthesize(ctx, req, result, emit)
	e.recordStage("synthesize", synthStart)
	if err != nil {
		e.recordOutcome("error")
		return Report{}, err
	}
	e.recordOutcome("done")
	e.logger.Printf("research run finished: %d grants, %d sources, %s elapsed",
		len(result.Grants), len(result.VisitedURLs), time.Since(start).Round(time.Millisecond))
	return report, nil
}

// meteredProvider records token usage and spend for every model call
type meteredProvider struct {
	llm.Provider
	tel *telemetry.Telemetry
}

func (m meteredProvider) Generate(ctx context.Context, prompt string, model string, options map[string]interface{}) (string, error) {
	out, inTok, outTok, err := m.Provider.GenerateWithTokens(ctx, prompt, model, options)
	if err != nil {
		return "", err
	}
	m.tel.RecordLLMUsage(model, inTok, outTok, m.Provider.CalculateCost(inTok, outTok, model))
	return out, nil
}

func (e *Engine) recordStage(stage string, start time.Time) {
	if e.telemetry != nil {
		e.telemetry.RecordStage(stage, time.Since(start).Seconds())
	}
}

func (e *Engine) recordOutcome(outcome string) {
	if e.telemetry != nil {
		e.telemetry.RecordRequest(outcome)
	}
}
