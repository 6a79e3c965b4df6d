package research

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/harvestlabs/grantscout/internal/llm"
)

// QueryGenerator turns a farm description into web-search queries via one
// structured-output model call. A model failure here is fatal to the run.
type QueryGenerator struct {
	provider llm.Provider
	model    string
	logger   *log.Logger
}

func NewQueryGenerator(provider llm.Provider, model string, logger *log.Logger) *QueryGenerator {
	if logger == nil {
		logger = log.New(log.Writer(), "[QUERYGEN] ", log.LstdFlags)
	}
	return &QueryGenerator{provider: provider, model: model, logger: logger}
}

// Generate returns at most numQueries SerpQueries for the given farm.
// The model is asked for exactly numQueries; anything extra is truncated.
func (g *QueryGenerator) Generate(ctx context.Context, req Request, numQueries int, emit ProgressEmitter) ([]SerpQuery, error) {
	emit.Progress(fmt.Sprintf("Generating up to %d search queries for your farm...", numQueries))

	prompt := g.buildPrompt(req, numQueries)
	raw, err := g.provider.Generate(ctx, prompt, g.model, map[string]interface{}{"json_mode": true})
	if err != nil {
		return nil, fmt.Errorf("query generation: %w", err)
	}

	var out struct {
		Queries []SerpQuery `json:"queries"`
	}
	if err := json.Unmarshal([]byte(llm.StripJSONFence(raw)), &out); err != nil {
		return nil, fmt.Errorf("query generation: invalid model response: %w", err)
	}

	queries := make([]SerpQuery, 0, numQueries)
	for _, q := range out.Queries {
		if strings.TrimSpace(q.Query) == "" {
			continue
		}
		queries = append(queries, q)
		if len(queries) >= numQueries {
			break
		}
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("query generation: model returned no usable queries")
	}

	var lines []string
	for _, q := range queries {
		lines = append(lines, "- "+q.Query)
	}
	emit.Progress(fmt.Sprintf("Created %d search queries:\n%s", len(queries), strings.Join(lines, "\n")))
	g.logger.Printf("generated %d queries for %q", len(queries), req.Query)

	return queries, nil
}

func (g *QueryGenerator) buildPrompt(req Request, numQueries int) string {
	var b strings.Builder
	b.WriteString("You are a research assistant helping a farmer find agricultural grants and funding programs.\n\n")
	b.WriteString("Farm description: " + req.Query + "\n")
	if req.FarmType != "" {
		b.WriteString("Farm type: " + req.FarmType + "\n")
	}
	if req.Location != "" {
		b.WriteString("Location: " + req.Location + "\n")
	}
	fmt.Fprintf(&b, "\nGenerate exactly %d distinct web search queries that would surface grant and funding opportunities relevant to this farm. ", numQueries)
	b.WriteString("Cover federal, state and private programs where applicable. For each query state the research goal it targets.\n\n")
	b.WriteString("Respond ONLY with valid JSON in this exact format:\n")
	b.WriteString(`{"queries": [{"query": "search query text", "goal": "what this query is trying to find"}]}`)
	return b.String()
}
