package research

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/harvestlabs/grantscout/internal/fetch"
	"github.com/harvestlabs/grantscout/internal/llm"
	"github.com/harvestlabs/grantscout/internal/search"
)

// elisionMarker joins the retained prefix and suffix of clipped content
const elisionMarker = "\n\n[...content omitted...]\n\n"

// PageFetcher backfills page text for search hits that came back link-only
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (fetch.Result, error)
}

// Extractor pulls structured grant records out of retrieved page text with
// one structured-output model call per query.
type Extractor struct {
	provider         llm.Provider
	model            string
	maxContentLength int
	timeout          time.Duration
	fetcher          PageFetcher // nil disables the fallback fetch
	logger           *log.Logger
}

func NewExtractor(provider llm.Provider, model string, maxContentLength int, timeout time.Duration, fetcher PageFetcher, logger *log.Logger) *Extractor {
	if maxContentLength <= 0 {
		maxContentLength = 25000
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[EXTRACT] ", log.LstdFlags)
	}
	return &Extractor{
		provider:         provider,
		model:            model,
		maxContentLength: maxContentLength,
		timeout:          timeout,
		fetcher:          fetcher,
		logger:           logger,
	}
}

// Extract returns the grants found in the pages retrieved for one query,
// plus every page URL regardless of whether a grant was found on it. When
// no page has usable text the model is never called.
func (e *Extractor) Extract(ctx context.Context, q SerpQuery, pages []search.PageResult, emit ProgressEmitter) (Extraction, error) {
	ext := Extraction{Query: q}
	for _, p := range pages {
		if p.URL != "" {
			ext.VisitedURLs = append(ext.VisitedURLs, p.URL)
		}
	}

	type pageContent struct {
		url  string
		text string
	}
	var contents []pageContent
	for _, p := range pages {
		text := strings.TrimSpace(p.Markdown)
		if text == "" && e.fetcher != nil && p.URL != "" {
			res, err := e.fetcher.Fetch(ctx, p.URL)
			if err != nil {
				e.logger.Printf("fallback fetch failed for %s: %v", p.URL, err)
			} else {
				text = strings.TrimSpace(res.Text)
			}
		}
		if text == "" {
			continue
		}
		contents = append(contents, pageContent{url: p.URL, text: clipContentWindow(text, e.maxContentLength)})
	}

	if len(contents) == 0 {
		emit.Progress(fmt.Sprintf("No page content retrieved for \"%s\", skipping extraction", q.Query))
		return ext, nil
	}

	emit.Progress(fmt.Sprintf("Analyzing %d pages of content for \"%s\"...", len(contents), q.Query))

	var b strings.Builder
	b.WriteString("You are extracting agricultural grant and funding opportunities from web page content.\n\n")
	fmt.Fprintf(&b, "The pages below were found for the search query %q (goal: %s).\n\n", q.Query, q.Goal)
	for i, c := range contents {
		fmt.Fprintf(&b, "--- Page %d (source: %s) ---\n%s\n\n", i+1, c.url, c.text)
	}
	b.WriteString("Extract every distinct grant, loan or funding program mentioned in the pages. ")
	b.WriteString("For each one fill every field from the source text; when a field is absent use the exact string \"Not specified\". ")
	b.WriteString("Do not invent programs that are not in the text. If no programs appear, return an empty list.\n\n")
	b.WriteString("Respond ONLY with valid JSON in this exact format:\n")
	b.WriteString(`{"grants": [{"name": "", "description": "", "eligibilityRequirements": [""], "applicationProcess": [""], "deadlines": [""], "fundingAmount": "", "contactInfo": "", "applicationUrl": ""}]}`)

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	raw, err := e.provider.Generate(callCtx, b.String(), e.model, map[string]interface{}{"json_mode": true})
	if err != nil {
		return ext, fmt.Errorf("grant extraction for %q: %w", q.Query, err)
	}

	var out struct {
		Grants []GrantRecord `json:"grants"`
	}
	if err := json.Unmarshal([]byte(llm.StripJSONFence(raw)), &out); err != nil {
		return ext, fmt.Errorf("grant extraction for %q: invalid model response: %w", q.Query, err)
	}

	for _, g := range out.Grants {
		if strings.TrimSpace(g.Name) == "" {
			continue
		}
		ext.Grants = append(ext.Grants, normalizeGrant(g))
	}

	emit.Progress(fmt.Sprintf("Extracted %d grant(s) from results for \"%s\"", len(ext.Grants), q.Query))
	return ext, nil
}

// clipContentWindow truncates content over budget to a prefix and suffix
// window joined by the elision marker, keeping at most budget bytes of the
// original text. Cut points back off to rune boundaries so multibyte text
// never reaches the prompt as invalid UTF-8. Content at or under budget
// passes through unchanged.
func clipContentWindow(s string, budget int) string {
	if len(s) <= budget {
		return s
	}
	head := budget / 2
	for head > 0 && !utf8.RuneStart(s[head]) {
		head--
	}
	cut := len(s) - (budget - budget/2)
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return s[:head] + elisionMarker + s[cut:]
}

func normalizeGrant(g GrantRecord) GrantRecord {
	if strings.TrimSpace(g.Description) == "" {
		g.Description = NotSpecified
	}
	if strings.TrimSpace(g.FundingAmount) == "" {
		g.FundingAmount = NotSpecified
	}
	if strings.TrimSpace(g.ContactInfo) == "" {
		g.ContactInfo = NotSpecified
	}
	if strings.TrimSpace(g.ApplicationURL) == "" {
		g.ApplicationURL = NotSpecified
	}
	if len(g.EligibilityRequirements) == 0 {
		g.EligibilityRequirements = []string{NotSpecified}
	}
	if len(g.ApplicationProcess) == 0 {
		g.ApplicationProcess = []string{NotSpecified}
	}
	if len(g.Deadlines) == 0 {
		g.Deadlines = []string{NotSpecified}
	}
	return g
}
