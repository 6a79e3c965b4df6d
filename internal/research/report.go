package research

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/harvestlabs/grantscout/internal/llm"
)

// Synthesizer produces the final report: application templates for the top
// grants generated concurrently, then one structured-output model call for
// the report body. Template failures degrade to a report without that
// template; a failed report call is terminal for the run.
type Synthesizer struct {
	provider       llm.Provider
	model          string
	templateModel  string
	templateGrants int
	logger         *log.Logger
}

func NewSynthesizer(provider llm.Provider, model, templateModel string, templateGrants int, logger *log.Logger) *Synthesizer {
	if templateModel == "" {
		templateModel = model
	}
	if templateGrants < 0 {
		templateGrants = 0
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[REPORT] ", log.LstdFlags)
	}
	return &Synthesizer{
		provider:       provider,
		model:          model,
		templateModel:  templateModel,
		templateGrants: templateGrants,
		logger:         logger,
	}
}

// Synthesize builds the final report from the aggregated research result.
// The caller guarantees result.Grants is non-empty.
func (s *Synthesizer) Synthesize(ctx context.Context, req Request, result ResearchResult, emit ProgressEmitter) (Report, error) {
	emit.Progress(fmt.Sprintf("Generating report for %d grants...", len(result.Grants)))

	templates := s.generateTemplates(ctx, req, result.Grants)

	var b strings.Builder
	b.WriteString("You are writing a grant research report for a farmer.\n\n")
	b.WriteString("Farm description: " + req.Query + "\n")
	if req.FarmType != "" {
		b.WriteString("Farm type: " + req.FarmType + "\n")
	}
	if req.Location != "" {
		b.WriteString("Location: " + req.Location + "\n")
	}
	b.WriteString("\nThe grants below were found by web research:\n\n")
	for i, g := range result.Grants {
		fmt.Fprintf(&b, "%d. %s\n", i+1, g.Name)
		fmt.Fprintf(&b, "   Description: %s\n", g.Description)
		fmt.Fprintf(&b, "   Eligibility: %s\n", strings.Join(g.EligibilityRequirements, "; "))
		fmt.Fprintf(&b, "   Deadlines: %s\n", strings.Join(g.Deadlines, "; "))
		fmt.Fprintf(&b, "   Funding: %s\n\n", g.FundingAmount)
	}
	b.WriteString("Write a report assessing these grants for this specific farm. ")
	b.WriteString("Score each grant's relevance from 1 to 10. ")
	b.WriteString("Give every next step exactly one priority of High, Medium or Low.\n\n")
	b.WriteString("Respond ONLY with valid JSON in this exact format:\n")
	b.WriteString(`{"executiveSummary": "", "opportunities": [{"name": "", "relevanceScore": 1, "keyTakeaways": [""]}], "eligibilityAnalysis": "", "nextSteps": [{"action": "", "priority": "High", "explanation": ""}]}`)

	raw, err := s.provider.Generate(ctx, b.String(), s.model, map[string]interface{}{"json_mode": true})
	if err != nil {
		return Report{}, fmt.Errorf("report synthesis: %w", err)
	}

	var out struct {
		ExecutiveSummary string `json:"executiveSummary"`
		Opportunities    []struct {
			Name           string   `json:"name"`
			RelevanceScore int      `json:"relevanceScore"`
			KeyTakeaways   []string `json:"keyTakeaways"`
		} `json:"opportunities"`
		EligibilityAnalysis string     `json:"eligibilityAnalysis"`
		NextSteps           []NextStep `json:"nextSteps"`
	}
	if err := json.Unmarshal([]byte(llm.StripJSONFence(raw)), &out); err != nil {
		return Report{}, fmt.Errorf("report synthesis: invalid model response: %w", err)
	}

	scored := make(map[string]struct {
		score     int
		takeaways []string
	}, len(out.Opportunities))
	for _, o := range out.Opportunities {
		scored[o.Name] = struct {
			score     int
			takeaways []string
		}{clampScore(o.RelevanceScore), o.KeyTakeaways}
	}

	opportunities := make([]Opportunity, 0, len(result.Grants))
	for _, g := range result.Grants {
		opp := Opportunity{GrantRecord: g, RelevanceScore: 1}
		if sc, ok := scored[g.Name]; ok {
			opp.RelevanceScore = sc.score
			opp.KeyTakeaways = sc.takeaways
		}
		opportunities = append(opportunities, opp)
	}
	sort.SliceStable(opportunities, func(i, j int) bool {
		if opportunities[i].RelevanceScore != opportunities[j].RelevanceScore {
			return opportunities[i].RelevanceScore > opportunities[j].RelevanceScore
		}
		return opportunities[i].Name < opportunities[j].Name
	})

	steps := make([]NextStep, 0, len(out.NextSteps))
	for _, st := range out.NextSteps {
		st.Priority = normalizePriority(st.Priority)
		steps = append(steps, st)
	}

	return Report{
		ExecutiveSummary:    out.ExecutiveSummary,
		Opportunities:       opportunities,
		EligibilityAnalysis: out.EligibilityAnalysis,
		NextSteps:           steps,
		Templates:           templates,
		// sources come from the research result, never from the model
		Sources: result.VisitedURLs,
	}, nil
}

// generateTemplates drafts application templates for the first
// templateGrants grants concurrently. Failures are logged and skipped.
func (s *Synthesizer) generateTemplates(ctx context.Context, req Request, grants []GrantRecord) []ApplicationTemplate {
	n := s.templateGrants
	if n > len(grants) {
		n = len(grants)
	}
	if n == 0 {
		return nil
	}

	results := make([]*ApplicationTemplate, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		grant := grants[i]
		g.Go(func() error {
			tpl, err := s.generateTemplate(ctx, req, grant)
			if err != nil {
				s.logger.Printf("template generation failed for %q: %v", grant.Name, err)
				return nil
			}
			results[i] = &tpl
			return nil
		})
	}
	_ = g.Wait()

	var templates []ApplicationTemplate
	for _, t := range results {
		if t != nil {
			templates = append(templates, *t)
		}
	}
	return templates
}

func (s *Synthesizer) generateTemplate(ctx context.Context, req Request, grant GrantRecord) (ApplicationTemplate, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Draft a grant application template for %q on behalf of this farm:\n\n", grant.Name)
	b.WriteString(req.Query + "\n")
	if req.FarmType != "" {
		b.WriteString("Farm type: " + req.FarmType + "\n")
	}
	if req.Location != "" {
		b.WriteString("Location: " + req.Location + "\n")
	}
	fmt.Fprintf(&b, "\nGrant description: %s\nEligibility: %s\n\n", grant.Description, strings.Join(grant.EligibilityRequirements, "; "))
	b.WriteString("The template is a markdown document with these sections: Project Summary, Background, Project Description, Budget Justification, Expected Outcomes, Timeline. ")
	b.WriteString("Also give a short list of application tips.\n\n")
	b.WriteString("Respond ONLY with valid JSON in this exact format:\n")
	b.WriteString(`{"markdown": "", "tips": [""]}`)

	raw, err := s.provider.Generate(ctx, b.String(), s.templateModel, map[string]interface{}{"json_mode": true})
	if err != nil {
		return ApplicationTemplate{}, err
	}
	var out struct {
		Markdown string   `json:"markdown"`
		Tips     []string `json:"tips"`
	}
	if err := json.Unmarshal([]byte(llm.StripJSONFence(raw)), &out); err != nil {
		return ApplicationTemplate{}, fmt.Errorf("invalid model response: %w", err)
	}
	return ApplicationTemplate{GrantName: grant.Name, Markdown: out.Markdown, Tips: out.Tips}, nil
}

func clampScore(score int) int {
	if score < 1 {
		return 1
	}
	if score > 10 {
		return 10
	}
	return score
}

func normalizePriority(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "high":
		return "High"
	case "low":
		return "Low"
	default:
		return "Medium"
	}
}

// RenderMarkdown renders a report as a markdown document. The Sources
// section is built by concatenation from the report's source list so it can
// never be hallucinated or dropped.
func RenderMarkdown(r Report) string {
	var b strings.Builder
	b.WriteString("# Grant Research Report\n\n")
	b.WriteString(r.ExecutiveSummary + "\n")

	if len(r.Opportunities) > 0 {
		b.WriteString("\n## Grant Opportunities\n")
		for _, o := range r.Opportunities {
			fmt.Fprintf(&b, "\n### %s (relevance %d/10)\n\n", o.Name, o.RelevanceScore)
			b.WriteString(o.Description + "\n\n")
			fmt.Fprintf(&b, "- **Funding:** %s\n", o.FundingAmount)
			fmt.Fprintf(&b, "- **Deadlines:** %s\n", strings.Join(o.Deadlines, "; "))
			fmt.Fprintf(&b, "- **Eligibility:** %s\n", strings.Join(o.EligibilityRequirements, "; "))
			fmt.Fprintf(&b, "- **Apply:** %s\n", o.ApplicationURL)
			for _, t := range o.KeyTakeaways {
				fmt.Fprintf(&b, "- %s\n", t)
			}
		}
	}

	if r.EligibilityAnalysis != "" {
		b.WriteString("\n## Eligibility Analysis\n\n")
		b.WriteString(r.EligibilityAnalysis + "\n")
	}

	if len(r.NextSteps) > 0 {
		b.WriteString("\n## Next Steps\n\n")
		for _, s := range r.NextSteps {
			fmt.Fprintf(&b, "1. **[%s]** %s: %s\n", s.Priority, s.Action, s.Explanation)
		}
	}

	for _, t := range r.Templates {
		fmt.Fprintf(&b, "\n## Application Template: %s\n\n", t.GrantName)
		b.WriteString(t.Markdown + "\n")
		if len(t.Tips) > 0 {
			b.WriteString("\nApplication tips:\n")
			for _, tip := range t.Tips {
				fmt.Fprintf(&b, "- %s\n", tip)
			}
		}
	}

	b.WriteString("\n## Sources\n\n")
	for _, u := range r.Sources {
		b.WriteString("- " + u + "\n")
	}
	return b.String()
}
