package research

// NotSpecified is the sentinel used when a grant field is absent from the
// source text. The extraction prompt instructs the model to emit it, and
// normalization enforces it for string fields the model left blank.
const NotSpecified = "Not specified"

// NoGrantsMessage is the fixed report text for a run that found nothing.
const NoGrantsMessage = "No grants found that match your criteria."

// Request is the input to one research run
type Request struct {
	Query      string `json:"query"`
	FarmType   string `json:"farmType,omitempty"`
	Location   string `json:"location,omitempty"`
	NumQueries int    `json:"numQueries,omitempty"`
	ModelID    string `json:"modelId,omitempty"`
}

// SerpQuery is one generated web-search query with its research goal
type SerpQuery struct {
	Query string `json:"query"`
	Goal  string `json:"goal"`
}

// GrantRecord is a structured grant extracted from page text. Identity is
// the Name field; records never carry a relevance score at this stage.
type GrantRecord struct {
	Name                    string   `json:"name"`
	Description             string   `json:"description"`
	EligibilityRequirements []string `json:"eligibilityRequirements"`
	ApplicationProcess      []string `json:"applicationProcess"`
	Deadlines               []string `json:"deadlines"`
	FundingAmount           string   `json:"fundingAmount"`
	ContactInfo             string   `json:"contactInfo"`
	ApplicationURL          string   `json:"applicationUrl"`
}

// Extraction is the output of one query's search-then-extract cycle
type Extraction struct {
	Query       SerpQuery
	Grants      []GrantRecord
	VisitedURLs []string
}

// ResearchResult is the aggregate over all per-query extractions: grants
// deduplicated by name, visited URLs deduplicated in first-seen order
type ResearchResult struct {
	Grants      []GrantRecord `json:"grants"`
	VisitedURLs []string      `json:"visitedUrls"`
}

// Opportunity is a grant in the final report, annotated by the synthesis
// model with a 1-10 relevance score and key takeaways
type Opportunity struct {
	GrantRecord
	RelevanceScore int      `json:"relevanceScore"`
	KeyTakeaways   []string `json:"keyTakeaways"`
}

// NextStep is one recommended action in the final report
type NextStep struct {
	Action      string `json:"action"`
	Priority    string `json:"priority"` // High, Medium or Low
	Explanation string `json:"explanation"`
}

// ApplicationTemplate is a drafted application document for one grant
type ApplicationTemplate struct {
	GrantName string   `json:"grantName"`
	Markdown  string   `json:"markdown"`
	Tips      []string `json:"tips,omitempty"`
}

// Report is the final output of a research run
type Report struct {
	ExecutiveSummary    string                `json:"executiveSummary"`
	Opportunities       []Opportunity         `json:"opportunities,omitempty"`
	EligibilityAnalysis string                `json:"eligibilityAnalysis,omitempty"`
	NextSteps           []NextStep            `json:"nextSteps,omitempty"`
	Templates           []ApplicationTemplate `json:"templates,omitempty"`
	Sources             []string              `json:"sources,omitempty"`
}
