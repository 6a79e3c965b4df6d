// Package index maintains a keyword index over archived grants so users
// can search past reports by program name or description.
package index

import (
	"fmt"

	"github.com/blevesearch/bleve"

	"github.com/harvestlabs/grantscout/internal/research"
)

// GrantDoc is the indexed shape of one archived grant
type GrantDoc struct {
	ReportID    string `json:"report_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Funding     string `json:"funding"`
}

// Hit is one search result
type Hit struct {
	ReportID string  `json:"report_id"`
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
}

// Index wraps a bleve index over archived grants
type Index struct {
	bleve bleve.Index
}

// NewMemIndex creates an in-memory index
func NewMemIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("bleve index: %w", err)
	}
	return &Index{bleve: idx}, nil
}

// Open opens or creates a persistent index at path
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, bleve.NewIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("bleve index: %w", err)
	}
	return &Index{bleve: idx}, nil
}

// IndexReport indexes every grant of an archived report
func (i *Index) IndexReport(reportID string, report research.Report) error {
	for _, opp := range report.Opportunities {
		doc := GrantDoc{
			ReportID:    reportID,
			Name:        opp.Name,
			Description: opp.Description,
			Funding:     opp.FundingAmount,
		}
		id := reportID + "/" + opp.Name
		if err := i.bleve.Index(id, doc); err != nil {
			return fmt.Errorf("index grant %q: %w", opp.Name, err)
		}
	}
	return nil
}

// Search runs a BM25 keyword search over indexed grants. Hit fields are
// read back from the stored documents, so results survive closing and
// reopening a persistent index.
func (i *Index) Search(q string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 10
	}
	query := bleve.NewQueryStringQuery(q)
	searchReq := bleve.NewSearchRequestOptions(query, k, 0, false)
	searchReq.Fields = []string{"report_id", "name"}
	res, err := i.bleve.Search(searchReq)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		reportID, _ := h.Fields["report_id"].(string)
		name, _ := h.Fields["name"].(string)
		hits = append(hits, Hit{ReportID: reportID, Name: name, Score: h.Score})
	}
	return hits, nil
}

// Close releases the underlying index
func (i *Index) Close() error { return i.bleve.Close() }
