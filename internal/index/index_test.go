package index

import (
	"path/filepath"
	"testing"

	"github.com/harvestlabs/grantscout/internal/research"
)

func TestIndexAndSearch(t *testing.T) {
	idx, err := NewMemIndex()
	if err != nil {
		t.Fatalf("NewMemIndex: %v", err)
	}
	defer idx.Close()

	report := research.Report{
		Opportunities: []research.Opportunity{
			{GrantRecord: research.GrantRecord{Name: "Organic Certification Cost Share", Description: "Reimburses organic certification costs for producers"}},
			{GrantRecord: research.GrantRecord{Name: "Rural Energy for America Program", Description: "Funds renewable energy systems on farms"}},
		},
	}
	if err := idx.IndexReport("r1", report); err != nil {
		t.Fatalf("IndexReport: %v", err)
	}

	hits, err := idx.Search("organic certification", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatalf("expected at least one hit")
	}
	if hits[0].Name != "Organic Certification Cost Share" {
		t.Fatalf("expected the certification grant first, got %q", hits[0].Name)
	}
	if hits[0].ReportID != "r1" {
		t.Fatalf("hit must carry its report id, got %q", hits[0].ReportID)
	}
}

func TestSearchSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grants.bleve")

	idx, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	report := research.Report{
		Opportunities: []research.Opportunity{
			{GrantRecord: research.GrantRecord{Name: "Organic Certification Cost Share", Description: "Reimburses organic certification costs"}},
		},
	}
	if err := idx.IndexReport("r1", report); err != nil {
		t.Fatalf("IndexReport: %v", err)
	}
	hits, err := idx.Search("organic certification", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit before reopen, got %d", len(hits))
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	idx, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()

	hits, err = idx.Search("organic certification", 5)
	if err != nil {
		t.Fatalf("Search after reopen: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit after reopen, got %d", len(hits))
	}
	if hits[0].ReportID != "r1" || hits[0].Name != "Organic Certification Cost Share" {
		t.Fatalf("hit fields must survive reopen: %+v", hits[0])
	}
}

func TestSearchNoResults(t *testing.T) {
	idx, err := NewMemIndex()
	if err != nil {
		t.Fatalf("NewMemIndex: %v", err)
	}
	defer idx.Close()

	hits, err := idx.Search("anything", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits on empty index, got %d", len(hits))
	}
}
