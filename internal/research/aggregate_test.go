package research

import "testing"

func TestAggregateLastSeenWins(t *testing.T) {
	extractions := []Extraction{
		{
			Grants: []GrantRecord{
				{Name: "USDA Value-Added Producer Grant", FundingAmount: "$75,000"},
				{Name: "EQIP", FundingAmount: "$10,000"},
			},
			VisitedURLs: []string{"https://a.example"},
		},
		{
			Grants: []GrantRecord{
				{Name: "USDA Value-Added Producer Grant", FundingAmount: "$250,000"},
			},
			VisitedURLs: []string{"https://b.example"},
		},
	}

	result := Aggregate(extractions)
	if len(result.Grants) != 2 {
		t.Fatalf("expected 2 grants, got %d", len(result.Grants))
	}
	// insertion order preserved, later record's data wins
	if result.Grants[0].Name != "USDA Value-Added Producer Grant" {
		t.Fatalf("first-appearance order not preserved: %+v", result.Grants)
	}
	if result.Grants[0].FundingAmount != "$250,000" {
		t.Fatalf("later duplicate must replace the stored record, got %q", result.Grants[0].FundingAmount)
	}
}

func TestAggregateUniqueNamesAndURLs(t *testing.T) {
	extractions := []Extraction{
		{
			Grants:      []GrantRecord{{Name: "A"}, {Name: "B"}},
			VisitedURLs: []string{"https://1.example", "https://2.example"},
		},
		{
			Grants:      []GrantRecord{{Name: "B"}, {Name: "C"}},
			VisitedURLs: []string{"https://2.example", "https://3.example"},
		},
	}

	result := Aggregate(extractions)

	names := make(map[string]int)
	for _, g := range result.Grants {
		names[g.Name]++
	}
	for n, c := range names {
		if c != 1 {
			t.Fatalf("grant name %q appears %d times", n, c)
		}
	}
	if len(result.Grants) != 3 {
		t.Fatalf("expected 3 distinct grants, got %d", len(result.Grants))
	}

	seen := make(map[string]int)
	allInput := map[string]bool{"https://1.example": true, "https://2.example": true, "https://3.example": true}
	for _, u := range result.VisitedURLs {
		seen[u]++
		if !allInput[u] {
			t.Fatalf("output URL %q not in input union", u)
		}
	}
	for u, c := range seen {
		if c != 1 {
			t.Fatalf("URL %q appears %d times", u, c)
		}
	}
	if len(result.VisitedURLs) != 3 {
		t.Fatalf("expected 3 unique URLs, got %v", result.VisitedURLs)
	}
}

func TestAggregateEmpty(t *testing.T) {
	result := Aggregate(nil)
	if len(result.Grants) != 0 || len(result.VisitedURLs) != 0 {
		t.Fatalf("empty input must produce empty result: %+v", result)
	}
}
