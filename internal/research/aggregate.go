package research

// Aggregate folds per-query extractions into one ResearchResult. Grants are
// keyed by name in first-appearance order; when two extractions return the
// same name the later record replaces the earlier one (last-seen wins).
// Visited URLs are deduplicated preserving first-appearance order.
func Aggregate(extractions []Extraction) ResearchResult {
	byName := make(map[string]int)
	var grants []GrantRecord

	seenURL := make(map[string]struct{})
	var urls []string

	for _, ext := range extractions {
		for _, g := range ext.Grants {
			if i, ok := byName[g.Name]; ok {
				grants[i] = g
				continue
			}
			byName[g.Name] = len(grants)
			grants = append(grants, g)
		}
		for _, u := range ext.VisitedURLs {
			if _, ok := seenURL[u]; ok {
				continue
			}
			seenURL[u] = struct{}{}
			urls = append(urls, u)
		}
	}

	return ResearchResult{Grants: grants, VisitedURLs: urls}
}
