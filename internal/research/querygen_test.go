package research

import (
	"context"
	"fmt"
	"testing"
)

func TestGenerateCapsQueries(t *testing.T) {
	provider := &stubLLM{generate: func(ctx context.Context, prompt, model string) (string, error) {
		return `{"queries":[
			{"query":"q1","goal":"g1"},
			{"query":"q2","goal":"g2"},
			{"query":"q3","goal":"g3"},
			{"query":"q4","goal":"g4"},
			{"query":"q5","goal":"g5"},
			{"query":"q6","goal":"g6"},
			{"query":"q7","goal":"g7"}
		]}`, nil
	}}
	g := NewQueryGenerator(provider, "fast", nil)

	emit := &recordEmitter{}
	queries, err := g.Generate(context.Background(), Request{Query: "dairy farm"}, 3, emit)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(queries) != 3 {
		t.Fatalf("expected 3 queries even when model returns more, got %d", len(queries))
	}
	if !emit.contains("Generating up to 3 search queries") {
		t.Fatalf("expected progress before the model call: %v", emit.messages)
	}
	if !emit.contains("q1") {
		t.Fatalf("expected generated query text in progress: %v", emit.messages)
	}
}

func TestGenerateSkipsBlankQueries(t *testing.T) {
	provider := &stubLLM{generate: func(ctx context.Context, prompt, model string) (string, error) {
		return `{"queries":[{"query":"  ","goal":"g"},{"query":"real","goal":"g"}]}`, nil
	}}
	g := NewQueryGenerator(provider, "fast", nil)
	queries, err := g.Generate(context.Background(), Request{Query: "farm"}, 5, &recordEmitter{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(queries) != 1 || queries[0].Query != "real" {
		t.Fatalf("blank queries must be skipped: %+v", queries)
	}
}

func TestGenerateFailurePropagates(t *testing.T) {
	provider := &stubLLM{generate: func(ctx context.Context, prompt, model string) (string, error) {
		return "", fmt.Errorf("model down")
	}}
	g := NewQueryGenerator(provider, "fast", nil)
	if _, err := g.Generate(context.Background(), Request{Query: "farm"}, 5, &recordEmitter{}); err == nil {
		t.Fatalf("expected model failure to propagate")
	}
}

func TestGenerateInvalidJSON(t *testing.T) {
	provider := &stubLLM{generate: func(ctx context.Context, prompt, model string) (string, error) {
		return "not json", nil
	}}
	g := NewQueryGenerator(provider, "fast", nil)
	if _, err := g.Generate(context.Background(), Request{Query: "farm"}, 5, &recordEmitter{}); err == nil {
		t.Fatalf("expected error for unparseable model response")
	}
}
