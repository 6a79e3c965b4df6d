package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/harvestlabs/grantscout/config"
)

func testProviderConfig(baseURL string) config.LLMProvider {
	return config.LLMProvider{
		Type:    "openai",
		APIKey:  "test-key",
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
		Models: map[string]config.LLMModel{
			"fast": {
				Name:            "gpt-4o-mini",
				MaxTokens:       4096,
				Temperature:     0.2,
				CostPer1K:       0.00015,
				CostPer1KOutput: 0.0006,
			},
		},
	}
}

func TestGenerateWithTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}],"usage":{"prompt_tokens":10,"completion_tokens":3}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(testProviderConfig(srv.URL))
	out, in, outTok, err := p.GenerateWithTokens(context.Background(), "hi", "fast", nil)
	if err != nil {
		t.Fatalf("GenerateWithTokens: %v", err)
	}
	if out != "hello" {
		t.Fatalf("expected hello, got %q", out)
	}
	if in != 10 || outTok != 3 {
		t.Fatalf("unexpected token counts: %d %d", in, outTok)
	}
}

func TestGenerateUnknownModel(t *testing.T) {
	p := NewOpenAIProvider(testProviderConfig("http://127.0.0.1:0"))
	if _, err := p.Generate(context.Background(), "hi", "nope", nil); err == nil {
		t.Fatalf("expected error for unconfigured model")
	}
}

func TestCalculateCost(t *testing.T) {
	p := NewOpenAIProvider(testProviderConfig(""))
	cost := p.CalculateCost(1000, 1000, "fast")
	want := 0.00015 + 0.0006
	if diff := cost - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("cost = %v, want %v", cost, want)
	}
	if c := p.CalculateCost(1000, 1000, "missing"); c != 0 {
		t.Fatalf("expected zero cost for unknown model, got %v", c)
	}
}

func TestStripJSONFence(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, c := range cases {
		if got := StripJSONFence(c.in); got != c.want {
			t.Fatalf("StripJSONFence(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
