package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harvestlabs/grantscout/config"
)

func TestFirecrawlSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer fc-key" {
			t.Errorf("unexpected auth header: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":[
			{"url":"https://a.example","title":"A","markdown":"# A page"},
			{"url":"https://b.example","title":"B","description":"snippet only"}
		]}`))
	}))
	defer srv.Close()

	c := &FirecrawlClient{apiKey: "fc-key", baseURL: srv.URL, http: NewHTTPClient(2*time.Second, 0, time.Millisecond)}
	results, err := c.Search(context.Background(), "cattle grants", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Markdown != "# A page" {
		t.Fatalf("expected scraped markdown, got %q", results[0].Markdown)
	}
	if results[1].Markdown != "" {
		t.Fatalf("expected empty markdown for second hit")
	}
}

func TestFirecrawlSearchAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":"quota exceeded"}`))
	}))
	defer srv.Close()

	c := &FirecrawlClient{apiKey: "k", baseURL: srv.URL, http: NewHTTPClient(2*time.Second, 0, time.Millisecond)}
	if _, err := c.Search(context.Background(), "q", 5); err == nil {
		t.Fatalf("expected error when success=false")
	}
}

func TestSerperSearchLimits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-KEY"); got != "sp-key" {
			t.Errorf("unexpected api key header: %q", got)
		}
		w.Write([]byte(`{"organic":[
			{"title":"1","link":"https://1.example","snippet":"s1"},
			{"title":"2","link":"https://2.example","snippet":"s2"},
			{"title":"3","link":"https://3.example","snippet":"s3"}
		]}`))
	}))
	defer srv.Close()

	c := &SerperClient{apiKey: "sp-key", http: NewHTTPClient(2*time.Second, 0, time.Millisecond)}
	// patch URL not possible; serper endpoint is fixed, so exercise parsing via httptest
	// by calling DoJSON the way Search does
	var resp struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := c.http.DoJSON(context.Background(), "POST", srv.URL, map[string]string{"X-API-KEY": c.apiKey}, map[string]interface{}{"q": "q", "num": 2}, &resp); err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
	if len(resp.Organic) != 3 {
		t.Fatalf("expected 3 organic hits, got %d", len(resp.Organic))
	}
}

func TestHTTPClientRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(2*time.Second, 2, time.Millisecond)
	var out struct {
		OK bool `json:"ok"`
	}
	if err := c.DoJSON(context.Background(), "GET", srv.URL, nil, nil, &out); err != nil {
		t.Fatalf("DoJSON: %v", err)
	}
	if !out.OK {
		t.Fatalf("expected ok response after retries")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestHTTPClientExhaustsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewHTTPClient(2*time.Second, 1, time.Millisecond)
	err := c.DoJSON(context.Background(), "GET", srv.URL, nil, nil, nil)
	if err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("unexpected deadline error: %v", err)
	}
}

func TestNewProviderValidation(t *testing.T) {
	if _, err := NewProvider(config.SearchConfig{Provider: "firecrawl"}, ""); err == nil {
		t.Fatalf("expected error for missing firecrawl key")
	}
	if _, err := NewProvider(config.SearchConfig{Provider: "firecrawl"}, "cookie-key"); err != nil {
		t.Fatalf("cookie key should satisfy provider construction: %v", err)
	}
	if _, err := NewProvider(config.SearchConfig{Provider: "bing"}, "k"); err == nil {
		t.Fatalf("expected error for unsupported provider")
	}
}
