// Package fetch renders pages in headless Chrome and extracts readable text.
// It backfills page content for search hits the search provider returned
// link-only, so the extractor still has something to read.
package fetch

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"
)

type Fetcher struct {
	Timeout  time.Duration
	MaxChars int
}

// Result holds the extracted article content of a fetched page
type Result struct {
	URL   string
	Title string
	Text  string
}

func (f Fetcher) Fetch(ctx context.Context, pageURL string) (Result, error) {
	if strings.TrimSpace(pageURL) == "" {
		return Result{}, errors.New("invalid url")
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	html, err := fetchHTML(ctx, pageURL)
	if err != nil {
		return Result{}, err
	}

	article, err := readability.FromReader(strings.NewReader(html), mustParseURL(pageURL))
	if err != nil {
		return Result{}, err
	}
	text := strings.TrimSpace(article.TextContent)
	if f.MaxChars > 0 && len(text) > f.MaxChars {
		text = text[:f.MaxChars]
	}

	return Result{
		URL:   pageURL,
		Title: strings.TrimSpace(article.Title),
		Text:  text,
	}, nil
}

func fetchHTML(ctx context.Context, pageURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent("GrantScout/1.0 (+contact@harvestlabs.dev)"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
