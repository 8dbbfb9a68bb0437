// Package collyfetcher implements the page-fetch-and-extract collaborator
// using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/mightytools/sitecrawler/internal/crawl"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements crawl.Fetcher with a Colly collector. Each fetch runs on
// a clone of the base collector so callbacks never leak between pages.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.SetRequestTimeout(cfg.Timeout)
	return &Fetcher{cfg: cfg, baseCollector: c}
}

// Fetch executes a single GET and extracts body text, anchors, and images.
// HTTP 429 responses surface as crawl.ErrRateLimited so the scheduler backs
// off and retries instead of marking the page failed.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (crawl.Page, error) {
	if err := ctx.Err(); err != nil {
		return crawl.Page{}, fmt.Errorf("context canceled: %w", err)
	}

	var (
		page     crawl.Page
		fetchErr error
	)

	collector := f.baseCollector.Clone()

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		page.Links = append(page.Links, crawl.Link{
			Text: strings.TrimSpace(e.Text),
			URL:  e.Attr("href"),
		})
	})
	collector.OnHTML("img[src]", func(e *colly.HTMLElement) {
		page.Images = append(page.Images, crawl.Image{
			Src: e.Attr("src"),
			Alt: e.Attr("alt"),
		})
	})
	collector.OnHTML("body", func(e *colly.HTMLElement) {
		page.Content = strings.TrimSpace(e.Text)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode == http.StatusTooManyRequests {
			fetchErr = fmt.Errorf("%s: %w", pageURL, crawl.ErrRateLimited)
			return
		}
		fetchErr = fmt.Errorf("fetch %s: %w", pageURL, err)
	})

	// A synchronous collector surfaces the HTTP error from Visit as well as
	// through OnError; prefer fetchErr so the 429 mapping survives.
	err := collector.Visit(pageURL)
	if fetchErr != nil {
		return crawl.Page{}, fetchErr
	}
	if err != nil {
		return crawl.Page{}, fmt.Errorf("visit %s: %w", pageURL, err)
	}
	return page, nil
}
