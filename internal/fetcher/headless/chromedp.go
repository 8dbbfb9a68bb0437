// Package headless contains a fetch collaborator that executes JavaScript
// via headless Chrome before extraction.
package headless

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/mightytools/sitecrawler/internal/crawl"
)

// Config controls the behavior of the headless fetcher.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
}

// Fetcher implements crawl.Fetcher using chromedp.
type Fetcher struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
}

// New creates a headless fetcher backed by chromedp.
func New(cfg Config) *Fetcher {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Fetcher{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}
}

// Close cancels the allocator context.
func (f *Fetcher) Close() {
	f.allocCancel()
}

const (
	extractLinksJS = `[...document.querySelectorAll('a[href]')]
		.map(a => ({text: a.textContent.trim(), url: a.getAttribute('href')}))`
	extractImagesJS = `[...document.querySelectorAll('img[src]')]
		.map(i => ({src: i.getAttribute('src'), alt: i.alt || ''}))`
	extractTextJS = `document.body ? document.body.innerText.trim() : ''`
)

// Fetch renders the page and extracts the same shape the plain HTTP
// collaborator produces. A 429 navigation response surfaces as
// crawl.ErrRateLimited.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (crawl.Page, error) {
	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, f.cfg.NavigationTimeout)
	defer cancel()

	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	status := trackStatus(taskCtx)

	var page crawl.Page
	tasks := chromedp.Tasks{
		network.Enable(),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.Evaluate(extractTextJS, &page.Content),
		chromedp.Evaluate(extractLinksJS, &page.Links),
		chromedp.Evaluate(extractImagesJS, &page.Images),
	}

	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return crawl.Page{}, fmt.Errorf("headless fetch %s: %w", pageURL, err)
	}
	if code := status.code(); code == http.StatusTooManyRequests {
		return crawl.Page{}, fmt.Errorf("%s: %w", pageURL, crawl.ErrRateLimited)
	}
	return page, nil
}
