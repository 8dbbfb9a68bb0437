package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mightytools/sitecrawler/internal/crawl"
	"github.com/mightytools/sitecrawler/internal/redact"
	"github.com/mightytools/sitecrawler/internal/scheduler"
	"github.com/mightytools/sitecrawler/internal/store/memory"
)

type stubFetcher struct {
	pages map[string]crawl.Page
	// block, when non-nil, holds every fetch until the channel is closed.
	// started is signalled once per fetch that entered the gate.
	block   chan struct{}
	started chan struct{}
}

func (f *stubFetcher) Fetch(ctx context.Context, rawURL string) (crawl.Page, error) {
	if f.block != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
		select {
		case <-f.block:
		case <-ctx.Done():
			return crawl.Page{}, ctx.Err()
		}
	}
	if page, ok := f.pages[rawURL]; ok {
		return page, nil
	}
	return crawl.Page{Content: "page at " + rawURL}, nil
}

type stubClock struct{ now time.Time }

func (c stubClock) Now() time.Time { return c.now }

type stubSleeper struct{}

func (stubSleeper) Sleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

type fixture struct {
	server   *Server
	sessions *memory.SessionStore
	history  *memory.HistoryStore
	fetcher  *stubFetcher
}

func newFixture(t *testing.T, fetcher *stubFetcher) *fixture {
	t.Helper()
	sessions := memory.NewSessionStore()
	history := memory.NewHistoryStore()
	sched := scheduler.New(
		sessions, history, fetcher,
		redact.New(nil, ""), nil, nil,
		stubClock{now: time.Unix(1700000000, 0).UTC()}, stubSleeper{},
		scheduler.Config{BatchSize: 100}, zap.NewNop(),
	)
	return &fixture{
		server:   NewServer(context.Background(), sched, history, 25, zap.NewNop()),
		sessions: sessions,
		history:  history,
		fetcher:  fetcher,
	}
}

func (f *fixture) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestStartCrawlAccepted(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubFetcher{})
	rec := f.do(t, http.MethodPost, "/v1/crawls", map[string]any{
		"root_url":  "https://x.com",
		"max_pages": 1,
	})

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "x.com", resp["root_key"])
	require.Equal(t, "started", resp["status"])
}

func TestStartCrawlValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubFetcher{})

	rec := f.do(t, http.MethodPost, "/v1/crawls", map[string]any{"max_pages": 5})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/crawls", map[string]any{"root_url": "not a url"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartCrawlConflictWhileRunning(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	f := newFixture(t, fetcher)
	defer close(fetcher.block)

	rec := f.do(t, http.MethodPost, "/v1/crawls", map[string]any{
		"root_url":  "https://x.com",
		"max_pages": 1,
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case <-fetcher.started:
	case <-time.After(5 * time.Second):
		t.Fatal("crawl never started")
	}

	rec = f.do(t, http.MethodPost, "/v1/crawls", map[string]any{
		"root_url":  "https://y.com",
		"max_pages": 1,
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/v1/crawls/batch", map[string]any{
		"urls": []string{"https://y.com/a"},
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestBatchCrawlAccepted(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubFetcher{})
	rec := f.do(t, http.MethodPost, "/v1/crawls/batch", map[string]any{
		"urls": []string{"https://a.com/p1", "https://b.com/p2"},
	})

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, crawl.BatchRootKey, resp["root_key"])
	require.EqualValues(t, 2, resp["seeds"])

	rec = f.do(t, http.MethodPost, "/v1/crawls/batch", map[string]any{"urls": []string{}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCrawlStatus(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubFetcher{})
	rec := f.do(t, http.MethodGet, "/v1/crawls/status", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, string(crawl.StateIdle), resp["state"])
}

func TestSuspendedReportsStoredSession(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubFetcher{})
	session := crawl.NewSession("x.com", 10, []string{"https://x.com/next"})
	session.PagesCrawled = 3
	require.NoError(t, f.sessions.Put(context.Background(), session))

	rec := f.do(t, http.MethodGet, "/v1/crawls/suspended?root_url=https://x.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, true, resp["suspended"])

	rec = f.do(t, http.MethodGet, "/v1/crawls/suspended?root_url=https://nothing.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, false, resp["suspended"])

	rec = f.do(t, http.MethodGet, "/v1/crawls/suspended", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSitemapDiffEndpoint(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubFetcher{})
	rec := f.do(t, http.MethodPost, "/v1/sitemap/diff", map[string]any{
		"new": []map[string]string{
			{"url": "https://x.com/a", "last_modified": "2026-02-01"},
			{"url": "https://x.com/b", "last_modified": "2026-01-01"},
		},
		"old": []map[string]string{
			{"url": "https://x.com/a", "last_modified": "2026-01-01"},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Added   []string `json:"added"`
		Changed []string `json:"changed"`
		Seeds   []string `json:"seeds"`
		Started bool     `json:"started"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, []string{"https://x.com/b"}, resp.Added)
	require.Equal(t, []string{"https://x.com/a"}, resp.Changed)
	// Prepend policy puts updated URLs ahead of unchanged ones.
	require.Equal(t, []string{"https://x.com/b", "https://x.com/a"}, resp.Seeds)
	require.False(t, resp.Started)
}

func TestHistoryListAndDelete(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubFetcher{})
	result := crawl.PageResult{
		ID:        "id-1",
		URL:       "https://x.com/p1",
		Content:   "hello",
		FetchedAt: time.Unix(1700000000, 0).UTC(),
	}
	require.NoError(t, f.history.Append(context.Background(), result))

	rec := f.do(t, http.MethodGet, "/v1/history/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Results []crawl.PageResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	require.Equal(t, "id-1", resp.Results[0].ID)

	rec = f.do(t, http.MethodDelete, "/v1/history/id-1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, "/v1/history/id-1", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &stubFetcher{})
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
