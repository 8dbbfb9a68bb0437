package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mightytools/sitecrawler/internal/crawl"
	"github.com/mightytools/sitecrawler/internal/metrics"
	"github.com/mightytools/sitecrawler/internal/redact"
)

// Config controls batching and pacing.
type Config struct {
	// BatchSize is the number of page attempts per rate-limit window.
	BatchSize int
	// BatchPause is how long the scheduler suspends between batches.
	BatchPause time.Duration
	// RequestDelay paces consecutive fetches inside a batch.
	RequestDelay time.Duration
	// FailureBackoff is the longer delay applied after a failed or
	// rate-limited fetch.
	FailureBackoff time.Duration
	// Topic, when set together with a publisher, receives every finalized
	// page result.
	Topic string
}

const (
	defaultBatchSize      = 10
	defaultBatchPause     = time.Minute
	defaultRequestDelay   = time.Second
	defaultFailureBackoff = 10 * time.Second
)

// Scheduler owns the crawl session state machine. At most one session runs at
// a time; concurrent starts are rejected with crawl.ErrCrawlInProgress.
type Scheduler struct {
	sessions  crawl.SessionStore
	history   crawl.HistoryStore
	fetcher   crawl.Fetcher
	redactor  *redact.Redactor
	exporter  crawl.Exporter
	publisher crawl.Publisher
	clock     crawl.Clock
	sleeper   crawl.Sleeper
	cfg       Config
	logger    *zap.Logger

	mu         sync.Mutex
	running    bool
	state      crawl.State
	lastStatus string
}

// New constructs a Scheduler. Exporter and publisher may be nil; both are
// best-effort collaborators.
func New(
	sessions crawl.SessionStore,
	history crawl.HistoryStore,
	fetcher crawl.Fetcher,
	redactor *redact.Redactor,
	exporter crawl.Exporter,
	publisher crawl.Publisher,
	clock crawl.Clock,
	sleeper crawl.Sleeper,
	cfg Config,
	logger *zap.Logger,
) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.BatchPause <= 0 {
		cfg.BatchPause = defaultBatchPause
	}
	if cfg.RequestDelay <= 0 {
		cfg.RequestDelay = defaultRequestDelay
	}
	if cfg.FailureBackoff <= 0 {
		cfg.FailureBackoff = defaultFailureBackoff
	}
	return &Scheduler{
		sessions:  sessions,
		history:   history,
		fetcher:   fetcher,
		redactor:  redactor,
		exporter:  exporter,
		publisher: publisher,
		clock:     clock,
		sleeper:   sleeper,
		cfg:       cfg,
		logger:    logger,
		state:     crawl.StateIdle,
	}
}

// StartCrawl starts or resumes a single-root crawl and blocks until the
// session terminates. With fromScratch set, any suspended session for the
// root is discarded and a fresh one is seeded with just the root URL.
// Resuming keeps the suspended queue, visited set, and counters, but the page
// budget is overwritten with maxPages.
func (s *Scheduler) StartCrawl(ctx context.Context, rootURL string, maxPages int, fromScratch bool) error {
	if maxPages < 1 {
		return fmt.Errorf("max pages must be >= 1, got %d", maxPages)
	}
	rootKey, err := crawl.RootKey(rootURL)
	if err != nil {
		return err
	}
	seed, err := crawl.NormalizeURL(rootURL)
	if err != nil {
		return err
	}

	if !s.acquire() {
		return crawl.ErrCrawlInProgress
	}
	defer s.release()

	sess := crawl.NewSession(rootKey, maxPages, []string{seed})
	if !fromScratch {
		prev, ok, err := s.sessions.Get(ctx, rootKey)
		if err != nil {
			return &crawl.PersistenceError{Op: "session get", Err: err}
		}
		if ok && prev.Suspended() {
			sess = prev
			sess.MaxPages = maxPages
			s.logger.Info("resuming suspended session",
				zap.String("root", rootKey),
				zap.Int("queued", len(sess.Queue)),
				zap.Int("pages_crawled", sess.PagesCrawled),
			)
		}
	}

	return s.run(ctx, sess)
}

// StartBatchCrawl crawls exactly the supplied URLs under the synthetic batch
// root. The frontier is the seed list and is never expanded. Malformed seeds
// are dropped.
func (s *Scheduler) StartBatchCrawl(ctx context.Context, urls []string) error {
	seeds := make([]string, 0, len(urls))
	for _, raw := range urls {
		u, err := crawl.NormalizeURL(raw)
		if err != nil {
			s.logger.Warn("dropping malformed seed url", zap.String("url", raw), zap.Error(err))
			continue
		}
		seeds = append(seeds, u)
	}
	if len(seeds) == 0 {
		return errors.New("batch crawl requires at least one valid url")
	}

	if !s.acquire() {
		return crawl.ErrCrawlInProgress
	}
	defer s.release()

	return s.run(ctx, crawl.NewSession(crawl.BatchRootKey, len(seeds), seeds))
}

// ResumeIfSuspended reports whether a resumable session exists for the root
// URL, so the caller can offer the resume-or-restart choice.
func (s *Scheduler) ResumeIfSuspended(ctx context.Context, rootURL string) (crawl.SuspendedInfo, bool, error) {
	rootKey, err := crawl.RootKey(rootURL)
	if err != nil {
		return crawl.SuspendedInfo{}, false, err
	}
	sess, ok, err := s.sessions.Get(ctx, rootKey)
	if err != nil {
		return crawl.SuspendedInfo{}, false, &crawl.PersistenceError{Op: "session get", Err: err}
	}
	if !ok || !sess.Suspended() {
		return crawl.SuspendedInfo{}, false, nil
	}
	return crawl.SuspendedInfo{
		RootKey:      sess.RootKey,
		QueueLen:     len(sess.Queue),
		PagesCrawled: sess.PagesCrawled,
		MaxPages:     sess.MaxPages,
	}, true, nil
}

// State returns the scheduler's current lifecycle state.
func (s *Scheduler) State() crawl.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the last user-visible status line.
func (s *Scheduler) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStatus
}

func (s *Scheduler) acquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Scheduler) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.state = crawl.StateIdle
}

func (s *Scheduler) setState(state crawl.State, status string) {
	s.mu.Lock()
	s.state = state
	if status != "" {
		s.lastStatus = status
	}
	s.mu.Unlock()
}

// run drains the session's frontier until it is exhausted. It is the single
// writer of session state: every mutation is persisted before the next fetch.
func (s *Scheduler) run(ctx context.Context, sess crawl.Session) error {
	expand := sess.RootKey != crawl.BatchRootKey
	s.setState(crawl.StateRunning, fmt.Sprintf("crawling %s", sess.RootKey))

	if err := s.persist(ctx, sess); err != nil {
		return err
	}

	for {
		metrics.SetQueueDepth(sess.RootKey, len(sess.Queue))

		if sess.Exhausted() {
			return s.finish(ctx, sess)
		}

		if sess.BatchCounter >= s.cfg.BatchSize {
			if err := s.pause(ctx, &sess); err != nil {
				return err
			}
			continue
		}

		url, _ := sess.Pop()
		if sess.Visited[url] {
			// Duplicate enqueue; the pop still has to be persisted.
			if err := s.persist(ctx, sess); err != nil {
				return err
			}
			continue
		}

		if err := s.processURL(ctx, &sess, url, expand); err != nil {
			return err
		}
	}
}

// pause enters the timed inter-batch suspension: reset the window counter,
// persist, suspend, and re-enter the running state on the same loop.
func (s *Scheduler) pause(ctx context.Context, sess *crawl.Session) error {
	sess.BatchCounter = 0
	if err := s.persist(ctx, *sess); err != nil {
		return err
	}
	s.setState(crawl.StatePaused,
		fmt.Sprintf("batch of %d complete, pausing %s (%d queued)", s.cfg.BatchSize, s.cfg.BatchPause, len(sess.Queue)))
	s.logger.Info("batch complete, pausing",
		zap.String("root", sess.RootKey),
		zap.Duration("pause", s.cfg.BatchPause),
		zap.Int("queued", len(sess.Queue)),
	)
	metrics.PauseEntered(sess.RootKey)

	if err := s.sleeper.Sleep(ctx, s.cfg.BatchPause); err != nil {
		return err
	}
	s.setState(crawl.StateRunning, fmt.Sprintf("resuming %s", sess.RootKey))
	return nil
}

func (s *Scheduler) processURL(ctx context.Context, sess *crawl.Session, url string, expand bool) error {
	page, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return s.handleFetchError(ctx, sess, url, err)
	}

	result, err := s.finalize(url, page)
	if err != nil {
		return err
	}
	if err := s.history.Append(ctx, result); err != nil {
		return &crawl.PersistenceError{Op: "history append", Err: err}
	}

	sess.Visited[url] = true
	sess.PagesCrawled++
	sess.BatchCounter++

	if expand {
		added := s.expandFrontier(sess, url, result.Links)
		if added > 0 {
			s.logger.Debug("frontier expanded", zap.String("url", url), zap.Int("added", added))
		}
	}

	if err := s.persist(ctx, *sess); err != nil {
		return err
	}

	s.offerResult(ctx, result)

	metrics.PageCrawled(sess.RootKey, "success")
	s.setState(crawl.StateRunning,
		fmt.Sprintf("crawled %s (%d/%d)", url, sess.PagesCrawled, sess.MaxPages))
	s.logger.Info("page crawled",
		zap.String("url", url),
		zap.Int("pages_crawled", sess.PagesCrawled),
		zap.Int("queued", len(sess.Queue)),
	)

	return s.sleeper.Sleep(ctx, s.cfg.RequestDelay)
}

// handleFetchError classifies a fetch failure into a continuation decision.
// Rate limiting does not consume the URL: it is returned to the head of the
// frontier and retried after the backoff. Every other failure marks the URL
// visited so it is never retried within the session.
func (s *Scheduler) handleFetchError(ctx context.Context, sess *crawl.Session, url string, fetchErr error) error {
	if errors.Is(fetchErr, crawl.ErrRateLimited) {
		sess.Requeue(url)
		if err := s.persist(ctx, *sess); err != nil {
			return err
		}
		metrics.RateLimited(sess.RootKey)
		s.setState(crawl.StateRunning, fmt.Sprintf("rate limited on %s, backing off", url))
		s.logger.Warn("fetch rate limited, backing off",
			zap.String("url", url),
			zap.Duration("backoff", s.cfg.FailureBackoff),
		)
		return s.sleeper.Sleep(ctx, s.cfg.FailureBackoff)
	}

	sess.Visited[url] = true
	sess.PagesCrawled++
	sess.BatchCounter++
	if err := s.persist(ctx, *sess); err != nil {
		return err
	}
	metrics.PageCrawled(sess.RootKey, "failure")
	s.setState(crawl.StateRunning, fmt.Sprintf("failed %s: %v", url, fetchErr))
	s.logger.Error("page fetch failed",
		zap.String("url", url),
		zap.Error(fetchErr),
	)
	return s.sleeper.Sleep(ctx, s.cfg.FailureBackoff)
}

// finalize applies the redaction pass and stamps identity and time. Redaction
// touches text content only, never URLs.
func (s *Scheduler) finalize(url string, page crawl.Page) (crawl.PageResult, error) {
	id, err := crawl.NewResultID()
	if err != nil {
		return crawl.PageResult{}, err
	}
	result := crawl.PageResult{
		ID:        id,
		URL:       url,
		Content:   page.Content,
		Images:    page.Images,
		Links:     page.Links,
		FetchedAt: s.clock.Now(),
	}
	if s.redactor != nil {
		result = s.redactor.Apply(result)
	}
	return result, nil
}

// expandFrontier admits extracted links that resolve to the session's host
// and are in neither visited nor the queue. Malformed or out-of-scope links
// are silently dropped.
func (s *Scheduler) expandFrontier(sess *crawl.Session, pageURL string, links []crawl.Link) int {
	added := 0
	for _, link := range links {
		abs, err := crawl.ResolveLink(pageURL, link.URL)
		if err != nil {
			continue
		}
		if !crawl.SameHost(sess.RootKey, abs) {
			continue
		}
		if sess.Enqueue(abs) {
			added++
		}
	}
	return added
}

// offerResult hands the finalized result to the export and publish
// collaborators. Both are best-effort: failures are logged, never fatal.
func (s *Scheduler) offerResult(ctx context.Context, result crawl.PageResult) {
	if s.exporter != nil {
		if err := s.exporter.Export(ctx, result); err != nil {
			metrics.ExportFailed()
			s.logger.Warn("result export failed", zap.String("id", result.ID), zap.Error(err))
		}
	}
	if s.publisher != nil && s.cfg.Topic != "" {
		if _, err := s.publisher.Publish(ctx, s.cfg.Topic, result); err != nil {
			s.logger.Warn("result publish failed", zap.String("id", result.ID), zap.Error(err))
		}
	}
}

func (s *Scheduler) finish(ctx context.Context, sess crawl.Session) error {
	if err := s.sessions.Delete(ctx, sess.RootKey); err != nil {
		return &crawl.PersistenceError{Op: "session delete", Err: err}
	}
	metrics.SetQueueDepth(sess.RootKey, 0)
	metrics.SessionFinished(sess.RootKey)
	s.setState(crawl.StateFinished,
		fmt.Sprintf("finished %s: %d pages crawled", sess.RootKey, sess.PagesCrawled))
	s.logger.Info("session finished",
		zap.String("root", sess.RootKey),
		zap.Int("pages_crawled", sess.PagesCrawled),
		zap.Int("max_pages", sess.MaxPages),
	)
	return nil
}

func (s *Scheduler) persist(ctx context.Context, sess crawl.Session) error {
	if err := s.sessions.Put(ctx, sess); err != nil {
		return &crawl.PersistenceError{Op: "session put", Err: err}
	}
	return nil
}
