package crawl

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// State represents the lifecycle phase of a crawl session.
type State string

// Scheduler states. Paused is a timed state entered between batches; the
// session record itself carries no state field because a persisted record is
// by definition suspended.
const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateFinished State = "finished"
)

// BatchRootKey is the synthetic root key used for multi-origin batch crawls,
// e.g. a sitemap-driven run. Sessions keyed to it never grow their frontier.
const BatchRootKey = "batch"

// Session is the unit of durable crawl state, one per crawl root. It is
// serialized as JSON into the session store after every mutation so a process
// restart loses at most the in-flight fetch.
type Session struct {
	RootKey      string          `json:"root_key"`
	MaxPages     int             `json:"max_pages"`
	Queue        []string        `json:"queue"`
	Visited      map[string]bool `json:"visited"`
	BatchCounter int             `json:"batch_counter"`
	PagesCrawled int             `json:"pages_crawled"`
}

// NewSession seeds a fresh session with the given frontier.
func NewSession(rootKey string, maxPages int, seeds []string) Session {
	s := Session{
		RootKey:  rootKey,
		MaxPages: maxPages,
		Visited:  make(map[string]bool),
	}
	for _, u := range seeds {
		s.Enqueue(u)
	}
	return s
}

// Enqueue appends url to the frontier unless it was already attempted or is
// already queued. Returns true if the url was admitted.
func (s *Session) Enqueue(url string) bool {
	if s.Visited[url] || s.Queued(url) {
		return false
	}
	s.Queue = append(s.Queue, url)
	return true
}

// Queued reports whether url is currently in the frontier.
func (s *Session) Queued(url string) bool {
	for _, q := range s.Queue {
		if q == url {
			return true
		}
	}
	return false
}

// Pop removes and returns the head of the frontier.
func (s *Session) Pop() (string, bool) {
	if len(s.Queue) == 0 {
		return "", false
	}
	url := s.Queue[0]
	s.Queue = s.Queue[1:]
	return url, true
}

// Requeue puts url back at the head of the frontier, ahead of everything
// else. Used when a fetch was rate limited and must be retried.
func (s *Session) Requeue(url string) {
	s.Queue = append([]string{url}, s.Queue...)
}

// Exhausted reports whether the session has nothing left to do: the frontier
// is empty or the page budget is spent.
func (s *Session) Exhausted() bool {
	return len(s.Queue) == 0 || s.PagesCrawled >= s.MaxPages
}

// Suspended reports whether a loaded session is resumable: pages remain in
// the frontier and the budget is not exhausted.
func (s *Session) Suspended() bool {
	return len(s.Queue) > 0 && s.PagesCrawled < s.MaxPages
}

// Clone returns a deep copy so stores never hand out aliased slices or maps.
func (s Session) Clone() Session {
	out := s
	out.Queue = append([]string(nil), s.Queue...)
	out.Visited = make(map[string]bool, len(s.Visited))
	for k, v := range s.Visited {
		out.Visited[k] = v
	}
	return out
}

// SuspendedInfo summarizes a resumable session for the caller-facing resume
// decision.
type SuspendedInfo struct {
	RootKey      string `json:"root_key"`
	QueueLen     int    `json:"queue_len"`
	PagesCrawled int    `json:"pages_crawled"`
	MaxPages     int    `json:"max_pages"`
}

// Link is an anchor extracted from a fetched page, before redaction.
type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Image is an image reference extracted from a fetched page.
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// Page is the raw output of the fetch-and-extract collaborator.
type Page struct {
	Content string
	Links   []Link
	Images  []Image
}

// PageResult is the finalized, redacted record for one crawled page. It is
// immutable once constructed and appended to the history log.
type PageResult struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Content   string    `json:"content"`
	Images    []Image   `json:"images"`
	Links     []Link    `json:"links"`
	FetchedAt time.Time `json:"fetched_at"`
}

// NewResultID returns a UUIDv7 string. v7 ids are time-ordered, which keeps
// history listings monotonic without a separate sequence.
func NewResultID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return id.String(), nil
}
