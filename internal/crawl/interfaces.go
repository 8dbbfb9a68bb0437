package crawl

import (
	"context"
	"time"
)

// Fetcher is the opaque page-fetch-and-extract collaborator. A rate/quota
// error must wrap ErrRateLimited so the scheduler can distinguish it from an
// ordinary page failure.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// SessionStore persists one Session per crawl root. Get reports existence via
// its second return; a missing key is not an error.
type SessionStore interface {
	Get(ctx context.Context, rootKey string) (Session, bool, error)
	Put(ctx context.Context, session Session) error
	Delete(ctx context.Context, rootKey string) error
}

// HistoryStore is the append-only page result log. It outlives sessions and
// supports user-driven pruning by result id.
type HistoryStore interface {
	Append(ctx context.Context, result PageResult) error
	List(ctx context.Context) ([]PageResult, error)
	Delete(ctx context.Context, id string) error
}

// Exporter receives each finalized PageResult exactly once. Export failures
// must never abort a crawl.
type Exporter interface {
	Export(ctx context.Context, result PageResult) error
}

// Publisher pushes finalized results to a topic (Pub/Sub or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Sleeper performs the scheduler's cooperative suspensions: the inter-request
// delay and the inter-batch pause. Implementations must return early with the
// context error on process termination.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}
