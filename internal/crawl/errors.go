package crawl

import (
	"errors"
	"fmt"
)

// ErrRateLimited marks a fetch rejected by the collaborator's rate or quota
// limits. The scheduler backs off and retries the same URL instead of
// marking it visited.
var ErrRateLimited = errors.New("fetch rate limited")

// ErrCrawlInProgress is returned when a start is requested while a session is
// actively running. At most one session runs at a time.
var ErrCrawlInProgress = errors.New("a crawl is already in progress")

// ErrNotFound is returned by stores when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// PersistenceError wraps a session or history store failure. It is fatal to
// the current step: continuing without durable state would risk losing
// resumability, so the scheduler propagates it instead of continuing.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
