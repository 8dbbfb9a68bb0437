package memory

import (
	"context"
	"sync"

	"github.com/mightytools/sitecrawler/internal/crawl"
)

// HistoryStore is an append-only in-memory page result log.
type HistoryStore struct {
	mu      sync.RWMutex
	results []crawl.PageResult
}

// NewHistoryStore constructs a HistoryStore.
func NewHistoryStore() *HistoryStore {
	return &HistoryStore{}
}

// Append adds a result to the log.
func (s *HistoryStore) Append(_ context.Context, result crawl.PageResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)
	return nil
}

// List returns all results in append order.
func (s *HistoryStore) List(_ context.Context) ([]crawl.PageResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawl.PageResult, len(s.results))
	copy(out, s.results)
	return out, nil
}

// Delete prunes the result with the given id.
func (s *HistoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.results {
		if r.ID == id {
			s.results = append(s.results[:i], s.results[i+1:]...)
			return nil
		}
	}
	return crawl.ErrNotFound
}
