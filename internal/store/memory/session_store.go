// Package memory provides in-memory store implementations for development
// and testing.
package memory

import (
	"context"
	"sync"

	"github.com/mightytools/sitecrawler/internal/crawl"
)

// SessionStore keeps sessions in a map. Values are deep-copied on the way in
// and out so callers never share queue slices or visited maps.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]crawl.Session
}

// NewSessionStore constructs a SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]crawl.Session)}
}

// Get returns the session for rootKey, reporting existence.
func (s *SessionStore) Get(_ context.Context, rootKey string) (crawl.Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[rootKey]
	if !ok {
		return crawl.Session{}, false, nil
	}
	return sess.Clone(), true, nil
}

// Put stores or overwrites the session record.
func (s *SessionStore) Put(_ context.Context, session crawl.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.RootKey] = session.Clone()
	return nil
}

// Delete removes the session record. Deleting a missing key is a no-op.
func (s *SessionStore) Delete(_ context.Context, rootKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, rootKey)
	return nil
}
