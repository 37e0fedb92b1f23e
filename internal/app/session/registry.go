package session

import (
	"sync"
	"time"
)

// registry manages sessions with thread-safe access.
type registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session // user ID -> session
	closed   bool
}

func newRegistry() *registry {
	return &registry{
		sessions: make(map[string]*Session),
	}
}

// getOrCreate returns the session for userID, calling create if there is none.
// create runs with the registry lock held. Once closed it fails with ErrClosed.
func (r *registry) getOrCreate(userID string, create func() *Session) (*Session, bool, error) {
	r.mu.RLock()
	s, ok := r.sessions[userID]
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, false, ErrClosed
	}
	if ok {
		return s, false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, false, ErrClosed
	}
	if s, ok := r.sessions[userID]; ok {
		return s, false, nil
	}
	s = create()
	r.sessions[userID] = s
	return s, true, nil
}

func (r *registry) lookup(userID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// removeIdle removes and returns sessions last active before cutoff.
func (r *registry) removeIdle(cutoff time.Time) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []*Session
	for id, s := range r.sessions {
		if s.LastActive().Before(cutoff) {
			removed = append(removed, s)
			delete(r.sessions, id)
		}
	}
	return removed
}

// close removes and returns every session and refuses further creation.
// The second result is false if the registry was already closed.
func (r *registry) close() ([]*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, false
	}
	r.closed = true

	result := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		result = append(result, s)
	}
	r.sessions = make(map[string]*Session)
	return result, true
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
