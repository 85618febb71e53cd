package memory

import (
	"context"
	"sync"
	"time"

	"writing-game-service/internal/app"
	"writing-game-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// Ended sessions stay registered so late students see domain.ErrSessionEnded; a new game under the same PIN replaces them.
type SessionStore struct {
	now      func() time.Time
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore() *SessionStore {
	return NewSessionStoreWithClock(time.Now)
}

// NewSessionStoreWithClock is test-only for deterministic timestamps.
func NewSessionStoreWithClock(now func() time.Time) *SessionStore {
	return &SessionStore{
		now:      now,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Create(_ context.Context, pin string) (*app.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[pin]; ok && session.Active() {
		return nil, domain.ErrPINTaken
	}
	session := app.NewSessionWithClock(pin, s.now)
	s.sessions[pin] = session
	return session, nil
}

func (s *SessionStore) Get(pin string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[pin]
	return session, ok
}

// Release is a no-op: an ended session no longer blocks Create.
func (s *SessionStore) Release(context.Context, string) {}
