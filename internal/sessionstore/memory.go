// Package sessionstore provides an in-memory SessionRepository used for
// development and tests. The Mongo-backed repository is the production
// implementation.
package sessionstore

import (
	"context"
	"sync"
	"time"

	"go.avinoo.ir/sso/domain"
	serrors "go.avinoo.ir/sso/errors"
)

// MemoryStore is a mutex-guarded SessionRepository. ConsumeSession performs
// its test-and-set under the lock, so two racing consumers of the same
// session see exactly one success.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.AuthorizationSession
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*domain.AuthorizationSession)}
}

// StoreSession saves a copy of the session.
func (s *MemoryStore) StoreSession(_ context.Context, session *domain.AuthorizationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

// GetSession returns a copy of the session regardless of its state.
func (s *MemoryStore) GetSession(_ context.Context, sessionID string) (*domain.AuthorizationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, serrors.ErrSessionNotFound
	}
	cp := *session
	return &cp, nil
}

// ConsumeSession atomically marks an unused, unexpired session as used and
// returns it. Unknown IDs return ErrSessionNotFound; used or expired
// sessions return ErrSessionInvalid.
func (s *MemoryStore) ConsumeSession(_ context.Context, sessionID string, now time.Time) (*domain.AuthorizationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, serrors.ErrSessionNotFound
	}
	if !session.IsValid(now) {
		return nil, serrors.ErrSessionInvalid
	}

	session.Used = true
	cp := *session
	return &cp, nil
}

// DeleteExpired removes sessions past their expiry and returns the count.
func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	for id, session := range s.sessions {
		if session.IsExpired(now) {
			delete(s.sessions, id)
			count++
		}
	}
	return count, nil
}

var _ domain.SessionRepository = (*MemoryStore)(nil)
