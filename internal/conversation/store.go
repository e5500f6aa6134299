// Package conversation owns per-session message history. The store is
// purely in-memory and performs no I/O; history grows unbounded for
// the session's lifetime and is lost when the process exits.
package conversation

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"market-chat-gateway/internal/domain"
	"market-chat-gateway/internal/domain/model"
)

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
	now      func() ulid.ULID
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*model.Session),
		now:      ulid.Make,
	}
}

// CreateSession starts a new conversation. The id combines a
// millisecond timestamp with random entropy (a ULID), so concurrently
// opened sessions cannot collide; the backend treats it as an opaque
// stable key.
func (s *Store) CreateSession() *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &model.Session{
		ID:        "session_" + s.now().String(),
		Messages:  make([]model.Message, 0, 8),
		CreatedAt: time.Now(),
	}
	s.sessions[sess.ID] = sess
	return sess.Clone()
}

// Append adds a message to a session and returns the resulting
// snapshot. Snapshots handed out earlier are never mutated: every
// return value is a copy, and all mutation goes through this method.
func (s *Store) Append(sessionID string, msg model.Message) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	sess.Messages = append(sess.Messages, msg)
	return sess.Clone(), nil
}

// Snapshot returns a read-only copy of the session's current state.
func (s *Store) Snapshot(sessionID string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return sess.Clone(), nil
}
