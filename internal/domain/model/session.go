package model

import "time"

// Session is the aggregate root for one user conversation. The ID is
// generated once at session start and is immutable for the session's
// lifetime; it keys the backend's conversational memory.
type Session struct {
	ID        string    `json:"session_id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a deep-enough copy: the message slice is copied so the
// receiver's history cannot be mutated through a returned snapshot.
// Message fields themselves are immutable by convention.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Messages = make([]Message, len(s.Messages))
	copy(cp.Messages, s.Messages)
	return &cp
}
