package models

import (
	"sync"
	"time"

	"github.com/yoockh/yoolisten/internal/retrieval"
)

// Session is the live, in-memory state for one uploaded transcript.
// The chat log and timestamps are guarded by mu; callers get copies.
type Session struct {
	ID         string
	Transcript string
	Index      retrieval.Index
	CreatedAt  time.Time

	mu         sync.RWMutex
	chatLog    []ChatTurn
	lastAccess time.Time
}

// NewSession seeds the chat log with turns, so a session rebuilt from history
// is complete before anyone can see it.
func NewSession(id, transcript string, idx retrieval.Index, now time.Time, turns ...ChatTurn) *Session {
	return &Session{
		ID:         id,
		Transcript: transcript,
		Index:      idx,
		CreatedAt:  now,
		chatLog:    append([]ChatTurn(nil), turns...),
		lastAccess: now,
	}
}

func (s *Session) Turns() []ChatTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ChatTurn, len(s.chatLog))
	copy(out, s.chatLog)
	return out
}

// LastTurns returns at most n of the most recent turns.
func (s *Session) LastTurns(n int) []ChatTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := len(s.chatLog) - n
	if start < 0 {
		start = 0
	}
	out := make([]ChatTurn, len(s.chatLog)-start)
	copy(out, s.chatLog[start:])
	return out
}

func (s *Session) TurnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chatLog)
}

// AppendTurns appends and refreshes last access, returning the updated log.
func (s *Session) AppendTurns(now time.Time, turns ...ChatTurn) []ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatLog = append(s.chatLog, turns...)
	s.lastAccess = now
	out := make([]ChatTurn, len(s.chatLog))
	copy(out, s.chatLog)
	return out
}

func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	s.lastAccess = now
	s.mu.Unlock()
}

func (s *Session) LastAccess() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAccess
}
