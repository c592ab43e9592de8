// Package session keeps per-conversation message histories in memory.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avenhq/supportd/internal/config"
	"github.com/avenhq/supportd/internal/llm"
)

type conversation struct {
	messages   []llm.Message
	lastActive time.Time
}

// Store is a mutex-guarded session map with idle expiry.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*conversation
	cfg      config.SessionConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewStore creates an empty Store.
func NewStore(cfg config.SessionConfig, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		sessions: make(map[string]*conversation),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Ensure returns the given session id, creating the session if needed,
// or mints a fresh id when none is supplied. New sessions are seeded
// with the provided system message.
func (s *Store) Ensure(id string, seed llm.Message) string {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		s.sessions[id] = &conversation{
			messages:   []llm.Message{seed},
			lastActive: s.now(),
		}
		s.logger.Debug("session created", zap.String("session_id", id))
	}
	return id
}

// Append adds messages to an existing session and refreshes its idle
// timer. Unknown session ids are ignored.
func (s *Store) Append(id string, messages ...llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.sessions[id]
	if !ok {
		return
	}
	conv.messages = append(conv.messages, messages...)
	conv.lastActive = s.now()
}

// History returns a copy of the session's messages, or nil when the
// session does not exist.
func (s *Store) History(id string) []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.sessions[id]
	if !ok {
		return nil
	}
	out := make([]llm.Message, len(conv.messages))
	copy(out, conv.messages)
	return out
}

// Delete removes a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions idle longer than the configured TTL and
// returns how many were removed.
func (s *Store) Sweep() int {
	cutoff := s.now().Add(-s.cfg.IdleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, conv := range s.sessions {
		if conv.lastActive.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("expired idle sessions", zap.Int("removed", removed))
	}
	return removed
}

// Run sweeps on the configured interval until the context is canceled.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
