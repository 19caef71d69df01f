package party

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// Registry maps session identifiers to live sessions. Sessions are created
// on first join and released when their last member leaves.
type Registry struct {
	hub    *Hub
	logger zerolog.Logger
	opts   []Option

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry. opts are applied to every session
// it creates.
func NewRegistry(hub *Hub, logger zerolog.Logger, opts ...Option) *Registry {
	return &Registry{
		hub:      hub,
		logger:   logger.With().Str("component", "registry").Logger(),
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// GetOrCreate returns the live session for id, creating it if there is none
// or if the stored one has already closed.
func (r *Registry) GetOrCreate(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok && !s.isClosed() {
		return s
	}

	s := NewSession(id, r.hub, r.logger, r.opts...)
	r.sessions[id] = s
	r.logger.Info().Str("session", id).Msg("Session created")
	return s
}

// ReleaseIfEmpty removes s from the registry if it has closed and is still
// the session stored under id. It reports whether it removed anything, so
// a session is released at most once.
func (r *Registry) ReleaseIfEmpty(id string, s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.sessions[id]; !ok || cur != s || !s.isClosed() {
		return false
	}

	delete(r.sessions, id)
	r.logger.Info().Str("session", id).Msg("Session released")
	return true
}

// Join adds conn to the session named id. A join that races with the
// session closing is retried against a fresh session, so it is never lost.
func (r *Registry) Join(ctx context.Context, id string, conn Conn) (*Session, error) {
	for {
		s := r.GetOrCreate(id)
		err := s.Join(ctx, conn)
		if errors.Is(err, ErrSessionClosed) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// Leave removes connID from s and releases s if it became empty.
func (r *Registry) Leave(ctx context.Context, s *Session, connID string) error {
	empty, err := s.Leave(ctx, connID)
	if empty {
		r.ReleaseIfEmpty(s.ID(), s)
	}
	return err
}

// Get returns the session for id, if any.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	return s, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}
