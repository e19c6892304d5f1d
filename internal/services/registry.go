package services

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"ph-monitor/internal/models"
)

// ErrUnknownSession is returned when no session exists for a source
var ErrUnknownSession = errors.New("unknown session")

// Registry maps source ids to their sessions. It is created by main and
// passed to every component that routes to sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers a session; a source can only be registered once
func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.Source()]; exists {
		return fmt.Errorf("session %q already registered", s.Source())
	}
	r.sessions[s.Source()] = s
	return nil
}

func (r *Registry) Get(source string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, source)
	}
	return s, nil
}

// Remove drops a session. Its Run loop is stopped through its context.
func (r *Registry) Remove(source string) {
	r.mu.Lock()
	delete(r.sessions, source)
	r.mu.Unlock()
}

// Sessions returns all sessions ordered by source id
func (r *Registry) Sessions() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Source() < out[j].Source() })
	return out
}

// Route queues a state change on the session of its source
func (r *Registry) Route(change models.StateChange) error {
	source := ""
	switch {
	case change.New != nil:
		source = change.New.Source
	case change.Old != nil:
		source = change.Old.Source
	}

	s, err := r.Get(source)
	if err != nil {
		return err
	}
	return s.Enqueue(change)
}
