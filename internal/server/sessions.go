package server

import (
	"errors"
	"sync"
	"time"

	"github.com/jpalmerr/publink/internal/pipeline"
)

// ErrSessionNotFound is returned for unknown or already closed session ids.
var ErrSessionNotFound = errors.New("session not found")

// registry tracks REST sessions by id.
type registry struct {
	mu       sync.Mutex
	sessions map[string]*pipeline.Session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*pipeline.Session)}
}

func (r *registry) add(s *pipeline.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[s.ID()] = s
}

func (r *registry) get(id string) (*pipeline.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// remove unregisters and closes the session.
func (r *registry) remove(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.Close()
	return nil
}

// reap closes sessions whose last activity is older than idle and returns
// their ids.
func (r *registry) reap(now time.Time, idle time.Duration) []string {
	var stale []*pipeline.Session

	r.mu.Lock()
	for id, s := range r.sessions {
		if now.Sub(s.LastActivity()) >= idle {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	ids := make([]string, 0, len(stale))
	for _, s := range stale {
		s.Close()
		ids = append(ids, s.ID())
	}
	return ids
}

func (r *registry) closeAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*pipeline.Session)
	r.mu.Unlock()

	for _, s := range all {
		s.Close()
	}
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}
