package pipeline

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
)

// hub fans warning sets out to subscriber channels.
//
// Each channel has a buffer of one and keeps only the most recent set: a slow
// subscriber skips intermediate sets but always ends up with the latest.
type hub struct {
	mu     sync.Mutex
	subs   map[chan WarningSet]struct{}
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[chan WarningSet]struct{})}
}

func (h *hub) subscribe() <-chan WarningSet {
	ch := make(chan WarningSet, 1)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return ch
	}
	h.subs[ch] = struct{}{}
	return ch
}

// unsubscribe removes and closes ch. Unknown channels are ignored.
func (h *hub) unsubscribe(ch <-chan WarningSet) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		if sub == ch {
			delete(h.subs, sub)
			close(sub)
			return
		}
	}
}

func (h *hub) broadcast(set WarningSet) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- set:
			continue
		default:
		}

		// replace the stale pending set
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- set:
		default:
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		close(ch)
	}
	h.subs = nil
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subs)
}

// publish delivers the set produced at version ver, unless a newer version
// has already been delivered.
func (s *Session) publish(ver uint64, set WarningSet) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	if ver <= s.publishedVersion {
		return
	}
	s.publishedVersion = ver

	if s.publisher != nil {
		s.invokePublisherSafe(set.Clone())
	}
	s.hub.broadcast(set.Clone())

	if t, ok := s.source.(Toucher); ok {
		t.Touch()
	}
}

// invokePublisherSafe calls the publish callback with panic recovery.
// A panic is logged with its stack under a correlation ID; it never reaches
// the run.
func (s *Session) invokePublisherSafe(set WarningSet) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("publish callback panicked",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	s.publisher(set)
}
