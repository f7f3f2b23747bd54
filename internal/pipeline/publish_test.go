package pipeline

import (
	"testing"
)

func TestHub_LatestWins(t *testing.T) {
	h := newHub()
	ch := h.subscribe()

	h.broadcast(WarningSet{warn(urlA)})
	h.broadcast(WarningSet{warn(urlB)})

	got := <-ch
	if len(got) != 1 || got[0].URL != urlB {
		t.Errorf("received %+v, want the latest set", got)
	}

	select {
	case extra := <-ch:
		t.Errorf("unexpected extra set %+v", extra)
	default:
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	h := newHub()
	ch := h.subscribe()

	h.unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Error("channel not closed after unsubscribe")
	}
	if h.len() != 0 {
		t.Errorf("len() = %d, want 0", h.len())
	}

	// unknown and repeated unsubscribes are ignored
	h.unsubscribe(ch)
	h.unsubscribe(make(chan WarningSet))
}

func TestHub_Close(t *testing.T) {
	h := newHub()
	a := h.subscribe()
	b := h.subscribe()

	h.close()
	h.close()

	for _, ch := range []<-chan WarningSet{a, b} {
		if _, ok := <-ch; ok {
			t.Error("channel not closed by close()")
		}
	}

	late := h.subscribe()
	if _, ok := <-late; ok {
		t.Error("subscribe() after close returned an open channel")
	}

	// broadcast after close is a no-op
	h.broadcast(WarningSet{warn(urlA)})
}
