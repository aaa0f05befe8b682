package asynchook

import (
	"sync"
	"testing"

	"github.com/unkn0wn-root/tagcache"
)

type recorder struct {
	tagcache.NopHooks
	mu    sync.Mutex
	block chan struct{}
	keys  []string
}

func (r *recorder) RefetchScheduled(k string) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.keys = append(r.keys, k)
	r.mu.Unlock()
}

func TestForwardsAndDrainsOnClose(t *testing.T) {
	rec := &recorder{}
	h := New(rec, 2, 16)
	for i := 0; i < 5; i++ {
		h.RefetchScheduled("k")
	}
	h.Close()
	h.Close()

	if len(rec.keys) != 5 {
		t.Fatalf("forwarded %d events, want 5", len(rec.keys))
	}
	h.RefetchScheduled("late")
	if h.Dropped() != 1 {
		t.Fatalf("event after Close should be dropped, dropped=%d", h.Dropped())
	}
}

func TestDropsWhenQueueFull(t *testing.T) {
	rec := &recorder{block: make(chan struct{})}
	h := New(rec, 1, 1)

	// the worker may take the first event and block on it; the queue then
	// holds one more and everything after is dropped
	for i := 0; i < 10; i++ {
		h.RefetchScheduled("k")
	}
	if h.Dropped() < 8 {
		t.Fatalf("dropped = %d, want >= 8", h.Dropped())
	}
	close(rec.block)
	h.Close()
}
