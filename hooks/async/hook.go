// Package asynchook moves tagcache hook calls off the cache's hot path.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    SelfHealEvery:   10, // sample logs: ~every 10th self-heal
//	    InvalidateEvery: 1,  // log every invalidated entry
//	})
//
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	api, _ := tagcache.New(tagcache.Options{
//	    Namespace: "blog",
//	    Provider:  provider,
//	    GenStore:  genstore.NewRedisGenStore(genstore.RedisConfig{Client: rdb, Namespace: "blog"}),
//	    Hooks:     hooks, // or `raw` if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/tagcache"
)

// Hooks forwards events to inner from a bounded queue. Events arriving while
// the queue is full are dropped and counted.
type Hooks struct {
	inner   tagcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

var _ tagcache.Hooks = (*Hooks)(nil)

func New(inner tagcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped returns how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) RefetchScheduled(k string)    { h.try(func() { h.inner.RefetchScheduled(k) }) }
func (h *Hooks) QueryFailed(k, msg string)    { h.try(func() { h.inner.QueryFailed(k, msg) }) }
func (h *Hooks) EntryEvicted(k, r string)     { h.try(func() { h.inner.EntryEvicted(k, r) }) }
func (h *Hooks) SelfHealEntry(k, r string)    { h.try(func() { h.inner.SelfHealEntry(k, r) }) }
func (h *Hooks) ProviderSetRejected(k string) { h.try(func() { h.inner.ProviderSetRejected(k) }) }
func (h *Hooks) UndeclaredTagType(kind string) {
	h.try(func() { h.inner.UndeclaredTagType(kind) })
}
func (h *Hooks) EntryInvalidated(k string, tags []tagcache.Tag) {
	h.try(func() { h.inner.EntryInvalidated(k, tags) })
}
func (h *Hooks) GenSnapshotError(n int, err error) {
	h.try(func() { h.inner.GenSnapshotError(n, err) })
}
func (h *Hooks) GenBumpError(keys []string, err error) {
	h.try(func() { h.inner.GenBumpError(keys, err) })
}
