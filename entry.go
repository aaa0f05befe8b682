package tagcache

import (
	"context"
	"sync"
	"time"
)

type phase uint8

const (
	phaseIdle phase = iota
	phaseFetching
	phaseSettled
	phaseFailed
)

// Status is the externally visible state of a cache entry.
type Status uint8

const (
	StatusAbsent Status = iota
	StatusFetching
	StatusFresh
	StatusStale
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusAbsent:
		return "absent"
	case StatusFetching:
		return "fetching"
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// View is a read-only snapshot of one entry (or of a mutation's latest
// invocation). Data keeps the last successful result while a refetch is
// running or after it failed.
type View[R any] struct {
	Data      R
	HasData   bool
	Status    Status
	Error     string
	RequestID string
}

// IsLoading reports a first fetch: running with nothing to show yet.
func (v View[R]) IsLoading() bool  { return v.Status == StatusFetching && !v.HasData }
func (v View[R]) IsFetching() bool { return v.Status == StatusFetching }
func (v View[R]) IsSuccess() bool  { return v.HasData && v.Status != StatusFailed }
func (v View[R]) IsError() bool    { return v.Status == StatusFailed }

func viewStatus(ph phase, hasData, fresh bool) Status {
	switch {
	case ph == phaseFetching:
		return StatusFetching
	case ph == phaseFailed:
		return StatusFailed
	case !hasData:
		return StatusAbsent
	case fresh:
		return StatusFresh
	default:
		return StatusStale
	}
}

type listener struct {
	id uint64
	fn func()
}

// entry is the in-process metadata of one query key. Data, tags and observed
// generations live in the Provider record; tags are mirrored here so
// InvalidateTags can find subscribers without reading the Provider.
type entry struct {
	key      string
	endpoint string

	phase     phase
	prev      phase // restored when a fetch is canceled
	err       string
	requestID string
	tags      []Tag

	subs      int
	listeners []listener
	nextID    uint64
	timer     *time.Timer
	refetch   func(context.Context)

	write sync.Mutex // orders record writes
}

func (e *entry) stopTimer() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *entry) listenerFuncs() []func() {
	if len(e.listeners) == 0 {
		return nil
	}
	out := make([]func(), 0, len(e.listeners))
	for _, l := range e.listeners {
		out = append(out, l.fn)
	}
	return out
}

func notify(ls []func()) {
	for _, fn := range ls {
		fn()
	}
}

// ensureEntry returns the entry for key, creating it when missing. refetch
// replaces the stored refetch closure.
func (a *Api) ensureEntry(key, endpoint string, refetch func(context.Context)) (*entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrClosed
	}
	e, ok := a.entries[key]
	if !ok {
		e = &entry{key: key, endpoint: endpoint}
		a.entries[key] = e
	}
	e.refetch = refetch
	a.scheduleEvictionLocked(e)
	return e, nil
}

func (a *Api) lookup(key string) *entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entries[key]
}

// meta returns the entry phase, error and request id; phaseIdle when unknown.
func (a *Api) meta(key string) (phase, string, string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[key]
	if !ok {
		return phaseIdle, "", ""
	}
	return e.phase, e.err, e.requestID
}

// scheduleEvictionLocked (re)arms the eviction timer of an entry without
// subscribers. Caller holds a.mu.
func (a *Api) scheduleEvictionLocked(e *entry) {
	e.stopTimer()
	if a.keepUnused < 0 || e.subs > 0 || a.closed {
		return
	}
	e.timer = time.AfterFunc(a.keepUnused, func() { a.evict(e) })
}

func (a *Api) evict(e *entry) {
	a.mu.Lock()
	if a.entries[e.key] != e || e.subs > 0 {
		a.mu.Unlock()
		return
	}
	if e.phase == phaseFetching {
		// rearmed when the fetch settles
		a.mu.Unlock()
		return
	}
	delete(a.entries, e.key)
	e.timer = nil
	a.mu.Unlock()

	if err := a.provider.Del(context.Background(), a.storageKey(e.key)); err != nil {
		a.log.Warn("evict: provider delete failed", Fields{"key": e.key, "err": err})
	}
	a.hooks.EntryEvicted(e.key, "unused")
	a.log.Debug("evicted unused entry", Fields{"key": e.key})
}

func (a *Api) subscribe(key, endpoint string, refetch func(context.Context), fn func()) (*entry, uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, 0, ErrClosed
	}
	e, ok := a.entries[key]
	if !ok {
		e = &entry{key: key, endpoint: endpoint}
		a.entries[key] = e
	}
	e.refetch = refetch
	e.subs++
	e.stopTimer()
	e.nextID++
	if fn != nil {
		e.listeners = append(e.listeners, listener{id: e.nextID, fn: fn})
	}
	return e, e.nextID, nil
}

func (a *Api) unsubscribe(e *entry, id uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, l := range e.listeners {
		if l.id == id {
			e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
			break
		}
	}
	e.subs--
	if e.subs == 0 && a.entries[e.key] == e {
		a.scheduleEvictionLocked(e)
	}
}

// needsFetch reports whether a new subscriber should start a fetch.
func (a *Api) needsFetch(e *entry, fresh bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entries[e.key] == e && e.phase != phaseFetching && !fresh
}

// started records a new request for key; later terminal signals from older
// requests are ignored.
func (a *Api) started(key, requestID string) {
	a.mu.Lock()
	e, ok := a.entries[key]
	if !ok {
		a.mu.Unlock()
		return
	}
	if e.phase != phaseFetching {
		e.prev = e.phase
	}
	e.phase = phaseFetching
	e.requestID = requestID
	ls := e.listenerFuncs()
	a.mu.Unlock()
	notify(ls)
}

// failed records a failed fetch. A canceled fetch restores the previous
// phase; when the entry has subscribers the returned refetch must be started
// in the background, since they joined the canceled call instead of fetching.
func (a *Api) failed(key, requestID, msg string, canceled bool) func(context.Context) {
	a.mu.Lock()
	e, ok := a.entries[key]
	if !ok || e.requestID != requestID {
		a.mu.Unlock()
		return nil
	}
	var refetch func(context.Context)
	if canceled {
		e.phase = e.prev
		if e.subs > 0 {
			refetch = e.refetch
		}
	} else {
		e.phase = phaseFailed
		e.err = msg
	}
	if e.subs == 0 {
		a.scheduleEvictionLocked(e)
	}
	ls := e.listenerFuncs()
	a.mu.Unlock()

	if !canceled {
		a.hooks.QueryFailed(key, msg)
		a.log.Warn("query failed", Fields{"key": key, "err": msg})
	}
	notify(ls)
	return refetch
}

// hasFailed reports whether the last fetch of key failed. Get retries such
// entries even when their record is still fresh.
func (a *Api) hasFailed(key string) bool {
	ph, _, _ := a.meta(key)
	return ph == phaseFailed
}

// settled marks a successful fetch. It returns the refetch to start when the
// entry is subscribed and its tags were invalidated while the request was in
// flight.
func (a *Api) settled(e *entry, requestID string, tags []Tag, stale bool) func(context.Context) {
	a.mu.Lock()
	if a.entries[e.key] != e || e.requestID != requestID {
		a.mu.Unlock()
		return nil
	}
	e.phase = phaseSettled
	e.err = ""
	e.tags = tags
	if e.subs == 0 {
		a.scheduleEvictionLocked(e)
	}
	var refetch func(context.Context)
	if stale && e.subs > 0 {
		refetch = e.refetch
	}
	ls := e.listenerFuncs()
	a.mu.Unlock()

	notify(ls)
	return refetch
}

// isLatest reports whether requestID is the newest request of a live entry.
func (a *Api) isLatest(e *entry, requestID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entries[e.key] == e && e.requestID == requestID
}
