// Package store is a single-owner state container. State changes only through
// Dispatch, which applies the reducer atomically and then notifies subscribers
// synchronously. Create one Store per application (or per test); there is no
// package-level instance.
package store

import (
	"sync"

	"github.com/unkn0wn-root/tagcache/thunk"
)

// Reducer computes the next state. It must not mutate prev in place: values
// previously returned by State are shared with readers.
type Reducer[S any] func(prev S, action any) S

type Store[S any] struct {
	reducer Reducer[S]

	mu    sync.RWMutex
	state S

	subMu  sync.Mutex
	nextID uint64
	subs   map[uint64]func()
}

func New[S any](initial S, reducer Reducer[S]) *Store[S] {
	if reducer == nil {
		panic("store: nil reducer")
	}
	return &Store[S]{
		reducer: reducer,
		state:   initial,
		subs:    make(map[uint64]func()),
	}
}

// State returns the current snapshot.
func (s *Store[S]) State() S {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Dispatch runs the reducer and notifies every subscriber once the new state
// is committed. Listeners run on the caller's goroutine and may dispatch.
func (s *Store[S]) Dispatch(action any) {
	s.mu.Lock()
	s.state = s.reducer(s.state, action)
	s.mu.Unlock()
	s.notify()
}

// Subscribe registers fn to run after every dispatch. The returned function
// removes it; calling it more than once is safe.
func (s *Store[S]) Subscribe(fn func()) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store[S]) notify() {
	s.subMu.Lock()
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Bind returns an emit function that dispatches every signal of a thunk run
// into st, so reducers see started/succeeded/failed as ordinary actions.
func Bind[S, A, R any](st *Store[S]) func(thunk.Signal[A, R]) {
	return func(sig thunk.Signal[A, R]) { st.Dispatch(sig) }
}
