package store

import "sync"

// CreateSelector returns a memoized selector. input extracts a comparable key
// from the state and parameter (table pointers, ids); combine runs only when
// that key differs from the one seen on the previous call. Only the last
// result is kept.
func CreateSelector[S, P any, I comparable, R any](input func(S, P) I, combine func(I) R) func(S, P) R {
	var (
		mu     sync.Mutex
		primed bool
		last   I
		result R
	)
	return func(s S, p P) R {
		in := input(s, p)
		mu.Lock()
		defer mu.Unlock()
		if primed && in == last {
			return result
		}
		result = combine(in)
		last = in
		primed = true
		return result
	}
}
