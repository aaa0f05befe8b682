// Package slice holds one entity table together with the request lifecycle
// fields (status, error, latest request id) and the pure functions that move it
// forward in response to thunk signals.
package slice

import (
	"github.com/unkn0wn-root/tagcache/entity"
	"github.com/unkn0wn-root/tagcache/thunk"
)

type Status string

const (
	Idle      Status = "idle"
	Loading   Status = "loading"
	Succeeded Status = "succeeded"
	Failed    Status = "failed"
)

// State is a value; functions in this package return modified copies.
type State[T any] struct {
	Table     *entity.Table[T]
	Status    Status
	Error     string
	RequestID string
}

func Initial[T any](a entity.Adapter[T]) State[T] {
	return State[T]{Table: a.Initial(), Status: Idle}
}

// MergeFunc folds a successful result into the state (typically into Table).
type MergeFunc[T, R any] func(State[T], R) State[T]

// Apply advances s by one lifecycle signal.
//
// Started records the request id and sets Loading. A terminal signal is only
// applied when its request id equals the latest started one; older in-flight
// results are dropped. Canceled signals are always dropped.
func Apply[T, A, R any](s State[T], sig thunk.Signal[A, R], merge MergeFunc[T, R]) State[T] {
	switch sig.Phase {
	case thunk.Started:
		s.Status = Loading
		s.Error = ""
		s.RequestID = sig.RequestID
	case thunk.Succeeded:
		if sig.RequestID != s.RequestID {
			return s
		}
		s.Status = Succeeded
		s.Error = ""
		if merge != nil {
			s = merge(s, sig.Result)
		}
	case thunk.Failed:
		if sig.Canceled {
			if sig.RequestID == s.RequestID && s.Status == Loading {
				s.Status = Idle
			}
			return s
		}
		if sig.RequestID != s.RequestID {
			return s
		}
		s.Status = Failed
		s.Error = sig.Err
	}
	return s
}

// ApplyTable is like Apply for signals that only change the table and must not
// touch Status (e.g. a create request running next to a list fetch).
func ApplyTable[T, A, R any](s State[T], sig thunk.Signal[A, R], merge MergeFunc[T, R]) State[T] {
	if sig.Phase != thunk.Succeeded || merge == nil {
		return s
	}
	return merge(s, sig.Result)
}

func UpsertResult[T any](a entity.Adapter[T]) MergeFunc[T, []T] {
	return func(s State[T], rs []T) State[T] {
		s.Table = a.UpsertMany(s.Table, rs)
		return s
	}
}

func SetAllResult[T any](a entity.Adapter[T]) MergeFunc[T, []T] {
	return func(s State[T], rs []T) State[T] {
		s.Table = a.SetAll(s.Table, rs)
		return s
	}
}

// AddResult appends the created record. A duplicate id leaves the table as is;
// the server is authoritative for ids so this only happens on replays.
func AddResult[T any](a entity.Adapter[T]) MergeFunc[T, T] {
	return func(s State[T], r T) State[T] {
		if t, err := a.AddOne(s.Table, r); err == nil {
			s.Table = t
		}
		return s
	}
}

func SelectAll[T any](s State[T]) []T { return s.Table.All() }

func SelectByID[T any](s State[T], id string) (T, bool) { return s.Table.ByID(id) }

func SelectIDs[T any](s State[T]) []string { return s.Table.IDs() }
