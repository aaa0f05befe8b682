// Package entity implements normalized entity tables: an ordered id list plus an
// id -> record map for a single entity kind.
//
// Tables are immutable. Every Adapter operation takes a table and returns the
// resulting table; the input is never modified. An operation that changes
// nothing returns the same pointer, so callers (and memoized selectors) can use
// pointer identity to detect change.
//
//	posts := entity.NewAdapter(func(p Post) string { return p.ID },
//	    entity.WithSortComparer(func(a, b Post) int { return strings.Compare(b.Date, a.Date) }))
//	t := posts.Initial()
//	t = posts.UpsertMany(t, fetched)
//	p, ok := t.ByID("42")
package entity

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Table holds records of one kind. The zero value and nil are empty tables.
type Table[T any] struct {
	ids      []string
	entities map[string]T
}

// All returns records in id order. O(n).
func (t *Table[T]) All() []T {
	if t == nil || len(t.ids) == 0 {
		return nil
	}
	out := make([]T, 0, len(t.ids))
	for _, id := range t.ids {
		out = append(out, t.entities[id])
	}
	return out
}

// ByID returns the record stored under id. O(1).
func (t *Table[T]) ByID(id string) (T, bool) {
	if t == nil {
		var zero T
		return zero, false
	}
	v, ok := t.entities[id]
	return v, ok
}

// IDs returns a copy of the ordered id list.
func (t *Table[T]) IDs() []string {
	if t == nil || len(t.ids) == 0 {
		return nil
	}
	out := make([]string, len(t.ids))
	copy(out, t.ids)
	return out
}

func (t *Table[T]) Has(id string) bool {
	if t == nil {
		return false
	}
	_, ok := t.entities[id]
	return ok
}

func (t *Table[T]) Len() int {
	if t == nil {
		return 0
	}
	return len(t.ids)
}

func (t *Table[T]) clone() *Table[T] {
	nt := &Table[T]{
		ids:      make([]string, 0, t.Len()+1),
		entities: make(map[string]T, t.Len()+1),
	}
	if t == nil {
		return nt
	}
	nt.ids = append(nt.ids, t.ids...)
	for k, v := range t.entities {
		nt.entities[k] = v
	}
	return nt
}

type tableJSON[T any] struct {
	IDs      []string     `json:"ids"`
	Entities map[string]T `json:"entities"`
}

// MarshalJSON encodes the table as {"ids": [...], "entities": {...}}.
func (t *Table[T]) MarshalJSON() ([]byte, error) {
	if t == nil {
		return json.Marshal(tableJSON[T]{IDs: []string{}, Entities: map[string]T{}})
	}
	ids := t.ids
	if ids == nil {
		ids = []string{}
	}
	ents := t.entities
	if ents == nil {
		ents = map[string]T{}
	}
	return json.Marshal(tableJSON[T]{IDs: ids, Entities: ents})
}

// UnmarshalJSON rejects documents whose ids and entities disagree.
func (t *Table[T]) UnmarshalJSON(b []byte) error {
	var in tableJSON[T]
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	if len(in.IDs) != len(in.Entities) {
		return fmt.Errorf("entity: table has %d ids but %d entities", len(in.IDs), len(in.Entities))
	}
	seen := make(map[string]struct{}, len(in.IDs))
	for _, id := range in.IDs {
		if _, ok := in.Entities[id]; !ok {
			return fmt.Errorf("entity: id %q has no entity", id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("entity: duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
	t.ids = in.IDs
	t.entities = in.Entities
	return nil
}
