package entity

import (
	"errors"
	"fmt"
	"slices"
)

// ErrDuplicateID is returned by AddOne/AddMany when a record id is already present.
// Add never overwrites; use Upsert or Set for that.
var ErrDuplicateID = errors.New("entity: duplicate id")

// IDFunc extracts the identity of a record.
type IDFunc[T any] func(T) string

// Update is one entry for UpdateMany.
type Update[T any] struct {
	ID      string
	Changes func(T) T
}

// Adapter carries the per-kind configuration (identity, order, merge) and
// implements the table operations.
type Adapter[T any] struct {
	id    IDFunc[T]
	cmp   func(a, b T) int
	merge func(existing, incoming T) T
}

type AdapterOption[T any] func(*Adapter[T])

// WithSortComparer keeps ids in comparator order after every mutating operation
// instead of insertion order. Sorting is stable.
func WithSortComparer[T any](cmp func(a, b T) int) AdapterOption[T] {
	return func(a *Adapter[T]) { a.cmp = cmp }
}

// WithMerge sets how an upsert combines an existing record with an incoming one.
// Default: incoming replaces existing.
func WithMerge[T any](merge func(existing, incoming T) T) AdapterOption[T] {
	return func(a *Adapter[T]) { a.merge = merge }
}

func NewAdapter[T any](id IDFunc[T], opts ...AdapterOption[T]) Adapter[T] {
	if id == nil {
		panic("entity: NewAdapter requires an id function")
	}
	a := Adapter[T]{id: id}
	for _, o := range opts {
		o(&a)
	}
	if a.merge == nil {
		a.merge = func(_, incoming T) T { return incoming }
	}
	return a
}

func (a Adapter[T]) ID(v T) string { return a.id(v) }

func (a Adapter[T]) Initial() *Table[T] {
	return &Table[T]{entities: map[string]T{}}
}

// SetAll replaces the full contents. For duplicate ids in records the last
// record wins and the first position is kept.
func (a Adapter[T]) SetAll(_ *Table[T], records []T) *Table[T] {
	nt := a.Initial()
	for _, r := range records {
		id := a.id(r)
		if _, ok := nt.entities[id]; !ok {
			nt.ids = append(nt.ids, id)
		}
		nt.entities[id] = r
	}
	return a.sorted(nt)
}

// UpsertOne is UpsertMany for a single record.
func (a Adapter[T]) UpsertOne(t *Table[T], record T) *Table[T] {
	return a.UpsertMany(t, []T{record})
}

// UpsertMany inserts absent records (appended) and merges present ones in place.
// Without WithMerge a present record is replaced whole; a field-level merge
// needs a WithMerge function.
func (a Adapter[T]) UpsertMany(t *Table[T], records []T) *Table[T] {
	if len(records) == 0 {
		return t
	}
	nt := t.clone()
	for _, r := range records {
		id := a.id(r)
		if old, ok := nt.entities[id]; ok {
			nt.entities[id] = a.merge(old, r)
			continue
		}
		nt.ids = append(nt.ids, id)
		nt.entities[id] = r
	}
	return a.sorted(nt)
}

// AddOne appends record. It fails with ErrDuplicateID, leaving t as is, when
// the id is already present.
func (a Adapter[T]) AddOne(t *Table[T], record T) (*Table[T], error) {
	return a.AddMany(t, []T{record})
}

// AddMany is all-or-nothing: any duplicate (against t or within records)
// rejects the whole batch.
func (a Adapter[T]) AddMany(t *Table[T], records []T) (*Table[T], error) {
	if len(records) == 0 {
		return t, nil
	}
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		id := a.id(r)
		if _, dup := seen[id]; dup || t.Has(id) {
			return t, fmt.Errorf("%w: %q", ErrDuplicateID, id)
		}
		seen[id] = struct{}{}
	}
	nt := t.clone()
	for _, r := range records {
		id := a.id(r)
		nt.ids = append(nt.ids, id)
		nt.entities[id] = r
	}
	return a.sorted(nt), nil
}

func (a Adapter[T]) SetOne(t *Table[T], record T) *Table[T] {
	return a.SetMany(t, []T{record})
}

// SetMany inserts or replaces records without merging.
func (a Adapter[T]) SetMany(t *Table[T], records []T) *Table[T] {
	if len(records) == 0 {
		return t
	}
	nt := t.clone()
	for _, r := range records {
		id := a.id(r)
		if _, ok := nt.entities[id]; !ok {
			nt.ids = append(nt.ids, id)
		}
		nt.entities[id] = r
	}
	return a.sorted(nt)
}

// UpdateOne applies changes to the record stored under id. Absent ids and
// changes that would alter the record's identity are no-ops.
func (a Adapter[T]) UpdateOne(t *Table[T], id string, changes func(T) T) *Table[T] {
	return a.UpdateMany(t, []Update[T]{{ID: id, Changes: changes}})
}

func (a Adapter[T]) UpdateMany(t *Table[T], updates []Update[T]) *Table[T] {
	var nt *Table[T]
	for _, u := range updates {
		if u.Changes == nil {
			continue
		}
		src := t
		if nt != nil {
			src = nt
		}
		old, ok := src.ByID(u.ID)
		if !ok {
			continue
		}
		next := u.Changes(old)
		if a.id(next) != u.ID {
			continue
		}
		if nt == nil {
			nt = t.clone()
		}
		nt.entities[u.ID] = next
	}
	if nt == nil {
		return t
	}
	return a.sorted(nt)
}

func (a Adapter[T]) RemoveOne(t *Table[T], id string) *Table[T] {
	return a.RemoveMany(t, []string{id})
}

// RemoveMany drops ids from both the id list and the map. Absent ids are ignored.
func (a Adapter[T]) RemoveMany(t *Table[T], ids []string) *Table[T] {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if t.Has(id) {
			drop[id] = struct{}{}
		}
	}
	if len(drop) == 0 {
		return t
	}
	nt := &Table[T]{
		ids:      make([]string, 0, t.Len()-len(drop)),
		entities: make(map[string]T, t.Len()-len(drop)),
	}
	for _, id := range t.ids {
		if _, ok := drop[id]; ok {
			continue
		}
		nt.ids = append(nt.ids, id)
		nt.entities[id] = t.entities[id]
	}
	return nt
}

func (a Adapter[T]) RemoveAll(t *Table[T]) *Table[T] {
	if t.Len() == 0 {
		return t
	}
	return a.Initial()
}

func (a Adapter[T]) sorted(t *Table[T]) *Table[T] {
	if a.cmp == nil || len(t.ids) < 2 {
		return t
	}
	slices.SortStableFunc(t.ids, func(x, y string) int {
		return a.cmp(t.entities[x], t.entities[y])
	})
	return t
}
