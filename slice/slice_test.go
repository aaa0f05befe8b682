package slice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/tagcache/entity"
	"github.com/unkn0wn-root/tagcache/thunk"
)

type item struct{ ID, Name string }

var items = entity.NewAdapter(func(i item) string { return i.ID })

func sig(phase thunk.Phase, id string, res []item, msg string) thunk.Signal[struct{}, []item] {
	return thunk.Signal[struct{}, []item]{Phase: phase, RequestID: id, Result: res, Err: msg}
}

func TestApplyLifecycle(t *testing.T) {
	s := Initial(items)
	require.Equal(t, Idle, s.Status)

	merge := UpsertResult(items)
	s = Apply(s, sig(thunk.Started, "r1", nil, ""), merge)
	require.Equal(t, Loading, s.Status)

	s = Apply(s, sig(thunk.Succeeded, "r1", []item{{ID: "1"}, {ID: "2"}}, ""), merge)
	require.Equal(t, Succeeded, s.Status)
	require.Equal(t, []string{"1", "2"}, SelectIDs(s))
}

func TestApplyFailureKeepsTable(t *testing.T) {
	merge := UpsertResult(items)
	s := Initial(items)
	s = Apply(s, sig(thunk.Started, "r1", nil, ""), merge)
	s = Apply(s, sig(thunk.Failed, "r1", nil, "network down"), merge)

	require.Equal(t, Failed, s.Status)
	require.Equal(t, "network down", s.Error)
	require.Equal(t, 0, s.Table.Len())

	s = Apply(s, sig(thunk.Started, "r2", nil, ""), merge)
	require.Empty(t, s.Error)
	s = Apply(s, sig(thunk.Succeeded, "r2", []item{{ID: "1"}}, ""), merge)
	require.Equal(t, Succeeded, s.Status)
	require.Equal(t, 1, s.Table.Len())
}

func TestApplyDropsStaleResults(t *testing.T) {
	merge := SetAllResult(items)
	s := Initial(items)
	s = Apply(s, sig(thunk.Started, "old", nil, ""), merge)
	s = Apply(s, sig(thunk.Started, "new", nil, ""), merge)

	s = Apply(s, sig(thunk.Succeeded, "new", []item{{ID: "fresh"}}, ""), merge)
	s = Apply(s, sig(thunk.Succeeded, "old", []item{{ID: "stale"}}, ""), merge)
	s = Apply(s, sig(thunk.Failed, "old", nil, "late failure"), merge)

	require.Equal(t, Succeeded, s.Status)
	require.Empty(t, s.Error)
	require.Equal(t, []string{"fresh"}, SelectIDs(s))
}

func TestApplyIgnoresCanceled(t *testing.T) {
	s := Initial(items)
	s = Apply(s, sig(thunk.Started, "r1", nil, ""), UpsertResult(items))
	c := sig(thunk.Failed, "r1", nil, "context canceled")
	c.Canceled = true
	s = Apply(s, c, UpsertResult(items))

	require.Equal(t, Idle, s.Status)
	require.Empty(t, s.Error)
}

func TestApplyWithRealThunk(t *testing.T) {
	fetch := thunk.New("items/fetch", func(context.Context, struct{}) ([]item, error) {
		return nil, errors.New("boom")
	})
	s := Initial(items)
	var seen []Status
	_, _ = fetch.Run(context.Background(), struct{}{}, func(sg thunk.Signal[struct{}, []item]) {
		s = Apply(s, sg, UpsertResult(items))
		seen = append(seen, s.Status)
	})
	require.Equal(t, []Status{Loading, Failed}, seen)
	require.Equal(t, "boom", s.Error)
}

func TestAddResultAndApplyTable(t *testing.T) {
	s := Initial(items)
	s.Status = Succeeded
	add := thunk.Signal[item, item]{Phase: thunk.Succeeded, RequestID: "x", Result: item{ID: "n", Name: "new"}}

	s = ApplyTable(s, add, AddResult(items))
	require.Equal(t, Succeeded, s.Status)
	got, ok := SelectByID(s, "n")
	require.True(t, ok)
	require.Equal(t, "new", got.Name)

	s = ApplyTable(s, add, AddResult(items))
	require.Len(t, SelectAll(s), 1)
}
