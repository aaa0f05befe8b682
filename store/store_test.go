package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/tagcache/thunk"
)

type counter struct {
	N      int
	Status string
}

type inc struct{ By int }

func reduce(s counter, action any) counter {
	switch a := action.(type) {
	case inc:
		s.N += a.By
	case thunk.Signal[int, int]:
		s.Status = a.Phase.String()
		if a.Phase == thunk.Succeeded {
			s.N += a.Result
		}
	}
	return s
}

func TestDispatchNotifiesAfterCommit(t *testing.T) {
	st := New(counter{}, reduce)
	var seen []int
	unsub := st.Subscribe(func() { seen = append(seen, st.State().N) })

	st.Dispatch(inc{By: 2})
	st.Dispatch(inc{By: 3})
	unsub()
	unsub()
	st.Dispatch(inc{By: 10})

	require.Equal(t, []int{2, 5}, seen)
	require.Equal(t, 15, st.State().N)
}

func TestListenerMayDispatch(t *testing.T) {
	st := New(counter{}, reduce)
	st.Subscribe(func() {
		if st.State().N == 1 {
			st.Dispatch(inc{By: 1})
		}
	})
	st.Dispatch(inc{By: 1})
	require.Equal(t, 2, st.State().N)
}

func TestIsolatedInstances(t *testing.T) {
	a := New(counter{}, reduce)
	b := New(counter{}, reduce)
	a.Dispatch(inc{By: 1})
	require.Equal(t, 0, b.State().N)
}

func TestBindThunkSignals(t *testing.T) {
	st := New(counter{}, reduce)
	var statuses []string
	st.Subscribe(func() { statuses = append(statuses, st.State().Status) })

	th := thunk.New("add", func(_ context.Context, n int) (int, error) { return n, nil })
	_, err := th.Run(context.Background(), 7, Bind[counter, int, int](st))
	require.NoError(t, err)

	require.Equal(t, []string{"pending", "fulfilled"}, statuses)
	require.Equal(t, 7, st.State().N)
}

type filterKey struct {
	items  *[]string
	prefix string
}

func TestCreateSelectorMemoizes(t *testing.T) {
	type state struct{ items *[]string }

	calls := 0
	filter := CreateSelector(
		func(s state, prefix string) filterKey { return filterKey{s.items, prefix} },
		func(in filterKey) []string {
			calls++
			var out []string
			for _, it := range *in.items {
				if strings.HasPrefix(it, in.prefix) {
					out = append(out, it)
				}
			}
			return out
		},
	)

	list := []string{"apple", "avocado", "banana"}
	s := state{items: &list}

	require.Equal(t, []string{"apple", "avocado"}, filter(s, "a"))
	require.Equal(t, []string{"apple", "avocado"}, filter(s, "a"))
	require.Equal(t, 1, calls)

	require.Equal(t, []string{"banana"}, filter(s, "b"))
	require.Equal(t, 2, calls)

	other := []string{"apricot"}
	require.Equal(t, []string{"apricot"}, filter(state{items: &other}, "a"))
	require.Equal(t, 3, calls)
}
