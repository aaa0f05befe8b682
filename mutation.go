package tagcache

import (
	"context"
	"sync"

	"github.com/unkn0wn-root/tagcache/thunk"
	"github.com/unkn0wn-root/tagcache/transport"
)

// MutationDef describes a write endpoint. Exactly one of Query and QueryFn is
// used; QueryFn wins when both are set.
type MutationDef[A, R any] struct {
	Query             func(arg A) transport.Request
	QueryFn           func(ctx context.Context, arg A) (R, error)
	TransformResponse func(resp transport.Response, arg A) (R, error)
	// InvalidatesTags lists the tags made stale by a successful invocation.
	InvalidatesTags func(result R, arg A) []Tag
}

// Mutation is a declared write endpoint. Its results are never cached.
type Mutation[A, R any] struct {
	api  *Api
	name string
	def  MutationDef[A, R]
	th   *thunk.Thunk[A, R]

	mu   sync.Mutex
	last View[R]
}

func DeclareMutation[A, R any](a *Api, name string, def MutationDef[A, R]) (*Mutation[A, R], error) {
	call, err := payloadFor(a, name, def.Query, def.QueryFn, def.TransformResponse)
	if err != nil {
		return nil, err
	}
	m := &Mutation[A, R]{api: a, name: name, def: def}
	if err := a.register(name, m); err != nil {
		return nil, err
	}
	m.th = thunk.New(name, call)
	return m, nil
}

func (m *Mutation[A, R]) Name() string { return m.name }

// Invoke performs the remote call. On success the tags from InvalidatesTags
// are invalidated before Invoke returns, even if ctx was canceled meanwhile.
func (m *Mutation[A, R]) Invoke(ctx context.Context, arg A) (R, error) {
	res, err := m.th.Run(ctx, arg, m.apply)
	if err != nil {
		return res, &QueryError{Endpoint: m.name, Message: thunk.Message(err), Err: err}
	}
	if m.def.InvalidatesTags == nil {
		return res, nil
	}
	if tags := m.def.InvalidatesTags(res, arg); len(tags) > 0 {
		if err := m.api.InvalidateTags(context.WithoutCancel(ctx), tags...); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Last returns the state of the most recent invocation. Results of older
// invocations that finish later are ignored. StatusFresh means it succeeded.
func (m *Mutation[A, R]) Last() View[R] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *Mutation[A, R]) apply(sig thunk.Signal[A, R]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sig.Phase == thunk.Started {
		m.last = View[R]{Status: StatusFetching, RequestID: sig.RequestID}
		return
	}
	if sig.RequestID != m.last.RequestID {
		return
	}
	switch {
	case sig.Phase == thunk.Succeeded:
		m.last = View[R]{Data: sig.Result, HasData: true, Status: StatusFresh, RequestID: sig.RequestID}
	case sig.Canceled:
		m.last = View[R]{}
	default:
		m.last = View[R]{Status: StatusFailed, Error: sig.Err, RequestID: sig.RequestID}
	}
}

func (m *Mutation[A, R]) reset() {
	m.mu.Lock()
	m.last = View[R]{}
	m.mu.Unlock()
}
