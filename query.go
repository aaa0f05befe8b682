package tagcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/unkn0wn-root/tagcache/codec"
	"github.com/unkn0wn-root/tagcache/internal/util"
	"github.com/unkn0wn-root/tagcache/internal/wire"
	"github.com/unkn0wn-root/tagcache/thunk"
	"github.com/unkn0wn-root/tagcache/transport"
)

// QueryDef describes a read endpoint. Exactly one of Query and QueryFn is used;
// QueryFn wins when both are set.
type QueryDef[A, R any] struct {
	// Query builds the request sent through Options.Requester.
	Query func(arg A) transport.Request
	// QueryFn fetches without the Requester.
	QueryFn func(ctx context.Context, arg A) (R, error)
	// TransformResponse turns the raw response into R; default decodes JSON.
	TransformResponse func(resp transport.Response, arg A) (R, error)
	// ProvidesTags lists the tags the result depends on.
	ProvidesTags func(result R, arg A) []Tag
	// Codec stores results in the Provider; default codec.JSON[R].
	Codec codec.Codec[R]
	// TTL overrides Options.DefaultTTL for this endpoint's records.
	TTL time.Duration
}

// Query is a declared read endpoint. Each distinct argument has its own entry.
type Query[A, R any] struct {
	api   *Api
	name  string
	def   QueryDef[A, R]
	codec codec.Codec[R]
	th    *thunk.Thunk[A, R]
}

func DeclareQuery[A, R any](a *Api, name string, def QueryDef[A, R]) (*Query[A, R], error) {
	call, err := payloadFor(a, name, def.Query, def.QueryFn, def.TransformResponse)
	if err != nil {
		return nil, err
	}
	if err := a.register(name, nil); err != nil {
		return nil, err
	}
	q := &Query[A, R]{api: a, name: name, def: def, codec: def.Codec}
	if q.codec == nil {
		q.codec = codec.JSON[R]{}
	}
	q.th = thunk.New(name, call)
	return q, nil
}

// payloadFor builds the remote call of an endpoint.
func payloadFor[A, R any](
	a *Api,
	name string,
	build func(A) transport.Request,
	fn func(context.Context, A) (R, error),
	transform func(transport.Response, A) (R, error),
) (thunk.PayloadFunc[A, R], error) {
	switch {
	case fn != nil:
		return fn, nil
	case build == nil:
		return nil, fmt.Errorf("%w: %q", ErrNoQuery, name)
	case a.req == nil:
		return nil, fmt.Errorf("%w: %q", ErrNoRequester, name)
	}
	if transform == nil {
		transform = func(resp transport.Response, _ A) (R, error) { return transport.Decode[R](resp) }
	}
	return func(ctx context.Context, arg A) (R, error) {
		resp, err := a.req.Do(ctx, build(arg))
		if err != nil {
			var zero R
			return zero, err
		}
		return transform(resp, arg)
	}, nil
}

func (q *Query[A, R]) Name() string { return q.name }

// Key returns the cache key of arg: the endpoint name plus the JSON form of
// arg.
func (q *Query[A, R]) Key(arg A) (string, error) { return util.QueryKey(q.name, arg) }

// Get returns the cached result when it is fresh; otherwise it fetches,
// stores and returns the new result. Concurrent Gets of one key share a call.
func (q *Query[A, R]) Get(ctx context.Context, arg A) (R, error) {
	return q.get(ctx, arg, false)
}

// Refetch always performs the remote call.
func (q *Query[A, R]) Refetch(ctx context.Context, arg A) (R, error) {
	return q.get(ctx, arg, true)
}

func (q *Query[A, R]) get(ctx context.Context, arg A, force bool) (R, error) {
	var zero R
	key, err := q.Key(arg)
	if err != nil {
		return zero, err
	}
	if !q.api.enabled {
		res, err := q.th.Run(ctx, arg, nil)
		if err != nil {
			return zero, q.queryError(key, err)
		}
		return res, nil
	}
	if _, err := q.api.ensureEntry(key, q.name, q.refetcher(arg, key)); err != nil {
		return zero, err
	}
	if !force && !q.api.hasFailed(key) {
		if v, fresh, ok := q.read(ctx, key); ok && fresh {
			return v, nil
		}
	}
	return q.fetch(ctx, arg, key)
}

// Select reads the entry of arg without triggering a fetch.
func (q *Query[A, R]) Select(ctx context.Context, arg A) View[R] {
	key, err := q.Key(arg)
	if err != nil || !q.api.enabled {
		return View[R]{}
	}
	v, fresh, ok := q.read(ctx, key)
	ph, msg, rid := q.api.meta(key)
	return View[R]{
		Data:      v,
		HasData:   ok,
		Status:    viewStatus(ph, ok, fresh),
		Error:     msg,
		RequestID: rid,
	}
}

// Subscribe registers an active consumer of arg. listener (optional) runs
// after every change of the entry. A fetch starts in the background unless
// the entry is fresh or already fetching. While at least one subscription is
// open the entry is never evicted, and invalidations refetch it eagerly.
func (q *Query[A, R]) Subscribe(ctx context.Context, arg A, listener func()) (unsubscribe func(), err error) {
	key, err := q.Key(arg)
	if err != nil {
		return nil, err
	}
	if !q.api.enabled {
		return func() {}, nil
	}
	refetch := q.refetcher(arg, key)
	e, id, err := q.api.subscribe(key, q.name, refetch, listener)
	if err != nil {
		return nil, err
	}
	_, fresh, _ := q.read(ctx, key)
	if q.api.needsFetch(e, fresh) {
		q.api.spawn(key, refetch)
	}
	var once sync.Once
	return func() { once.Do(func() { q.api.unsubscribe(e, id) }) }, nil
}

func (q *Query[A, R]) refetcher(arg A, key string) func(context.Context) {
	return func(ctx context.Context) {
		if _, err := q.fetch(ctx, arg, key); err != nil {
			q.api.log.Debug("background refetch failed", Fields{"key": key, "err": err})
		}
	}
}

func (q *Query[A, R]) read(ctx context.Context, key string) (v R, fresh, ok bool) {
	rec, ok := q.api.loadRecord(ctx, key)
	if !ok {
		return v, false, false
	}
	v, err := q.codec.Decode(rec.Payload)
	if err != nil {
		q.api.selfHeal(ctx, q.api.storageKey(key), "value_decode")
		var zero R
		return zero, false, false
	}
	return v, !rec.Stale() && q.api.observedValid(ctx, rec.Observed), true
}

func (q *Query[A, R]) fetch(ctx context.Context, arg A, key string) (R, error) {
	v, err, _ := q.api.flight.Do(key, func() (any, error) {
		return q.run(ctx, arg, key)
	})
	res, _ := v.(R)
	return res, err
}

func (q *Query[A, R]) run(ctx context.Context, arg A, key string) (R, error) {
	a := q.api
	keyGen := a.snapshotGen(ctx, a.keyGenKey(key))
	fence := a.snapshotFence(ctx)

	res, err := q.th.Run(ctx, arg, func(sig thunk.Signal[A, R]) {
		switch sig.Phase {
		case thunk.Started:
			a.started(key, sig.RequestID)
		case thunk.Succeeded:
			q.settle(ctx, key, sig, keyGen, fence)
		case thunk.Failed:
			if refetch := a.failed(key, sig.RequestID, sig.Err, sig.Canceled); refetch != nil {
				a.flight.Forget(key)
				a.spawn(key, refetch)
			}
		}
	})
	if err != nil {
		return res, q.queryError(key, err)
	}
	return res, nil
}

// settle stores a successful result and marks the entry settled. Only the
// newest request of a live entry may write.
func (q *Query[A, R]) settle(ctx context.Context, key string, sig thunk.Signal[A, R], keyGen uint64, fence map[string]uint64) {
	a := q.api
	e := a.lookup(key)
	if e == nil {
		return // dropped by Reset or eviction
	}
	e.write.Lock()
	defer e.write.Unlock()
	if !a.isLatest(e, sig.RequestID) {
		return
	}

	var tags []Tag
	if q.def.ProvidesTags != nil {
		tags = normalizeTags(q.def.ProvidesTags(sig.Result, sig.Arg))
	}
	stale, err := q.store(ctx, key, sig.Result, tags, keyGen, fence)
	if err != nil {
		a.log.Warn("store result failed", Fields{"key": key, "err": err})
	}
	if stale {
		a.log.Debug("tags invalidated during fetch; stored as stale", Fields{"key": key})
	}
	if refetch := a.settled(e, sig.RequestID, tags, stale); refetch != nil {
		a.flight.Forget(key)
		a.spawn(key, refetch)
	}
}

func (q *Query[A, R]) store(ctx context.Context, key string, v R, tags []Tag, keyGen uint64, fence map[string]uint64) (bool, error) {
	payload, err := q.codec.Encode(v)
	if err != nil {
		return false, err
	}
	obs, stale, err := q.api.observe(ctx, tags, fence)
	if err != nil {
		return false, err
	}
	rec := wire.Entry{Observed: obs, Payload: payload}
	if stale {
		rec.Flags |= wire.FlagStale
	}
	if _, err := q.api.storeRecord(ctx, key, keyGen, rec, q.def.TTL); err != nil {
		return false, err
	}
	return stale, nil
}

func (q *Query[A, R]) queryError(key string, err error) error {
	return &QueryError{Endpoint: q.name, Key: key, Message: thunk.Message(err), Err: err}
}
