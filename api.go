package tagcache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	gen "github.com/unkn0wn-root/tagcache/genstore"
	pr "github.com/unkn0wn-root/tagcache/provider"
	"github.com/unkn0wn-root/tagcache/transport"
)

type SetCostFunc func(storageKey string, raw []byte) int64

// Options tune the Api.
// Only Namespace and Provider are required; others have sensible defaults.
type Options struct {
	// Required
	Namespace string // isolates provider and generation keys, e.g. "blog"
	Provider  pr.Provider

	Requester transport.Requester // used by endpoints declared with Query
	TagTypes  []string            // kinds fenced against invalidation during a fetch

	Logger          Logger        // if nil, NopLogger is used
	Hooks           Hooks         // if nil, NopHooks is used
	GenStore        gen.GenStore  // nil => LocalGenStore (in-process)
	KeepUnusedFor   time.Duration // 0 => 60s; < 0 keeps unused entries until Reset
	DefaultTTL      time.Duration // provider TTL for records; 0 => no expiry
	CleanupInterval time.Duration // local genstore sweep; 0 => 1h
	GenRetention    time.Duration // 0 => 30d
	ComputeSetCost  SetCostFunc   // default 1
	Disabled        bool          // every Get goes remote and nothing is cached
}

// Api owns the cache entries of one set of endpoints. Endpoints are declared
// with DeclareQuery and DeclareMutation. Safe for concurrent use.
type Api struct {
	ns         string
	provider   pr.Provider
	gen        gen.GenStore
	req        transport.Requester
	fence      map[string]string // kind -> any:<kind>
	log        Logger
	hooks      Hooks
	keepUnused time.Duration
	ttl        time.Duration
	cost       SetCostFunc
	enabled    bool

	flight singleflight.Group
	bg     tracker
	bgCtx  context.Context
	stop   context.CancelFunc

	mu         sync.Mutex
	endpoints  map[string]resetter
	entries    map[string]*entry
	undeclared map[string]struct{}
	closed     bool
}

// resetter is implemented by endpoints holding state outside entries.
type resetter interface{ reset() }

func New(opts Options) (*Api, error) {
	if opts.Namespace == "" {
		return nil, ErrNamespaceRequired
	}
	if opts.Provider == nil {
		return nil, ErrProviderRequired
	}

	a := &Api{
		ns:         opts.Namespace,
		provider:   opts.Provider,
		req:        opts.Requester,
		fence:      make(map[string]string, len(opts.TagTypes)),
		ttl:        opts.DefaultTTL,
		enabled:    !opts.Disabled,
		endpoints:  make(map[string]resetter),
		entries:    make(map[string]*entry),
		undeclared: make(map[string]struct{}),
	}
	for _, k := range opts.TagTypes {
		a.fence[k] = a.anyKey(k)
	}

	// defaults
	a.log = coalesce[Logger](opts.Logger, NopLogger{})
	a.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	a.keepUnused = coalesce[time.Duration](opts.KeepUnusedFor, defaultKeepUnusedFor)

	if opts.ComputeSetCost != nil {
		a.cost = opts.ComputeSetCost
	} else {
		a.cost = func(string, []byte) int64 { return 1 }
	}

	if opts.GenStore != nil {
		a.gen = opts.GenStore
	} else {
		// default to in-process generations with periodic cleanup
		a.gen = gen.NewLocalGenStore(
			coalesce[time.Duration](opts.CleanupInterval, defaultSweep),
			coalesce[time.Duration](opts.GenRetention, defaultGenRetention),
		)
	}

	a.bgCtx, a.stop = context.WithCancel(context.Background())
	return a, nil
}

func (a *Api) Enabled() bool { return a.enabled }

func (a *Api) Namespace() string { return a.ns }

// Keys returns the query keys that currently have an entry, sorted.
func (a *Api) Keys() []string {
	a.mu.Lock()
	out := make([]string, 0, len(a.entries))
	for k := range a.entries {
		out = append(out, k)
	}
	a.mu.Unlock()
	sort.Strings(out)
	return out
}

func (a *Api) register(name string, r resetter) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, dup := a.endpoints[name]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateEndpoint, name)
	}
	a.endpoints[name] = r
	return nil
}

// Reset drops every entry and clears mutation state. Fetches in flight finish
// but their results are not stored.
func (a *Api) Reset(ctx context.Context) error {
	a.mu.Lock()
	dropped := a.entries
	a.entries = make(map[string]*entry)
	var muts []resetter
	for _, r := range a.endpoints {
		if r != nil {
			muts = append(muts, r)
		}
	}
	var ls []func()
	for _, e := range dropped {
		e.stopTimer()
		ls = append(ls, e.listenerFuncs()...)
	}
	a.mu.Unlock()

	for _, m := range muts {
		m.reset()
	}
	if len(dropped) == 0 {
		return nil
	}

	genKeys := make([]string, 0, len(dropped))
	for k := range dropped {
		genKeys = append(genKeys, a.keyGenKey(k))
		a.flight.Forget(k)
	}
	var errs []error
	if _, err := a.gen.BumpMany(ctx, genKeys); err != nil {
		a.hooks.GenBumpError(genKeys, err)
		a.log.Error("gen bump error", Fields{"keys": len(genKeys), "err": err})
		errs = append(errs, err)
	}
	for k := range dropped {
		if err := a.provider.Del(ctx, a.storageKey(k)); err != nil {
			errs = append(errs, err)
		}
		a.hooks.EntryEvicted(k, "reset")
	}
	a.log.Info("api reset", Fields{"ns": a.ns, "entries": len(dropped)})
	notify(ls)
	return errors.Join(errs...)
}

// Flush waits until background refetches started so far (and any they start)
// have finished.
func (a *Api) Flush(ctx context.Context) error {
	select {
	case <-a.bg.idle():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops eviction timers and background refetches, then closes the
// GenStore and the Provider.
func (a *Api) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	for _, e := range a.entries {
		e.stopTimer()
	}
	a.mu.Unlock()

	a.stop()
	_ = a.Flush(ctx)

	// Close gen store first (best effort)
	if a.gen != nil {
		_ = a.gen.Close(ctx)
	}
	return a.provider.Close(ctx)
}

// spawn runs a background refetch tracked by Flush.
func (a *Api) spawn(key string, run func(context.Context)) {
	if a.bgCtx.Err() != nil {
		return
	}
	a.hooks.RefetchScheduled(key)
	a.bg.add()
	go func() {
		defer a.bg.done()
		run(a.bgCtx)
	}()
}

// tracker counts running background work; idle returns a channel closed once
// the count drops to zero.
type tracker struct {
	mu sync.Mutex
	n  int
	ch chan struct{}
}

func (t *tracker) add() {
	t.mu.Lock()
	if t.n == 0 {
		t.ch = make(chan struct{})
	}
	t.n++
	t.mu.Unlock()
}

func (t *tracker) done() {
	t.mu.Lock()
	t.n--
	if t.n == 0 {
		close(t.ch)
	}
	t.mu.Unlock()
}

func (t *tracker) idle() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.n == 0 {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return t.ch
}
