package tagcache

import (
	"context"
	"sort"
	"time"

	"github.com/unkn0wn-root/tagcache/internal/wire"
)

func (a *Api) storageKey(queryKey string) string { return "entry:" + a.ns + ":" + queryKey }

func (a *Api) keyGenKey(queryKey string) string { return "q:" + a.ns + ":" + queryKey }

func (a *Api) snapshotGen(ctx context.Context, k string) uint64 {
	g, err := a.gen.Snapshot(ctx, k)
	if err != nil {
		// Conservative: treat as 0 so records written under another gen self-heal
		a.hooks.GenSnapshotError(1, err)
		a.log.Warn("gen snapshot error", Fields{"key": k, "err": err})
		return 0
	}
	return g
}

// snapshotFence records any:<kind> for every declared tag type before a
// fetch. nil when the GenStore failed; the fetch then runs unfenced.
func (a *Api) snapshotFence(ctx context.Context) map[string]uint64 {
	if len(a.fence) == 0 {
		return nil
	}
	keys := make([]string, 0, len(a.fence))
	for _, k := range a.fence {
		keys = append(keys, k)
	}
	m, err := a.gen.SnapshotMany(ctx, keys)
	if err != nil {
		a.hooks.GenSnapshotError(len(keys), err)
		a.log.Warn("fence snapshot error", Fields{"count": len(keys), "err": err})
		return nil
	}
	return m
}

// observe snapshots the generations tags depend on and reports whether any
// provided kind was invalidated since fence was taken.
func (a *Api) observe(ctx context.Context, tags []Tag, fence map[string]uint64) ([]wire.Observed, bool, error) {
	keys := a.observedKeys(tags)
	var fenced []string
	for _, t := range tags {
		fk, declared := a.fence[t.Kind]
		if !declared {
			a.warnUndeclared(t.Kind)
			continue
		}
		if fence != nil {
			fenced = append(fenced, fk)
		}
	}
	if len(keys) == 0 {
		return nil, false, nil
	}

	all := append(append(make([]string, 0, len(keys)+len(fenced)), keys...), fenced...)
	cur, err := a.gen.SnapshotMany(ctx, all)
	if err != nil {
		a.hooks.GenSnapshotError(len(all), err)
		return nil, false, err
	}

	stale := false
	for _, fk := range fenced {
		if cur[fk] != fence[fk] {
			stale = true
			break
		}
	}

	sort.Strings(keys)
	obs := make([]wire.Observed, len(keys))
	for i, k := range keys {
		obs[i] = wire.Observed{Key: k, Gen: cur[k]}
	}
	return obs, stale, nil
}

// observedValid reports whether every observed generation is unchanged.
func (a *Api) observedValid(ctx context.Context, obs []wire.Observed) bool {
	if len(obs) == 0 {
		return true
	}
	keys := make([]string, len(obs))
	for i, o := range obs {
		keys[i] = o.Key
	}
	cur, err := a.gen.SnapshotMany(ctx, keys)
	if err != nil {
		// Conservative: unknown generations read as stale
		a.hooks.GenSnapshotError(len(keys), err)
		a.log.Warn("gen snapshot error", Fields{"count": len(keys), "err": err})
		return false
	}
	for _, o := range obs {
		if cur[o.Key] != o.Gen {
			return false
		}
	}
	return true
}

func (a *Api) warnUndeclared(kind string) {
	a.mu.Lock()
	_, seen := a.undeclared[kind]
	a.undeclared[kind] = struct{}{}
	a.mu.Unlock()
	if !seen {
		a.hooks.UndeclaredTagType(kind)
		a.log.Warn("tag type not declared in TagTypes", Fields{"ns": a.ns, "kind": kind})
	}
}

// loadRecord reads and validates the record of queryKey. Records that are
// corrupt or belong to an older key generation are deleted.
func (a *Api) loadRecord(ctx context.Context, queryKey string) (wire.Entry, bool) {
	sk := a.storageKey(queryKey)
	raw, ok, err := a.provider.Get(ctx, sk)
	if err != nil {
		a.log.Warn("provider get error", Fields{"key": queryKey, "err": err})
		return wire.Entry{}, false
	}
	if !ok {
		return wire.Entry{}, false
	}
	rec, err := wire.Decode(raw)
	if err != nil {
		a.selfHeal(ctx, sk, "corrupt")
		return wire.Entry{}, false
	}
	if rec.KeyGen != a.snapshotGen(ctx, a.keyGenKey(queryKey)) {
		a.selfHeal(ctx, sk, "gen_mismatch")
		return wire.Entry{}, false
	}
	return rec, true
}

func (a *Api) selfHeal(ctx context.Context, storageKey, reason string) {
	_ = a.provider.Del(ctx, storageKey)
	a.hooks.SelfHealEntry(storageKey, reason)
	a.log.Debug("self-healed entry", Fields{"key": storageKey, "reason": reason})
}

// storeRecord writes rec unless the key generation moved since keyGen was
// taken. It reports whether the record was written. ttl 0 uses DefaultTTL.
func (a *Api) storeRecord(ctx context.Context, queryKey string, keyGen uint64, rec wire.Entry, ttl time.Duration) (bool, error) {
	if cur := a.snapshotGen(ctx, a.keyGenKey(queryKey)); cur != keyGen {
		// generation moved (reset); skip stale write
		a.log.Debug("store skipped (gen mismatch)", Fields{"key": queryKey, "obs": keyGen})
		return false, nil
	}
	rec.KeyGen = keyGen
	raw, err := wire.Encode(rec)
	if err != nil {
		return false, err
	}
	sk := a.storageKey(queryKey)
	ok, err := a.provider.Set(ctx, sk, raw, a.cost(sk, raw), coalesce(ttl, a.ttl))
	if err != nil {
		return false, err
	}
	if !ok {
		a.hooks.ProviderSetRejected(sk)
		a.log.Debug("store rejected by provider (pressure)", Fields{"key": queryKey})
		return false, nil
	}
	return true, nil
}
