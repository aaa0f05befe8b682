package tagcache

import "context"

// InvalidateTags marks every entry that provided a matching tag stale.
// Subscribed entries are refetched in the background (see Flush); the others
// refetch on their next Get.
func (a *Api) InvalidateTags(ctx context.Context, tags ...Tag) error {
	tags = normalizeTags(tags)
	if !a.enabled || len(tags) == 0 {
		return nil
	}

	keys := a.bumpKeys(tags)
	if _, err := a.gen.BumpMany(ctx, keys); err != nil {
		a.hooks.GenBumpError(keys, err)
		a.log.Error("gen bump error", Fields{"tags": len(tags), "err": err})
		return &InvalidateError{Tags: tags, Err: err}
	}

	type hit struct {
		key     string
		matched []Tag
		ls      []func()
		refetch func(context.Context)
	}
	var hits []hit

	a.mu.Lock()
	for key, e := range a.entries {
		// idle entries hold no result; fetching ones are fenced at store time
		if e.phase == phaseIdle || e.phase == phaseFetching {
			continue
		}
		m := matching(e.tags, tags)
		if len(m) == 0 {
			continue
		}
		h := hit{key: key, matched: m, ls: e.listenerFuncs()}
		if e.subs > 0 {
			h.refetch = e.refetch
		}
		hits = append(hits, h)
	}
	a.mu.Unlock()

	refetching := 0
	for _, h := range hits {
		a.hooks.EntryInvalidated(h.key, h.matched)
		notify(h.ls)
		if h.refetch != nil {
			refetching++
			a.flight.Forget(h.key)
			a.spawn(h.key, h.refetch)
		}
	}
	a.log.Debug("invalidated tags", Fields{"tags": len(tags), "entries": len(hits), "refetching": refetching})
	return nil
}
