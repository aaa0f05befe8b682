package tagcache

// Tag labels cached data. An empty ID is the bare collection tag for Kind.
// Kinds are disjoint: (Post, 1) and (User, 1) never match each other.
type Tag struct {
	Kind string
	ID   string
}

func KindTag(kind string) Tag { return Tag{Kind: kind} }

func IDTag(kind, id string) Tag { return Tag{Kind: kind, ID: id} }

func (t Tag) String() string {
	if t.ID == "" {
		return t.Kind
	}
	return t.Kind + ":" + t.ID
}

// InvalidatedBy reports whether invalidating inv makes data that provided t
// stale: the bare kind matches every tag of that kind, an instance tag matches
// itself and the bare kind.
func (t Tag) InvalidatedBy(inv Tag) bool {
	if t.Kind != inv.Kind {
		return false
	}
	return inv.ID == "" || t.ID == "" || t.ID == inv.ID
}

// ListTags returns the collection tag for kind followed by one instance tag
// per item, the usual ProvidesTags of a list query.
func ListTags[T any](kind string, items []T, id func(T) string) []Tag {
	out := make([]Tag, 0, len(items)+1)
	out = append(out, KindTag(kind))
	for _, it := range items {
		out = append(out, IDTag(kind, id(it)))
	}
	return out
}

// normalizeTags drops tags without a kind and duplicates, keeping order.
func normalizeTags(tags []Tag) []Tag {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[Tag]struct{}, len(tags))
	out := make([]Tag, 0, len(tags))
	for _, t := range tags {
		if t.Kind == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// matching returns the provided tags hit by any of invalidated.
func matching(provided, invalidated []Tag) []Tag {
	var out []Tag
	for _, p := range provided {
		for _, inv := range invalidated {
			if p.InvalidatedBy(inv) {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

func (a *Api) anyKey(kind string) string      { return "t:" + a.ns + ":any:" + kind }
func (a *Api) kindKey(kind string) string     { return "t:" + a.ns + ":kind:" + kind }
func (a *Api) instKey(kind, id string) string { return "t:" + a.ns + ":inst:" + kind + ":" + id }

// observedKeys lists the generations an entry providing tags depends on.
func (a *Api) observedKeys(tags []Tag) []string {
	return dedupe(len(tags)*2, func(add func(string)) {
		for _, t := range tags {
			if t.ID == "" {
				add(a.anyKey(t.Kind))
				continue
			}
			add(a.kindKey(t.Kind))
			add(a.instKey(t.Kind, t.ID))
		}
	})
}

// bumpKeys lists the generations an invalidation of tags increments.
func (a *Api) bumpKeys(tags []Tag) []string {
	return dedupe(len(tags)*2, func(add func(string)) {
		for _, t := range tags {
			if t.ID == "" {
				add(a.kindKey(t.Kind))
			} else {
				add(a.instKey(t.Kind, t.ID))
			}
			add(a.anyKey(t.Kind))
		}
	})
}

func dedupe(hint int, fill func(add func(string))) []string {
	seen := make(map[string]struct{}, hint)
	out := make([]string, 0, hint)
	fill(func(s string) {
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	})
	return out
}
