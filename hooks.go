package tagcache

// Hooks lightweight callbacks for high-signal events.
// Implementations MUST be cheap and non-blocking; wrap slow sinks with
// hooks/async.
type Hooks interface {
	// Entry's provided tags matched an invalidation. tags are the matching provided tags.
	EntryInvalidated(queryKey string, tags []Tag)

	// A background refetch was started (subscribed entry went stale, or a
	// new subscriber found no fresh data).
	RefetchScheduled(queryKey string)

	// A query's remote call failed; message is what the entry now carries.
	QueryFailed(queryKey, message string)

	// Entry metadata and record were dropped.
	// reason ∈ {"unused", "reset"}
	EntryEvicted(queryKey, reason string)

	// A record was deleted by the cache on read.
	// reason ∈ {"corrupt", "gen_mismatch", "value_decode"}
	SelfHealEntry(storageKey, reason string)

	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)

	// GenStore errors (snapshot or bump).
	// count is number of keys involved.
	GenSnapshotError(count int, err error)
	GenBumpError(keys []string, err error)

	// A query provided a tag whose kind is not in Options.TagTypes; invalidations
	// of that kind during an in-flight fetch go undetected. Reported once per kind.
	UndeclaredTagType(kind string)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) EntryInvalidated(string, []Tag) {}
func (NopHooks) RefetchScheduled(string)        {}
func (NopHooks) QueryFailed(string, string)     {}
func (NopHooks) EntryEvicted(string, string)    {}
func (NopHooks) SelfHealEntry(string, string)   {}
func (NopHooks) ProviderSetRejected(string)     {}
func (NopHooks) GenSnapshotError(int, error)    {}
func (NopHooks) GenBumpError([]string, error)   {}
func (NopHooks) UndeclaredTagType(string)       {}
