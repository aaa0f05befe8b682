// Package tagcache is a query cache for remote APIs with tag-based invalidation.
// Query endpoints declare the tags their results provide; mutation endpoints
// declare the tags they invalidate. After a mutation succeeds, every cached
// query whose tags match is stale: subscribed entries refetch in the
// background, the rest on their next Get.
//
// Components:
//   - Provider: byte store with TTL holding entry records (Ristretto, BigCache, Redis).
//   - Codec[R]: (de)serializes query results; JSON by default.
//   - GenStore: generation counters per tag and per query key. Local by default,
//     Redis to share invalidations between replicas.
//   - transport.Requester: the remote API boundary.
//
// Keys:
//
//	entry:<ns>:<endpoint>(<args>)  - provider records
//	q:<ns>:<endpoint>(<args>)      - per-entry generation (bumped by Reset)
//	t:<ns>:any:<kind>              - bumped by every invalidation of <kind>
//	t:<ns>:kind:<kind>             - bumped by invalidating the bare <kind> tag
//	t:<ns>:inst:<kind>:<id>        - bumped by invalidating (<kind>, <id>)
//
// An entry that provided the bare tag K observes any:K; an entry that provided
// (K, id) observes kind:K and inst:K:id. The entry is fresh while every
// generation it observed is unchanged.
//
// Usage:
//
//	api, _ := tagcache.New(tagcache.Options{
//	    Namespace: "blog",
//	    Provider:  prov,
//	    Requester: client,
//	    TagTypes:  []string{"Post"},
//	})
//	getPost, _ := tagcache.DeclareQuery(api, "getPost", tagcache.QueryDef[string, Post]{
//	    Query:        func(id string) transport.Request { return transport.Get("/posts/" + id) },
//	    ProvidesTags: func(_ Post, id string) []tagcache.Tag { return []tagcache.Tag{tagcache.IDTag("Post", id)} },
//	})
//	p, err := getPost.Get(ctx, "42")
package tagcache
