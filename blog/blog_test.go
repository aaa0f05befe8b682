package blog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/tagcache"
	"github.com/unkn0wn-root/tagcache/internal/fakeapi"
	"github.com/unkn0wn-root/tagcache/provider/ristretto"
	"github.com/unkn0wn-root/tagcache/slice"
)

func fixedClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newClient(t *testing.T, opts ...fakeapi.Option) (*Client, *fakeapi.Server) {
	t.Helper()
	srv := fakeapi.New(append([]fakeapi.Option{fakeapi.WithClock(fixedClock())}, opts...)...)
	p, err := ristretto.New(ristretto.DefaultConfig(1000))
	require.NoError(t, err)
	api, err := tagcache.New(tagcache.Options{
		Namespace: "blog",
		Provider:  p,
		Requester: srv,
		TagTypes:  TagTypes,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = api.Close(context.Background()) })

	c, err := NewClient(api, srv)
	require.NoError(t, err)
	return c, srv
}

func flush(t *testing.T, c *Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Api.Flush(ctx))
}

func TestFetchPostsLifecycle(t *testing.T) {
	c, _ := newClient(t)
	var statuses []slice.Status
	c.Store.Subscribe(func() { statuses = append(statuses, c.Store.State().Posts.Status) })

	require.Equal(t, slice.Idle, c.Store.State().Posts.Status)
	require.NoError(t, c.FetchPosts(context.Background()))

	require.Equal(t, []slice.Status{slice.Loading, slice.Succeeded}, statuses)
	posts := SelectAllPosts(c.Store.State())
	require.Len(t, posts, 2)
	require.Equal(t, "2", posts[0].ID, "newest first")
	require.Equal(t, []string{"2", "1"}, SelectPostIDs(c.Store.State()))

	p, ok := SelectPostByID(c.Store.State(), "1")
	require.True(t, ok)
	require.Equal(t, "First Post!", p.Title)
}

func TestFetchPostsNetworkFailure(t *testing.T) {
	c, srv := newClient(t)
	srv.Fail(fakeapi.RouteListPosts, fakeapi.ErrNetwork)

	err := c.FetchPosts(context.Background())
	require.Error(t, err)
	st := c.Store.State().Posts
	require.Equal(t, slice.Failed, st.Status)
	require.Equal(t, "network error", st.Error)
	require.Zero(t, st.Table.Len())

	srv.Heal(fakeapi.RouteListPosts)
	require.NoError(t, c.FetchPosts(context.Background()))
	st = c.Store.State().Posts
	require.Equal(t, slice.Succeeded, st.Status)
	require.Empty(t, st.Error)
	require.Equal(t, 2, st.Table.Len())
}

func TestFetchPostsWhileLoadingIsNoop(t *testing.T) {
	c, srv := newClient(t, fakeapi.WithLatency(50*time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- c.FetchPosts(context.Background()) }()
	require.Eventually(t, func() bool {
		return c.Store.State().Posts.Status == slice.Loading
	}, time.Second, time.Millisecond)

	require.NoError(t, c.FetchPosts(context.Background()))
	require.NoError(t, <-done)
	require.Equal(t, 1, srv.Calls(fakeapi.RouteListPosts))
}

func TestAddNewPostRefetchesSubscribedList(t *testing.T) {
	ctx := context.Background()
	c, srv := newClient(t)

	unsub, err := c.Endpoints.GetPosts.Subscribe(ctx, struct{}{}, nil)
	require.NoError(t, err)
	defer unsub()
	flush(t, c)

	v := c.Endpoints.GetPosts.Select(ctx, struct{}{})
	require.Equal(t, tagcache.StatusFresh, v.Status)
	require.Len(t, v.Data, 2)

	created, err := c.Endpoints.AddNewPost.Invoke(ctx, NewPost{Title: "T", Content: "C", User: "0"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, tagcache.StatusFresh, c.Endpoints.AddNewPost.Last().Status)
	flush(t, c)

	v = c.Endpoints.GetPosts.Select(ctx, struct{}{})
	require.Equal(t, tagcache.StatusFresh, v.Status)
	require.Len(t, v.Data, 3)
	require.Equal(t, 2, srv.Calls(fakeapi.RouteListPosts))
}

func TestUnsubscribedListRefetchesLazily(t *testing.T) {
	ctx := context.Background()
	c, srv := newClient(t)

	_, err := c.Endpoints.GetPosts.Get(ctx, struct{}{})
	require.NoError(t, err)
	_, err = c.Endpoints.AddNewPost.Invoke(ctx, NewPost{Title: "T", Content: "C", User: "1"})
	require.NoError(t, err)
	flush(t, c)

	require.Equal(t, tagcache.StatusStale, c.Endpoints.GetPosts.Select(ctx, struct{}{}).Status)
	require.Equal(t, 1, srv.Calls(fakeapi.RouteListPosts))

	posts, err := c.Endpoints.GetPosts.Get(ctx, struct{}{})
	require.NoError(t, err)
	require.Len(t, posts, 3)
	require.Equal(t, 2, srv.Calls(fakeapi.RouteListPosts))
}

func TestEditPostInvalidatesOnlyThatPost(t *testing.T) {
	ctx := context.Background()
	c, srv := newClient(t)

	for _, id := range []string{"1", "2"} {
		unsub, err := c.Endpoints.GetPost.Subscribe(ctx, id, nil)
		require.NoError(t, err)
		defer unsub()
	}
	flush(t, c)
	require.Equal(t, 2, srv.Calls(fakeapi.RouteGetPost))

	_, err := c.Endpoints.EditPost.Invoke(ctx, PostEdit{ID: "1", Title: "Edited", Content: "Body"})
	require.NoError(t, err)
	flush(t, c)

	require.Equal(t, 3, srv.Calls(fakeapi.RouteGetPost))
	v := c.Endpoints.GetPost.Select(ctx, "1")
	require.Equal(t, "Edited", v.Data.Title)
	require.Equal(t, "Second Post", c.Endpoints.GetPost.Select(ctx, "2").Data.Title)
}

func TestAddReactionMutation(t *testing.T) {
	ctx := context.Background()
	c, _ := newClient(t)

	_, err := c.Endpoints.GetPost.Get(ctx, "2")
	require.NoError(t, err)
	p, err := c.Endpoints.AddReaction.Invoke(ctx, ReactionArg{PostID: "2", Reaction: Rocket})
	require.NoError(t, err)
	require.Equal(t, 1, p.Reactions.Get(Rocket))

	require.Equal(t, tagcache.StatusStale, c.Endpoints.GetPost.Select(ctx, "2").Status)
	got, err := c.Endpoints.GetPost.Get(ctx, "2")
	require.NoError(t, err)
	require.Equal(t, 1, got.Reactions.Rocket)
}

func TestFailedMutationKeepsCache(t *testing.T) {
	ctx := context.Background()
	c, srv := newClient(t)

	_, err := c.Endpoints.GetPosts.Get(ctx, struct{}{})
	require.NoError(t, err)
	srv.Fail(fakeapi.RouteAddPost, fakeapi.ErrNetwork)

	_, err = c.Endpoints.AddNewPost.Invoke(ctx, NewPost{Title: "T", Content: "C", User: "0"})
	require.Error(t, err)
	last := c.Endpoints.AddNewPost.Last()
	require.True(t, last.IsError())
	require.Equal(t, "network error", last.Error)
	require.Equal(t, tagcache.StatusFresh, c.Endpoints.GetPosts.Select(ctx, struct{}{}).Status)
}

func TestUsersTable(t *testing.T) {
	ctx := context.Background()
	c, srv := newClient(t)

	require.Empty(t, c.SelectAllUsers(ctx))
	users, err := c.Endpoints.GetUsers.Get(ctx, struct{}{})
	require.NoError(t, err)
	require.Equal(t, []string{"0", "1", "2"}, users.IDs())

	u, ok := c.SelectUserByID(ctx, "1")
	require.True(t, ok)
	require.Equal(t, "Kevin Grant", u.Name)
	require.Len(t, c.SelectAllUsers(ctx), 3)

	// served from the provider after decoding the stored table
	_, err = c.Endpoints.GetUsers.Get(ctx, struct{}{})
	require.NoError(t, err)
	require.Equal(t, 1, srv.Calls(fakeapi.RouteListUsers))
}

func TestPostReducers(t *testing.T) {
	c, _ := newClient(t)
	require.NoError(t, c.FetchPosts(context.Background()))

	c.UpdatePost("1", "New title", "New body")
	c.AddReaction("1", Heart)
	c.AddReaction("1", Heart)
	c.AddReaction("missing", Heart)

	p, ok := SelectPostByID(c.Store.State(), "1")
	require.True(t, ok)
	require.Equal(t, "New title", p.Title)
	require.Equal(t, "New body", p.Content)
	require.Equal(t, 2, p.Reactions.Heart)
	require.Equal(t, 2, c.Store.State().Posts.Table.Len())
}

func TestAddNewPostThunk(t *testing.T) {
	c, _ := newClient(t)
	require.NoError(t, c.FetchPosts(context.Background()))

	p, err := c.AddNewPost(context.Background(), NewPost{Title: "Third", Content: "x", User: "2"})
	require.NoError(t, err)
	require.Equal(t, p.ID, SelectPostIDs(c.Store.State())[0])
	require.Equal(t, slice.Succeeded, c.Store.State().Posts.Status)
}

func TestPostsByUser(t *testing.T) {
	c, _ := newClient(t)
	require.NoError(t, c.FetchPosts(context.Background()))

	mine := c.PostsByUser("0")
	require.Len(t, mine, 1)
	require.Equal(t, "1", mine[0].ID)
	require.Empty(t, c.PostsByUser("2"))

	c.UpdatePost("1", "Changed", "")
	require.Equal(t, "Changed", c.PostsByUser("0")[0].Title)
}

func TestNotifications(t *testing.T) {
	ctx := context.Background()
	c, srv := newClient(t)

	srv.Notify("0", "says hi")
	srv.Notify("1", "reacted")
	require.NoError(t, c.FetchNotifications(ctx))
	all := SelectAllNotifications(c.Store.State())
	require.Len(t, all, 2)
	require.Equal(t, "reacted", all[0].Message)
	require.True(t, all[0].IsNew)

	c.MarkAllNotificationsRead()
	for _, n := range SelectAllNotifications(c.Store.State()) {
		require.True(t, n.Read)
	}

	srv.Notify("2", "posted")
	require.NoError(t, c.FetchNotifications(ctx))
	all = SelectAllNotifications(c.Store.State())
	require.Len(t, all, 3)
	require.Equal(t, "posted", all[0].Message)
	require.True(t, all[0].IsNew)
	require.False(t, all[1].IsNew)
	require.False(t, all[2].IsNew)
	require.Equal(t, 2, srv.Calls(fakeapi.RouteNotifications))
}

func TestParseReaction(t *testing.T) {
	r, err := ParseReaction("ROCKET")
	require.NoError(t, err)
	require.Equal(t, Rocket, r)
	_, err = ParseReaction("clap")
	require.Error(t, err)
}

func TestEncodings(t *testing.T) {
	for _, enc := range []Encoding{EncodingJSON, EncodingMsgpack, EncodingCBOR} {
		t.Run(string(enc), func(t *testing.T) {
			ctx := context.Background()
			srv := fakeapi.New()
			p, err := ristretto.New(ristretto.DefaultConfig(100))
			require.NoError(t, err)
			api, err := tagcache.New(tagcache.Options{Namespace: "blog", Provider: p, Requester: srv, TagTypes: TagTypes})
			require.NoError(t, err)
			defer api.Close(ctx)

			c, err := NewClient(api, srv, WithEncoding(enc), WithMaxDecode(1<<20))
			require.NoError(t, err)

			first, err := c.Endpoints.GetPosts.Get(ctx, struct{}{})
			require.NoError(t, err)
			cached, err := c.Endpoints.GetPosts.Get(ctx, struct{}{})
			require.NoError(t, err)
			require.Equal(t, first, cached)
			require.Equal(t, 1, srv.Calls(fakeapi.RouteListPosts))
		})
	}
}

func TestUnknownEncoding(t *testing.T) {
	p, err := ristretto.New(ristretto.DefaultConfig(100))
	require.NoError(t, err)
	api, err := tagcache.New(tagcache.Options{Namespace: "blog", Provider: p, Requester: fakeapi.New()})
	require.NoError(t, err)
	defer api.Close(context.Background())

	_, err = DeclareEndpoints(api, WithEncoding("yaml"))
	require.ErrorContains(t, err, `unknown encoding "yaml"`)
}
