package fakeapi

import (
	"context"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/tagcache/transport"
)

func fixedClock() func() time.Time {
	t := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestSeededPosts(t *testing.T) {
	s := New(WithClock(fixedClock()))
	posts, err := transport.Call[[]Post](context.Background(), s, transport.Get("/posts"))
	require.NoError(t, err)
	require.Len(t, posts, 2)
	require.Equal(t, 1, s.Calls(RouteListPosts))
	require.Equal(t, 0, posts[0].Reactions["heart"])
}

func TestAddPostAssignsIDAndDate(t *testing.T) {
	ctx := context.Background()
	s := New(WithClock(fixedClock()))

	p, err := transport.Call[Post](ctx, s, transport.Post("/posts", map[string]string{"title": "T", "content": "C", "user": "0"}))
	require.NoError(t, err)
	require.Len(t, p.ID, 26)
	require.Equal(t, "2024-05-01T12:00:02.000Z", p.Date)

	got, err := transport.Call[Post](ctx, s, transport.Get("/posts/"+p.ID))
	require.NoError(t, err)
	require.Equal(t, p, got)

	_, err = s.Do(ctx, transport.Post("/posts", map[string]string{"title": "only"}))
	require.Equal(t, 400, transport.StatusOf(err))
}

func TestEditAndReact(t *testing.T) {
	ctx := context.Background()
	s := New()

	p, err := transport.Call[Post](ctx, s, transport.Patch("posts/1", map[string]string{"title": "Edited"}))
	require.NoError(t, err)
	require.Equal(t, "Edited", p.Title)
	require.Equal(t, "Hello!", p.Content)

	p, err = transport.Call[Post](ctx, s, transport.Post("posts/1/reactions", map[string]string{"reaction": "rocket"}))
	require.NoError(t, err)
	require.Equal(t, 1, p.Reactions["rocket"])

	_, err = s.Do(ctx, transport.Post("posts/1/reactions", map[string]string{"reaction": "nope"}))
	require.Equal(t, 400, transport.StatusOf(err))

	_, err = s.Do(ctx, transport.Patch("posts/404", map[string]string{"title": "x"}))
	require.Equal(t, 404, transport.StatusOf(err))
	require.Equal(t, "post not found", transport.Message(err))
}

func TestFailureInjection(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Fail(RouteListPosts, ErrNetwork)

	_, err := s.Do(ctx, transport.Get("/posts"))
	require.Error(t, err)
	require.Equal(t, 0, transport.StatusOf(err))
	require.Equal(t, "network error", err.Error())

	s.Fail(RouteListUsers, &transport.Error{Status: 500, Message: "boom"})
	_, err = s.Do(ctx, transport.Get("/users"))
	require.Equal(t, 500, transport.StatusOf(err))

	s.Heal(RouteListPosts)
	_, err = s.Do(ctx, transport.Get("/posts"))
	require.NoError(t, err)
	require.Equal(t, 2, s.Calls(RouteListPosts))
}

func TestNotificationsSince(t *testing.T) {
	ctx := context.Background()
	s := New(WithClock(fixedClock()))
	first := s.Notify("0", "says hi")
	second := s.Notify("1", "posted")

	req := transport.Get("/notifications")
	req.Query = url.Values{"since": {""}}
	all, err := transport.Call[[]Notification](ctx, s, req)
	require.NoError(t, err)
	require.Equal(t, []string{second.ID, first.ID}, []string{all[0].ID, all[1].ID})

	req.Query = url.Values{"since": {first.Date}}
	newer, err := transport.Call[[]Notification](ctx, s, req)
	require.NoError(t, err)
	require.Len(t, newer, 1)
	require.Equal(t, second.ID, newer[0].ID)
}

func TestGenerateNotifications(t *testing.T) {
	s := New(WithClock(fixedClock()))
	got := s.Generate(3)
	require.Len(t, got, 3)
	for _, n := range got {
		require.True(t, n.IsNew)
		require.Contains(t, []string{"0", "1", "2"}, n.User)
		require.Contains(t, notificationMessages, n.Message)
	}

	all, err := transport.Call[[]Notification](context.Background(), s, transport.Get("/notifications"))
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, got[2].ID, all[0].ID)
}

func TestUnknownRoute(t *testing.T) {
	_, err := New().Do(context.Background(), transport.Request{Method: "DELETE", Path: "/posts/1"})
	require.Equal(t, 404, transport.StatusOf(err))
}

func TestLatencyHonorsContext(t *testing.T) {
	s := New(WithLatency(time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := s.Do(ctx, transport.Get("/posts"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestServeHTTPWithTransport(t *testing.T) {
	s := New()
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	h, err := transport.NewHTTP(transport.Config{BaseURL: srv.URL + "/fakeApi"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	ctx := context.Background()
	p, err := transport.Call[Post](ctx, h, transport.Post("/posts", map[string]string{"title": "T", "content": "C", "user": "2"}))
	require.NoError(t, err)
	require.NotEmpty(t, p.ID)

	posts, err := transport.Call[[]Post](ctx, h, transport.Get("/posts"))
	require.NoError(t, err)
	require.Len(t, posts, 3)

	_, err = h.Do(ctx, transport.Get("/posts/missing"))
	require.Equal(t, 404, transport.StatusOf(err))
	require.Equal(t, "404: post not found", err.Error())

	s.Fail(RouteListUsers, ErrNetwork)
	_, err = h.Do(ctx, transport.Get("/users"))
	require.Equal(t, 503, transport.StatusOf(err))
}
