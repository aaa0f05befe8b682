package blog

import (
	"strings"

	"github.com/unkn0wn-root/tagcache/entity"
	"github.com/unkn0wn-root/tagcache/slice"
	"github.com/unkn0wn-root/tagcache/store"
	"github.com/unkn0wn-root/tagcache/thunk"
)

func newestFirst[T any](date func(T) string) func(a, b T) int {
	return func(a, b T) int { return strings.Compare(date(b), date(a)) }
}

var (
	PostsAdapter = entity.NewAdapter(func(p Post) string { return p.ID },
		entity.WithSortComparer(newestFirst(func(p Post) string { return p.Date })))
	UsersAdapter         = entity.NewAdapter(func(u User) string { return u.ID })
	NotificationsAdapter = entity.NewAdapter(func(n Notification) string { return n.ID },
		entity.WithSortComparer(newestFirst(func(n Notification) string { return n.Date })))
)

// State is the client-side store: posts with their fetch lifecycle, and
// notifications.
type State struct {
	Posts         slice.State[Post]
	Notifications slice.State[Notification]
}

func InitialState() State {
	return State{
		Posts:         slice.Initial(PostsAdapter),
		Notifications: slice.Initial(NotificationsAdapter),
	}
}

// Plain actions.
type (
	PostUpdated struct {
		ID      string
		Title   string
		Content string
	}
	ReactionAdded struct {
		PostID   string
		Reaction Reaction
	}
	AllNotificationsRead struct{}
)

// Signal types of the client thunks.
type (
	fetchPostsSignal         = thunk.Signal[struct{}, []Post]
	addNewPostSignal         = thunk.Signal[NewPost, Post]
	fetchNotificationsSignal = thunk.Signal[string, []Notification]
)

// Reduce is the store reducer.
func Reduce(s State, action any) State {
	switch a := action.(type) {
	case fetchPostsSignal:
		s.Posts = slice.Apply(s.Posts, a, slice.UpsertResult(PostsAdapter))
	case addNewPostSignal:
		s.Posts = slice.ApplyTable(s.Posts, a, slice.AddResult(PostsAdapter))
	case fetchNotificationsSignal:
		s.Notifications = slice.ApplyTable(s.Notifications, a, receiveNotifications)
	case PostUpdated:
		s.Posts.Table = PostsAdapter.UpdateOne(s.Posts.Table, a.ID, func(p Post) Post {
			p.Title = a.Title
			p.Content = a.Content
			return p
		})
	case ReactionAdded:
		s.Posts.Table = PostsAdapter.UpdateOne(s.Posts.Table, a.PostID, func(p Post) Post {
			p.Reactions = p.Reactions.Add(a.Reaction)
			return p
		})
	case AllNotificationsRead:
		s.Notifications.Table = markAll(s.Notifications.Table, func(n Notification) Notification {
			n.Read = true
			return n
		})
	}
	return s
}

// receiveNotifications flags notifications already held as new until read,
// then upserts the fetched ones.
func receiveNotifications(s slice.State[Notification], fetched []Notification) slice.State[Notification] {
	t := markAll(s.Table, func(n Notification) Notification {
		n.IsNew = !n.Read
		return n
	})
	s.Table = NotificationsAdapter.UpsertMany(t, fetched)
	return s
}

func markAll(t *entity.Table[Notification], f func(Notification) Notification) *entity.Table[Notification] {
	ids := t.IDs()
	ups := make([]entity.Update[Notification], len(ids))
	for i, id := range ids {
		ups[i] = entity.Update[Notification]{ID: id, Changes: f}
	}
	return NotificationsAdapter.UpdateMany(t, ups)
}

func SelectAllPosts(s State) []Post { return slice.SelectAll(s.Posts) }

func SelectPostByID(s State, id string) (Post, bool) { return slice.SelectByID(s.Posts, id) }

func SelectPostIDs(s State) []string { return slice.SelectIDs(s.Posts) }

func SelectAllNotifications(s State) []Notification { return slice.SelectAll(s.Notifications) }

type postsByUser struct {
	posts *entity.Table[Post]
	user  string
}

// NewSelectPostsByUser returns a memoized selector; the filter reruns only
// when the posts table or the user changes.
func NewSelectPostsByUser() func(State, string) []Post {
	return store.CreateSelector(
		func(s State, user string) postsByUser { return postsByUser{s.Posts.Table, user} },
		func(in postsByUser) []Post {
			var out []Post
			for _, p := range in.posts.All() {
				if p.User == in.user {
					out = append(out, p)
				}
			}
			return out
		},
	)
}
