package blog

import (
	"context"
	"errors"

	"github.com/unkn0wn-root/tagcache"
	"github.com/unkn0wn-root/tagcache/entity"
	"github.com/unkn0wn-root/tagcache/slice"
	"github.com/unkn0wn-root/tagcache/store"
	"github.com/unkn0wn-root/tagcache/thunk"
	"github.com/unkn0wn-root/tagcache/transport"
)

// Client is the UI-facing surface: a store for posts and notifications driven
// by thunks, plus the cached endpoints.
type Client struct {
	Store     *store.Store[State]
	Api       *tagcache.Api
	Endpoints *Endpoints

	req                transport.Requester
	fetchPosts         *thunk.Thunk[struct{}, []Post]
	addNewPost         *thunk.Thunk[NewPost, Post]
	fetchNotifications *thunk.Thunk[string, []Notification]
	postsByUser        func(State, string) []Post
}

// NewClient declares the endpoints on api and builds a fresh store. req is
// used by the store thunks; api must be configured with a Requester too.
func NewClient(api *tagcache.Api, req transport.Requester, opts ...Option) (*Client, error) {
	if req == nil {
		return nil, tagcache.ErrNoRequester
	}
	eps, err := DeclareEndpoints(api, opts...)
	if err != nil {
		return nil, err
	}
	c := &Client{
		Store:       store.New(InitialState(), Reduce),
		Api:         api,
		Endpoints:   eps,
		req:         req,
		postsByUser: NewSelectPostsByUser(),
	}

	c.fetchPosts = thunk.New("posts/fetchPosts",
		func(ctx context.Context, _ struct{}) ([]Post, error) {
			return transport.Call[[]Post](ctx, c.req, transport.Get("/posts"))
		},
		thunk.WithCondition[struct{}, []Post](func(struct{}) bool {
			return c.Store.State().Posts.Status != slice.Loading
		}),
	)
	c.addNewPost = thunk.New("posts/addNewPost", func(ctx context.Context, p NewPost) (Post, error) {
		return transport.Call[Post](ctx, c.req, transport.Post("/posts", p))
	})
	c.fetchNotifications = thunk.New("notifications/fetchNotifications", func(ctx context.Context, since string) ([]Notification, error) {
		req := transport.Get("/notifications")
		req.Query = map[string][]string{"since": {since}}
		return transport.Call[[]Notification](ctx, c.req, req)
	})
	return c, nil
}

// FetchPosts loads posts into the store. A call while a fetch is loading is
// a no-op.
func (c *Client) FetchPosts(ctx context.Context) error {
	_, err := c.fetchPosts.Run(ctx, struct{}{}, store.Bind[State, struct{}, []Post](c.Store))
	if errors.Is(err, thunk.ErrConditionRejected) {
		return nil
	}
	return err
}

// AddNewPost creates a post and adds the server's copy to the store.
func (c *Client) AddNewPost(ctx context.Context, p NewPost) (Post, error) {
	return c.addNewPost.Run(ctx, p, store.Bind[State, NewPost, Post](c.Store))
}

// FetchNotifications asks for notifications newer than the newest one held.
func (c *Client) FetchNotifications(ctx context.Context) error {
	since := ""
	if all := SelectAllNotifications(c.Store.State()); len(all) > 0 {
		since = all[0].Date
	}
	_, err := c.fetchNotifications.Run(ctx, since, store.Bind[State, string, []Notification](c.Store))
	return err
}

func (c *Client) UpdatePost(id, title, content string) {
	c.Store.Dispatch(PostUpdated{ID: id, Title: title, Content: content})
}

func (c *Client) AddReaction(postID string, r Reaction) {
	c.Store.Dispatch(ReactionAdded{PostID: postID, Reaction: r})
}

func (c *Client) MarkAllNotificationsRead() { c.Store.Dispatch(AllNotificationsRead{}) }

func (c *Client) PostsByUser(user string) []Post { return c.postsByUser(c.Store.State(), user) }

// Users returns the cached users table, empty when not loaded.
func (c *Client) Users(ctx context.Context) *entity.Table[User] {
	v := c.Endpoints.GetUsers.Select(ctx, struct{}{})
	if !v.HasData || v.Data == nil {
		return UsersAdapter.Initial()
	}
	return v.Data
}

func (c *Client) SelectAllUsers(ctx context.Context) []User { return c.Users(ctx).All() }

func (c *Client) SelectUserByID(ctx context.Context, id string) (User, bool) {
	return c.Users(ctx).ByID(id)
}
