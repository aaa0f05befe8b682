package blog

import (
	"github.com/unkn0wn-root/tagcache"
	"github.com/unkn0wn-root/tagcache/entity"
	"github.com/unkn0wn-root/tagcache/transport"
)

const (
	TagPost = "Post"
	TagUser = "User"
)

// TagTypes is the Options.TagTypes value for an Api serving Endpoints.
var TagTypes = []string{TagPost, TagUser}

// Endpoints are the cached queries and the mutations of the blog API.
type Endpoints struct {
	GetPosts    *tagcache.Query[struct{}, []Post]
	GetPost     *tagcache.Query[string, Post]
	GetUsers    *tagcache.Query[struct{}, *entity.Table[User]]
	AddNewPost  *tagcache.Mutation[NewPost, Post]
	EditPost    *tagcache.Mutation[PostEdit, Post]
	AddReaction *tagcache.Mutation[ReactionArg, Post]
}

func postID(p Post) string { return p.ID }

// DeclareEndpoints registers the blog endpoints on api, which needs a Requester.
func DeclareEndpoints(api *tagcache.Api, opts ...Option) (*Endpoints, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	listCodec, err := codecFor[[]Post](o)
	if err != nil {
		return nil, err
	}
	postCodec, err := codecFor[Post](o)
	if err != nil {
		return nil, err
	}

	var e Endpoints
	e.GetPosts, err = tagcache.DeclareQuery(api, "getPosts", tagcache.QueryDef[struct{}, []Post]{
		Query: func(struct{}) transport.Request { return transport.Get("/posts") },
		ProvidesTags: func(posts []Post, _ struct{}) []tagcache.Tag {
			return tagcache.ListTags(TagPost, posts, postID)
		},
		Codec: listCodec,
	})
	if err != nil {
		return nil, err
	}

	e.GetPost, err = tagcache.DeclareQuery(api, "getPost", tagcache.QueryDef[string, Post]{
		Query: func(id string) transport.Request { return transport.Get("/posts/" + id) },
		ProvidesTags: func(_ Post, id string) []tagcache.Tag {
			return []tagcache.Tag{tagcache.IDTag(TagPost, id)}
		},
		Codec: postCodec,
	})
	if err != nil {
		return nil, err
	}

	e.GetUsers, err = tagcache.DeclareQuery(api, "getUsers", tagcache.QueryDef[struct{}, *entity.Table[User]]{
		Query: func(struct{}) transport.Request { return transport.Get("/users") },
		TransformResponse: func(resp transport.Response, _ struct{}) (*entity.Table[User], error) {
			users, err := transport.Decode[[]User](resp)
			if err != nil {
				return nil, err
			}
			return UsersAdapter.SetAll(UsersAdapter.Initial(), users), nil
		},
		ProvidesTags: func(t *entity.Table[User], _ struct{}) []tagcache.Tag {
			return tagcache.ListTags(TagUser, t.All(), func(u User) string { return u.ID })
		},
	})
	if err != nil {
		return nil, err
	}

	e.AddNewPost, err = tagcache.DeclareMutation(api, "addNewPost", tagcache.MutationDef[NewPost, Post]{
		Query: func(p NewPost) transport.Request { return transport.Post("/posts", p) },
		InvalidatesTags: func(Post, NewPost) []tagcache.Tag {
			return []tagcache.Tag{tagcache.KindTag(TagPost)}
		},
	})
	if err != nil {
		return nil, err
	}

	e.EditPost, err = tagcache.DeclareMutation(api, "editPost", tagcache.MutationDef[PostEdit, Post]{
		Query: func(p PostEdit) transport.Request { return transport.Patch("posts/"+p.ID, p) },
		InvalidatesTags: func(_ Post, p PostEdit) []tagcache.Tag {
			return []tagcache.Tag{tagcache.IDTag(TagPost, p.ID)}
		},
	})
	if err != nil {
		return nil, err
	}

	e.AddReaction, err = tagcache.DeclareMutation(api, "addReaction", tagcache.MutationDef[ReactionArg, Post]{
		Query: func(r ReactionArg) transport.Request {
			return transport.Post("posts/"+r.PostID+"/reactions", map[string]Reaction{"reaction": r.Reaction})
		},
		InvalidatesTags: func(_ Post, r ReactionArg) []tagcache.Tag {
			return []tagcache.Tag{tagcache.IDTag(TagPost, r.PostID)}
		},
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}
