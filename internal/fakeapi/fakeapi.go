// Package fakeapi is an in-memory stand-in for the blog REST API. It serves
// transport.Requester calls directly and plain HTTP through ServeHTTP, assigns
// ids (ULIDs) and dates on the server side, counts calls per route and lets
// tests inject failures.
package fakeapi

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/oklog/ulid/v2"

	"github.com/unkn0wn-root/tagcache/transport"
)

// DateLayout is fixed-width so dates compare correctly as strings.
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

// Routes as counted by Calls and targeted by Fail.
const (
	RouteListPosts     = "GET /posts"
	RouteAddPost       = "POST /posts"
	RouteGetPost       = "GET /posts/{id}"
	RouteEditPost      = "PATCH /posts/{id}"
	RouteAddReaction   = "POST /posts/{id}/reactions"
	RouteListUsers     = "GET /users"
	RouteNotifications = "GET /notifications"
)

// ErrNetwork is a convenient injected failure.
var ErrNetwork = errors.New("network error")

var reactionNames = []string{"thumbsUp", "hooray", "heart", "rocket", "eyes"}

type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Post struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	User      string         `json:"user"`
	Date      string         `json:"date"`
	Reactions map[string]int `json:"reactions"`
}

type Notification struct {
	ID      string `json:"id"`
	Date    string `json:"date"`
	Message string `json:"message"`
	User    string `json:"user"`
	Read    bool   `json:"read"`
	IsNew   bool   `json:"isNew"`
}

type Server struct {
	mu            sync.Mutex
	now           func() time.Time
	entropy       *ulid.MonotonicEntropy
	rng           *rand.Rand
	latency       time.Duration
	users         []User
	posts         []Post
	notifications []Notification
	fail          map[string]error
	calls         map[string]int
}

var _ transport.Requester = (*Server)(nil)

type Option func(*Server)

// WithClock sets the time source for assigned dates.
func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

// WithLatency delays every request, honoring ctx.
func WithLatency(d time.Duration) Option { return func(s *Server) { s.latency = d } }

// WithSeed replaces the default seeded users and posts.
func WithSeed(users []User, posts []Post) Option {
	return func(s *Server) {
		s.users = append([]User(nil), users...)
		s.posts = make([]Post, len(posts))
		for i, p := range posts {
			s.posts[i] = clonePost(p)
		}
	}
}

// New returns a server seeded with three users and two posts.
func New(opts ...Option) *Server {
	s := &Server{
		now:     time.Now,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(1)), 0),
		rng:     rand.New(rand.NewSource(2)),
		fail:    make(map[string]error),
		calls:   make(map[string]int),
	}
	s.users = []User{
		{ID: "0", Name: "Tianna Jenkins"},
		{ID: "1", Name: "Kevin Grant"},
		{ID: "2", Name: "Madison Price"},
	}
	for _, o := range opts {
		o(s)
	}
	if s.posts == nil {
		now := s.now()
		s.posts = []Post{
			{ID: "1", Title: "First Post!", Content: "Hello!", User: "0", Date: formatDate(now.Add(-10 * time.Minute)), Reactions: emptyReactions()},
			{ID: "2", Title: "Second Post", Content: "More text", User: "1", Date: formatDate(now.Add(-5 * time.Minute)), Reactions: emptyReactions()},
		}
	}
	return s
}

// Fail makes every request to route fail with err until Heal. Use
// ErrNetwork for a transport-level failure or a *transport.Error for an HTTP
// status.
func (s *Server) Fail(route string, err error) {
	s.mu.Lock()
	s.fail[route] = err
	s.mu.Unlock()
}

func (s *Server) Heal(route string) {
	s.mu.Lock()
	delete(s.fail, route)
	s.mu.Unlock()
}

// Calls returns how many requests reached route, failed ones included.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Notify appends a notification for user dated now.
func (s *Server) Notify(user, message string) Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := Notification{ID: newID(now, s.entropy), Date: formatDate(now), Message: message, User: user, IsNew: true}
	s.notifications = append(s.notifications, n)
	return n
}

var notificationMessages = []string{
	"poked you",
	"says hi!",
	"is glad we're friends",
	"sent you a gift",
}

// Generate adds n notifications from random users with random messages and
// returns them.
func (s *Server) Generate(n int) []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, 0, n)
	for i := 0; i < n && len(s.users) > 0; i++ {
		now := s.now()
		u := s.users[s.rng.Intn(len(s.users))]
		msg := notificationMessages[s.rng.Intn(len(notificationMessages))]
		nt := Notification{ID: newID(now, s.entropy), Date: formatDate(now), Message: msg, User: u.ID, IsNew: true}
		s.notifications = append(s.notifications, nt)
		out = append(out, nt)
	}
	return out
}

func (s *Server) Do(ctx context.Context, req transport.Request) (transport.Response, error) {
	if s.latency > 0 {
		select {
		case <-time.After(s.latency):
		case <-ctx.Done():
			return transport.Response{}, ctx.Err()
		}
	}
	route, id := match(req.Method, req.Path)

	s.mu.Lock()
	defer s.mu.Unlock()
	if route == "" {
		return transport.Response{}, &transport.Error{Status: 404, Message: "no route for " + req.Method + " " + req.Path}
	}
	s.calls[route]++
	if err := s.fail[route]; err != nil {
		var te *transport.Error
		if errors.As(err, &te) {
			return transport.Response{}, err
		}
		return transport.Response{}, &transport.Error{Message: err.Error(), Err: err}
	}

	switch route {
	case RouteListPosts:
		return reply(s.listPosts())
	case RouteGetPost:
		p, ok := s.post(id)
		if !ok {
			return notFound("post")
		}
		return reply(p)
	case RouteAddPost:
		return s.addPost(req.Body)
	case RouteEditPost:
		return s.editPost(id, req.Body)
	case RouteAddReaction:
		return s.addReaction(id, req.Body)
	case RouteListUsers:
		return reply(s.users)
	default: // RouteNotifications
		return reply(s.since(req.Query.Get("since")))
	}
}

func (s *Server) addPost(body any) (transport.Response, error) {
	var in struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		User    string `json:"user"`
	}
	if err := decodeBody(body, &in); err != nil {
		return badRequest(err.Error())
	}
	if in.Title == "" || in.Content == "" {
		return badRequest("title and content are required")
	}
	now := s.now()
	p := Post{
		ID:        newID(now, s.entropy),
		Title:     in.Title,
		Content:   in.Content,
		User:      in.User,
		Date:      formatDate(now),
		Reactions: emptyReactions(),
	}
	s.posts = append(s.posts, p)
	return reply(p)
}

func (s *Server) editPost(id string, body any) (transport.Response, error) {
	var in struct {
		Title   *string `json:"title"`
		Content *string `json:"content"`
	}
	if err := decodeBody(body, &in); err != nil {
		return badRequest(err.Error())
	}
	i := s.index(id)
	if i < 0 {
		return notFound("post")
	}
	if in.Title != nil {
		s.posts[i].Title = *in.Title
	}
	if in.Content != nil {
		s.posts[i].Content = *in.Content
	}
	return reply(clonePost(s.posts[i]))
}

func (s *Server) addReaction(id string, body any) (transport.Response, error) {
	var in struct {
		Reaction string `json:"reaction"`
	}
	if err := decodeBody(body, &in); err != nil {
		return badRequest(err.Error())
	}
	i := s.index(id)
	if i < 0 {
		return notFound("post")
	}
	if _, ok := s.posts[i].Reactions[in.Reaction]; !ok {
		return badRequest("unknown reaction " + in.Reaction)
	}
	s.posts[i].Reactions[in.Reaction]++
	return reply(clonePost(s.posts[i]))
}

// since returns notifications dated after since, newest first.
func (s *Server) since(since string) []Notification {
	out := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if n.Date > since {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

func (s *Server) listPosts() []Post {
	out := make([]Post, len(s.posts))
	for i, p := range s.posts {
		out[i] = clonePost(p)
	}
	return out
}

func (s *Server) post(id string) (Post, bool) {
	if i := s.index(id); i >= 0 {
		return clonePost(s.posts[i]), true
	}
	return Post{}, false
}

func (s *Server) index(id string) int {
	for i, p := range s.posts {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func newID(now time.Time, entropy io.Reader) string {
	return ulid.MustNew(ulid.Timestamp(now), entropy).String()
}

func formatDate(t time.Time) string { return t.UTC().Format(DateLayout) }

// match resolves method and path to a route and the {id} segment.
func match(method, path string) (route, id string) {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	seg := strings.Split(strings.Trim(path, "/"), "/")
	if len(seg) > 0 && seg[0] == "fakeApi" {
		seg = seg[1:]
	}
	if method == "" {
		method = "GET"
	}
	switch {
	case len(seg) == 1 && seg[0] == "posts" && method == "GET":
		return RouteListPosts, ""
	case len(seg) == 1 && seg[0] == "posts" && method == "POST":
		return RouteAddPost, ""
	case len(seg) == 2 && seg[0] == "posts" && method == "GET":
		return RouteGetPost, seg[1]
	case len(seg) == 2 && seg[0] == "posts" && method == "PATCH":
		return RouteEditPost, seg[1]
	case len(seg) == 3 && seg[0] == "posts" && seg[2] == "reactions" && method == "POST":
		return RouteAddReaction, seg[1]
	case len(seg) == 1 && seg[0] == "users" && method == "GET":
		return RouteListUsers, ""
	case len(seg) == 1 && seg[0] == "notifications" && method == "GET":
		return RouteNotifications, ""
	}
	return "", ""
}

// decodeBody round-trips body through JSON so handlers see what an HTTP
// server would.
func decodeBody(body, into any) error {
	if body == nil {
		return errors.New("missing body")
	}
	raw, ok := body.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		raw = b
	}
	return json.Unmarshal(raw, into)
}

func reply(v any) (transport.Response, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return transport.Response{}, &transport.Error{Status: 500, Message: err.Error(), Err: err}
	}
	return transport.Response{Status: 200, Body: b}, nil
}

func notFound(what string) (transport.Response, error) {
	return transport.Response{}, &transport.Error{Status: 404, Message: what + " not found"}
}

func badRequest(msg string) (transport.Response, error) {
	return transport.Response{}, &transport.Error{Status: 400, Message: msg}
}

func emptyReactions() map[string]int {
	m := make(map[string]int, len(reactionNames))
	for _, r := range reactionNames {
		m[r] = 0
	}
	return m
}

func clonePost(p Post) Post {
	r := make(map[string]int, len(p.Reactions))
	for k, v := range p.Reactions {
		r[k] = v
	}
	if len(r) == 0 {
		r = emptyReactions()
	}
	p.Reactions = r
	return p
}
