package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

type echo struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Query  string `json:"query"`
	Body   string `json:"body"`
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/fail":
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"post not found"}`)
			return
		case "/api/plain":
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		b, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"method":"`+r.Method+`","path":"`+r.URL.Path+`","query":"`+r.URL.RawQuery+`","body":`+quote(string(b))+`}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func quote(s string) string {
	out := []byte{'"'}
	for _, c := range []byte(s) {
		if c == '"' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return string(append(out, '"'))
}

func newClient(t *testing.T, base string) *HTTP {
	t.Helper()
	h, err := NewHTTP(Config{BaseURL: base + "/api/"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestHTTPGetAndDecode(t *testing.T) {
	srv := newServer(t)
	h := newClient(t, srv.URL)

	req := Get("/posts")
	req.Query = url.Values{"since": {"2024"}}
	got, err := Call[echo](context.Background(), h, req)
	require.NoError(t, err)
	require.Equal(t, "GET", got.Method)
	require.Equal(t, "/api/posts", got.Path)
	require.Equal(t, "since=2024", got.Query)
	require.Empty(t, got.Body)
}

func TestHTTPPostEncodesBody(t *testing.T) {
	srv := newServer(t)
	h := newClient(t, srv.URL)

	got, err := Call[echo](context.Background(), h, Post("posts", map[string]string{"title": "T"}))
	require.NoError(t, err)
	require.Equal(t, "POST", got.Method)
	require.JSONEq(t, `{"title":"T"}`, got.Body)
}

func TestHTTPErrorMessage(t *testing.T) {
	srv := newServer(t)
	h := newClient(t, srv.URL)

	_, err := h.Do(context.Background(), Get("fail"))
	require.Error(t, err)
	require.Equal(t, 404, StatusOf(err))
	require.Equal(t, "404: post not found", err.Error())

	_, err = h.Do(context.Background(), Get("plain"))
	require.Equal(t, 500, StatusOf(err))
	require.Contains(t, err.Error(), "Internal Server Error")
}

func TestNewHTTPRequiresBase(t *testing.T) {
	_, err := NewHTTP(Config{})
	require.Error(t, err)
}

func TestRequesterFunc(t *testing.T) {
	r := RequesterFunc(func(_ context.Context, req Request) (Response, error) {
		return Response{Status: 200, Body: []byte(`[1,2,3]`)}, nil
	})
	got, err := Call[[]int](context.Background(), r, Get("x"))
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, got)
}
