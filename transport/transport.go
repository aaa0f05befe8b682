// Package transport is the request boundary between the cache and a remote
// API: a request names a method, a path and an optional body; the answer is a
// raw response or an *Error carrying a human-readable message.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	json "github.com/goccy/go-json"
)

type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any // encoded as JSON when non-nil
}

type Response struct {
	Status int
	Body   []byte
}

// Requester performs one request. Implementations must be safe for concurrent use.
type Requester interface {
	Do(ctx context.Context, req Request) (Response, error)
}

type RequesterFunc func(ctx context.Context, req Request) (Response, error)

func (f RequesterFunc) Do(ctx context.Context, req Request) (Response, error) { return f(ctx, req) }

// Error is a failed request. Status is 0 for transport-level failures
// (connection refused, timeouts).
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var te *Error
	if errors.As(err, &te) {
		return te.Status
	}
	return 0
}

// Message returns the human-readable message of err: the Message of an
// *Error, or err.Error() otherwise.
func Message(err error) string {
	var te *Error
	if errors.As(err, &te) && te.Message != "" {
		return te.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func Get(path string) Request { return Request{Method: "GET", Path: path} }

func Post(path string, body any) Request { return Request{Method: "POST", Path: path, Body: body} }

func Patch(path string, body any) Request { return Request{Method: "PATCH", Path: path, Body: body} }

// Decode unmarshals a JSON response body into R.
func Decode[R any](resp Response) (R, error) {
	var v R
	if len(resp.Body) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(resp.Body, &v); err != nil {
		return v, fmt.Errorf("transport: decode response: %w", err)
	}
	return v, nil
}

// Call performs req and decodes the response into R.
func Call[R any](ctx context.Context, r Requester, req Request) (R, error) {
	resp, err := r.Do(ctx, req)
	if err != nil {
		var zero R
		return zero, err
	}
	return Decode[R](resp)
}
