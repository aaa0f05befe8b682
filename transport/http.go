package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bufbuild/httplb"
	json "github.com/goccy/go-json"
)

const defaultMaxBody = 8 << 20

type Config struct {
	BaseURL string        // e.g. "http://localhost:8080/fakeApi"
	Timeout time.Duration // per request; 0 => 30s
	Headers map[string]string
	MaxBody int64 // response body limit in bytes; 0 => 8MiB
}

// HTTP is a Requester backed by an httplb client.
type HTTP struct {
	client  *httplb.Client
	base    string
	headers map[string]string
	maxBody int64
}

var _ Requester = (*HTTP)(nil)

func NewHTTP(cfg Config) (*HTTP, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("transport: base url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxBody := cfg.MaxBody
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	return &HTTP{
		client:  httplb.NewClient(httplb.WithDefaultTimeout(timeout)),
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		headers: cfg.Headers,
		maxBody: maxBody,
	}, nil
}

func (h *HTTP) Do(ctx context.Context, req Request) (Response, error) {
	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return Response{}, fmt.Errorf("transport: encode body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	u := h.base + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		u += "?" + req.Query.Encode()
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	hr, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return Response{}, fmt.Errorf("transport: build request: %w", err)
	}
	hr.Header.Set("Accept", "application/json")
	if body != nil {
		hr.Header.Set("Content-Type", "application/json")
	}
	for k, v := range h.headers {
		hr.Header.Set(k, v)
	}

	res, err := h.client.Do(hr)
	if err != nil {
		return Response{}, &Error{Message: err.Error(), Err: err}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, h.maxBody+1))
	if err != nil {
		return Response{}, &Error{Status: res.StatusCode, Message: err.Error(), Err: err}
	}
	if int64(len(raw)) > h.maxBody {
		return Response{}, &Error{Status: res.StatusCode, Message: fmt.Sprintf("response body exceeds %d bytes", h.maxBody)}
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return Response{}, &Error{Status: res.StatusCode, Message: errorMessage(res.StatusCode, raw)}
	}
	return Response{Status: res.StatusCode, Body: raw}, nil
}

func (h *HTTP) Close() error { return h.client.Close() }

// errorMessage prefers a JSON {"error": "..."} or {"message": "..."} body.
func errorMessage(status int, raw []byte) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &e) == nil {
		if e.Error != "" {
			return e.Error
		}
		if e.Message != "" {
			return e.Message
		}
	}
	if s := strings.TrimSpace(string(raw)); s != "" && len(s) < 256 {
		return s
	}
	return http.StatusText(status)
}
