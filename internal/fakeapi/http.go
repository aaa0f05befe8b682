package fakeapi

import (
	"errors"
	"io"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/unkn0wn-root/tagcache/transport"
)

const maxBody = 1 << 20

// ServeHTTP exposes the server over HTTP. Paths may carry a /fakeApi prefix.
// Errors are written as {"error": "..."} with their status; injected network
// failures become 503.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req := transport.Request{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query()}
	if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPatch) {
		b, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if len(b) > 0 {
			req.Body = json.RawMessage(b)
		}
	}

	resp, err := s.Do(r.Context(), req)
	if err != nil {
		status := http.StatusServiceUnavailable
		var te *transport.Error
		if errors.As(err, &te) && te.Status != 0 {
			status = te.Status
		}
		writeError(w, status, transport.Message(err))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(resp.Body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	b, _ := json.Marshal(map[string]string{"error": msg})
	_, _ = w.Write(b)
}
