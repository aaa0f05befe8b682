package util

import (
	"crypto/sha256"
	"fmt"

	json "github.com/goccy/go-json"
)

// maxArgLen caps the readable part of a query key; longer args are hashed.
const maxArgLen = 128

// QueryKey returns a deterministic cache key for an endpoint and its argument.
// The argument is serialized as JSON (map keys sorted); a nil or empty struct
// argument yields "endpoint(undefined)" so argument-less queries share one key.
func QueryKey(endpoint string, arg any) (string, error) {
	if arg == nil {
		return endpoint + "(undefined)", nil
	}
	b, err := json.Marshal(arg)
	if err != nil {
		return "", fmt.Errorf("tagcache: serialize args for %s: %w", endpoint, err)
	}
	s := string(b)
	if s == "{}" || s == "null" {
		s = "undefined"
	}
	if len(s) > maxArgLen {
		sum := sha256.Sum256(b)
		s = fmt.Sprintf("#%x", sum[:8])
	}
	return endpoint + "(" + s + ")", nil
}
