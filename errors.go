package tagcache

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNamespaceRequired = errors.New("tagcache: namespace is required")
	ErrProviderRequired  = errors.New("tagcache: provider is required")
	ErrDuplicateEndpoint = errors.New("tagcache: endpoint already declared")
	ErrNoQuery           = errors.New("tagcache: endpoint needs Query or QueryFn")
	ErrNoRequester       = errors.New("tagcache: Query endpoints need Options.Requester")
	ErrClosed            = errors.New("tagcache: api is closed")
)

// QueryError is returned when the remote call behind a query or mutation
// failed. Message is the text recorded on the entry.
type QueryError struct {
	Endpoint string
	Key      string // empty for mutations
	Message  string
	Err      error
}

func (e *QueryError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %s", e.Endpoint, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Key, e.Message)
}

func (e *QueryError) Unwrap() error { return e.Err }

// InvalidateError reports that tag generations could not be bumped; entries
// depending on Tags may still read as fresh.
type InvalidateError struct {
	Tags []Tag
	Err  error
}

func (e *InvalidateError) Error() string {
	names := make([]string, len(e.Tags))
	for i, t := range e.Tags {
		names[i] = t.String()
	}
	return fmt.Sprintf("invalidate [%s]: gen bump failed: %v", strings.Join(names, " "), e.Err)
}

func (e *InvalidateError) Unwrap() error { return e.Err }
