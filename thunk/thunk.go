// Package thunk runs one asynchronous remote call and reports its lifecycle as
// three ordered signals: started, then exactly one of succeeded or failed.
//
// Every invocation gets its own request id. Consumers that want last-write-wins
// semantics remember the id from the started signal and drop terminal signals
// carrying a different one.
package thunk

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrConditionRejected is returned by Run when the configured condition
// declined the invocation. No signal is emitted in that case.
var ErrConditionRejected = errors.New("thunk: condition rejected invocation")

type Phase uint8

const (
	Started Phase = iota + 1
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Started:
		return "pending"
	case Succeeded:
		return "fulfilled"
	case Failed:
		return "rejected"
	default:
		return "unknown"
	}
}

// Signal is one lifecycle notification. Result is set only for Succeeded;
// Err only for Failed.
type Signal[A, R any] struct {
	Type      string // "<prefix>/pending" | "<prefix>/fulfilled" | "<prefix>/rejected"
	Phase     Phase
	RequestID string
	Arg       A
	Result    R
	Err       string
	// Canceled marks a Failed signal produced because ctx was done.
	// Reducers should ignore it.
	Canceled bool
}

// Terminal reports whether s is the last signal of its invocation.
func (s Signal[A, R]) Terminal() bool { return s.Phase == Succeeded || s.Phase == Failed }

type PayloadFunc[A, R any] func(ctx context.Context, arg A) (R, error)

type Thunk[A, R any] struct {
	prefix    string
	payload   PayloadFunc[A, R]
	condition func(A) bool
	newID     func() string
}

type Option[A, R any] func(*Thunk[A, R])

// WithCondition skips invocations for which cond returns false, e.g. to avoid
// starting a fetch while one is already loading.
func WithCondition[A, R any](cond func(A) bool) Option[A, R] {
	return func(t *Thunk[A, R]) { t.condition = cond }
}

// WithIDFunc overrides request id generation (uuid v4 by default).
func WithIDFunc[A, R any](f func() string) Option[A, R] {
	return func(t *Thunk[A, R]) { t.newID = f }
}

func New[A, R any](typePrefix string, payload PayloadFunc[A, R], opts ...Option[A, R]) *Thunk[A, R] {
	if payload == nil {
		panic("thunk: nil payload func")
	}
	t := &Thunk[A, R]{prefix: typePrefix, payload: payload, newID: uuid.NewString}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Thunk[A, R]) TypePrefix() string { return t.prefix }

// Matches reports whether a signal of any phase belongs to this thunk.
func (t *Thunk[A, R]) Matches(s Signal[A, R]) bool {
	return s.Type == t.typeOf(s.Phase)
}

// Run executes the payload. emit receives started synchronously before the
// payload begins and the terminal signal after it returns. Payload errors and
// panics become a Failed signal and are also returned as err.
func (t *Thunk[A, R]) Run(ctx context.Context, arg A, emit func(Signal[A, R])) (res R, err error) {
	if t.condition != nil && !t.condition(arg) {
		return res, ErrConditionRejected
	}
	if emit == nil {
		emit = func(Signal[A, R]) {}
	}
	id := t.newID()

	emit(Signal[A, R]{Type: t.typeOf(Started), Phase: Started, RequestID: id, Arg: arg})

	res, err = t.call(ctx, arg)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		var zero R
		emit(Signal[A, R]{
			Type:      t.typeOf(Failed),
			Phase:     Failed,
			RequestID: id,
			Arg:       arg,
			Err:       Message(err),
			Canceled:  errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded),
		})
		return zero, err
	}
	emit(Signal[A, R]{Type: t.typeOf(Succeeded), Phase: Succeeded, RequestID: id, Arg: arg, Result: res})
	return res, nil
}

func (t *Thunk[A, R]) call(ctx context.Context, arg A) (res R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("thunk %s: panic: %v", t.prefix, r)
		}
	}()
	return t.payload(ctx, arg)
}

func (t *Thunk[A, R]) typeOf(p Phase) string { return t.prefix + "/" + p.String() }

// Message renders err as the human-readable text carried by Failed signals.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return "unknown error"
}
