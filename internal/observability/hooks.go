// Package observability reports capture outcomes to interested collaborators.
//
// The capture guard never lets a persistence or encode failure reach the
// instrumented code path; Hooks are where those failures become visible.
// Implementations must be safe for concurrent use and must not panic.
package observability

import (
	"context"
	"time"
)

// SkipReason explains why a call produced no entry.
type SkipReason string

const (
	// SkipNested marks a call made while the same target was already on
	// the call stack.
	SkipNested SkipReason = "nested"

	// SkipQuota marks a root call made after the target's quota ran out.
	SkipQuota SkipReason = "quota"

	// SkipError marks a root call whose function returned an error.
	SkipError SkipReason = "error"

	// SkipPanic marks a root call whose function panicked.
	SkipPanic SkipReason = "panic"
)

// Hooks receives capture outcomes.
type Hooks interface {
	// Recorded is called after an entry was persisted. elapsed is the time
	// spent encoding and persisting, excluding the wrapped call itself.
	Recorded(ctx context.Context, target string, elapsed time.Duration)

	// Skipped is called when a call produced no entry by design.
	Skipped(ctx context.Context, target string, reason SkipReason)

	// EncodeFailed is called when inputs or result could not be encoded.
	EncodeFailed(ctx context.Context, target string, err error)

	// PersistFailed is called when the sink rejected an entry.
	PersistFailed(ctx context.Context, target string, err error)
}

// Noop discards every event.
type Noop struct{}

func (Noop) Recorded(context.Context, string, time.Duration) {}
func (Noop) Skipped(context.Context, string, SkipReason)     {}
func (Noop) EncodeFailed(context.Context, string, error)     {}
func (Noop) PersistFailed(context.Context, string, error)    {}

// Multi fans events out to several hooks in order.
type Multi []Hooks

// NewMulti combines hooks, dropping nil entries.
func NewMulti(hooks ...Hooks) Multi {
	out := make(Multi, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

func (m Multi) Recorded(ctx context.Context, target string, elapsed time.Duration) {
	for _, h := range m {
		h.Recorded(ctx, target, elapsed)
	}
}

func (m Multi) Skipped(ctx context.Context, target string, reason SkipReason) {
	for _, h := range m {
		h.Skipped(ctx, target, reason)
	}
}

func (m Multi) EncodeFailed(ctx context.Context, target string, err error) {
	for _, h := range m {
		h.EncodeFailed(ctx, target, err)
	}
}

func (m Multi) PersistFailed(ctx context.Context, target string, err error) {
	for _, h := range m {
		h.PersistFailed(ctx, target, err)
	}
}
