// Package tead records calls of Go functions as replayable test fixtures.
//
// Instrument a function with Wrap (or Wrap2, WrapMethod, Instrument) and
// every outermost call of it is snapshotted, arguments before the call and
// result after it, and persisted as an Entry. Recursive and re-entrant calls
// of the same function are not recorded, and a per-function limit bounds
// how many entries are kept. Recording never changes what the function
// returns, and errors and panics pass through unrecorded.
//
// The tead command turns stored entries into Go tests that call Replay.
//
//	rec, err := tead.Start(ctx)
//	if err != nil {
//		return err
//	}
//	defer rec.Close()
//	area := tead.Wrap(rec.Guard, geo.Area)
//	a, err := area(ctx, rect)
package tead

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/tead/internal/backend"
	"github.com/roach88/tead/internal/capture"
	"github.com/roach88/tead/internal/config"
	"github.com/roach88/tead/internal/ir"
	"github.com/roach88/tead/internal/observability"
	"github.com/roach88/tead/internal/query"
)

type (
	// Guard records root calls of instrumented functions.
	Guard = capture.Guard

	// Option configures a Guard.
	Option = capture.Option

	// Sink persists entries.
	Sink = capture.Sink

	// Entry is one recorded call.
	Entry = ir.Entry

	// Criteria selects stored entries.
	Criteria = query.Criteria
)

// NewGuard creates a guard persisting to sink. Without options it tracks
// depth through the context, records every root call and logs through
// slog.Default().
func NewGuard(sink Sink, opts ...Option) *Guard {
	return capture.NewGuard(sink, opts...)
}

// NewMemorySink returns a Sink keeping entries in memory.
func NewMemorySink() *capture.MemorySink {
	return capture.NewMemorySink()
}

// WithLimit caps entries per function. Zero or less means unlimited.
func WithLimit(limit int) Option {
	return capture.WithLimit(limit)
}

// WithMaxDepth replaces values nested deeper than depth with a placeholder.
func WithMaxDepth(depth int) Option {
	return capture.WithMaxDepth(depth)
}

// WithGoroutineScope tracks call depth per goroutine instead of through the
// context, for code that does not pass contexts down.
func WithGoroutineScope() Option {
	return capture.WithScope(capture.NewGoroutineScope())
}

// WithLogger replaces slog.Default().
func WithLogger(l *slog.Logger) Option {
	return capture.WithLogger(l)
}

// Recorder is a Guard persisting to the configured storage backend.
type Recorder struct {
	*Guard
	backend backend.Backend
}

// Start loads the configuration (see the tead command's config files and
// TEAD_* variables), opens the storage backend it names and returns a
// Recorder. Capture outcomes are logged and counted as OpenTelemetry
// metrics on the global meter provider. opts are applied last.
func Start(ctx context.Context, opts ...Option) (*Recorder, error) {
	cfg, err := config.Load(config.Options{})
	if err != nil {
		return nil, err
	}
	return StartWith(ctx, cfg, opts...)
}

// StartWith is Start with an explicit configuration.
func StartWith(ctx context.Context, cfg config.Config, opts ...Option) (*Recorder, error) {
	logger := slog.Default()
	b, err := backend.Open(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	metrics, err := observability.NewMetrics(nil)
	if err != nil {
		return nil, errors.Join(err, b.Close())
	}

	guardOpts := []Option{
		capture.WithLimit(cfg.Capture.Limit),
		capture.WithMaxDepth(cfg.Capture.MaxDepth),
		capture.WithLogger(logger),
		capture.WithHooks(observability.NewMulti(observability.Logging{Logger: logger}, metrics)),
	}
	if cfg.Capture.Scope == config.ScopeGoroutine {
		guardOpts = append(guardOpts, WithGoroutineScope())
	}
	guardOpts = append(guardOpts, opts...)

	return &Recorder{Guard: capture.NewGuard(b, guardOpts...), backend: b}, nil
}

// Close releases the storage backend.
func (r *Recorder) Close() error {
	return r.backend.Close()
}
