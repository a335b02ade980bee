package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/tead/internal/ir"
	"github.com/roach88/tead/internal/observability"
	"github.com/roach88/tead/internal/snapshot"
)

// Guard records root calls of instrumented targets.
//
// Per target, a call is either a root (no call of the same target is in
// progress on this call stack) or nested. Roots snapshot their inputs
// before the call and their result after it, and emit one Entry; nested
// calls run untouched. Once a target's quota is used up, roots run
// unrecorded too.
//
// CRITICAL: capture never changes the outcome of a call. The wrapped
// function's result, error and panic reach the caller exactly as produced.
// Encode and persistence failures are logged and reported to Hooks only.
//
// Thread-safety: Guard is safe for concurrent use.
type Guard struct {
	sink      Sink
	scope     Scope
	quota     *Quota
	hooks     observability.Hooks
	logger    *slog.Logger
	assembler *Assembler
	encOpts   []snapshot.EncoderOption
}

// Option configures a Guard.
type Option func(*Guard)

// WithScope selects how call-stack depth is tracked. Defaults to
// ContextScope.
func WithScope(s Scope) Option {
	return func(g *Guard) {
		g.scope = s
	}
}

// WithQuota shares a quota between guards.
func WithQuota(q *Quota) Option {
	return func(g *Guard) {
		g.quota = q
	}
}

// WithLimit caps entries per target. Zero or less means unlimited.
func WithLimit(limit int) Option {
	return func(g *Guard) {
		g.quota = NewQuota(limit)
	}
}

// WithHooks reports capture outcomes to h.
func WithHooks(h observability.Hooks) Option {
	return func(g *Guard) {
		g.hooks = h
	}
}

// WithLogger replaces slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = l
	}
}

// WithAssembler replaces the default Assembler, e.g. to fix clock and IDs.
func WithAssembler(a *Assembler) Option {
	return func(g *Guard) {
		g.assembler = a
	}
}

// WithMaxDepth bounds the nesting depth of encoded values.
func WithMaxDepth(depth int) Option {
	return func(g *Guard) {
		g.encOpts = append(g.encOpts, snapshot.WithMaxDepth(depth))
	}
}

// NewGuard creates a guard persisting to sink.
func NewGuard(sink Sink, opts ...Option) *Guard {
	g := &Guard{
		sink:      sink,
		scope:     ContextScope{},
		quota:     NewQuota(0),
		hooks:     observability.Noop{},
		logger:    slog.Default(),
		assembler: NewAssembler(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Quota returns the guard's quota.
func (g *Guard) Quota() *Quota {
	return g.quota
}

// Call runs fn as a call of target with the given inputs and records it if
// it is a root. fn receives the context it must pass on to nested
// instrumented calls.
func (g *Guard) Call(ctx context.Context, target string, args []any, kwargs map[string]any, fn func(context.Context) (any, error)) (any, error) {
	depth, inner, exit := g.scope.Enter(ctx, target)
	defer exit()

	if depth > 0 {
		g.hooks.Skipped(ctx, target, observability.SkipNested)
		return fn(inner)
	}
	if g.quota.Exhausted(target) {
		g.hooks.Skipped(ctx, target, observability.SkipQuota)
		return fn(inner)
	}

	start := time.Now()
	enc := snapshot.NewEncoder(g.encOpts...)
	argsNode, kwargsNode, encErr := g.encodeInputs(enc, args, kwargs)
	overhead := time.Since(start)

	result, err := g.run(ctx, target, inner, fn)
	if err != nil {
		g.hooks.Skipped(ctx, target, observability.SkipError)
		return result, err
	}
	if encErr != nil {
		g.encodeFailed(ctx, target, encErr)
		return result, nil
	}

	start = time.Now()
	if g.record(ctx, target, enc.Len(), argsNode, kwargsNode, result) {
		g.hooks.Recorded(ctx, target, overhead+time.Since(start))
	}
	return result, nil
}

// run calls fn and reports a panic before re-raising it.
func (g *Guard) run(ctx context.Context, target string, inner context.Context, fn func(context.Context) (any, error)) (result any, err error) {
	completed := false
	defer func() {
		if !completed {
			g.hooks.Skipped(ctx, target, observability.SkipPanic)
		}
	}()
	result, err = fn(inner)
	completed = true
	return result, err
}

func (g *Guard) encodeInputs(enc *snapshot.Encoder, args []any, kwargs map[string]any) (ir.Node, ir.Node, error) {
	argsNode, err := safeEncode(func() (ir.Node, error) { return enc.EncodeArgs(args) })
	if err != nil {
		return nil, nil, fmt.Errorf("encode args: %w", err)
	}
	kwargsNode, err := safeEncode(func() (ir.Node, error) { return enc.EncodeKwargs(kwargs) })
	if err != nil {
		return nil, nil, fmt.Errorf("encode kwargs: %w", err)
	}
	return argsNode, kwargsNode, nil
}

// record encodes the result and persists one entry if the quota allows.
// It reports whether an entry was persisted. Nothing it does is visible to
// the caller except through hooks and logs.
//
// The result is encoded in its own session, numbered after the inputs'
// indices: a result that aliases a mutated argument must show the
// post-call state, not a ref to the pre-call snapshot.
func (g *Guard) record(ctx context.Context, target string, base int, args, kwargs ir.Node, result any) bool {
	enc := snapshot.NewEncoder(append(g.encOpts, snapshot.WithIndexBase(base))...)
	resultNode, err := safeEncode(func() (ir.Node, error) { return enc.Encode(result) })
	if err != nil {
		g.encodeFailed(ctx, target, fmt.Errorf("encode result: %w", err))
		return false
	}

	entry, err := g.assembler.Assemble(target, args, kwargs, resultNode)
	if err != nil {
		g.encodeFailed(ctx, target, err)
		return false
	}

	if !g.quota.TryAcquire(target) {
		g.hooks.Skipped(ctx, target, observability.SkipQuota)
		return false
	}

	if err := g.sink.Persist(ctx, entry); err != nil {
		g.quota.Release(target)
		g.logger.Warn("persist entry failed", "target", target, "id", entry.ID, "err", err)
		g.hooks.PersistFailed(ctx, target, err)
		return false
	}
	g.logger.Debug("entry recorded", "target", target, "id", entry.ID)
	return true
}

func (g *Guard) encodeFailed(ctx context.Context, target string, err error) {
	g.logger.Warn("capture skipped", "target", target, "err", err)
	g.hooks.EncodeFailed(ctx, target, err)
}

// safeEncode turns a panic raised while reflecting over user values into
// an error.
func safeEncode(encode func() (ir.Node, error)) (n ir.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = nil, fmt.Errorf("encoder panicked: %v", r)
		}
	}()
	return encode()
}
