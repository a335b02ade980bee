package capture

import (
	"context"
	"sync"
)

// Scope tracks, per logical call stack, how many calls of each target are
// currently in progress.
//
// Depth is never shared between concurrent call stacks: two goroutines
// calling the same target at the same time both observe depth 0 and are
// both roots.
type Scope interface {
	// Enter marks a call of target as in progress on the current call
	// stack. It returns the depth before entering (0 for a root call), the
	// context to hand to the wrapped function, and a func that must be
	// called exactly once when the call returns or panics.
	Enter(ctx context.Context, target string) (depth int, inner context.Context, exit func())
}

type depthKey struct {
	target string
}

// ContextScope carries depth in the context. A nested call is recognized
// only if the wrapped function passes the context it received on to the
// nested instrumented call, which is how Go code threads a call stack.
//
// Thread-safety: ContextScope is stateless and safe for concurrent use.
type ContextScope struct{}

// Enter implements Scope.
func (ContextScope) Enter(ctx context.Context, target string) (int, context.Context, func()) {
	depth, _ := ctx.Value(depthKey{target}).(int)
	return depth, context.WithValue(ctx, depthKey{target}, depth+1), func() {}
}

type goroutineKey struct {
	goid   int64
	target string
}

// GoroutineScope keys depth by goroutine ID, for instrumented functions
// that do not take a context. Calls that hand work to another goroutine
// start a new call stack there, exactly like a thread-local would.
//
// Thread-safety: safe for concurrent use. Each counter is only ever
// touched by the goroutine that owns it.
type GoroutineScope struct {
	depths sync.Map // goroutineKey -> *int
}

// NewGoroutineScope creates an empty goroutine scope.
func NewGoroutineScope() *GoroutineScope {
	return &GoroutineScope{}
}

// Enter implements Scope.
func (s *GoroutineScope) Enter(ctx context.Context, target string) (int, context.Context, func()) {
	key := goroutineKey{goid: goroutineID(), target: target}
	v, _ := s.depths.LoadOrStore(key, new(int))
	counter := v.(*int)

	depth := *counter
	*counter++
	return depth, ctx, func() {
		*counter--
		if *counter == 0 {
			s.depths.Delete(key)
		}
	}
}

// Active returns the number of goroutine/target pairs currently in a call.
func (s *GoroutineScope) Active() int {
	n := 0
	s.depths.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
