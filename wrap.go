package tead

import (
	"context"

	"github.com/roach88/tead/internal/capture"
)

// Wrap instruments a one-argument function. Entries are recorded under the
// function's symbol name, e.g. "github.com/acme/geo.Area".
//
// fn receives the context to pass to nested instrumented calls; calling a
// wrapped function with it is what marks the call as nested.
func Wrap[A, R any](g *Guard, fn func(context.Context, A) (R, error)) func(context.Context, A) (R, error) {
	target := capture.TargetName(fn)
	return func(ctx context.Context, a A) (R, error) {
		out, err := g.Call(ctx, target, []any{a}, nil, func(ctx context.Context) (any, error) {
			return fn(ctx, a)
		})
		r, _ := out.(R)
		return r, err
	}
}

// Wrap2 instruments a two-argument function.
func Wrap2[A, B, R any](g *Guard, fn func(context.Context, A, B) (R, error)) func(context.Context, A, B) (R, error) {
	target := capture.TargetName(fn)
	return func(ctx context.Context, a A, b B) (R, error) {
		out, err := g.Call(ctx, target, []any{a, b}, nil, func(ctx context.Context) (any, error) {
			return fn(ctx, a, b)
		})
		r, _ := out.(R)
		return r, err
	}
}

// WrapMethod instruments a method expression such as (*Grid).Cell. The
// receiver is recorded as the first argument.
func WrapMethod[S, A, R any](g *Guard, fn func(S, context.Context, A) (R, error)) func(S, context.Context, A) (R, error) {
	target := capture.TargetName(fn)
	return func(recv S, ctx context.Context, a A) (R, error) {
		out, err := g.Call(ctx, target, []any{recv, a}, nil, func(ctx context.Context) (any, error) {
			return fn(recv, ctx, a)
		})
		r, _ := out.(R)
		return r, err
	}
}

// Instrument wraps a function of any signature. A leading context.Context
// parameter receives the call context; a trailing error result is returned
// as the call error.
func Instrument(g *Guard, fn any) (capture.Callable, error) {
	f, err := capture.NewFunc(fn)
	if err != nil {
		return nil, err
	}
	return g.Instrument(f), nil
}
