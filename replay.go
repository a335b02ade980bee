package tead

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/roach88/tead/internal/capture"
	"github.com/roach88/tead/internal/ir"
	"github.com/roach88/tead/internal/snapshot"
)

// Case is one recorded call: its arguments and the result it produced.
// Args and Want hold Go values, builder Values, or a mix of both, e.g.
// Case{Args: Args(2.0, Seq(1, 2)), Want: 6.0}.
type Case struct {
	Args []any
	Want any
}

// Replay calls fn once per case, as a subtest, and checks that it returns
// a result structurally equal to Want.
//
// Arguments are rebuilt as fresh values of fn's parameter types, sharing
// structure wherever the recorded arguments did. A function that returns
// an error fails the case.
func Replay(t *testing.T, fn any, cases []Case) {
	t.Helper()
	f, err := capture.NewFunc(fn)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	for i, c := range cases {
		t.Run(fmt.Sprintf("case_%d", i+1), func(t *testing.T) {
			t.Helper()
			args, err := rebuildArgs(f, c.Args)
			if err != nil {
				t.Fatalf("rebuild arguments: %v", err)
			}
			got, err := f.Call(context.Background(), args, nil)
			if err != nil {
				t.Fatalf("%s returned error: %v", f.Target(), err)
			}
			if !snapshot.Equal(got, c.Want) {
				t.Errorf("%s result mismatch\n got: %s\nwant: %s", f.Target(), render(got), render(c.Want))
			}
		})
	}
}

// rebuildArgs encodes the case arguments in one session and decodes them
// against the parameter types, so aliasing between arguments survives.
func rebuildArgs(f *capture.Func, args []any) ([]any, error) {
	params := f.ParamTypes()
	if f.Variadic() {
		if len(args) < len(params)-1 {
			return nil, fmt.Errorf("want at least %d arguments, got %d", len(params)-1, len(args))
		}
	} else if len(args) != len(params) {
		return nil, fmt.Errorf("want %d arguments, got %d", len(params), len(args))
	}

	root, err := snapshot.NewEncoder().EncodeArgs(args)
	if err != nil {
		return nil, err
	}
	roots := root.(*ir.List).Items

	types := make([]reflect.Type, len(roots))
	for i := range roots {
		if f.Variadic() && i >= len(params)-1 {
			types[i] = params[len(params)-1].Elem()
		} else {
			types[i] = params[i]
		}
	}
	vals, err := snapshot.NewDecoder(snapshot.WithTypes(snapshot.NewRegistry())).DecodeValues(roots, types)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = v.Interface()
	}
	return out, nil
}

func render(v any) string {
	s, err := snapshot.Render(v)
	if err != nil {
		return fmt.Sprintf("%v (%v)", v, err)
	}
	return s
}
