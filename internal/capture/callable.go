package capture

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// Callable is an invocable unit with a stable target name.
type Callable interface {
	// Target returns the qualified name entries are recorded under.
	Target() string

	// Call invokes the unit. Go has no keyword arguments; implementations
	// that cannot use kwargs reject a non-empty map.
	Call(ctx context.Context, args []any, kwargs map[string]any) (any, error)
}

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// Func adapts an arbitrary Go function to Callable.
//
// Conventions:
//   - a leading context.Context parameter receives the call context and is
//     not part of the recorded arguments
//   - a trailing error result is returned as the call error and is not
//     part of the recorded result
//   - no remaining result records nil, one records that value, several
//     record a []any
//
// Thread-safety: Func is immutable and safe for concurrent use if the
// wrapped function is.
type Func struct {
	fn         reflect.Value
	target     string
	takesCtx   bool
	returnsErr bool
}

// NewFunc wraps fn, which must be a non-nil function. The target is derived
// from the function's symbol name.
func NewFunc(fn any) (*Func, error) {
	return NewNamedFunc("", fn)
}

// NewNamedFunc wraps fn under an explicit target name. An empty name falls
// back to the symbol name.
func NewNamedFunc(target string, fn any) (*Func, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("capture: %T is not a function", fn)
	}
	t := v.Type()
	if target == "" {
		target = TargetName(fn)
	}
	return &Func{
		fn:         v,
		target:     target,
		takesCtx:   t.NumIn() > 0 && t.In(0) == contextType,
		returnsErr: t.NumOut() > 0 && t.Out(t.NumOut()-1) == errorType,
	}, nil
}

// TargetName returns the fully qualified symbol name of a function value,
// e.g. "github.com/acme/geo.Area". Method values end in "-fm", which is
// trimmed.
func TargetName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}
	f := runtime.FuncForPC(v.Pointer())
	if f == nil {
		return ""
	}
	return strings.TrimSuffix(f.Name(), "-fm")
}

// IsPlainFunction reports whether target names a package-level function,
// as opposed to a method, closure or generic instantiation. Only plain
// functions can be called from generated test code by name.
func IsPlainFunction(target string) bool {
	name := target[strings.LastIndex(target, "/")+1:]
	pkg, fn, ok := strings.Cut(name, ".")
	if !ok || pkg == "" || fn == "" {
		return false
	}
	return !strings.ContainsAny(fn, ".()[]-")
}

// Target implements Callable.
func (f *Func) Target() string {
	return f.target
}

// ParamTypes returns the recorded parameter types, without a leading
// context. For a variadic function the last type is the slice type.
func (f *Func) ParamTypes() []reflect.Type {
	t := f.fn.Type()
	start := 0
	if f.takesCtx {
		start = 1
	}
	types := make([]reflect.Type, 0, t.NumIn()-start)
	for i := start; i < t.NumIn(); i++ {
		types = append(types, t.In(i))
	}
	return types
}

// Variadic reports whether the wrapped function is variadic.
func (f *Func) Variadic() bool {
	return f.fn.Type().IsVariadic()
}

// Call implements Callable. Panics raised by the function propagate.
func (f *Func) Call(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: keyword arguments are not supported by Go functions", f.target)
	}
	in, err := f.arguments(ctx, args)
	if err != nil {
		return nil, err
	}

	out := f.fn.Call(in)

	var callErr error
	if f.returnsErr {
		last := out[len(out)-1]
		out = out[:len(out)-1]
		if !last.IsNil() {
			callErr = last.Interface().(error)
		}
	}

	switch len(out) {
	case 0:
		return nil, callErr
	case 1:
		return out[0].Interface(), callErr
	default:
		results := make([]any, len(out))
		for i, v := range out {
			results[i] = v.Interface()
		}
		return results, callErr
	}
}

func (f *Func) arguments(ctx context.Context, args []any) ([]reflect.Value, error) {
	params := f.ParamTypes()
	variadic := f.Variadic()

	if variadic {
		if len(args) < len(params)-1 {
			return nil, fmt.Errorf("%s: want at least %d arguments, got %d", f.target, len(params)-1, len(args))
		}
	} else if len(args) != len(params) {
		return nil, fmt.Errorf("%s: want %d arguments, got %d", f.target, len(params), len(args))
	}

	in := make([]reflect.Value, 0, len(args)+1)
	if f.takesCtx {
		in = append(in, reflect.ValueOf(&ctx).Elem())
	}
	for i, arg := range args {
		pt := paramAt(params, i, variadic)
		v, err := argValue(arg, pt)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", f.target, i, err)
		}
		in = append(in, v)
	}
	return in, nil
}

func paramAt(params []reflect.Type, i int, variadic bool) reflect.Type {
	if variadic && i >= len(params)-1 {
		return params[len(params)-1].Elem()
	}
	return params[i]
}

func argValue(arg any, t reflect.Type) (reflect.Value, error) {
	if arg == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not a valid %s", t)
	}
	v := reflect.ValueOf(arg)
	switch {
	case v.Type().AssignableTo(t):
		return v, nil
	case (v.Kind() == t.Kind() || isNumeric(v.Kind()) && isNumeric(t.Kind())) && v.Type().ConvertibleTo(t):
		return v.Convert(t), nil
	default:
		return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", v.Type(), t)
	}
}

func isNumeric(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Float64
}

// InstrumentedCallable records calls of an inner Callable through a Guard.
type InstrumentedCallable struct {
	inner Callable
	guard *Guard
}

// Instrument wraps c so that its root calls are recorded.
func (g *Guard) Instrument(c Callable) *InstrumentedCallable {
	return &InstrumentedCallable{inner: c, guard: g}
}

// Target implements Callable.
func (ic *InstrumentedCallable) Target() string {
	return ic.inner.Target()
}

// Call implements Callable.
func (ic *InstrumentedCallable) Call(ctx context.Context, args []any, kwargs map[string]any) (any, error) {
	return ic.guard.Call(ctx, ic.inner.Target(), args, kwargs, func(ctx context.Context) (any, error) {
		return ic.inner.Call(ctx, args, kwargs)
	})
}

// Unwrap returns the inner Callable.
func (ic *InstrumentedCallable) Unwrap() Callable {
	return ic.inner
}
