package snapshot

import (
	"reflect"
	"sync"
)

// Factory allocates a zero instance of a composite type without running any
// constructor logic, and returns a pointer to it. The decoder assigns the
// recorded attributes directly afterwards.
type Factory func() reflect.Value

// FieldInfo describes one attribute of a composite type.
type FieldInfo struct {
	Name  string
	Type  reflect.Type
	Index []int
}

// Registry is the type-introspection collaborator used by typed decoding.
//
// It maps recorded type names to Go types, reports the ordered attributes
// of a type, and supplies the bypass-construction Factory for it. A type
// without a factory is never constructed: the decoder falls back to a Shell.
//
// By default every struct type has a factory that allocates a zero value
// with reflect.New. NewRegistry(WithZeroAllocation(false)) limits
// construction to types given an explicit factory, and MarkOpaque removes
// the factory of a single type.
//
// Thread-safety: Registry is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	byName    map[string]reflect.Type
	factories map[reflect.Type]Factory
	opaque    map[reflect.Type]bool
	zeroAlloc bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithZeroAllocation controls whether struct types without an explicit
// factory may be built by zero allocation. Defaults to true.
func WithZeroAllocation(enabled bool) RegistryOption {
	return func(r *Registry) {
		r.zeroAlloc = enabled
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		byName:    make(map[string]reflect.Type),
		factories: make(map[reflect.Type]Factory),
		opaque:    make(map[reflect.Type]bool),
		zeroAlloc: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register makes T resolvable by its recorded type name and returns that name.
// T may be a struct type or a pointer to one.
func Register[T any](r *Registry) string {
	return r.RegisterType(reflect.TypeFor[T]())
}

// RegisterType is the reflect form of Register.
func (r *Registry) RegisterType(t reflect.Type) string {
	t = structType(t)
	name := TypeName(t)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[name] = t
	return name
}

// RegisterFactory registers t and sets its bypass-construction factory.
// f must return a pointer to a new zero-like instance of t.
func (r *Registry) RegisterFactory(t reflect.Type, f Factory) {
	t = structType(t)
	r.RegisterType(t)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[t] = f
	delete(r.opaque, t)
}

// MarkOpaque registers t as a known type that must never be built by the
// decoder, for example because its zero value is unusable without a
// constructor. Values of t always decode to shells.
func (r *Registry) MarkOpaque(t reflect.Type) {
	t = structType(t)
	r.RegisterType(t)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.opaque[t] = true
	delete(r.factories, t)
}

// Lookup returns the Go type registered under a recorded type name.
func (r *Registry) Lookup(name string) (reflect.Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// Factory returns the bypass-construction factory for t, if one exists.
func (r *Registry) Factory(t reflect.Type) (Factory, bool) {
	if t == nil || t.Kind() != reflect.Struct {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.opaque[t] {
		return nil, false
	}
	if f, ok := r.factories[t]; ok {
		return f, true
	}
	if !r.zeroAlloc {
		return nil, false
	}
	return func() reflect.Value { return reflect.New(t) }, true
}

// Fields returns the ordered attributes of a composite type: its exported
// fields in declaration order, excluding funcs, channels and fields tagged
// `tead:"-"`.
func (r *Registry) Fields(t reflect.Type) []FieldInfo {
	t = structType(t)
	if t == nil || t.Kind() != reflect.Struct {
		return nil
	}
	return fieldsOf(t)
}

// TypeName returns the fully qualified name recorded for t, e.g.
// "github.com/acme/geo.Point". Unnamed types use their Go syntax.
func TypeName(t reflect.Type) string {
	for t.Kind() == reflect.Pointer && t.Name() == "" {
		t = t.Elem()
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// structType strips pointers from t.
func structType(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

var fieldCache sync.Map // reflect.Type -> []FieldInfo

// fieldsOf returns the cached attribute list of a struct type.
func fieldsOf(t reflect.Type) []FieldInfo {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]FieldInfo)
	}

	var fields []FieldInfo
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() || sf.Tag.Get("tead") == "-" {
			continue
		}
		switch sf.Type.Kind() {
		case reflect.Func, reflect.Chan, reflect.UnsafePointer:
			continue
		}
		fields = append(fields, FieldInfo{Name: sf.Name, Type: sf.Type, Index: sf.Index})
	}

	actual, _ := fieldCache.LoadOrStore(t, fields)
	return actual.([]FieldInfo)
}

func fieldByName(t reflect.Type, name string) (FieldInfo, bool) {
	for _, f := range fieldsOf(t) {
		if f.Name == name {
			return f, true
		}
	}
	return FieldInfo{}, false
}
