package snapshot

import (
	"log/slog"
	"reflect"

	"github.com/roach88/tead/internal/ir"
)

// Mode selects how composite objects are decoded.
type Mode int

const (
	// ModeUntyped decodes every object to a Shell and every container to a
	// generic Sequence, Mapping or Set.
	ModeUntyped Mode = iota

	// ModeTyped builds registered or hinted Go types without running
	// constructors, falling back to a Shell when no factory exists or the
	// recorded attributes do not fit the type.
	ModeTyped
)

// Decoder rebuilds values from Node Trees.
//
// One Decode call shares one index table across all of its roots, so a ref
// resolves to the very value built for its container: aliasing and cycles
// in the recorded graph come back as shared pointers. Containers are
// registered before their children are decoded, so a self-reference
// resolves to the in-progress value.
//
// Thread-safety: a Decoder holds no per-call state and may be shared.
type Decoder struct {
	mode     Mode
	registry *Registry
	logger   *slog.Logger
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithTypes switches the decoder to typed mode using r to resolve and
// build composite types.
func WithTypes(r *Registry) DecoderOption {
	return func(d *Decoder) {
		d.registry = r
		d.mode = ModeTyped
	}
}

// WithMode sets the decode mode explicitly.
func WithMode(m Mode) DecoderOption {
	return func(d *Decoder) {
		d.mode = m
	}
}

// WithLogger sets the logger used for shell-fallback diagnostics.
func WithLogger(l *slog.Logger) DecoderOption {
	return func(d *Decoder) {
		d.logger = l
	}
}

// NewDecoder creates a decoder. Without options it decodes untyped.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{mode: ModeUntyped}
	for _, opt := range opts {
		opt(d)
	}
	if d.registry == nil {
		d.registry = NewRegistry()
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	return d
}

// Decode decodes roots in untyped mode with a single index table.
func Decode(roots ...ir.Node) ([]Value, error) {
	return NewDecoder().Decode(roots...)
}

// Decode decodes roots with a single index table.
func (d *Decoder) Decode(roots ...ir.Node) ([]Value, error) {
	return d.DecodeTyped(roots, nil)
}

// DecodeTyped decodes roots with a single index table, using hints[i] as
// the declared type of roots[i]. A nil hint, or a missing one, leaves that
// root to the registry. Hints are ignored in untyped mode.
func (d *Decoder) DecodeTyped(roots []ir.Node, hints []reflect.Type) ([]Value, error) {
	s, err := d.newState(roots, d.mode == ModeTyped)
	if err != nil {
		return nil, err
	}

	out := make([]Value, len(roots))
	for i, root := range roots {
		var hint reflect.Type
		if s.typed && i < len(hints) {
			hint = hints[i]
		}
		v, err := s.value(root, hint)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// DecodeEntry decodes the args, kwargs and result graphs of an entry with
// one shared index table.
func (d *Decoder) DecodeEntry(e ir.Entry) (args, kwargs, result Value, err error) {
	vals, err := d.Decode(e.Roots()...)
	if err != nil {
		return nil, nil, nil, err
	}
	return vals[0], vals[1], vals[2], nil
}

// DecodeValues builds native Go values of the given types, one per root,
// with a single index table. Unlike DecodeTyped it cannot fall back to a
// Shell: a root that does not fit its type is a *NotConstructibleError.
func (d *Decoder) DecodeValues(roots []ir.Node, types []reflect.Type) ([]reflect.Value, error) {
	s, err := d.newState(roots, true)
	if err != nil {
		return nil, err
	}

	out := make([]reflect.Value, len(roots))
	for i, root := range roots {
		if i >= len(types) || types[i] == nil {
			return nil, &NotConstructibleError{Type: "<nil>", Node: nodeKind(root)}
		}
		if !s.fits(root, types[i]) {
			return nil, &NotConstructibleError{Type: types[i].String(), Node: nodeKind(root)}
		}
		rv, err := s.native(root, types[i])
		if err != nil {
			return nil, err
		}
		out[i] = rv
	}
	return out, nil
}

// DecodeAs builds a native value of type T from root.
func DecodeAs[T any](d *Decoder, root ir.Node) (T, error) {
	var zero T
	vals, err := d.DecodeValues([]ir.Node{root}, []reflect.Type{reflect.TypeFor[T]()})
	if err != nil {
		return zero, err
	}
	v, _ := vals[0].Interface().(T)
	return v, nil
}

type nativeKey struct {
	id int
	t  reflect.Type
}

// state is the index table of one decode call.
type state struct {
	d       *Decoder
	typed   bool
	nodes   map[int]ir.Node
	started map[int]bool
	values  map[int]Value
	natives map[nativeKey]reflect.Value
	fitMemo map[nativeKey]bool
}

func (d *Decoder) newState(roots []ir.Node, typed bool) (*state, error) {
	s := &state{
		d:       d,
		typed:   typed,
		nodes:   make(map[int]ir.Node),
		started: make(map[int]bool),
		values:  make(map[int]Value),
		natives: make(map[nativeKey]reflect.Value),
		fitMemo: make(map[nativeKey]bool),
	}

	dup := 0
	for _, root := range roots {
		ir.Walk(root, func(n ir.Node) bool {
			c, ok := n.(ir.Container)
			if !ok || c.NodeID() == 0 {
				return true
			}
			if _, exists := s.nodes[c.NodeID()]; exists {
				dup = c.NodeID()
				return false
			}
			s.nodes[c.NodeID()] = n
			return true
		})
		if dup != 0 {
			return nil, &MalformedRefError{ID: dup, Reason: "duplicate"}
		}
	}
	return s, nil
}

func (s *state) checkRef(id int) error {
	if s.started[id] {
		return nil
	}
	if _, ok := s.nodes[id]; ok {
		return &MalformedRefError{ID: id, Reason: "forward"}
	}
	return &MalformedRefError{ID: id, Reason: "unknown"}
}

// register records v as the value of container id before its children
// are decoded.
func (s *state) register(id int, v Value) {
	if id == 0 {
		return
	}
	s.started[id] = true
	s.values[id] = v
}

func (s *state) value(n ir.Node, hint reflect.Type) (Value, error) {
	switch v := n.(type) {
	case nil, ir.Null:
		return Scalar{}, nil
	case ir.Bool, ir.Int, ir.Float, ir.String:
		return s.scalar(v, hint), nil
	case ir.Ref:
		if err := s.checkRef(v.ID); err != nil {
			return nil, err
		}
		if val, ok := s.values[v.ID]; ok {
			return val, nil
		}
		// Built only as a native field so far; decode a value view of it.
		return s.value(s.nodes[v.ID], hint)
	case *ir.List:
		seq := &Sequence{Fixed: v.Tuple, Items: make([]Value, 0, len(v.Items))}
		s.register(v.ID, seq)
		elem := elemHint(hint)
		for _, item := range v.Items {
			iv, err := s.value(item, elem)
			if err != nil {
				return nil, err
			}
			seq.Items = append(seq.Items, iv)
		}
		return seq, nil
	case *ir.Dict:
		m := &Mapping{Entries: make([]KV, 0, len(v.Fields))}
		s.register(v.ID, m)
		elem := elemHint(hint)
		for _, f := range v.Fields {
			fv, err := s.value(f.Value, elem)
			if err != nil {
				return nil, err
			}
			m.Entries = append(m.Entries, KV{Key: Scalar{V: f.Name}, Value: fv})
		}
		return m, nil
	case *ir.KeyedMap:
		m := &Mapping{Entries: make([]KV, 0, len(v.Pairs))}
		s.register(v.ID, m)
		kh, vh := keyHint(hint), elemHint(hint)
		for _, p := range v.Pairs {
			// Keys are appended as built; the lookup index is computed
			// lazily, once every ref inside a key points at a finished value.
			kv, err := s.value(p.Key, kh)
			if err != nil {
				return nil, err
			}
			vv, err := s.value(p.Value, vh)
			if err != nil {
				return nil, err
			}
			m.Entries = append(m.Entries, KV{Key: kv, Value: vv})
		}
		return m, nil
	case *ir.Set:
		set := &Set{Frozen: v.Frozen, Items: make([]Value, 0, len(v.Items))}
		s.register(v.ID, set)
		kh := keyHint(hint)
		for _, item := range v.Items {
			iv, err := s.value(item, kh)
			if err != nil {
				return nil, err
			}
			set.Items = append(set.Items, iv)
		}
		return set, nil
	case *ir.Object:
		return s.object(v, hint)
	}
	return nil, &NotConstructibleError{Type: "snapshot.Value", Node: nodeKind(n)}
}

func (s *state) scalar(n ir.Node, hint reflect.Type) Scalar {
	hint = structType(hint)
	if s.typed && hint != nil && isScalarKind(hint.Kind()) && s.fits(n, hint) {
		if rv, err := s.nativeScalar(n, hint); err == nil {
			return Scalar{V: rv.Interface()}
		}
	}
	return Scalar{V: scalarNative(n)}
}

func (s *state) object(o *ir.Object, hint reflect.Type) (Value, error) {
	var st reflect.Type
	if s.typed {
		st = s.resolveType(o.Type, hint)
		if st != nil {
			if _, ok := s.d.registry.Factory(st); !ok {
				s.d.logger.Debug("decoding object as shell", "type", o.Type, "reason", "no bypass factory")
			} else if !s.fits(o, st) {
				s.d.logger.Debug("decoding object as shell", "type", o.Type, "reason", "attributes do not fit "+st.String())
			} else {
				_, typed, err := s.buildObject(o, st)
				if err != nil {
					return nil, err
				}
				return typed, nil
			}
		}
	}

	sh := &Shell{Type: o.Type, Attrs: make([]Attr, 0, len(o.Attrs))}
	s.register(o.ID, sh)
	for _, a := range o.Attrs {
		var ah reflect.Type
		if st != nil {
			if f, ok := fieldByName(st, a.Name); ok {
				ah = f.Type
			}
		}
		av, err := s.value(a.Value, ah)
		if err != nil {
			return nil, err
		}
		sh.Attrs = append(sh.Attrs, Attr{Name: a.Name, Value: av})
	}
	return sh, nil
}

// resolveType picks the Go type for a recorded object: the declared hint
// when it names a struct, otherwise the registry entry for the name.
func (s *state) resolveType(name string, hint reflect.Type) reflect.Type {
	if st := structType(hint); st != nil && st.Kind() == reflect.Struct {
		return st
	}
	if t, ok := s.d.registry.Lookup(name); ok {
		return t
	}
	return nil
}

func elemHint(t reflect.Type) reflect.Type {
	t = structType(t)
	if t == nil {
		return nil
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return t.Elem()
	}
	return nil
}

func keyHint(t reflect.Type) reflect.Type {
	t = structType(t)
	if t == nil || t.Kind() != reflect.Map {
		return nil
	}
	return t.Key()
}

// scalarNative returns the untyped Go form of a scalar node.
func scalarNative(n ir.Node) any {
	switch v := n.(type) {
	case ir.Bool:
		return bool(v)
	case ir.Int:
		return int64(v)
	case ir.Float:
		return float64(v)
	case ir.String:
		return string(v)
	}
	return nil
}

func nodeKind(n ir.Node) string {
	switch n.(type) {
	case nil, ir.Null:
		return "null"
	case ir.Bool:
		return "bool"
	case ir.Int:
		return "int"
	case ir.Float:
		return "float"
	case ir.String:
		return "string"
	case ir.Ref:
		return "ref"
	case *ir.List:
		return "list"
	case *ir.Dict:
		return "dict"
	case *ir.KeyedMap:
		return "map"
	case *ir.Set:
		return "set"
	case *ir.Object:
		return "object"
	}
	return "unknown"
}
