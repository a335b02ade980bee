package snapshot

import "slices"

// Value is a sealed interface for decoded values.
//
// Value kinds:
//   - Scalar: nil, bool, integer, float or string
//   - *Sequence: ordered items; Fixed marks a fixed-arity tuple
//   - *Mapping: ordered key/value entries with lookup by equivalent key
//   - *Set: unordered items; Frozen marks an immutable set
//   - *Shell: attribute bag for a composite that was not constructed
//   - *Typed: a constructed instance of a registered Go type
//   - Cycle: canonical-only marker for a back edge to an ancestor
//
// Container kinds are pointers so that aliasing and cycles in a decoded
// graph are represented by shared pointers, exactly like the original graph.
type Value interface {
	value() // Sealed - only these types implement it
}

// Scalar holds an inline scalar. V is nil, bool, a Go integer or float
// type, or a string. Untyped decoding yields int64 and float64.
type Scalar struct {
	V any
}

func (Scalar) value() {}

// S wraps a Go scalar as a Scalar.
func S(v any) Scalar {
	return Scalar{V: v}
}

// Sequence is a decoded list or tuple.
type Sequence struct {
	Fixed bool
	Items []Value
}

func (*Sequence) value() {}

// Len returns the number of items.
func (s *Sequence) Len() int {
	return len(s.Items)
}

// KV is one entry of a Mapping.
type KV struct {
	Key   Value
	Value Value
}

// Mapping is a decoded mapping. Entries keep insertion order.
//
// Keys may be any Value, including sequences and sets. Lookups compare keys
// by canonical form, so a freshly built key equal in structure to a stored
// key finds it. The lookup index is built lazily on first use, after the
// decoder has finished building every key.
type Mapping struct {
	Entries []KV

	index map[string]int
}

func (*Mapping) value() {}

// Len returns the number of entries.
func (m *Mapping) Len() int {
	return len(m.Entries)
}

// Put appends an entry, or replaces the value of an entry with an
// equivalent key.
func (m *Mapping) Put(key, val Value) {
	if m.index != nil {
		if k, err := keyOf(key); err == nil {
			if i, ok := m.index[k]; ok {
				m.Entries[i].Value = val
				return
			}
			m.index[k] = len(m.Entries)
		}
	}
	m.Entries = append(m.Entries, KV{Key: key, Value: val})
}

// Get returns the value stored under a key equivalent to key.
// key may be a Value or any Go value, e.g. [2]int{1, 2} or []int{1, 2}
// for a tuple-keyed mapping.
func (m *Mapping) Get(key any) (Value, bool) {
	k, err := keyOf(key)
	if err != nil {
		return nil, false
	}
	if m.index == nil {
		m.reindex()
	}
	i, ok := m.index[k]
	if !ok {
		return nil, false
	}
	return m.Entries[i].Value, true
}

// Keys returns the keys in entry order.
func (m *Mapping) Keys() []Value {
	keys := make([]Value, len(m.Entries))
	for i, e := range m.Entries {
		keys[i] = e.Key
	}
	return keys
}

func (m *Mapping) reindex() {
	m.index = make(map[string]int, len(m.Entries))
	for i, e := range m.Entries {
		k, err := keyOf(e.Key)
		if err != nil {
			continue
		}
		if _, dup := m.index[k]; !dup {
			m.index[k] = i
		}
	}
}

// Set is a decoded set.
type Set struct {
	Frozen bool
	Items  []Value
}

func (*Set) value() {}

// Len returns the number of items.
func (s *Set) Len() int {
	return len(s.Items)
}

// Contains reports whether the set holds an item equivalent to v.
func (s *Set) Contains(v any) bool {
	k, err := keyOf(v)
	if err != nil {
		return false
	}
	for _, item := range s.Items {
		if ik, err := keyOf(item); err == nil && ik == k {
			return true
		}
	}
	return false
}

// Attr is one named attribute of a Shell.
type Attr struct {
	Name  string
	Value Value
}

// Shell stands in for a composite whose type was unknown, opaque, or did
// not fit the recorded attributes. It answers attribute reads like an
// instance would, but has no behavior.
type Shell struct {
	Type  string
	Attrs []Attr
}

func (*Shell) value() {}

// TypeName returns the recorded fully qualified type name.
func (s *Shell) TypeName() string {
	return s.Type
}

// Attr returns the named attribute the way an instance would: scalars as
// their native value, composites as their decoded Value.
func (s *Shell) Attr(name string) (any, bool) {
	for _, a := range s.Attrs {
		if a.Name == name {
			if sc, ok := a.Value.(Scalar); ok {
				return sc.V, true
			}
			return a.Value, true
		}
	}
	return nil, false
}

// AttrNames returns the attribute names in recorded order.
func (s *Shell) AttrNames() []string {
	names := make([]string, len(s.Attrs))
	for i, a := range s.Attrs {
		names[i] = a.Name
	}
	return names
}

// Typed wraps an instance built by the typed decoder.
// Instance is always a pointer to a struct.
type Typed struct {
	Type     string
	Instance any
}

func (*Typed) value() {}

// TypeName returns the recorded fully qualified type name.
func (t *Typed) TypeName() string {
	return t.Type
}

// Attr returns the current value of the named exported field.
func (t *Typed) Attr(name string) (any, bool) {
	rv := indirect(valueOf(t.Instance))
	if !rv.IsValid() {
		return nil, false
	}
	for _, f := range fieldsOf(rv.Type()) {
		if f.Name == name {
			return rv.FieldByIndex(f.Index).Interface(), true
		}
	}
	return nil, false
}

// AttrNames returns the exported field names in declaration order.
func (t *Typed) AttrNames() []string {
	rv := indirect(valueOf(t.Instance))
	if !rv.IsValid() {
		return nil
	}
	fields := fieldsOf(rv.Type())
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// Attributed is the uniform attribute-read surface shared by Shell and Typed.
type Attributed interface {
	Value
	TypeName() string
	Attr(name string) (any, bool)
	AttrNames() []string
}

// Cycle marks a back edge in a canonical form: the value is the ancestor Up
// levels above this position.
type Cycle struct {
	Up int
}

func (Cycle) value() {}

// Seq builds a Sequence from items.
func Seq(items ...Value) *Sequence {
	return &Sequence{Items: slices.Clone(items)}
}

// Tuple builds a fixed-arity Sequence from items.
func Tuple(items ...Value) *Sequence {
	return &Sequence{Fixed: true, Items: slices.Clone(items)}
}
