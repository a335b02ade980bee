package ir

// Node is a sealed interface for the portable Node Tree produced by the
// snapshot encoder. Only the types in this file implement it.
//
// Scalars (Null, Bool, Int, Float, String) carry no identity and are
// repeated inline. Containers (List, Dict, KeyedMap, Set, Object) carry an
// ID assigned in first-visit order starting at 1. A Ref stands in for a
// container that was already emitted earlier in the same tree (or in an
// earlier tree of the same Entry).
type Node interface {
	node() // Sealed - only these types implement it
}

// Container is implemented by the node kinds that carry an ID.
type Container interface {
	Node
	NodeID() int
}

// Null is the absence value. It is also the encoding of non-finite floats.
type Null struct{}

func (Null) node() {}

// Bool is a boolean scalar.
type Bool bool

func (Bool) node() {}

// Int is an integer scalar.
type Int int64

func (Int) node() {}

// Float is a finite floating-point scalar.
// NaN and infinities never appear in a Node Tree.
type Float float64

func (Float) node() {}

// String is a text scalar.
type String string

func (String) node() {}

// List is an ordered sequence. Tuple marks fixed-arity sequences (Go arrays).
type List struct {
	ID    int
	Tuple bool
	Items []Node
}

func (*List) node() {}

// NodeID returns the container ID.
func (l *List) NodeID() int { return l.ID }

// Field is one named child of a Dict or Object, kept in order.
type Field struct {
	Name  string
	Value Node
}

// Dict is a mapping whose keys are all strings.
// Field order is the encoder's deterministic order and is preserved on the wire.
type Dict struct {
	ID     int
	Fields []Field
}

func (*Dict) node() {}

// NodeID returns the container ID.
func (d *Dict) NodeID() int { return d.ID }

// Lookup returns the value for key and whether it was present.
func (d *Dict) Lookup(key string) (Node, bool) {
	for _, f := range d.Fields {
		if f.Name == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Pair is one key/value entry of a KeyedMap.
type Pair struct {
	Key   Node
	Value Node
}

// KeyedMap is a mapping whose keys are not all strings.
// Keys may be any node, including containers and refs.
type KeyedMap struct {
	ID    int
	Pairs []Pair
}

func (*KeyedMap) node() {}

// NodeID returns the container ID.
func (m *KeyedMap) NodeID() int { return m.ID }

// Set is an unordered collection. Frozen marks an immutable set.
type Set struct {
	ID     int
	Frozen bool
	Items  []Node
}

func (*Set) node() {}

// NodeID returns the container ID.
func (s *Set) NodeID() int { return s.ID }

// Object is a composite value: a named type with ordered attributes.
// Type is fully qualified, e.g. "github.com/acme/geo.Point".
type Object struct {
	ID    int
	Type  string
	Attrs []Field
}

func (*Object) node() {}

// NodeID returns the container ID.
func (o *Object) NodeID() int { return o.ID }

// Attr returns the attribute node for name and whether it was present.
func (o *Object) Attr(name string) (Node, bool) {
	for _, f := range o.Attrs {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Ref is a back-reference to the container with the given ID.
type Ref struct {
	ID int
}

func (Ref) node() {}

// F is a shorthand for Field.
// Example: &Dict{ID: 1, Fields: []Field{F("a", Int(1))}}
func F(name string, value Node) Field {
	return Field{Name: name, Value: value}
}

// Children returns the direct child nodes of n in wire order.
// Scalars and refs have no children.
func Children(n Node) []Node {
	switch v := n.(type) {
	case *List:
		return v.Items
	case *Set:
		return v.Items
	case *Dict:
		out := make([]Node, len(v.Fields))
		for i, f := range v.Fields {
			out[i] = f.Value
		}
		return out
	case *Object:
		out := make([]Node, len(v.Attrs))
		for i, f := range v.Attrs {
			out[i] = f.Value
		}
		return out
	case *KeyedMap:
		out := make([]Node, 0, 2*len(v.Pairs))
		for _, p := range v.Pairs {
			out = append(out, p.Key, p.Value)
		}
		return out
	default:
		return nil
	}
}

// Walk visits n and its descendants depth-first in wire order.
// Refs are visited but not followed. Walk stops early when fn returns false.
func Walk(n Node, fn func(Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for _, c := range Children(n) {
		if !Walk(c, fn) {
			return false
		}
	}
	return true
}

// IsScalar reports whether n is an inline scalar node.
func IsScalar(n Node) bool {
	switch n.(type) {
	case Null, Bool, Int, Float, String:
		return true
	}
	return false
}
