package tead

import "github.com/roach88/tead/internal/snapshot"

// Value is a recorded value as generated tests write it.
type Value = snapshot.Value

// value lifts a Go scalar or an existing Value.
func value(v any) Value {
	if val, ok := v.(Value); ok {
		return val
	}
	return snapshot.S(v)
}

func values(items []any) []Value {
	out := make([]Value, len(items))
	for i, item := range items {
		out[i] = value(item)
	}
	return out
}

// Args builds the positional arguments of a Case. Items are kept as
// given; Go values and builder Values mix freely.
func Args(items ...any) []any {
	return append([]any{}, items...)
}

// Seq builds a list.
func Seq(items ...any) Value {
	return &snapshot.Sequence{Items: values(items)}
}

// Tuple builds a fixed-arity sequence.
func Tuple(items ...any) Value {
	return &snapshot.Sequence{Fixed: true, Items: values(items)}
}

// Set builds a set.
func Set(items ...any) Value {
	return &snapshot.Set{Items: values(items)}
}

// FrozenSet builds an immutable set.
func FrozenSet(items ...any) Value {
	return &snapshot.Set{Frozen: true, Items: values(items)}
}

// Pair is one Map entry.
type Pair = snapshot.KV

// KV builds a Map entry.
func KV(key, val any) Pair {
	return Pair{Key: value(key), Value: value(val)}
}

// Map builds a mapping. Keys may be any Value, including tuples.
func Map(entries ...Pair) Value {
	m := &snapshot.Mapping{}
	for _, e := range entries {
		m.Put(e.Key, e.Value)
	}
	return m
}

// Field is one Obj attribute.
type Field = snapshot.Attr

// Attr builds an Obj attribute.
func Attr(name string, val any) Field {
	return Field{Name: name, Value: value(val)}
}

// Obj builds a composite of the named type, e.g.
// Obj("github.com/acme/geo.Rect", Attr("W", 2.0)).
func Obj(typeName string, attrs ...Field) Value {
	return &snapshot.Shell{Type: typeName, Attrs: attrs}
}
