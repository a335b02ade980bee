package snapshot

import (
	"encoding"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// MaxCanonicalDepth bounds container nesting during canonicalization.
const MaxCanonicalDepth = 10000

// Canonicalize converts v, a Value or any Go value, into its canonical form:
// a Value tree that is equal for two inputs exactly when they are
// structurally equivalent.
//
// Canonical rules:
//   - integers become int64 (uint64 only above math.MaxInt64), floats
//     become float64, and non-finite floats become nil
//   - text marshalers become their text
//   - a sequence is a plain list, except inside a mapping key or a set
//     element, where every sequence is a tuple (Fixed)
//   - sets are sorted by canonical key; Frozen is set exactly in key position
//   - mapping entries are sorted by canonical key
//   - structs, shells and typed instances all become a Shell with
//     attributes sorted by name
//   - a back edge to a container on the current path becomes Cycle{Up: n},
//     n being the number of levels to that ancestor
//
// Aliasing is not part of the canonical form: two references to one list
// and two equal but distinct lists canonicalize identically.
func Canonicalize(v any) (Value, error) {
	c := &canonicalizer{onPath: make(map[identity]int)}
	return c.canon(valueOf(v), false, 0)
}

// Equal reports whether a and b are structurally equivalent. Values that
// cannot be canonicalized are never equal.
func Equal(a, b any) bool {
	ka, err := render(a, false)
	if err != nil {
		return false
	}
	kb, err := render(b, false)
	if err != nil {
		return false
	}
	return ka == kb
}

// Key returns the canonical key of v: the rendering of its canonical form
// in key position. Equivalent values have equal keys.
func Key(v any) (string, error) {
	return render(v, true)
}

// Render returns the canonical form of v as compact JSON-like text.
func Render(v any) (string, error) {
	return render(v, false)
}

func keyOf(v any) (string, error) {
	return render(v, true)
}

func render(v any, keyPos bool) (string, error) {
	c := &canonicalizer{onPath: make(map[identity]int)}
	cv, err := c.canon(valueOf(v), keyPos, 0)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	writeCanonical(&b, cv)
	return b.String(), nil
}

type canonicalizer struct {
	onPath map[identity]int
}

func (c *canonicalizer) canon(rv reflect.Value, keyPos bool, level int) (Value, error) {
	r, err := resolve(rv)
	if err != nil {
		return nil, err
	}
	if r.val != nil {
		return c.canonValue(r, keyPos, level)
	}
	v := r.v
	if !v.IsValid() {
		return Scalar{}, nil
	}
	if text, ok, err := marshalText(r); ok || err != nil {
		if err != nil {
			return nil, err
		}
		return Scalar{V: text}, nil
	}

	switch v.Kind() {
	case reflect.Bool:
		return Scalar{V: v.Bool()}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Scalar{V: v.Int()}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if u := v.Uint(); u > math.MaxInt64 {
			return Scalar{V: u}, nil
		}
		return Scalar{V: int64(v.Uint())}, nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Scalar{}, nil
		}
		return Scalar{V: f}, nil
	case reflect.String:
		return Scalar{V: v.String()}, nil
	case reflect.Slice, reflect.Map:
		if v.IsNil() {
			return Scalar{}, nil
		}
	case reflect.Array, reflect.Struct:
	default:
		return nil, &UnsupportedError{Type: v.Type().String(), Reason: "kind " + v.Kind().String() + " has no canonical form"}
	}

	id, tracked := r.containerIdentity()
	if tracked {
		if at, ok := c.onPath[id]; ok {
			return Cycle{Up: level - at}, nil
		}
	}
	if level >= MaxCanonicalDepth {
		return nil, ErrTooDeep
	}
	if tracked {
		c.onPath[id] = level
		defer delete(c.onPath, id)
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]reflect.Value, v.Len())
		for i := range items {
			items[i] = v.Index(i)
		}
		return c.canonSequence(items, keyPos, level)
	case reflect.Map:
		if isSetType(v.Type()) {
			return c.canonSet(v.MapKeys(), keyPos, level)
		}
		iter := v.MapRange()
		var keys, vals []reflect.Value
		for iter.Next() {
			keys = append(keys, iter.Key())
			vals = append(vals, iter.Value())
		}
		return c.canonMapping(keys, vals, keyPos, level)
	default:
		fields := fieldsOf(v.Type())
		names := make([]string, len(fields))
		vals := make([]reflect.Value, len(fields))
		for i, f := range fields {
			names[i] = f.Name
			vals[i] = v.Field(f.Index[0])
		}
		return c.canonShell(TypeName(v.Type()), names, vals, keyPos, level)
	}
}

func (c *canonicalizer) canonValue(r resolved, keyPos bool, level int) (Value, error) {
	switch v := r.val.(type) {
	case Scalar:
		return c.canon(reflect.ValueOf(v.V), keyPos, level)
	case *Scalar:
		return c.canon(reflect.ValueOf(v.V), keyPos, level)
	case Cycle:
		return v, nil
	case *Cycle:
		return *v, nil
	case *Typed:
		return c.canon(reflect.ValueOf(v.Instance), keyPos, level)
	}

	id, _ := identityOf(r.v)
	if at, ok := c.onPath[id]; ok {
		return Cycle{Up: level - at}, nil
	}
	if level >= MaxCanonicalDepth {
		return nil, ErrTooDeep
	}
	c.onPath[id] = level
	defer delete(c.onPath, id)

	switch v := r.val.(type) {
	case *Sequence:
		return c.canonSequence(reflectAll(v.Items), keyPos, level)
	case *Set:
		return c.canonSet(reflectAll(v.Items), keyPos, level)
	case *Mapping:
		keys := make([]reflect.Value, len(v.Entries))
		vals := make([]reflect.Value, len(v.Entries))
		for i, e := range v.Entries {
			keys[i] = reflect.ValueOf(e.Key)
			vals[i] = reflect.ValueOf(e.Value)
		}
		return c.canonMapping(keys, vals, keyPos, level)
	case *Shell:
		names := make([]string, len(v.Attrs))
		vals := make([]reflect.Value, len(v.Attrs))
		for i, a := range v.Attrs {
			names[i] = a.Name
			vals[i] = reflect.ValueOf(a.Value)
		}
		return c.canonShell(v.Type, names, vals, keyPos, level)
	}
	return nil, &UnsupportedError{Type: r.v.Type().String(), Reason: "unknown decoded value"}
}

func (c *canonicalizer) canonSequence(items []reflect.Value, keyPos bool, level int) (Value, error) {
	out := &Sequence{Fixed: keyPos, Items: make([]Value, len(items))}
	for i, item := range items {
		cv, err := c.canon(item, keyPos, level+1)
		if err != nil {
			return nil, err
		}
		out.Items[i] = cv
	}
	return out, nil
}

func (c *canonicalizer) canonSet(items []reflect.Value, keyPos bool, level int) (Value, error) {
	type keyed struct {
		key string
		val Value
	}
	entries := make([]keyed, 0, len(items))
	for _, item := range items {
		cv, err := c.canon(item, true, level+1)
		if err != nil {
			return nil, err
		}
		entries = append(entries, keyed{key: canonicalString(cv), val: cv})
	}
	slices.SortFunc(entries, func(a, b keyed) int { return strings.Compare(a.key, b.key) })

	out := &Set{Frozen: keyPos, Items: make([]Value, len(entries))}
	for i, e := range entries {
		out.Items[i] = e.val
	}
	return out, nil
}

func (c *canonicalizer) canonMapping(keys, vals []reflect.Value, keyPos bool, level int) (Value, error) {
	type keyed struct {
		key string
		kv  KV
	}
	entries := make([]keyed, 0, len(keys))
	for i := range keys {
		ck, err := c.canon(keys[i], true, level+1)
		if err != nil {
			return nil, err
		}
		cv, err := c.canon(vals[i], keyPos, level+1)
		if err != nil {
			return nil, err
		}
		entries = append(entries, keyed{key: canonicalString(ck), kv: KV{Key: ck, Value: cv}})
	}
	slices.SortFunc(entries, func(a, b keyed) int { return strings.Compare(a.key, b.key) })

	out := &Mapping{Entries: make([]KV, len(entries))}
	for i, e := range entries {
		out.Entries[i] = e.kv
	}
	return out, nil
}

func (c *canonicalizer) canonShell(typeName string, names []string, vals []reflect.Value, keyPos bool, level int) (Value, error) {
	out := &Shell{Type: typeName, Attrs: make([]Attr, len(names))}
	for i, name := range names {
		cv, err := c.canon(vals[i], keyPos, level+1)
		if err != nil {
			return nil, err
		}
		out.Attrs[i] = Attr{Name: name, Value: cv}
	}
	slices.SortStableFunc(out.Attrs, func(a, b Attr) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func reflectAll(items []Value) []reflect.Value {
	out := make([]reflect.Value, len(items))
	for i, item := range items {
		out[i] = reflect.ValueOf(item)
	}
	return out
}

// marshalText returns the text of a value that renders itself as text.
func marshalText(r resolved) (string, bool, error) {
	var tm encoding.TextMarshaler
	switch {
	case r.v.Type().Implements(textMarshalerType) && r.v.CanInterface():
		tm = r.v.Interface().(encoding.TextMarshaler)
	case r.ptr.IsValid() && r.ptr.Type().Implements(textMarshalerType):
		tm = r.ptr.Interface().(encoding.TextMarshaler)
	default:
		return "", false, nil
	}
	text, err := tm.MarshalText()
	if err != nil {
		return "", false, &UnsupportedError{Type: r.v.Type().String(), Reason: "MarshalText failed: " + err.Error()}
	}
	return string(text), true, nil
}

func canonicalString(v Value) string {
	var b strings.Builder
	writeCanonical(&b, v)
	return b.String()
}

// writeCanonical renders a canonical Value as compact JSON-like text.
func writeCanonical(b *strings.Builder, v Value) {
	switch v := v.(type) {
	case Scalar:
		writeScalar(b, v.V)
	case Cycle:
		b.WriteString(`{"$cycle":`)
		b.WriteString(strconv.Itoa(v.Up))
		b.WriteByte('}')
	case *Sequence:
		if v.Fixed {
			b.WriteString(`{"$tuple":`)
		}
		b.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, item)
		}
		b.WriteByte(']')
		if v.Fixed {
			b.WriteByte('}')
		}
	case *Set:
		b.WriteString(`{"$set":[`)
		for i, item := range v.Items {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, item)
		}
		b.WriteString(`],"$frozen":`)
		b.WriteString(strconv.FormatBool(v.Frozen))
		b.WriteByte('}')
	case *Mapping:
		b.WriteString(`{"$map":[`)
		for i, e := range v.Entries {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('[')
			writeCanonical(b, e.Key)
			b.WriteByte(',')
			writeCanonical(b, e.Value)
			b.WriteByte(']')
		}
		b.WriteString(`]}`)
	case *Shell:
		b.WriteString(`{"$type":`)
		b.WriteString(strconv.Quote(v.Type))
		b.WriteString(`,"$attrs":{`)
		for i, a := range v.Attrs {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(a.Name))
			b.WriteByte(':')
			writeCanonical(b, a.Value)
		}
		b.WriteString(`}}`)
	default:
		b.WriteString("null")
	}
}

func writeScalar(b *strings.Builder, v any) {
	switch v := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		b.WriteString(strconv.FormatBool(v))
	case int64:
		b.WriteString(strconv.FormatInt(v, 10))
	case uint64:
		b.WriteString(strconv.FormatUint(v, 10))
	case float64:
		s := strconv.FormatFloat(v, 'g', -1, 64)
		if !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		b.WriteString(s)
	case string:
		b.WriteString(strconv.Quote(v))
	default:
		b.WriteString(strconv.Quote(reflect.TypeOf(v).String()))
	}
}
