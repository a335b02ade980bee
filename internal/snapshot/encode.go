package snapshot

import (
	"cmp"
	"encoding"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/roach88/tead/internal/ir"
)

// Encoder converts Go values into Node Trees.
//
// Successive Encode calls on one Encoder share a single identity table, so
// a value reached from two encoded roots is emitted once and referenced
// afterwards. Graphs that must reflect a later state of the same values
// (a result encoded after the call mutated its arguments) need a fresh
// Encoder started past the earlier one with WithIndexBase.
//
// Encoding rules:
//   - scalars are inlined; NaN and infinities become ir.Null
//   - slices become lists, arrays become tuples
//   - maps with string keys become dicts, other maps keyed maps,
//     map[K]struct{} becomes a set
//   - structs become objects carrying exported, non-func attributes
//   - values implementing encoding.TextMarshaler become their text
//   - a container seen before becomes an ir.Ref to its first index
//
// Thread-safety: an Encoder must not be used from several goroutines.
type Encoder struct {
	tracker  *Tracker
	maxDepth int
	path     []string
}

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithMaxDepth replaces containers nested deeper than depth with the
// placeholder string "<TypeName>". Zero means unlimited.
func WithMaxDepth(depth int) EncoderOption {
	return func(e *Encoder) {
		e.maxDepth = depth
	}
}

// WithIndexBase starts index allocation after base, so that the encoded
// graph can sit next to graphs that already use indices 1..base.
func WithIndexBase(base int) EncoderOption {
	return func(e *Encoder) {
		e.tracker.next = max(base, 0)
	}
}

// NewEncoder creates an encoder with a fresh identity table.
func NewEncoder(opts ...EncoderOption) *Encoder {
	e := &Encoder{tracker: NewTracker()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Len returns the highest index allocated so far.
func (e *Encoder) Len() int {
	return e.tracker.Len()
}

// Encode encodes one value in a fresh session.
func Encode(v any, opts ...EncoderOption) (ir.Node, error) {
	return NewEncoder(opts...).Encode(v)
}

// Encode encodes v. After an error the session is unusable.
func (e *Encoder) Encode(v any) (ir.Node, error) {
	e.path = append(e.path[:0], "$")
	return e.encode(valueOf(v), 0)
}

// EncodeArgs encodes positional arguments as a tuple.
func (e *Encoder) EncodeArgs(args []any) (ir.Node, error) {
	_, index := e.tracker.observe(identity{}, false)
	list := &ir.List{ID: index, Tuple: true, Items: make([]ir.Node, 0, len(args))}
	for i, arg := range args {
		e.path = append(e.path[:0], "$args["+strconv.Itoa(i)+"]")
		n, err := e.encode(valueOf(arg), 1)
		if err != nil {
			return nil, err
		}
		list.Items = append(list.Items, n)
	}
	return list, nil
}

// EncodeKwargs encodes named arguments as a dict in key order.
func (e *Encoder) EncodeKwargs(kwargs map[string]any) (ir.Node, error) {
	_, index := e.tracker.observe(identity{}, false)
	dict := &ir.Dict{ID: index, Fields: make([]ir.Field, 0, len(kwargs))}
	names := make([]string, 0, len(kwargs))
	for name := range kwargs {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		e.path = append(e.path[:0], "$kwargs."+name)
		n, err := e.encode(valueOf(kwargs[name]), 1)
		if err != nil {
			return nil, err
		}
		dict.Fields = append(dict.Fields, ir.F(name, n))
	}
	return dict, nil
}

var textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()

func (e *Encoder) encode(rv reflect.Value, depth int) (ir.Node, error) {
	r, err := resolve(rv)
	if err != nil {
		return nil, e.fail(err)
	}
	if r.val != nil {
		return e.encodeValue(r, depth)
	}
	v := r.v
	if !v.IsValid() {
		return ir.Null{}, nil
	}

	if n, ok, err := e.encodeText(r); ok || err != nil {
		return n, err
	}

	switch v.Kind() {
	case reflect.Bool:
		return ir.Bool(v.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return ir.Int(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := v.Uint()
		if u > math.MaxInt64 {
			return nil, e.unsupported(v, "unsigned value exceeds int64 range")
		}
		return ir.Int(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return ir.Null{}, nil
		}
		return ir.Float(f), nil
	case reflect.String:
		return e.encodeString(v.Type(), v.String())
	case reflect.Slice, reflect.Map:
		if v.IsNil() {
			return ir.Null{}, nil
		}
	case reflect.Array, reflect.Struct:
	default:
		return nil, e.unsupported(v, "kind "+v.Kind().String()+" has no node form")
	}

	if e.maxDepth > 0 && depth >= e.maxDepth {
		return ir.String("<" + TypeName(v.Type()) + ">"), nil
	}

	isNew, index := e.tracker.observe(r.containerIdentity())
	if !isNew {
		return ir.Ref{ID: index}, nil
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return e.encodeList(v, index, depth)
	case reflect.Map:
		if isSetType(v.Type()) {
			return e.encodeSet(v, index, depth)
		}
		if v.Type().Key().Kind() == reflect.String {
			return e.encodeDict(v, index, depth)
		}
		return e.encodeKeyedMap(v, index, depth)
	default:
		return e.encodeStruct(v, index, depth)
	}
}

// encodeText handles values that render themselves as text.
func (e *Encoder) encodeText(r resolved) (ir.Node, bool, error) {
	text, ok, err := marshalText(r)
	if err != nil {
		return nil, false, e.fail(err)
	}
	if !ok {
		return nil, false, nil
	}
	n, err := e.encodeString(r.v.Type(), text)
	return n, true, err
}

// encodeString rejects text that is not valid UTF-8.
func (e *Encoder) encodeString(t reflect.Type, s string) (ir.Node, error) {
	if !utf8.ValidString(s) {
		return nil, e.fail(&UnsupportedError{Type: t.String(), Reason: "string is not valid UTF-8"})
	}
	return ir.String(s), nil
}

func (e *Encoder) encodeList(v reflect.Value, index, depth int) (ir.Node, error) {
	list := &ir.List{ID: index, Tuple: v.Kind() == reflect.Array, Items: make([]ir.Node, v.Len())}
	for i := 0; i < v.Len(); i++ {
		e.push("[" + strconv.Itoa(i) + "]")
		n, err := e.encode(v.Index(i), depth+1)
		if err != nil {
			return nil, err
		}
		e.pop()
		list.Items[i] = n
	}
	return list, nil
}

func (e *Encoder) encodeDict(v reflect.Value, index, depth int) (ir.Node, error) {
	keys := v.MapKeys()
	slices.SortFunc(keys, func(a, b reflect.Value) int {
		return strings.Compare(a.String(), b.String())
	})

	dict := &ir.Dict{ID: index, Fields: make([]ir.Field, len(keys))}
	for i, k := range keys {
		if _, err := e.encodeString(k.Type(), k.String()); err != nil {
			return nil, err
		}
		e.push("[" + strconv.Quote(k.String()) + "]")
		n, err := e.encode(v.MapIndex(k), depth+1)
		if err != nil {
			return nil, err
		}
		e.pop()
		dict.Fields[i] = ir.F(k.String(), n)
	}
	return dict, nil
}

func (e *Encoder) encodeKeyedMap(v reflect.Value, index, depth int) (ir.Node, error) {
	keys := v.MapKeys()
	slices.SortStableFunc(keys, compareKeys)

	m := &ir.KeyedMap{ID: index, Pairs: make([]ir.Pair, len(keys))}
	for i, k := range keys {
		e.push("[key " + strconv.Itoa(i) + "]")
		kn, err := e.encode(k, depth+1)
		if err != nil {
			return nil, err
		}
		vn, err := e.encode(v.MapIndex(k), depth+1)
		if err != nil {
			return nil, err
		}
		e.pop()
		m.Pairs[i] = ir.Pair{Key: kn, Value: vn}
	}
	return m, nil
}

func (e *Encoder) encodeSet(v reflect.Value, index, depth int) (ir.Node, error) {
	keys := v.MapKeys()
	slices.SortStableFunc(keys, compareKeys)

	set := &ir.Set{ID: index, Items: make([]ir.Node, len(keys))}
	for i, k := range keys {
		e.push("{" + strconv.Itoa(i) + "}")
		n, err := e.encode(k, depth+1)
		if err != nil {
			return nil, err
		}
		e.pop()
		set.Items[i] = n
	}
	return set, nil
}

func (e *Encoder) encodeStruct(v reflect.Value, index, depth int) (ir.Node, error) {
	fields := fieldsOf(v.Type())
	obj := &ir.Object{ID: index, Type: TypeName(v.Type()), Attrs: make([]ir.Field, 0, len(fields))}
	for _, f := range fields {
		e.push("." + f.Name)
		n, err := e.encode(v.Field(f.Index[0]), depth+1)
		if err != nil {
			return nil, err
		}
		e.pop()
		obj.Attrs = append(obj.Attrs, ir.F(f.Name, n))
	}
	return obj, nil
}

// encodeValue encodes decoded Values back into their node forms.
func (e *Encoder) encodeValue(r resolved, depth int) (ir.Node, error) {
	val := r.val
	switch p := val.(type) {
	case *Scalar:
		val = *p
	case *Cycle:
		val = *p
	}

	switch v := val.(type) {
	case Scalar:
		if v.V == nil {
			return ir.Null{}, nil
		}
		return e.encode(reflect.ValueOf(v.V), depth)
	case Cycle:
		return nil, e.fail(&UnsupportedError{Type: "snapshot.Cycle", Reason: "cycle markers exist only in canonical forms"})
	case *Typed:
		return e.encode(reflect.ValueOf(v.Instance), depth)
	}

	if e.maxDepth > 0 && depth >= e.maxDepth {
		return ir.String("<" + TypeName(r.v.Type()) + ">"), nil
	}
	isNew, index := e.tracker.observe(r.containerIdentity())
	if !isNew {
		return ir.Ref{ID: index}, nil
	}

	switch v := val.(type) {
	case *Sequence:
		list := &ir.List{ID: index, Tuple: v.Fixed, Items: make([]ir.Node, len(v.Items))}
		for i, item := range v.Items {
			e.push("[" + strconv.Itoa(i) + "]")
			n, err := e.encode(reflect.ValueOf(item), depth+1)
			if err != nil {
				return nil, err
			}
			e.pop()
			list.Items[i] = n
		}
		return list, nil
	case *Set:
		set := &ir.Set{ID: index, Frozen: v.Frozen, Items: make([]ir.Node, len(v.Items))}
		for i, item := range v.Items {
			e.push("{" + strconv.Itoa(i) + "}")
			n, err := e.encode(reflect.ValueOf(item), depth+1)
			if err != nil {
				return nil, err
			}
			e.pop()
			set.Items[i] = n
		}
		return set, nil
	case *Mapping:
		return e.encodeMapping(v, index, depth)
	case *Shell:
		obj := &ir.Object{ID: index, Type: v.Type, Attrs: make([]ir.Field, len(v.Attrs))}
		for i, a := range v.Attrs {
			e.push("." + a.Name)
			n, err := e.encode(reflect.ValueOf(a.Value), depth+1)
			if err != nil {
				return nil, err
			}
			e.pop()
			obj.Attrs[i] = ir.F(a.Name, n)
		}
		return obj, nil
	}
	return nil, e.fail(&UnsupportedError{Type: fmt.Sprintf("%T", val), Reason: "unknown decoded value"})
}

func (e *Encoder) encodeMapping(m *Mapping, index, depth int) (ir.Node, error) {
	stringKeys := true
	for _, kv := range m.Entries {
		if s, ok := kv.Key.(Scalar); !ok || !isString(s.V) {
			stringKeys = false
			break
		}
	}

	if stringKeys {
		dict := &ir.Dict{ID: index, Fields: make([]ir.Field, len(m.Entries))}
		for i, kv := range m.Entries {
			name := reflect.ValueOf(kv.Key.(Scalar).V).String()
			if _, err := e.encodeString(reflect.TypeOf(""), name); err != nil {
				return nil, err
			}
			e.push("[" + strconv.Quote(name) + "]")
			n, err := e.encode(reflect.ValueOf(kv.Value), depth+1)
			if err != nil {
				return nil, err
			}
			e.pop()
			dict.Fields[i] = ir.F(name, n)
		}
		return dict, nil
	}

	km := &ir.KeyedMap{ID: index, Pairs: make([]ir.Pair, len(m.Entries))}
	for i, kv := range m.Entries {
		e.push("[key " + strconv.Itoa(i) + "]")
		kn, err := e.encode(reflect.ValueOf(kv.Key), depth+1)
		if err != nil {
			return nil, err
		}
		vn, err := e.encode(reflect.ValueOf(kv.Value), depth+1)
		if err != nil {
			return nil, err
		}
		e.pop()
		km.Pairs[i] = ir.Pair{Key: kn, Value: vn}
	}
	return km, nil
}

func (e *Encoder) push(segment string) {
	e.path = append(e.path, segment)
}

func (e *Encoder) pop() {
	e.path = e.path[:len(e.path)-1]
}

func (e *Encoder) unsupported(v reflect.Value, reason string) error {
	return e.fail(&UnsupportedError{Type: v.Type().String(), Reason: reason})
}

func (e *Encoder) fail(err error) error {
	if ue, ok := err.(*UnsupportedError); ok && ue.Path == "" {
		ue.Path = strings.Join(e.path, "")
	}
	return err
}

func isSetType(t reflect.Type) bool {
	return t.Kind() == reflect.Map && t.Elem().Kind() == reflect.Struct && t.Elem().NumField() == 0
}

func isString(v any) bool {
	return v != nil && reflect.TypeOf(v).Kind() == reflect.String
}

// compareKeys orders map keys deterministically: by kind rank first, then
// by value for scalars and by canonical key for everything else. Pointer
// keys are ordered by what they point at, never by address.
func compareKeys(a, b reflect.Value) int {
	a, b = indirect(a), indirect(b)
	ra, rb := keyRank(a), keyRank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}

	switch ra {
	case 0:
		return 0
	case 1:
		return cmp.Compare(boolInt(a.Bool()), boolInt(b.Bool()))
	case 2:
		return cmp.Compare(a.Int(), b.Int())
	case 3:
		return cmp.Compare(a.Uint(), b.Uint())
	case 4:
		return cmp.Compare(a.Float(), b.Float())
	case 5:
		return strings.Compare(a.String(), b.String())
	}
	return strings.Compare(canonicalKey(a), canonicalKey(b))
}

// canonicalKey is keyOf for sorting; values without a key form sort by type
// name after all others.
func canonicalKey(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}
	if k, err := keyOf(v); err == nil {
		return k
	}
	return "\uffff" + v.Type().String()
}

func keyRank(v reflect.Value) int {
	if !v.IsValid() {
		return 0
	}
	switch v.Kind() {
	case reflect.Bool:
		return 1
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return 2
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return 3
	case reflect.Float32, reflect.Float64:
		return 4
	case reflect.String:
		return 5
	}
	return 6
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
