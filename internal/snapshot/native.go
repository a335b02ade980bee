package snapshot

import (
	"encoding"
	"math"
	"reflect"

	"github.com/roach88/tead/internal/ir"
)

var textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

// memo records rv as the native value of container id at type t.
// Containers are memoized before their children are filled.
func (s *state) memo(id int, t reflect.Type, rv reflect.Value) {
	if id == 0 {
		return
	}
	s.started[id] = true
	s.natives[nativeKey{id, t}] = rv
}

// buildObject allocates st through its factory, registers the instance at
// both *st and st, and assigns the recorded attributes. Callers must have
// checked fits first.
func (s *state) buildObject(o *ir.Object, st reflect.Type) (reflect.Value, *Typed, error) {
	factory, ok := s.d.registry.Factory(st)
	if !ok {
		return reflect.Value{}, nil, &NotConstructibleError{Type: st.String(), Node: "object"}
	}
	ptr := factory()
	if !ptr.IsValid() || ptr.Type() != reflect.PointerTo(st) || ptr.IsNil() {
		return reflect.Value{}, nil, &NotConstructibleError{Type: st.String(), Node: "object"}
	}

	typed := &Typed{Type: o.Type, Instance: ptr.Interface()}
	s.memo(o.ID, ptr.Type(), ptr)
	s.memo(o.ID, st, ptr.Elem())
	if o.ID != 0 {
		if existing, ok := s.values[o.ID].(*Typed); ok {
			typed = existing
		} else if _, ok := s.values[o.ID]; !ok {
			s.values[o.ID] = typed
		}
	}

	sv := ptr.Elem()
	for _, a := range o.Attrs {
		f, ok := fieldByName(st, a.Name)
		if !ok {
			return reflect.Value{}, nil, &NotConstructibleError{Type: st.String(), Node: "object"}
		}
		fv, err := s.native(a.Value, f.Type)
		if err != nil {
			return reflect.Value{}, nil, err
		}
		sv.Field(f.Index[0]).Set(fv)
	}
	return ptr, typed, nil
}

// native builds a value of type t from n.
func (s *state) native(n ir.Node, t reflect.Type) (reflect.Value, error) {
	if ref, ok := n.(ir.Ref); ok {
		if err := s.checkRef(ref.ID); err != nil {
			return reflect.Value{}, err
		}
		if rv, ok := s.natives[nativeKey{ref.ID, t}]; ok {
			return rv, nil
		}
		if t.Kind() == reflect.Interface {
			if val, ok := s.values[ref.ID]; ok {
				if rv := reflect.ValueOf(val); rv.Type().AssignableTo(t) {
					return rv, nil
				}
			}
		}
		return s.native(s.nodes[ref.ID], t)
	}

	if t.Kind() == reflect.Interface {
		return s.nativeAny(n, t)
	}
	if _, isNull := n.(ir.Null); isNull || n == nil {
		if isFloatKind(t.Kind()) {
			return reflect.ValueOf(math.NaN()).Convert(t), nil
		}
		return reflect.Zero(t), nil
	}
	if t.Kind() == reflect.Pointer {
		return s.nativePointer(n, t)
	}

	switch v := n.(type) {
	case ir.Bool, ir.Int, ir.Float, ir.String:
		return s.nativeScalar(v, t)
	case *ir.List:
		return s.nativeList(v, t)
	case *ir.Dict:
		if t.Kind() == reflect.Map && t.Key().Kind() == reflect.String {
			mv := reflect.MakeMapWithSize(t, len(v.Fields))
			s.memo(v.ID, t, mv)
			for _, f := range v.Fields {
				fv, err := s.native(f.Value, t.Elem())
				if err != nil {
					return reflect.Value{}, err
				}
				mv.SetMapIndex(reflect.ValueOf(f.Name).Convert(t.Key()), fv)
			}
			return mv, nil
		}
	case *ir.KeyedMap:
		if t.Kind() == reflect.Map {
			mv := reflect.MakeMapWithSize(t, len(v.Pairs))
			s.memo(v.ID, t, mv)
			for _, p := range v.Pairs {
				kv, err := s.native(p.Key, t.Key())
				if err != nil {
					return reflect.Value{}, err
				}
				vv, err := s.native(p.Value, t.Elem())
				if err != nil {
					return reflect.Value{}, err
				}
				mv.SetMapIndex(kv, vv)
			}
			return mv, nil
		}
	case *ir.Set:
		if t.Kind() == reflect.Map {
			mv := reflect.MakeMapWithSize(t, len(v.Items))
			s.memo(v.ID, t, mv)
			member := reflect.Zero(t.Elem())
			if t.Elem().Kind() == reflect.Bool {
				member = reflect.ValueOf(true).Convert(t.Elem())
			}
			for _, item := range v.Items {
				kv, err := s.native(item, t.Key())
				if err != nil {
					return reflect.Value{}, err
				}
				mv.SetMapIndex(kv, member)
			}
			return mv, nil
		}
	case *ir.Object:
		if t.Kind() == reflect.Struct {
			ptr, _, err := s.buildObject(v, t)
			if err != nil {
				return reflect.Value{}, err
			}
			return ptr.Elem(), nil
		}
	}
	return reflect.Value{}, &NotConstructibleError{Type: t.String(), Node: nodeKind(n)}
}

func (s *state) nativePointer(n ir.Node, t reflect.Type) (reflect.Value, error) {
	if o, ok := n.(*ir.Object); ok && t.Elem().Kind() == reflect.Struct {
		ptr, _, err := s.buildObject(o, t.Elem())
		return ptr, err
	}
	ev, err := s.native(n, t.Elem())
	if err != nil {
		return reflect.Value{}, err
	}
	p := reflect.New(t.Elem())
	p.Elem().Set(ev)
	return p, nil
}

func (s *state) nativeList(l *ir.List, t reflect.Type) (reflect.Value, error) {
	switch t.Kind() {
	case reflect.Slice:
		sv := reflect.MakeSlice(t, len(l.Items), len(l.Items))
		s.memo(l.ID, t, sv)
		for i, item := range l.Items {
			iv, err := s.native(item, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			sv.Index(i).Set(iv)
		}
		return sv, nil
	case reflect.Array:
		if len(l.Items) != t.Len() {
			break
		}
		av := reflect.New(t).Elem()
		for i, item := range l.Items {
			iv, err := s.native(item, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			av.Index(i).Set(iv)
		}
		s.memo(l.ID, t, av)
		return av, nil
	}
	return reflect.Value{}, &NotConstructibleError{Type: t.String(), Node: "list"}
}

// nativeAny builds a value for an interface-typed slot. Scalars, lists and
// string-keyed dicts become plain Go values; keyed maps and sets become
// *Mapping and *Set; objects become a registered type or a *Shell.
func (s *state) nativeAny(n ir.Node, t reflect.Type) (reflect.Value, error) {
	var out reflect.Value
	switch v := n.(type) {
	case nil, ir.Null:
		return reflect.Zero(t), nil
	case ir.Bool, ir.Int, ir.Float, ir.String:
		out = reflect.ValueOf(scalarNative(v))
	case *ir.List:
		items := make([]any, len(v.Items))
		out = reflect.ValueOf(items)
		s.memo(v.ID, t, out)
		for i, item := range v.Items {
			iv, err := s.native(item, t)
			if err != nil {
				return reflect.Value{}, err
			}
			if iv.IsValid() && iv.CanInterface() {
				items[i] = iv.Interface()
			}
		}
	case *ir.Dict:
		m := make(map[string]any, len(v.Fields))
		out = reflect.ValueOf(m)
		s.memo(v.ID, t, out)
		for _, f := range v.Fields {
			fv, err := s.native(f.Value, t)
			if err != nil {
				return reflect.Value{}, err
			}
			m[f.Name] = fv.Interface()
		}
	case *ir.Object:
		if rt, ok := s.d.registry.Lookup(v.Type); ok && reflect.PointerTo(rt).Implements(t) && s.fits(v, rt) {
			ptr, _, err := s.buildObject(v, rt)
			if err != nil {
				return reflect.Value{}, err
			}
			out = ptr
			break
		}
		val, err := s.value(v, nil)
		if err != nil {
			return reflect.Value{}, err
		}
		out = reflect.ValueOf(val)
	case *ir.KeyedMap, *ir.Set:
		val, err := s.value(v, nil)
		if err != nil {
			return reflect.Value{}, err
		}
		out = reflect.ValueOf(val)
	default:
		return reflect.Value{}, &NotConstructibleError{Type: t.String(), Node: nodeKind(n)}
	}

	if !out.Type().AssignableTo(t) {
		return reflect.Value{}, &NotConstructibleError{Type: t.String(), Node: nodeKind(n)}
	}
	rv := reflect.New(t).Elem()
	rv.Set(out)
	return rv, nil
}

func (s *state) nativeScalar(n ir.Node, t reflect.Type) (reflect.Value, error) {
	if str, ok := n.(ir.String); ok && reflect.PointerTo(t).Implements(textUnmarshalerType) {
		p := reflect.New(t)
		if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(str)); err != nil {
			return reflect.Value{}, &NotConstructibleError{Type: t.String(), Node: "string"}
		}
		return p.Elem(), nil
	}

	out := reflect.New(t).Elem()
	switch v := n.(type) {
	case ir.Bool:
		if t.Kind() == reflect.Bool {
			out.SetBool(bool(v))
			return out, nil
		}
	case ir.Int:
		switch {
		case isIntKind(t.Kind()) && !out.OverflowInt(int64(v)):
			out.SetInt(int64(v))
			return out, nil
		case isUintKind(t.Kind()) && v >= 0 && !out.OverflowUint(uint64(v)):
			out.SetUint(uint64(v))
			return out, nil
		case isFloatKind(t.Kind()):
			out.SetFloat(float64(v))
			return out, nil
		}
	case ir.Float:
		if isFloatKind(t.Kind()) {
			out.SetFloat(float64(v))
			return out, nil
		}
	case ir.String:
		if t.Kind() == reflect.String {
			out.SetString(string(v))
			return out, nil
		}
	}
	return reflect.Value{}, &NotConstructibleError{Type: t.String(), Node: nodeKind(n)}
}

// fits reports whether n can be built as a value of type t. Checks on
// tracked containers are memoized per (id, type) and assumed to succeed
// while in progress, so cyclic graphs terminate.
func (s *state) fits(n ir.Node, t reflect.Type) bool {
	if ref, ok := n.(ir.Ref); ok {
		target, ok := s.nodes[ref.ID]
		if !ok {
			// Reported as a malformed ref when decoded.
			return true
		}
		n = target
	}
	c, ok := n.(ir.Container)
	if !ok || c.NodeID() == 0 {
		return s.fitsShape(n, t)
	}

	key := nativeKey{c.NodeID(), t}
	if r, ok := s.fitMemo[key]; ok {
		return r
	}
	s.fitMemo[key] = true
	r := s.fitsShape(n, t)
	s.fitMemo[key] = r
	return r
}

func (s *state) fitsShape(n ir.Node, t reflect.Type) bool {
	if t.Kind() == reflect.Interface {
		if t.NumMethod() == 0 {
			return true
		}
		o, ok := n.(*ir.Object)
		if !ok {
			return false
		}
		rt, ok := s.d.registry.Lookup(o.Type)
		return ok && reflect.PointerTo(rt).Implements(t) && s.fits(o, rt)
	}

	if _, isNull := n.(ir.Null); isNull || n == nil {
		return true
	}
	if t.Kind() == reflect.Pointer {
		return s.fits(n, t.Elem())
	}
	if _, ok := n.(ir.String); ok && reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return true
	}

	switch v := n.(type) {
	case ir.Bool, ir.Int, ir.Float, ir.String:
		_, err := s.nativeScalar(v, t)
		return err == nil
	case *ir.List:
		switch t.Kind() {
		case reflect.Slice:
		case reflect.Array:
			if t.Len() != len(v.Items) {
				return false
			}
		default:
			return false
		}
		for _, item := range v.Items {
			if !s.fits(item, t.Elem()) {
				return false
			}
		}
		return true
	case *ir.Dict:
		if t.Kind() != reflect.Map || t.Key().Kind() != reflect.String {
			return false
		}
		for _, f := range v.Fields {
			if !s.fits(f.Value, t.Elem()) {
				return false
			}
		}
		return true
	case *ir.KeyedMap:
		if t.Kind() != reflect.Map {
			return false
		}
		for _, p := range v.Pairs {
			if !s.fits(p.Key, t.Key()) || !s.fits(p.Value, t.Elem()) {
				return false
			}
		}
		return true
	case *ir.Set:
		if t.Kind() != reflect.Map || !(isSetType(t) || t.Elem().Kind() == reflect.Bool) {
			return false
		}
		for _, item := range v.Items {
			if !s.fits(item, t.Key()) {
				return false
			}
		}
		return true
	case *ir.Object:
		if t.Kind() != reflect.Struct {
			return false
		}
		if _, ok := s.d.registry.Factory(t); !ok {
			return false
		}
		for _, a := range v.Attrs {
			f, ok := fieldByName(t, a.Name)
			if !ok || !s.fits(a.Value, f.Type) {
				return false
			}
		}
		return true
	}
	return false
}

func isIntKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUintKind(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func isFloatKind(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}
