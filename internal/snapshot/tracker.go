package snapshot

import "reflect"

// identity is the runtime identity of a container value.
// Slices also carry their length: two slice headers over the same backing
// array are the same value only if they also see the same elements.
type identity struct {
	kind reflect.Kind
	ptr  uintptr
	typ  reflect.Type
	len  int
}

// Tracker maps runtime identities to node indices during one encode session.
//
// Indices are allocated sequentially from 1 in first-observation order.
// Identity-bearing values (pointers, maps, non-empty slices) receive the same
// index on every later observation. Containers without identity (struct
// values, arrays) receive a fresh index every time. Scalars are exempt: they
// are never stored and report index 0.
//
// Thread-safety: a Tracker belongs to a single encode session and must not
// be shared between goroutines.
type Tracker struct {
	table map[identity]int
	next  int
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{table: make(map[identity]int)}
}

// Observe records v and returns whether this is its first observation,
// together with its node index.
func (t *Tracker) Observe(v any) (isNew bool, index int) {
	rv := valueOf(v)
	if !rv.IsValid() || isScalarKind(rv.Kind()) {
		return true, 0
	}
	id, ok := identityOf(rv)
	return t.observe(id, ok)
}

// Len returns the highest index allocated so far.
func (t *Tracker) Len() int {
	return t.next
}

func (t *Tracker) observe(id identity, tracked bool) (bool, int) {
	if tracked {
		if index, seen := t.table[id]; seen {
			return false, index
		}
	}
	t.next++
	if tracked {
		t.table[id] = t.next
	}
	return true, t.next
}

// identityOf returns the identity of rv, if it has one.
func identityOf(rv reflect.Value) (identity, bool) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map:
		if rv.IsNil() {
			return identity{}, false
		}
		return identity{kind: rv.Kind(), ptr: rv.Pointer(), typ: rv.Type()}, true
	case reflect.Slice:
		if rv.IsNil() || rv.Len() == 0 {
			return identity{}, false
		}
		return identity{kind: reflect.Slice, ptr: rv.Pointer(), typ: rv.Type(), len: rv.Len()}, true
	}
	return identity{}, false
}

func isScalarKind(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	}
	return false
}

func valueOf(v any) reflect.Value {
	if rv, ok := v.(reflect.Value); ok {
		return rv
	}
	return reflect.ValueOf(v)
}

// indirect follows interfaces and pointers down to a non-pointer value.
// It returns the zero Value for nil.
func indirect(rv reflect.Value) reflect.Value {
	seen := 0
	for rv.IsValid() && (rv.Kind() == reflect.Interface || rv.Kind() == reflect.Pointer) {
		if rv.IsNil() || seen > maxPointerChain {
			return reflect.Value{}
		}
		rv = rv.Elem()
		seen++
	}
	return rv
}

// maxPointerChain bounds pointer-to-pointer chains so that a pointer that
// eventually points at itself cannot loop forever.
const maxPointerChain = 64

// resolved is a value after following interfaces and pointers.
type resolved struct {
	v   reflect.Value // final non-pointer, non-interface value; invalid for nil
	ptr reflect.Value // last pointer followed, if any
	val Value         // set when the chain ended at a decoded Value
}

// resolve follows interfaces and pointers, stopping at decoded Values.
func resolve(rv reflect.Value) (resolved, error) {
	var r resolved
	for hops := 0; rv.IsValid(); hops++ {
		if hops > maxPointerChain {
			return r, &UnsupportedError{Type: rv.Type().String(), Reason: "pointer chain does not reach a value"}
		}
		if rv.CanInterface() {
			if v, ok := rv.Interface().(Value); ok && rv.Kind() != reflect.Interface {
				if rv.Kind() == reflect.Pointer && rv.IsNil() {
					return resolved{}, nil
				}
				r.val = v
				r.v = rv
				return r, nil
			}
		}
		switch rv.Kind() {
		case reflect.Interface:
			if rv.IsNil() {
				return resolved{}, nil
			}
			rv = rv.Elem()
		case reflect.Pointer:
			if rv.IsNil() {
				return resolved{}, nil
			}
			r.ptr = rv
			rv = rv.Elem()
		default:
			r.v = rv
			return r, nil
		}
	}
	return resolved{}, nil
}

// containerIdentity returns the identity used for the container behind r.
// Structs and arrays borrow the identity of the pointer that reached them.
func (r resolved) containerIdentity() (identity, bool) {
	if r.val != nil {
		return identityOf(r.v)
	}
	switch r.v.Kind() {
	case reflect.Map, reflect.Slice:
		return identityOf(r.v)
	case reflect.Struct, reflect.Array:
		if r.ptr.IsValid() {
			return identityOf(r.ptr)
		}
	}
	return identity{}, false
}
