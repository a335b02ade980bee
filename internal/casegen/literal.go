package casegen

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/tead/internal/snapshot"
)

// ErrCyclic reports a value that refers back to one of its ancestors and so
// has no literal form.
var ErrCyclic = errors.New("cyclic value has no literal form")

// Literal writes a canonical value as a Go expression built from the tead
// package helpers, qualified by pkg.
func Literal(pkg string, v snapshot.Value) (string, error) {
	var b strings.Builder
	if err := writeLiteral(&b, pkg, v); err != nil {
		return "", err
	}
	return b.String(), nil
}

// ArgsLiteral writes the items of an argument tuple as a tead.Args call.
func ArgsLiteral(pkg string, args *snapshot.Sequence) (string, error) {
	var b strings.Builder
	b.WriteString(pkg + ".Args(")
	if err := writeItems(&b, pkg, args.Items); err != nil {
		return "", err
	}
	b.WriteByte(')')
	return b.String(), nil
}

func writeLiteral(b *strings.Builder, pkg string, v snapshot.Value) error {
	switch v := v.(type) {
	case snapshot.Scalar:
		return writeScalar(b, v.V)
	case snapshot.Cycle:
		return ErrCyclic
	case *snapshot.Sequence:
		if v.Fixed {
			b.WriteString(pkg + ".Tuple(")
		} else {
			b.WriteString(pkg + ".Seq(")
		}
		if err := writeItems(b, pkg, v.Items); err != nil {
			return err
		}
		b.WriteByte(')')
	case *snapshot.Set:
		if v.Frozen {
			b.WriteString(pkg + ".FrozenSet(")
		} else {
			b.WriteString(pkg + ".Set(")
		}
		if err := writeItems(b, pkg, v.Items); err != nil {
			return err
		}
		b.WriteByte(')')
	case *snapshot.Mapping:
		b.WriteString(pkg + ".Map(")
		for i, kv := range v.Entries {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(pkg + ".KV(")
			if err := writeLiteral(b, pkg, kv.Key); err != nil {
				return err
			}
			b.WriteString(", ")
			if err := writeLiteral(b, pkg, kv.Value); err != nil {
				return err
			}
			b.WriteByte(')')
		}
		b.WriteByte(')')
	case *snapshot.Shell:
		b.WriteString(pkg + ".Obj(" + strconv.Quote(v.Type))
		for _, a := range v.Attrs {
			b.WriteString(", " + pkg + ".Attr(" + strconv.Quote(a.Name) + ", ")
			if err := writeLiteral(b, pkg, a.Value); err != nil {
				return err
			}
			b.WriteByte(')')
		}
		b.WriteByte(')')
	default:
		return fmt.Errorf("no literal form for %T", v)
	}
	return nil
}

// writeItems writes variadic call arguments. A lone nil is written as
// any(nil); a bare nil would be taken as the variadic slice itself.
func writeItems(b *strings.Builder, pkg string, items []snapshot.Value) error {
	if len(items) == 1 {
		if s, ok := items[0].(snapshot.Scalar); ok && s.V == nil {
			b.WriteString("any(nil)")
			return nil
		}
	}
	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		if err := writeLiteral(b, pkg, item); err != nil {
			return err
		}
	}
	return nil
}

func writeScalar(b *strings.Builder, v any) error {
	switch v := v.(type) {
	case nil:
		b.WriteString("nil")
	case bool:
		b.WriteString(strconv.FormatBool(v))
	case int64:
		if v < math.MinInt32 || v > math.MaxInt32 {
			b.WriteString("int64(" + strconv.FormatInt(v, 10) + ")")
		} else {
			b.WriteString(strconv.FormatInt(v, 10))
		}
	case uint64:
		b.WriteString("uint64(" + strconv.FormatUint(v, 10) + ")")
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			b.WriteString("nil")
			return nil
		}
		s := strconv.FormatFloat(v, 'g', -1, 64)
		if !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		b.WriteString(s)
	case string:
		b.WriteString(strconv.Quote(v))
	default:
		return fmt.Errorf("no literal form for scalar %T", v)
	}
	return nil
}
