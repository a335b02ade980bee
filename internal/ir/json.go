package ir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Wire tags used by the JSON form of a Node Tree.
const (
	TagID     = "$id"
	TagRef    = "$ref"
	TagList   = "$list"
	TagTuple  = "$tuple"
	TagDict   = "$dict"
	TagMap    = "$map"
	TagSet    = "$set"
	TagFrozen = "$frozen"
	TagType   = "$type"
	TagAttrs  = "$attrs"
)

// MarshalNode renders a Node Tree in its JSON wire form.
//
// Dict and Object fields are written in their stored order. Floats always
// carry a decimal point or exponent so they read back as Float, not Int.
func MarshalNode(n Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeNode(&buf, n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalNode parses the JSON wire form of a Node Tree.
// Object key order inside "$dict" and "$attrs" is preserved.
func UnmarshalNode(data []byte) (Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	n, err := readNode(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after node")
	}
	return n, nil
}

func writeNode(buf *bytes.Buffer, n Node) error {
	switch v := n.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(v)))
	case Int:
		buf.WriteString(strconv.FormatInt(int64(v), 10))
	case Float:
		s, err := formatFloat(float64(v))
		if err != nil {
			return err
		}
		buf.WriteString(s)
	case String:
		if err := writeString(buf, string(v)); err != nil {
			return err
		}
	case Ref:
		fmt.Fprintf(buf, `{"%s":%d}`, TagRef, v.ID)
	case *List:
		tag := TagList
		if v.Tuple {
			tag = TagTuple
		}
		fmt.Fprintf(buf, `{"%s":%d,"%s":`, TagID, v.ID, tag)
		if err := writeNodes(buf, v.Items); err != nil {
			return err
		}
		buf.WriteByte('}')
	case *Set:
		fmt.Fprintf(buf, `{"%s":%d,"%s":`, TagID, v.ID, TagSet)
		if err := writeNodes(buf, v.Items); err != nil {
			return err
		}
		fmt.Fprintf(buf, `,"%s":%t}`, TagFrozen, v.Frozen)
	case *Dict:
		fmt.Fprintf(buf, `{"%s":%d,"%s":`, TagID, v.ID, TagDict)
		if err := writeFields(buf, v.Fields); err != nil {
			return err
		}
		buf.WriteByte('}')
	case *Object:
		fmt.Fprintf(buf, `{"%s":%d,"%s":`, TagID, v.ID, TagType)
		if err := writeString(buf, v.Type); err != nil {
			return err
		}
		fmt.Fprintf(buf, `,"%s":`, TagAttrs)
		if err := writeFields(buf, v.Attrs); err != nil {
			return err
		}
		buf.WriteByte('}')
	case *KeyedMap:
		fmt.Fprintf(buf, `{"%s":%d,"%s":[`, TagID, v.ID, TagMap)
		for i, p := range v.Pairs {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteByte('[')
			if err := writeNode(buf, p.Key); err != nil {
				return fmt.Errorf("map pair %d key: %w", i, err)
			}
			buf.WriteByte(',')
			if err := writeNode(buf, p.Value); err != nil {
				return fmt.Errorf("map pair %d value: %w", i, err)
			}
			buf.WriteByte(']')
		}
		buf.WriteString("]}")
	default:
		return fmt.Errorf("unsupported node type: %T", n)
	}
	return nil
}

func writeNodes(buf *bytes.Buffer, items []Node) error {
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeNode(buf, item); err != nil {
			return fmt.Errorf("[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

func writeFields(buf *bytes.Buffer, fields []Field) error {
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(buf, f.Name); err != nil {
			return fmt.Errorf("field %d name: %w", i, err)
		}
		buf.WriteByte(':')
		if err := writeNode(buf, f.Value); err != nil {
			return fmt.Errorf("%q: %w", f.Name, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// writeString writes s as a JSON string without HTML escaping. Invalid
// UTF-8 is an error; encoding/json would replace it with U+FFFD.
func writeString(buf *bytes.Buffer, s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("string %q is not valid UTF-8", s)
	}
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s) // valid strings always encode
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}

// formatFloat renders a finite float so that it cannot be mistaken for an integer.
func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("non-finite float %v in node tree", f)
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s, nil
}

func readNode(dec *json.Decoder) (Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return readFromToken(dec, tok)
}

func readFromToken(dec *json.Decoder, tok json.Token) (Node, error) {
	switch t := tok.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return parseNumber(t)
	case json.Delim:
		switch t {
		case '[':
			// Untagged arrays are accepted as untracked lists.
			items, err := readArrayRest(dec)
			if err != nil {
				return nil, err
			}
			return &List{Items: items}, nil
		case '{':
			return readTagged(dec)
		}
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func parseNumber(num json.Number) (Node, error) {
	s := num.String()
	if strings.ContainsAny(s, ".eE") {
		f, err := num.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid float %q: %w", s, err)
		}
		return Float(f), nil
	}
	i, err := num.Int64()
	if err != nil {
		return nil, fmt.Errorf("invalid integer %q: %w", s, err)
	}
	return Int(i), nil
}

// readArrayRest reads nodes until the closing ']' (the '[' is already consumed).
func readArrayRest(dec *json.Decoder) ([]Node, error) {
	items := []Node{}
	for dec.More() {
		n, err := readNode(dec)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", len(items), err)
		}
		items = append(items, n)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return items, nil
}

func readArray(dec *json.Decoder) ([]Node, error) {
	if err := expectDelim(dec, '['); err != nil {
		return nil, err
	}
	return readArrayRest(dec)
}

// readFields reads a JSON object as ordered fields.
func readFields(dec *json.Decoder) ([]Field, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	fields := []Field{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected field name, got %v", tok)
		}
		n, err := readNode(dec)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", name, err)
		}
		fields = append(fields, Field{Name: name, Value: n})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return fields, nil
}

func readPairs(dec *json.Decoder) ([]Pair, error) {
	if err := expectDelim(dec, '['); err != nil {
		return nil, err
	}
	pairs := []Pair{}
	for dec.More() {
		items, err := readArray(dec)
		if err != nil {
			return nil, fmt.Errorf("pair %d: %w", len(pairs), err)
		}
		if len(items) != 2 {
			return nil, fmt.Errorf("pair %d: expected 2 elements, got %d", len(pairs), len(items))
		}
		pairs = append(pairs, Pair{Key: items[0], Value: items[1]})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return pairs, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

// taggedObject collects the members of a tagged JSON object in any order.
type taggedObject struct {
	seen   map[string]bool
	id     int
	ref    int
	items  []Node
	fields []Field
	pairs  []Pair
	frozen bool
	typ    string
}

func readTagged(dec *json.Decoder) (Node, error) {
	obj := taggedObject{seen: make(map[string]bool)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected tag, got %v", tok)
		}
		if obj.seen[key] {
			return nil, fmt.Errorf("duplicate tag %q", key)
		}
		obj.seen[key] = true

		switch key {
		case TagID, TagRef:
			n, err := readNode(dec)
			if err != nil {
				return nil, err
			}
			i, ok := n.(Int)
			if !ok || i < 0 {
				return nil, fmt.Errorf("%s must be a non-negative integer", key)
			}
			if key == TagID {
				obj.id = int(i)
			} else {
				obj.ref = int(i)
			}
		case TagList, TagTuple, TagSet:
			if obj.items, err = readArray(dec); err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
		case TagDict, TagAttrs:
			if obj.fields, err = readFields(dec); err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
		case TagMap:
			if obj.pairs, err = readPairs(dec); err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
		case TagFrozen:
			n, err := readNode(dec)
			if err != nil {
				return nil, err
			}
			b, ok := n.(Bool)
			if !ok {
				return nil, fmt.Errorf("%s must be a boolean", key)
			}
			obj.frozen = bool(b)
		case TagType:
			n, err := readNode(dec)
			if err != nil {
				return nil, err
			}
			s, ok := n.(String)
			if !ok {
				return nil, fmt.Errorf("%s must be a string", key)
			}
			obj.typ = string(s)
		default:
			return nil, fmt.Errorf("unknown tag %q", key)
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj.build()
}

func (o *taggedObject) build() (Node, error) {
	kinds := 0
	for _, k := range []string{TagRef, TagList, TagTuple, TagDict, TagMap, TagSet, TagAttrs} {
		if o.seen[k] {
			kinds++
		}
	}
	if kinds != 1 {
		return nil, fmt.Errorf("tagged node must have exactly one payload tag")
	}

	switch {
	case o.seen[TagRef]:
		if len(o.seen) != 1 {
			return nil, fmt.Errorf("%s node must not carry other tags", TagRef)
		}
		return Ref{ID: o.ref}, nil
	case o.seen[TagList]:
		return &List{ID: o.id, Items: o.items}, nil
	case o.seen[TagTuple]:
		return &List{ID: o.id, Tuple: true, Items: o.items}, nil
	case o.seen[TagDict]:
		return &Dict{ID: o.id, Fields: o.fields}, nil
	case o.seen[TagMap]:
		return &KeyedMap{ID: o.id, Pairs: o.pairs}, nil
	case o.seen[TagSet]:
		return &Set{ID: o.id, Frozen: o.frozen, Items: o.items}, nil
	default: // TagAttrs
		if !o.seen[TagType] {
			return nil, fmt.Errorf("%s node requires %s", TagAttrs, TagType)
		}
		return &Object{ID: o.id, Type: o.typ, Attrs: o.fields}, nil
	}
}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// MarshalJSON implements json.Marshaler for Float.
func (f Float) MarshalJSON() ([]byte, error) {
	s, err := formatFloat(float64(f))
	return []byte(s), err
}

// MarshalJSON implements json.Marshaler for Ref.
func (r Ref) MarshalJSON() ([]byte, error) { return MarshalNode(r) }

// MarshalJSON implements json.Marshaler for List.
func (l *List) MarshalJSON() ([]byte, error) { return MarshalNode(l) }

// MarshalJSON implements json.Marshaler for Dict.
func (d *Dict) MarshalJSON() ([]byte, error) { return MarshalNode(d) }

// MarshalJSON implements json.Marshaler for KeyedMap.
func (m *KeyedMap) MarshalJSON() ([]byte, error) { return MarshalNode(m) }

// MarshalJSON implements json.Marshaler for Set.
func (s *Set) MarshalJSON() ([]byte, error) { return MarshalNode(s) }

// MarshalJSON implements json.Marshaler for Object.
func (o *Object) MarshalJSON() ([]byte, error) { return MarshalNode(o) }
