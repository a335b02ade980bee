package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"unicode/utf16"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces the canonical JSON form of a Node Tree for hashing.
// CRITICAL: This is the ONLY serialization that should be used for
// content-addressed digests.
//
// Differences from MarshalNode:
//  1. Dict keys and Object attributes sorted by UTF-16 code units (RFC 8785)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//  4. No insignificant whitespace
//
// Container IDs are kept, so two trees that alias differently hash differently.
// Use the snapshot canonicalizer when alias-insensitive equality is needed.
func MarshalCanonical(n Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalCanonical(&buf, n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalCanonical(buf *bytes.Buffer, n Node) error {
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
		buf.Write(marshalCanonicalString(string(v)))
	case Ref:
		fmt.Fprintf(buf, `{"%s":%d}`, TagRef, v.ID)
	case *List:
		tag := TagList
		if v.Tuple {
			tag = TagTuple
		}
		fmt.Fprintf(buf, `{"%s":%d,"%s":`, TagID, v.ID, tag)
		if err := marshalCanonicalArray(buf, v.Items); err != nil {
			return err
		}
		buf.WriteByte('}')
	case *Set:
		fmt.Fprintf(buf, `{"%s":%t,"%s":%d,"%s":`, TagFrozen, v.Frozen, TagID, v.ID, TagSet)
		if err := marshalCanonicalArray(buf, v.Items); err != nil {
			return err
		}
		buf.WriteByte('}')
	case *Dict:
		fmt.Fprintf(buf, `{"%s":`, TagDict)
		if err := marshalCanonicalFields(buf, v.Fields); err != nil {
			return err
		}
		fmt.Fprintf(buf, `,"%s":%d}`, TagID, v.ID)
	case *Object:
		fmt.Fprintf(buf, `{"%s":`, TagAttrs)
		if err := marshalCanonicalFields(buf, v.Attrs); err != nil {
			return err
		}
		fmt.Fprintf(buf, `,"%s":%d,"%s":`, TagID, v.ID, TagType)
		buf.Write(marshalCanonicalString(v.Type))
		buf.WriteByte('}')
	case *KeyedMap:
		fmt.Fprintf(buf, `{"%s":%d,"%s":[`, TagID, v.ID, TagMap)
		for i, p := range v.Pairs {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := marshalCanonicalArray(buf, []Node{p.Key, p.Value}); err != nil {
				return fmt.Errorf("map pair %d: %w", i, err)
			}
		}
		buf.WriteString("]}")
	default:
		return fmt.Errorf("unsupported node type for canonical JSON: %T", n)
	}
	return nil
}

func marshalCanonicalArray(buf *bytes.Buffer, items []Node) error {
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := marshalCanonical(buf, item); err != nil {
			return fmt.Errorf("array[%d]: %w", i, err)
		}
	}
	buf.WriteByte(']')
	return nil
}

func marshalCanonicalFields(buf *bytes.Buffer, fields []Field) error {
	sorted := slices.Clone(fields)
	slices.SortStableFunc(sorted, func(a, b Field) int {
		return compareKeysRFC8785(a.Name, b.Name)
	})

	buf.WriteByte('{')
	for i, f := range sorted {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(marshalCanonicalString(f.Name))
		buf.WriteByte(':')
		if err := marshalCanonical(buf, f.Value); err != nil {
			return fmt.Errorf("value for key %q: %w", f.Name, err)
		}
	}
	buf.WriteByte('}')
	return nil
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// CRITICAL: Go's sort.Strings uses UTF-8 which produces DIFFERENT order.
func SortedKeys(keys []string) []string {
	out := slices.Clone(keys)
	slices.SortFunc(out, compareKeysRFC8785)
	return out
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering
// as required by RFC 8785 (Canonical JSON).
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	for i := 0; i < len(a16) && i < len(b16); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	// If all compared units are equal, shorter string comes first
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// marshalCanonicalString produces a canonical JSON string with NFC normalization.
// Only control characters, backslash and quote are escaped.
func marshalCanonicalString(s string) []byte {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false) // CRITICAL: <, >, & must NOT be escaped
	_ = enc.Encode(normalized)

	// json.Encoder adds trailing newline, remove it
	result := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	return unescapeLineSeparators(result)
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes emitted by
// encoding/json back into literal characters, as RFC 8785 requires.
// A sequence preceded by an odd number of backslashes is literal text and
// stays untouched.
func unescapeLineSeparators(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if data[i] == '\\' && i+5 < len(data) && string(data[i+1:i+5]) == "u202" &&
			(data[i+5] == '8' || data[i+5] == '9') {
			backslashes := 0
			for j := len(out) - 1; j >= 0 && out[j] == '\\'; j-- {
				backslashes++
			}
			if backslashes%2 == 0 {
				if data[i+5] == '8' {
					out = append(out, "\u2028"...)
				} else {
					out = append(out, "\u2029"...)
				}
				i += 5
				continue
			}
		}
		out = append(out, data[i])
	}
	return out
}
