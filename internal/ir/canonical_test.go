package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsFields(t *testing.T) {
	n := &Dict{ID: 1, Fields: []Field{F("b", Int(2)), F("a", Int(1))}}

	got, err := MarshalCanonical(n)
	require.NoError(t, err)
	assert.Equal(t, `{"$dict":{"a":1,"b":2},"$id":1}`, string(got))
}

func TestMarshalCanonical_FieldOrderIndependent(t *testing.T) {
	a := &Object{ID: 1, Type: "p.T", Attrs: []Field{F("X", Int(1)), F("Y", String("y"))}}
	b := &Object{ID: 1, Type: "p.T", Attrs: []Field{F("Y", String("y")), F("X", Int(1))}}

	ca, err := MarshalCanonical(a)
	require.NoError(t, err)
	cb, err := MarshalCanonical(b)
	require.NoError(t, err)
	assert.Equal(t, ca, cb)
}

func TestMarshalCanonical_NFCNormalization(t *testing.T) {
	// U+00E9 vs "e" followed by U+0301 COMBINING ACUTE ACCENT
	composed, err := MarshalCanonical(String("\u00e9"))
	require.NoError(t, err)
	decomposed, err := MarshalCanonical(String("e\u0301"))
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
}

func TestMarshalCanonical_NoHTMLEscape(t *testing.T) {
	got, err := MarshalCanonical(String("<tag>&"))
	require.NoError(t, err)
	assert.Equal(t, `"<tag>&"`, string(got))
}

func TestMarshalCanonical_LineSeparators(t *testing.T) {
	got, err := MarshalCanonical(String("a\u2028b"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(got))

	// A literal backslash followed by the text u2028 stays escaped
	got, err = MarshalCanonical(String(`a\u2028b`))
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(got))
}

func TestSortedKeys_UTF16Order(t *testing.T) {
	keys := SortedKeys([]string{"a", "A", "aa", "aA", "Aa", "AA"})
	assert.Equal(t, []string{"A", "AA", "Aa", "a", "aA", "aa"}, keys)
}

func TestSortedKeys_SurrogatePairs(t *testing.T) {
	// U+1F600 encodes as surrogates 0xD83D 0xDE00, which sort before U+FF5E
	keys := SortedKeys([]string{"\uFF5E", "\U0001F600"})
	assert.Equal(t, []string{"\U0001F600", "\uFF5E"}, keys)
}
