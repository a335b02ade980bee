package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeSealed(t *testing.T) {
	// Compile-time check that every node kind implements Node
	var _ Node = Null{}
	var _ Node = Bool(true)
	var _ Node = Int(1)
	var _ Node = Float(1.5)
	var _ Node = String("s")
	var _ Node = &List{}
	var _ Node = &Dict{}
	var _ Node = &KeyedMap{}
	var _ Node = &Set{}
	var _ Node = &Object{}
	var _ Node = Ref{}
}

func TestMarshalNode_Scalars(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want string
	}{
		{"null", Null{}, `null`},
		{"nil is null", nil, `null`},
		{"true", Bool(true), `true`},
		{"int", Int(-42), `-42`},
		{"float keeps point", Float(3), `3.0`},
		{"float fraction", Float(1.25), `1.25`},
		{"float exponent", Float(1e300), `1e+300`},
		{"string no html escape", String("<a&b>"), `"<a&b>"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalNode(tt.node)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalNode_Containers(t *testing.T) {
	list := &List{ID: 2, Items: []Node{Int(1), Int(2), Int(2)}}
	root := &Dict{ID: 1, Fields: []Field{
		F("a", list),
		F("b", &Dict{ID: 3, Fields: []Field{F("a", Ref{ID: 2})}}),
	}}

	got, err := MarshalNode(root)
	require.NoError(t, err)
	assert.Equal(t,
		`{"$id":1,"$dict":{"a":{"$id":2,"$list":[1,2,2]},"b":{"$id":3,"$dict":{"a":{"$ref":2}}}}}`,
		string(got))
}

func TestMarshalNode_RejectsNonFiniteFloat(t *testing.T) {
	_, err := MarshalNode(Float(posInf()))
	assert.Error(t, err)
}

func TestMarshalNode_RejectsInvalidUTF8(t *testing.T) {
	for _, n := range []Node{
		String("\xff\xfeabc"),
		&Dict{ID: 1, Fields: []Field{F("\xff", Int(1))}},
		&Object{ID: 1, Type: "pkg.\xfe", Attrs: []Field{}},
		&List{ID: 1, Items: []Node{String("ok"), String("\xc3")}},
	} {
		_, err := MarshalNode(n)
		assert.Error(t, err, "%#v", n)
	}
}

func TestUnmarshalNode_RoundTrip(t *testing.T) {
	root := &List{ID: 1, Tuple: true, Items: []Node{
		&Object{ID: 2, Type: "example.com/geo.Point", Attrs: []Field{
			F("Y", Float(2)),
			F("X", Int(1)),
		}},
		&KeyedMap{ID: 3, Pairs: []Pair{
			{Key: &List{ID: 4, Tuple: true, Items: []Node{Int(0), Int(1)}}, Value: String("edge")},
		}},
		&Set{ID: 5, Frozen: true, Items: []Node{String("x")}},
		Ref{ID: 2},
		Null{},
		Bool(false),
	}}

	data, err := MarshalNode(root)
	require.NoError(t, err)

	decoded, err := UnmarshalNode(data)
	require.NoError(t, err)
	assert.Equal(t, root, decoded)
}

func TestUnmarshalNode_PreservesFieldOrder(t *testing.T) {
	n, err := UnmarshalNode([]byte(`{"$id":1,"$dict":{"zeta":1,"alpha":2,"mid":3}}`))
	require.NoError(t, err)

	d, ok := n.(*Dict)
	require.True(t, ok)
	names := []string{}
	for _, f := range d.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, names)
}

func TestUnmarshalNode_TagOrderIndependent(t *testing.T) {
	n, err := UnmarshalNode([]byte(`{"$attrs":{"A":1},"$type":"p.T","$id":7}`))
	require.NoError(t, err)
	assert.Equal(t, &Object{ID: 7, Type: "p.T", Attrs: []Field{F("A", Int(1))}}, n)
}

func TestUnmarshalNode_IntVersusFloat(t *testing.T) {
	n, err := UnmarshalNode([]byte(`[1, 1.0, 1e2]`))
	require.NoError(t, err)
	assert.Equal(t, &List{Items: []Node{Int(1), Float(1), Float(100)}}, n)
}

func TestUnmarshalNode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unknown tag", `{"$id":1,"$bogus":[]}`},
		{"two payloads", `{"$id":1,"$list":[],"$set":[]}`},
		{"empty object", `{}`},
		{"ref with id", `{"$ref":1,"$id":2}`},
		{"attrs without type", `{"$id":1,"$attrs":{}}`},
		{"bad pair arity", `{"$id":1,"$map":[[1]]}`},
		{"negative id", `{"$id":-1,"$list":[]}`},
		{"trailing data", `1 2`},
		{"duplicate tag", `{"$id":1,"$id":2,"$list":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalNode([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}

func posInf() float64 {
	var zero float64
	return 1 / zero
}
