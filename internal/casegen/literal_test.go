package casegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tead/internal/snapshot"
)

func TestLiteral(t *testing.T) {
	tests := []struct {
		name string
		in   snapshot.Value
		want string
	}{
		{"nil", snapshot.S(nil), "nil"},
		{"bool", snapshot.S(true), "true"},
		{"small int", snapshot.S(int64(-7)), "-7"},
		{"large int", snapshot.S(int64(1) << 40), "int64(1099511627776)"},
		{"large uint", snapshot.S(uint64(1) << 63), "uint64(9223372036854775808)"},
		{"whole float", snapshot.S(3.0), "3.0"},
		{"float", snapshot.S(0.25), "0.25"},
		{"huge float", snapshot.S(1e21), "1e+21"},
		{"string", snapshot.S("a\"b\n"), `"a\"b\n"`},
		{"list", snapshot.Seq(snapshot.S(int64(1)), snapshot.S("x")), `tead.Seq(1, "x")`},
		{"tuple", snapshot.Tuple(), "tead.Tuple()"},
		{"set", &snapshot.Set{Items: []snapshot.Value{snapshot.S(int64(1))}}, "tead.Set(1)"},
		{"frozen set", &snapshot.Set{Frozen: true}, "tead.FrozenSet()"},
		{
			"mapping with tuple key",
			&snapshot.Mapping{Entries: []snapshot.KV{{Key: snapshot.Tuple(snapshot.S(int64(1)), snapshot.S(int64(2))), Value: snapshot.S("p")}}},
			`tead.Map(tead.KV(tead.Tuple(1, 2), "p"))`,
		},
		{
			"shell",
			&snapshot.Shell{Type: "geo.Unit", Attrs: []snapshot.Attr{{Name: "Name", Value: snapshot.S("m")}}},
			`tead.Obj("geo.Unit", tead.Attr("Name", "m"))`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Literal("tead", tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLiteral_Cycle(t *testing.T) {
	_, err := Literal("tead", snapshot.Seq(snapshot.Cycle{Up: 1}))
	assert.ErrorIs(t, err, ErrCyclic)
}

func TestLiteral_UnknownScalar(t *testing.T) {
	_, err := Literal("tead", snapshot.S(int32(1)))
	assert.Error(t, err)
}

func TestArgsLiteral(t *testing.T) {
	got, err := ArgsLiteral("tead", snapshot.Tuple(snapshot.S("hello"), snapshot.Seq()))
	require.NoError(t, err)
	assert.Equal(t, `tead.Args("hello", tead.Seq())`, got)

	got, err = ArgsLiteral("tead", snapshot.Tuple(snapshot.S(nil)))
	require.NoError(t, err)
	assert.Equal(t, `tead.Args(any(nil))`, got)

	got, err = ArgsLiteral("tead", snapshot.Tuple(snapshot.Seq(snapshot.S(nil)), snapshot.S(nil)))
	require.NoError(t, err)
	assert.Equal(t, `tead.Args(tead.Seq(any(nil)), nil)`, got)
}

func TestSplitTarget(t *testing.T) {
	tests := []struct {
		target, importPath, name string
		ok                       bool
	}{
		{"github.com/acme/geo.Area", "github.com/acme/geo", "Area", true},
		{"github.com/acme/geo.v2/geo.Area", "github.com/acme/geo.v2/geo", "Area", true},
		{"main.Run", "main", "Run", true},
		{"Area", "", "", false},
		{"github.com/acme/geo.", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			importPath, name, ok := SplitTarget(tt.target)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.importPath, importPath)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestPackageName(t *testing.T) {
	tests := map[string]string{
		"github.com/acme/geo":    "geo",
		"github.com/acme/geo/v3": "geo",
		"github.com/acme/go-kit": "go_kit",
		"example.com/2d":         "_2d",
		"gopkg.in/yaml.v3":       "yaml_v3",
	}
	for in, want := range tests {
		assert.Equal(t, want, PackageName(in), in)
	}
}
