package casegen

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// apiStubs declares the replay API the generated files call, plus the
// recorded packages they import. Case fields must accept plain Go literals
// such as 6.0 as well as builder values.
var apiStubs = map[string]string{
	"testing": `package testing
type T struct{}`,
	"github.com/roach88/tead": `package tead
type Value interface{ value() }
type Case struct {
	Args []any
	Want any
}
type Pair struct{ Key, Value Value }
type Field struct {
	Name  string
	Value Value
}
func Replay(t any, fn any, cases []Case)        {}
func Args(items ...any) []any                   { return items }
func Seq(items ...any) Value                    { return nil }
func Tuple(items ...any) Value                  { return nil }
func Set(items ...any) Value                    { return nil }
func FrozenSet(items ...any) Value              { return nil }
func KV(key, val any) Pair                      { return Pair{} }
func Map(entries ...Pair) Value                 { return nil }
func Attr(name string, val any) Field           { return Field{} }
func Obj(typeName string, attrs ...Field) Value { return nil }`,
	"github.com/acme/geo": `package geo
type Rect struct{ W, H float64 }
func Area(r Rect) float64                { return 0 }
func Tally(words []string) map[string]int { return nil }`,
	"github.com/acme/text": `package text
func Wrap(s string, width int) []string { return nil }`,
}

type stubImporter struct {
	fset *token.FileSet
	pkgs map[string]*types.Package
}

func (s *stubImporter) Import(path string) (*types.Package, error) {
	if pkg, ok := s.pkgs[path]; ok {
		return pkg, nil
	}
	src, ok := apiStubs[path]
	if !ok {
		return nil, fmt.Errorf("no stub for %q", path)
	}
	f, err := parser.ParseFile(s.fset, path+".go", src, 0)
	if err != nil {
		return nil, err
	}
	conf := types.Config{Importer: s, IgnoreFuncBodies: true}
	pkg, err := conf.Check(path, s.fset, []*ast.File{f}, nil)
	if err != nil {
		return nil, err
	}
	s.pkgs[path] = pkg
	return pkg, nil
}

func typeCheck(t *testing.T, name string, src []byte) {
	t.Helper()
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, name, src, parser.ParseComments)
	require.NoError(t, err)

	conf := types.Config{Importer: &stubImporter{fset: fset, pkgs: map[string]*types.Package{}}}
	_, err = conf.Check(f.Name.Name, fset, []*ast.File{f}, nil)
	require.NoError(t, err)
}

func TestGoldenFilesTypeCheck(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "golden", "*.golden"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			src, err := os.ReadFile(path)
			require.NoError(t, err)
			typeCheck(t, path, src)
		})
	}
}

func TestRenderedLiteralsTypeCheck(t *testing.T) {
	src := []byte(`package geo_test

import (
	"testing"

	geo "github.com/acme/geo"
	"github.com/roach88/tead"
)

func TestShapes(t *testing.T) {
	tead.Replay(t, geo.Area, []tead.Case{
		{Args: tead.Args(any(nil)), Want: nil},
		{Args: tead.Args(int64(5000000000), uint64(1), true, "s"), Want: -1},
		{Args: tead.Args(tead.Tuple(1, tead.FrozenSet("a")), tead.Set()), Want: tead.Map(tead.KV(tead.Tuple(1, 2), nil))},
	})
}
`)
	typeCheck(t, "shapes_test.go", src)
}
