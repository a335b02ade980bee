package snapshot

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tead/internal/ir"
)

type testPoint struct {
	X int
	Y int
}

type testNode struct {
	Name string
	Next *testNode
}

type testPair struct {
	A []int
	B []int
}

type testHidden struct {
	Visible string
	Secret  string `tead:"-"`
	hidden  int
	OnEvent func()
}

// sharedGraph returns {"a": [1,2,2], "b": {"a": <same list>}}.
func sharedGraph() map[string]any {
	inner := []int{1, 2, 2}
	return map[string]any{
		"a": inner,
		"b": map[string]any{"a": inner},
	}
}

func selfCycle() *testNode {
	n := &testNode{Name: "a"}
	n.Next = n
	return n
}

func mustEncode(t *testing.T, v any, opts ...EncoderOption) ir.Node {
	t.Helper()
	n, err := Encode(v, opts...)
	require.NoError(t, err)
	return n
}

func mustDecodeOne(t *testing.T, d *Decoder, n ir.Node) Value {
	t.Helper()
	vals, err := d.Decode(n)
	require.NoError(t, err)
	require.Len(t, vals, 1)
	return vals[0]
}
