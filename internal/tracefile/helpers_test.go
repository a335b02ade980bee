package tracefile

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/tead/internal/ir"
	"github.com/roach88/tead/internal/testutil"
)

var discardLogger = slog.New(slog.DiscardHandler)

// sampleEntry exercises every container form: a tuple holding a list and a
// ref to it, a dict holding an object, and a keyed map keyed by the list.
func sampleEntry(n int64, target string, ts time.Time) ir.Entry {
	list := &ir.List{ID: 2, Items: []ir.Node{ir.Int(1), ir.Float(2.5), ir.String("x")}}
	return ir.Entry{
		ID:            testutil.FormatID(n),
		Schema:        ir.SchemaName,
		SchemaVersion: ir.SchemaVersion,
		Target:        target,
		Timestamp:     ts,
		Args:          &ir.List{ID: 1, Tuple: true, Items: []ir.Node{list, ir.Ref{ID: 2}}},
		Kwargs: &ir.Dict{ID: 3, Fields: []ir.Field{
			ir.F("unit", &ir.Object{ID: 4, Type: "github.com/acme/geo.Unit", Attrs: []ir.Field{ir.F("Name", ir.String("m"))}}),
		}},
		Result: &ir.KeyedMap{ID: 5, Pairs: []ir.Pair{{Key: ir.Ref{ID: 2}, Value: ir.Bool(true)}}},
	}
}

func openTestDir(t *testing.T, opts ...Option) *Dir {
	t.Helper()
	d, err := Open(t.TempDir(), append([]Option{WithLogger(discardLogger)}, opts...)...)
	require.NoError(t, err)
	return d
}
