package capture

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tead/internal/ir"
	"github.com/roach88/tead/internal/testutil"
)

func TestAssembler_Stamps(t *testing.T) {
	a := NewAssembler(WithClock(testutil.NewStepClock()), WithIDs(testutil.NewSequentialIDs()))

	args := &ir.List{ID: 1, Tuple: true, Items: []ir.Node{ir.Int(2)}}
	kwargs := &ir.Dict{ID: 2}
	e, err := a.Assemble("pkg.F", args, kwargs, ir.Ref{ID: 1})
	require.NoError(t, err)

	assert.Equal(t, testutil.FormatID(1), e.ID)
	assert.Equal(t, ir.SchemaName, e.Schema)
	assert.Equal(t, ir.SchemaVersion, e.SchemaVersion)
	assert.Equal(t, "pkg.F", e.Target)
	assert.Equal(t, testutil.Epoch, e.Timestamp)
	assert.Equal(t, ir.Ref{ID: 1}, e.Result)
}

func TestAssembler_DefaultIDsAreUUIDv7(t *testing.T) {
	e, err := NewAssembler().Assemble("pkg.F", &ir.List{ID: 1, Tuple: true}, &ir.Dict{ID: 2}, ir.Null{})
	require.NoError(t, err)

	parsed, err := uuid.Parse(e.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.Equal(t, "UTC", e.Timestamp.Location().String())
}

func TestAssembler_RejectsBrokenGraphs(t *testing.T) {
	a := NewAssembler()

	_, err := a.Assemble("pkg.F", &ir.List{ID: 1, Tuple: true}, &ir.Dict{ID: 2}, ir.Ref{ID: 9})
	var ge *ir.GraphError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "orphan_ref", ge.Kind)

	_, err = a.Assemble("", &ir.List{ID: 1, Tuple: true}, &ir.Dict{ID: 2}, ir.Null{})
	assert.Error(t, err)
}
