package capture

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tead/internal/ir"
	"github.com/roach88/tead/internal/query"
	"github.com/roach88/tead/internal/testutil"
)

func fillSink(t *testing.T, targets ...string) *MemorySink {
	t.Helper()
	sink := NewMemorySink()
	a := NewAssembler(WithClock(testutil.NewStepClock()), WithIDs(testutil.NewSequentialIDs()))
	for _, target := range targets {
		e, err := a.Assemble(target, &ir.List{ID: 1, Tuple: true}, &ir.Dict{ID: 2}, ir.Null{})
		require.NoError(t, err)
		require.NoError(t, sink.Persist(context.Background(), e))
	}
	return sink
}

func targetsOf(t *testing.T, src query.Source, c query.Criteria) []string {
	t.Helper()
	var out []string
	for e, err := range src.Iterate(context.Background(), c) {
		require.NoError(t, err)
		out = append(out, e.Target)
	}
	return out
}

func TestMemorySink_PersistIsIdempotent(t *testing.T) {
	sink := fillSink(t, "geo.Area")
	e := sink.Entries()[0]

	require.NoError(t, sink.Persist(context.Background(), e))
	assert.Equal(t, 1, sink.Len())
}

func TestMemorySink_PersistHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewMemorySink().Persist(ctx, ir.Entry{ID: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemorySink_Iterate(t *testing.T) {
	sink := fillSink(t, "geo.Area", "geo.Distance", "text.Wrap", "geo.Area")

	assert.Equal(t, []string{"geo.Area", "geo.Distance", "text.Wrap", "geo.Area"}, targetsOf(t, sink, query.Criteria{}))
	assert.Equal(t, []string{"geo.Area", "geo.Distance", "geo.Area"}, targetsOf(t, sink, query.Criteria{Targets: []string{"geo.*"}}))
	assert.Equal(t, []string{"geo.Area"}, targetsOf(t, sink, query.Criteria{Targets: []string{"geo.Area"}, Limit: 1}))

	// The step clock spaces entries one second apart
	after := testutil.Epoch.Add(2 * time.Second)
	assert.Equal(t, []string{"text.Wrap", "geo.Area"}, targetsOf(t, sink, query.Criteria{After: after}))
}

func TestMemorySink_Delete(t *testing.T) {
	sink := fillSink(t, "geo.Area", "geo.Distance", "text.Wrap", "geo.Area")

	n, err := sink.Delete(context.Background(), query.Criteria{Targets: []string{"geo.Area"}, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, n, "limit does not apply to deletes")
	assert.Equal(t, []string{"geo.Distance", "text.Wrap"}, targetsOf(t, sink, query.Criteria{}))

	n, err = sink.Delete(context.Background(), query.Criteria{Where: `target.startsWith("text.")`})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, sink.Len())

	_, err = sink.Delete(context.Background(), query.Criteria{Where: "target +"})
	assert.Error(t, err)
	assert.Equal(t, 1, sink.Len())
}
