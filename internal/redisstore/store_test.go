package redisstore

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tead/internal/ir"
	"github.com/roach88/tead/internal/query"
	"github.com/roach88/tead/internal/testutil"
)

// openTestStore runs an in-process Redis server and connects under a fresh
// prefix.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	prefix := "tead-test:" + uuid.NewString() + ":"
	s, err := Open(context.Background(), mr.Addr(), WithPrefix(prefix), WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testEntry(n int64, target string, ts time.Time) ir.Entry {
	return ir.Entry{
		ID:            testutil.FormatID(n),
		Schema:        ir.SchemaName,
		SchemaVersion: ir.SchemaVersion,
		Target:        target,
		Timestamp:     ts,
		Args: &ir.List{ID: 1, Tuple: true, Items: []ir.Node{
			&ir.List{ID: 2, Items: []ir.Node{ir.Int(n), ir.String("x")}},
		}},
		Kwargs: &ir.Dict{ID: 3, Fields: []ir.Field{}},
		Result: ir.Ref{ID: 2},
	}
}

func ids(entries []ir.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestScoreRange(t *testing.T) {
	assert.Equal(t, &redis.ZRangeBy{Min: "-inf", Max: "+inf"}, scoreRange(time.Time{}, time.Time{}))

	after := time.Date(2026, 1, 2, 3, 4, 5, 1500, time.UTC)
	before := after.Add(time.Second)
	got := scoreRange(after, before)
	assert.Equal(t, "1767323045000001", got.Min)
	assert.Equal(t, "1767323046000001", got.Max)
}

func TestTargetSelected(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		target   string
		want     bool
	}{
		{"no patterns", nil, "geo.Area", true},
		{"exact", []string{"geo.Area"}, "geo.Area", true},
		{"exact miss", []string{"geo.Area"}, "geo.Areas", false},
		{"glob", []string{"text.Wrap", "geo.*"}, "geo.Distance", true},
		{"glob miss", []string{"geo.*"}, "text.Wrap", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := targetSelected(tt.patterns, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnmarshalEntry(t *testing.T) {
	e := testEntry(1, "geo.Area", testutil.Epoch)
	data, err := ir.EncodeEntry(e)
	require.NoError(t, err)

	got, err := unmarshalEntry(e.ID, string(data))
	require.NoError(t, err)
	assert.Equal(t, e, got)

	_, err = unmarshalEntry(testutil.FormatID(2), string(data))
	assert.Error(t, err, "stored under another id")

	_, err = unmarshalEntry(e.ID, "{")
	assert.Error(t, err)

	e.SchemaVersion = "3.0.0"
	data, err = ir.EncodeEntry(e)
	require.NoError(t, err)
	_, err = unmarshalEntry(e.ID, string(data))
	var ve *ir.VersionError
	assert.ErrorAs(t, err, &ve)
}

func TestStore_PersistAndIterate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entries := []ir.Entry{
		testEntry(1, "geo.Area", testutil.Epoch.Add(3*time.Hour)),
		testEntry(2, "geo.Distance", testutil.Epoch.Add(1*time.Hour)),
		testEntry(3, "text.Wrap", testutil.Epoch.Add(2*time.Hour)),
		testEntry(4, "geo.Area", testutil.Epoch.Add(4*time.Hour)),
	}
	for _, e := range entries {
		require.NoError(t, s.Persist(ctx, e))
	}
	require.NoError(t, s.Persist(ctx, entries[0]), "persist is idempotent")

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	tests := []struct {
		name string
		c    query.Criteria
		want []string
	}{
		{"all in time order", query.Criteria{}, []string{testutil.FormatID(2), testutil.FormatID(3), testutil.FormatID(1), testutil.FormatID(4)}},
		{"exact target", query.Criteria{Targets: []string{"geo.Area"}}, []string{testutil.FormatID(1), testutil.FormatID(4)}},
		{"glob and limit", query.Criteria{Targets: []string{"geo.*"}, Limit: 2}, []string{testutil.FormatID(2), testutil.FormatID(1)}},
		{"window", query.Criteria{After: testutil.Epoch.Add(2 * time.Hour), Before: testutil.Epoch.Add(3 * time.Hour)}, []string{testutil.FormatID(3), testutil.FormatID(1)}},
		{"where", query.Criteria{Where: `target.startsWith("text.")`}, []string{testutil.FormatID(3)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Collect(ctx, tt.c)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}

	got, err := s.Collect(ctx, query.Criteria{Targets: []string{"geo.Area"}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, entries[0], got[0])
}

func TestStore_SkipsUnreadableEntries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Persist(ctx, testEntry(1, "geo.Area", testutil.Epoch)))

	bad := testutil.FormatID(2)
	require.NoError(t, s.client.HSet(ctx, s.entriesKey(), bad, "{").Err())
	require.NoError(t, s.client.ZAdd(ctx, s.targetKey("geo.Area"), redis.Z{Score: 0, Member: bad}).Err())

	got, err := s.Collect(ctx, query.Criteria{})
	require.NoError(t, err)
	assert.Equal(t, []string{testutil.FormatID(1)}, ids(got))
}

func TestStore_Delete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i, target := range []string{"geo.Area", "geo.Distance", "text.Wrap"} {
		require.NoError(t, s.Persist(ctx, testEntry(int64(i+1), target, testutil.Epoch)))
	}

	n, err := s.Delete(ctx, query.Criteria{Targets: []string{"geo.*"}, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.Collect(ctx, query.Criteria{})
	require.NoError(t, err)
	assert.Equal(t, []string{testutil.FormatID(3)}, ids(got))

	targets, err := s.client.SMembers(ctx, s.targetsKey()).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"text.Wrap"}, targets)
}

func TestStore_InvalidCriteria(t *testing.T) {
	s := New(redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), WithLogger(slog.New(slog.DiscardHandler)))
	t.Cleanup(func() { s.client.Close() })

	_, err := s.Collect(context.Background(), query.Criteria{Where: "target +"})
	assert.Error(t, err)
}

func TestStore_KeyLayoutAndPrefixIsolation(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	open := func(prefix string) *Store {
		s, err := Open(ctx, mr.Addr(), WithPrefix(prefix), WithLogger(slog.New(slog.DiscardHandler)))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	}
	a, b := open("a:"), open("b:")

	require.NoError(t, a.Persist(ctx, testEntry(1, "geo.Area", testutil.Epoch)))
	assert.ElementsMatch(t, []string{"a:entries", "a:targets", "a:target:geo.Area"}, mr.Keys())
	assert.True(t, mr.Exists("a:entries"))
	assert.Equal(t, testutil.Epoch.UnixMicro(), int64(mustScore(t, mr, "a:target:geo.Area", testutil.FormatID(1))))

	got, err := b.Collect(ctx, query.Criteria{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func mustScore(t *testing.T, mr *miniredis.Miniredis, key, member string) float64 {
	t.Helper()
	score, err := mr.ZScore(key, member)
	require.NoError(t, err)
	return score
}
