package store

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

func seededStore(t *testing.T) *Store {
	t.Helper()
	s := createTestStore(t)
	// Inserted out of order; reads must come back by ts, then id
	persistAll(t, s,
		createTestEntry(3, "text.Wrap", testutil.Epoch.Add(2*time.Second)),
		createTestEntry(1, "geo.Area", testutil.Epoch),
		createTestEntry(4, "geo.Area", testutil.Epoch.Add(3*time.Second)),
		createTestEntry(2, "geo.Distance", testutil.Epoch),
	)
	return s
}

func ids(entries []ir.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestIterate_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	e := createTestEntry(1, "geo.Area", testutil.Epoch)
	persistAll(t, s, e)

	entries, err := s.Collect(context.Background(), query.Criteria{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, e, entries[0])
}

func TestIterate_Empty(t *testing.T) {
	entries, err := createTestStore(t).Collect(context.Background(), query.Criteria{})
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestIterate_Criteria(t *testing.T) {
	s := seededStore(t)
	id := testutil.FormatID

	tests := []struct {
		name     string
		criteria query.Criteria
		want     []string
	}{
		{"deterministic order", query.Criteria{}, []string{id(1), id(2), id(3), id(4)}},
		{"exact target", query.Criteria{Targets: []string{"geo.Area"}}, []string{id(1), id(4)}},
		{"glob", query.Criteria{Targets: []string{"geo.*"}}, []string{id(1), id(2), id(4)}},
		{"after inclusive", query.Criteria{After: testutil.Epoch.Add(2 * time.Second)}, []string{id(3), id(4)}},
		{"before inclusive", query.Criteria{Before: testutil.Epoch}, []string{id(1), id(2)}},
		{"limit", query.Criteria{Limit: 3}, []string{id(1), id(2), id(3)}},
		{"where", query.Criteria{Where: `target != "geo.Area"`}, []string{id(2), id(3)}},
		{"where applies before limit", query.Criteria{Where: `target == "geo.Area"`, Limit: 1}, []string{id(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := s.Collect(context.Background(), tt.criteria)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(entries))
		})
	}
}

func TestIterate_TiesBrokenByID(t *testing.T) {
	s := createTestStore(t)
	// One timestamp, inserted in descending ID order
	persistAll(t, s,
		createTestEntry(9, "geo.Area", testutil.Epoch),
		createTestEntry(5, "geo.Area", testutil.Epoch),
		createTestEntry(7, "geo.Area", testutil.Epoch),
	)

	entries, err := s.Collect(context.Background(), query.Criteria{Targets: []string{"geo.Area"}})
	require.NoError(t, err)
	id := testutil.FormatID
	assert.Equal(t, []string{id(5), id(7), id(9)}, ids(entries))
}

func TestIterate_StopsEarly(t *testing.T) {
	s := seededStore(t)

	n := 0
	for _, err := range s.Iterate(context.Background(), query.Criteria{}) {
		require.NoError(t, err)
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)

	// The connection was released
	count, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestIterate_SkipsUnreadableRows(t *testing.T) {
	s := seededStore(t)

	_, err := s.db.Exec(`INSERT INTO entries (id, target, ts, schema_version, digest, data)
		VALUES ('bad-json', 'geo.Area', 0, '2.1.0', '', '{not json')`)
	require.NoError(t, err)

	future := createTestEntry(9, "geo.Area", testutil.Epoch)
	future.SchemaVersion = "3.0.0"
	persistAll(t, s, future)

	entries, err := s.Collect(context.Background(), query.Criteria{Targets: []string{"geo.Area"}})
	require.NoError(t, err)
	assert.Equal(t, []string{testutil.FormatID(1), testutil.FormatID(4)}, ids(entries))
}

func TestIterate_InvalidCriteria(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Collect(context.Background(), query.Criteria{Where: "target +"})
	assert.Error(t, err)

	_, err = s.Collect(context.Background(), query.Criteria{Limit: -1})
	assert.Error(t, err)
}
