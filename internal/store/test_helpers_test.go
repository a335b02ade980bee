package store

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/tead/internal/ir"
	"github.com/roach88/tead/internal/testutil"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithLogger(slog.New(slog.DiscardHandler)))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestEntry creates an entry whose result aliases a list in its args.
func createTestEntry(n int64, target string, ts time.Time) ir.Entry {
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

// persistAll writes entries and fails the test on the first error.
func persistAll(t *testing.T, s *Store, entries ...ir.Entry) {
	t.Helper()
	for _, e := range entries {
		if err := s.Persist(context.Background(), e); err != nil {
			t.Fatalf("Persist(%s) failed: %v", e.ID, err)
		}
	}
}
