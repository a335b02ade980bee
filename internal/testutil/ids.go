package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates predictable entry IDs for tests.
//
// IDs have the UUIDv7 layout so they pass the same checks as real ones and
// sort in generation order:
//
//	00000000-0000-7000-8000-000000000001
//	00000000-0000-7000-8000-000000000002
//
// This enables deterministic test execution and golden file comparison.
//
// Thread-safety: SequentialIDs is safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu  sync.Mutex
	seq int64
}

// NewSequentialIDs creates a generator whose first ID ends in 1.
func NewSequentialIDs() *SequentialIDs {
	return &SequentialIDs{}
}

// Generate returns the next ID.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return FormatID(g.seq)
}

// FormatID returns the n-th ID a SequentialIDs generates.
func FormatID(n int64) string {
	return fmt.Sprintf("00000000-0000-7000-8000-%012d", n)
}
