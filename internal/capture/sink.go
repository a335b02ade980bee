package capture

import (
	"context"
	"iter"
	"slices"
	"sync"

	"github.com/roach88/tead/internal/ir"
	"github.com/roach88/tead/internal/query"
)

// Sink persists assembled entries.
//
// Persist must be idempotent on entry ID. Implementations must be safe for
// concurrent use: a Guard calls Persist from every goroutine that records.
type Sink interface {
	Persist(ctx context.Context, e ir.Entry) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, e ir.Entry) error

// Persist implements Sink.
func (f SinkFunc) Persist(ctx context.Context, e ir.Entry) error {
	return f(ctx, e)
}

// MemorySink keeps entries in memory. It is a query.Source, so tests can
// read back what a Guard recorded the same way the CLI reads a store.
//
// Thread-safety: safe for concurrent use via internal mutex.
type MemorySink struct {
	mu      sync.Mutex
	entries []ir.Entry
	ids     map[string]bool
}

// NewMemorySink creates an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{ids: make(map[string]bool)}
}

// Persist implements Sink. A second entry with a known ID is ignored.
func (m *MemorySink) Persist(ctx context.Context, e ir.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ids[e.ID] {
		return nil
	}
	m.ids[e.ID] = true
	m.entries = append(m.entries, e)
	return nil
}

// Entries returns a copy of the entries in persistence order.
func (m *MemorySink) Entries() []ir.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.entries)
}

// Len returns the number of stored entries.
func (m *MemorySink) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Iterate implements query.Source over a snapshot of the stored entries.
func (m *MemorySink) Iterate(ctx context.Context, c query.Criteria) iter.Seq2[ir.Entry, error] {
	return query.Select(ctx, m.Entries(), c)
}

// Delete implements query.Source.
func (m *MemorySink) Delete(ctx context.Context, c query.Criteria) (int, error) {
	c.Limit = 0
	matcher, err := query.NewMatcher(c)
	if err != nil {
		return 0, err
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := make([]ir.Entry, 0, len(m.entries))
	var removed []string
	for _, e := range m.entries {
		ok, err := matcher.Match(e)
		if err != nil {
			return 0, err
		}
		if ok {
			removed = append(removed, e.ID)
			continue
		}
		kept = append(kept, e)
	}
	for _, id := range removed {
		delete(m.ids, id)
	}
	m.entries = kept
	return len(removed), nil
}
