package capture

import (
	"sync"
	"sync/atomic"
)

// Quota caps the number of entries recorded per target.
//
// The counter for a target is shared by every call stack in the process
// and updated with a compare-and-swap loop, so concurrent callers can never
// push it past the limit. Separate processes do not share counters; a cap
// across processes is not provided.
//
// Thread-safety: Quota is safe for concurrent use.
type Quota struct {
	limit  int64
	counts sync.Map // target -> *atomic.Int64
}

// NewQuota creates a quota of limit entries per target. A limit of zero or
// less means unlimited.
func NewQuota(limit int) *Quota {
	return &Quota{limit: int64(limit)}
}

func (q *Quota) counter(target string) *atomic.Int64 {
	if v, ok := q.counts.Load(target); ok {
		return v.(*atomic.Int64)
	}
	v, _ := q.counts.LoadOrStore(target, new(atomic.Int64))
	return v.(*atomic.Int64)
}

// TryAcquire claims one entry slot for target. It returns false once the
// limit is reached; the check and the increment are one atomic step.
func (q *Quota) TryAcquire(target string) bool {
	c := q.counter(target)
	if q.limit <= 0 {
		c.Add(1)
		return true
	}
	for {
		cur := c.Load()
		if cur >= q.limit {
			return false
		}
		if c.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Release returns a slot claimed by TryAcquire, e.g. when the entry it was
// claimed for could not be persisted. It never drops a count below zero.
func (q *Quota) Release(target string) {
	c := q.counter(target)
	for {
		cur := c.Load()
		if cur <= 0 || c.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}

// Exhausted reports whether target has no slots left. It is advisory: a
// false result does not reserve a slot.
func (q *Quota) Exhausted(target string) bool {
	if q.limit <= 0 {
		return false
	}
	return q.counter(target).Load() >= q.limit
}

// Count returns the number of slots claimed for target.
func (q *Quota) Count(target string) int {
	return int(q.counter(target).Load())
}

// Limit returns the per-target limit; zero means unlimited.
func (q *Quota) Limit() int {
	if q.limit <= 0 {
		return 0
	}
	return int(q.limit)
}

// Reset forgets every count.
func (q *Quota) Reset() {
	q.counts.Range(func(k, _ any) bool {
		q.counts.Delete(k)
		return true
	})
}
