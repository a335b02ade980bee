// Package query selects recorded entries.
//
// A Criteria names targets (exactly or by glob), a time window, an optional
// CEL expression and a limit. Backends either evaluate it in memory through
// a Matcher, or compile its Predicate to SQL and apply only the CEL part in
// memory. Both paths yield entries ordered by timestamp, then ID.
package query

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/roach88/tead/internal/ir"
)

// Criteria selects entries. The zero Criteria selects everything.
type Criteria struct {
	// Targets are exact target names or glob patterns ('*', '?', '[...]').
	// An entry matches if any of them matches. Empty means all targets.
	Targets []string

	// After and Before bound the entry timestamp, both inclusive.
	// Zero values leave that side open.
	After  time.Time
	Before time.Time

	// Where is an optional CEL boolean expression over the variables
	// target (string), timestamp (timestamp) and id (string).
	Where string

	// Limit caps the number of entries returned; zero means no limit.
	Limit int
}

// Source is a storage backend that can be queried.
type Source interface {
	// Iterate yields matching entries lazily, ordered by timestamp then ID.
	// Iteration stops at the first error, which is yielded once.
	Iterate(ctx context.Context, c Criteria) iter.Seq2[ir.Entry, error]

	// Delete removes matching entries and returns how many were removed.
	// Limit is ignored.
	Delete(ctx context.Context, c Criteria) (int, error)
}

// Validate checks Limit, the time window and the glob patterns.
// The Where expression is checked when a Matcher is built.
func (c Criteria) Validate() error {
	if c.Limit < 0 {
		return fmt.Errorf("limit must not be negative, got %d", c.Limit)
	}
	if !c.After.IsZero() && !c.Before.IsZero() && c.Before.Before(c.After) {
		return fmt.Errorf("before %s is earlier than after %s", c.Before.Format(time.RFC3339), c.After.Format(time.RFC3339))
	}
	for _, t := range c.Targets {
		if t == "" {
			return fmt.Errorf("empty target pattern")
		}
		if IsGlob(t) {
			if _, err := compileGlob(t); err != nil {
				return fmt.Errorf("target pattern %q: %w", t, err)
			}
		}
	}
	return nil
}

// IsGlob reports whether a target pattern contains glob metacharacters.
func IsGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

const dateLayout = "2006-01-02"

// ParseTime parses an RFC 3339 timestamp or a date (2006-01-02). A date
// means the start of that day in UTC.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: want RFC 3339 or YYYY-MM-DD", s)
	}
	return t.UTC(), nil
}

// ParseBefore parses an upper bound. A date means the end of that day in
// UTC, so "--before 2026-01-02" includes everything recorded that day.
func ParseBefore(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.UTC().Add(24*time.Hour - time.Nanosecond), nil
	}
	return ParseTime(s)
}
