package store

import (
	"context"
	"fmt"
	"iter"

	"github.com/roach88/tead/internal/ir"
	"github.com/roach88/tead/internal/query"
)

// Iterate yields entries matching c, ordered by ts ASC, id COLLATE BINARY ASC.
//
// Targets and the time window are filtered in SQL. A Where expression is
// evaluated per row in Go, and the limit is then applied in Go as well.
// Rows whose document cannot be read, or was written by an incompatible
// schema version, are skipped with a warning.
//
// The store holds a single connection, which stays busy until iteration
// ends. Do not call other Store methods from inside the loop.
func (s *Store) Iterate(ctx context.Context, c query.Criteria) iter.Seq2[ir.Entry, error] {
	return func(yield func(ir.Entry, error) bool) {
		matcher, err := query.NewMatcher(c)
		if err != nil {
			yield(ir.Entry{}, fmt.Errorf("iterate: %w", err))
			return
		}
		stmt, params, err := s.compiler.Select(c)
		if err != nil {
			yield(ir.Entry{}, fmt.Errorf("iterate: %w", err))
			return
		}

		rows, err := s.db.QueryContext(ctx, stmt, params...)
		if err != nil {
			yield(ir.Entry{}, fmt.Errorf("query entries: %w", err))
			return
		}
		defer rows.Close()

		n := 0
		for rows.Next() {
			var id, data string
			if err := rows.Scan(&id, &data); err != nil {
				yield(ir.Entry{}, fmt.Errorf("scan entry: %w", err))
				return
			}
			e, err := unmarshalEntry(id, data)
			if err != nil {
				s.logger.Warn("skipping unreadable entry", "id", id, "err", err)
				continue
			}
			if matcher.HasWhere() {
				ok, err := matcher.MatchWhere(e)
				if err != nil {
					yield(ir.Entry{}, err)
					return
				}
				if !ok {
					continue
				}
			}
			if !yield(e, nil) {
				return
			}
			n++
			if matcher.Limit() > 0 && n >= matcher.Limit() {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(ir.Entry{}, fmt.Errorf("iterate entries: %w", err))
		}
	}
}

// Collect drains Iterate into a slice.
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) Collect(ctx context.Context, c query.Criteria) ([]ir.Entry, error) {
	entries := []ir.Entry{}
	for e, err := range s.Iterate(ctx, c) {
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
