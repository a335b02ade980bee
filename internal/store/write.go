package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/tead/internal/ir"
	"github.com/roach88/tead/internal/query"
)

// Persist inserts an entry into the store.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
// An entry whose target and digest match a stored entry is a duplicate
// recording and is skipped too; the check and the insert are one statement.
// Other constraint violations (e.g., NOT NULL) will still return errors.
func (s *Store) Persist(ctx context.Context, e ir.Entry) error {
	r, err := marshalEntry(e)
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO entries
		(id, target, ts, schema_version, digest, data)
		SELECT ?, ?, ?, ?, ?, ?
		WHERE NOT EXISTS (
			SELECT 1 FROM entries WHERE target = ? AND digest = ?
		)
		ON CONFLICT(id) DO NOTHING
	`,
		r.ID,
		r.Target,
		r.TS,
		r.SchemaVersion,
		r.Digest,
		r.Data,
		r.Target,
		r.Digest,
	)
	if err != nil {
		return fmt.Errorf("persist entry %s: %w", e.ID, err)
	}

	return nil
}

// Delete removes entries matching c and returns how many were removed.
// Limit is ignored.
//
// Criteria without a Where expression compile to a single DELETE. With one,
// the matching IDs are selected first and deleted in one transaction.
func (s *Store) Delete(ctx context.Context, c query.Criteria) (int, error) {
	c.Limit = 0
	if c.Where == "" {
		stmt, params, err := s.compiler.Delete(c)
		if err != nil {
			return 0, fmt.Errorf("delete: %w", err)
		}
		res, err := s.db.ExecContext(ctx, stmt, params...)
		if err != nil {
			return 0, fmt.Errorf("delete: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("delete: rows affected: %w", err)
		}
		return int(n), nil
	}

	var ids []string
	for e, err := range s.Iterate(ctx, c) {
		if err != nil {
			return 0, fmt.Errorf("delete: %w", err)
		}
		ids = append(ids, e.ID)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("delete: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var total int64
	for chunk := range slices.Chunk(ids, deleteBatchSize) {
		stmt, params := s.compiler.DeleteIDs(chunk)
		res, err := tx.ExecContext(ctx, stmt, params...)
		if err != nil {
			return 0, fmt.Errorf("delete: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("delete: rows affected: %w", err)
		}
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("delete: commit: %w", err)
	}
	return int(total), nil
}

// deleteBatchSize keeps IN lists well below SQLite's bound parameter limit.
const deleteBatchSize = 500
