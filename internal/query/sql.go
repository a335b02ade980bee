package query

import (
	"fmt"
	"strings"
)

// SQLCompiler compiles Criteria to parameterized SQL for SQLite.
//
// The target table must expose the columns id (TEXT), target (TEXT) and
// ts (INTEGER, Unix nanoseconds UTC).
//
// CRITICAL: ALL queries include ORDER BY ts, id for deterministic results.
// CRITICAL: All values are parameterized (never interpolated).
type SQLCompiler struct {
	// Table is the entries table name. Defaults to "entries".
	Table string

	// Columns is the SELECT list. Defaults to "*".
	Columns string
}

// NewSQLCompiler creates a compiler for the default entries table.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{Table: "entries", Columns: "*"}
}

// Select compiles c to a SELECT statement.
//
// The Where expression cannot be expressed in SQL. When it is present the
// LIMIT is omitted as well, and the caller must apply both in memory.
func (c *SQLCompiler) Select(cr Criteria) (string, []any, error) {
	if err := cr.Validate(); err != nil {
		return "", nil, fmt.Errorf("invalid criteria: %w", err)
	}

	where, params, err := c.compilePredicate(cr.Predicate())
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}

	// MANDATORY: Always add ORDER BY
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s",
		c.columns(), c.table(), where, stableOrderKey())

	if cr.Limit > 0 && cr.Where == "" {
		sql += " LIMIT ?"
		params = append(params, cr.Limit)
	}
	return sql, params, nil
}

// Delete compiles c to a DELETE statement. Criteria with a Where
// expression cannot be deleted in SQL alone and are rejected; callers
// select the IDs first and use DeleteIDs.
func (c *SQLCompiler) Delete(cr Criteria) (string, []any, error) {
	if cr.Where != "" {
		return "", nil, fmt.Errorf("where expressions cannot be compiled to SQL")
	}
	if err := cr.Validate(); err != nil {
		return "", nil, fmt.Errorf("invalid criteria: %w", err)
	}

	where, params, err := c.compilePredicate(cr.Predicate())
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s", c.table(), where), params, nil
}

// DeleteIDs builds a DELETE for an explicit ID list.
func (c *SQLCompiler) DeleteIDs(ids []string) (string, []any) {
	if len(ids) == 0 {
		return fmt.Sprintf("DELETE FROM %s WHERE 1 = 0", c.table()), nil
	}
	params := make([]any, len(ids))
	for i, id := range ids {
		params[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	return fmt.Sprintf("DELETE FROM %s WHERE id IN (%s)", c.table(), placeholders), params
}

func (c *SQLCompiler) table() string {
	if c.Table == "" {
		return "entries"
	}
	return c.Table
}

func (c *SQLCompiler) columns() string {
	if c.Columns == "" {
		return "*"
	}
	return c.Columns
}

// stableOrderKey returns the ORDER BY clause body.
// COLLATE BINARY ensures deterministic text ordering across SQLite versions.
func stableOrderKey() string {
	return "ts ASC, id COLLATE BINARY ASC"
}

// compilePredicate compiles a Predicate to a WHERE clause fragment.
// CRITICAL: Values NEVER interpolated - always use ? placeholders.
func (c *SQLCompiler) compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case TargetEquals:
		return "target = ?", []any{pred.Target}, nil
	case TargetGlob:
		return "target GLOB ?", []any{pred.Pattern}, nil
	case AtOrAfter:
		return "ts >= ?", []any{pred.T.UnixNano()}, nil
	case AtOrBefore:
		return "ts <= ?", []any{pred.T.UnixNano()}, nil
	case AnyOf:
		if len(pred.Predicates) == 0 {
			return "1 = 0", nil, nil
		}
		return c.compileJoined(pred.Predicates, " OR ")
	case AllOf:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil, nil // vacuous truth
		}
		return c.compileJoined(pred.Predicates, " AND ")
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) compileJoined(preds []Predicate, sep string) (string, []any, error) {
	parts := make([]string, 0, len(preds))
	var params []any
	for _, p := range preds {
		sql, ps, err := c.compilePredicate(p)
		if err != nil {
			return "", nil, err
		}
		if _, nested := p.(AnyOf); nested {
			sql = "(" + sql + ")"
		}
		if _, nested := p.(AllOf); nested {
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return strings.Join(parts, sep), params, nil
}
