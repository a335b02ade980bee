package query

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"slices"

	"github.com/google/cel-go/cel"

	"github.com/roach88/tead/internal/ir"
)

// Matcher evaluates a Criteria against entries in memory.
//
// Thread-safety: a Matcher is immutable after NewMatcher and safe for
// concurrent use.
type Matcher struct {
	pred  Predicate
	where cel.Program
	limit int
}

// NewMatcher validates c and compiles its Where expression.
func NewMatcher(c Criteria) (*Matcher, error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid criteria: %w", err)
	}
	m := &Matcher{pred: c.Predicate(), limit: c.Limit}
	if c.Where != "" {
		prg, err := compileWhere(c.Where)
		if err != nil {
			return nil, err
		}
		m.where = prg
	}
	return m, nil
}

func compileWhere(expr string) (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("target", cel.StringType),
		cel.Variable("timestamp", cel.TimestampType),
		cel.Variable("id", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile where %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("where %q must be a boolean expression, got %s", expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build where program: %w", err)
	}
	return prg, nil
}

// Limit returns the criteria limit; zero means none.
func (m *Matcher) Limit() int {
	return m.limit
}

// HasWhere reports whether the criteria carry a CEL expression.
func (m *Matcher) HasWhere() bool {
	return m.where != nil
}

// Match reports whether e satisfies both the predicate and the Where
// expression.
func (m *Matcher) Match(e ir.Entry) (bool, error) {
	ok, err := Eval(m.pred, e)
	if err != nil || !ok {
		return false, err
	}
	return m.MatchWhere(e)
}

// MatchWhere evaluates only the Where expression. Backends that already
// applied the predicate, e.g. in SQL, use it for the rest.
func (m *Matcher) MatchWhere(e ir.Entry) (bool, error) {
	if m.where == nil {
		return true, nil
	}
	out, _, err := m.where.Eval(map[string]any{
		"target":    e.Target,
		"timestamp": e.Timestamp,
		"id":        e.ID,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate where for entry %s: %w", e.ID, err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("where result for entry %s is not boolean", e.ID)
	}
	return ok, nil
}

// Eval evaluates a predicate against one entry.
func Eval(p Predicate, e ir.Entry) (bool, error) {
	switch p := p.(type) {
	case nil:
		return true, nil
	case TargetEquals:
		return e.Target == p.Target, nil
	case TargetGlob:
		return MatchGlob(p.Pattern, e.Target)
	case AtOrAfter:
		return !e.Timestamp.Before(p.T), nil
	case AtOrBefore:
		return !e.Timestamp.After(p.T), nil
	case AnyOf:
		for _, child := range p.Predicates {
			ok, err := Eval(child, e)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	case AllOf:
		for _, child := range p.Predicates {
			ok, err := Eval(child, e)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	default:
		return false, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// SortEntries orders entries by timestamp, then ID, in place.
func SortEntries(entries []ir.Entry) {
	slices.SortFunc(entries, func(a, b ir.Entry) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// Select filters an in-memory snapshot of entries. It sorts a copy, so
// the caller's slice is left untouched.
func Select(ctx context.Context, entries []ir.Entry, c Criteria) iter.Seq2[ir.Entry, error] {
	return func(yield func(ir.Entry, error) bool) {
		m, err := NewMatcher(c)
		if err != nil {
			yield(ir.Entry{}, err)
			return
		}

		sorted := slices.Clone(entries)
		SortEntries(sorted)

		n := 0
		for _, e := range sorted {
			if err := ctx.Err(); err != nil {
				yield(ir.Entry{}, err)
				return
			}
			ok, err := m.Match(e)
			if err != nil {
				yield(ir.Entry{}, err)
				return
			}
			if !ok {
				continue
			}
			if !yield(e, nil) {
				return
			}
			n++
			if m.limit > 0 && n >= m.limit {
				return
			}
		}
	}
}
