package query

import "time"

// Predicate is a sealed interface for the backend-neutral part of a
// Criteria: everything except the CEL expression and the limit.
//
// Predicate types:
//   - TargetEquals: exact target name
//   - TargetGlob: glob pattern over the target name
//   - AtOrAfter / AtOrBefore: inclusive timestamp bounds
//   - AnyOf: disjunction
//   - AllOf: conjunction
type Predicate interface {
	predicate() // Sealed - only these types implement it
}

// TargetEquals matches one target name exactly.
type TargetEquals struct {
	Target string
}

func (TargetEquals) predicate() {}

// TargetGlob matches target names against a glob pattern.
// '*' matches any run of characters including '/' and '.'.
type TargetGlob struct {
	Pattern string
}

func (TargetGlob) predicate() {}

// AtOrAfter matches entries recorded at or after T.
type AtOrAfter struct {
	T time.Time
}

func (AtOrAfter) predicate() {}

// AtOrBefore matches entries recorded at or before T.
type AtOrBefore struct {
	T time.Time
}

func (AtOrBefore) predicate() {}

// AnyOf matches if any child matches. An empty AnyOf matches nothing.
type AnyOf struct {
	Predicates []Predicate
}

func (AnyOf) predicate() {}

// AllOf matches if every child matches. An empty AllOf matches everything.
type AllOf struct {
	Predicates []Predicate
}

func (AllOf) predicate() {}

// Predicate returns the backend-neutral filter of c.
func (c Criteria) Predicate() Predicate {
	var all []Predicate
	if len(c.Targets) > 0 {
		targets := make([]Predicate, len(c.Targets))
		for i, t := range c.Targets {
			if IsGlob(t) {
				targets[i] = TargetGlob{Pattern: t}
			} else {
				targets[i] = TargetEquals{Target: t}
			}
		}
		if len(targets) == 1 {
			all = append(all, targets[0])
		} else {
			all = append(all, AnyOf{Predicates: targets})
		}
	}
	if !c.After.IsZero() {
		all = append(all, AtOrAfter{T: c.After})
	}
	if !c.Before.IsZero() {
		all = append(all, AtOrBefore{T: c.Before})
	}
	return AllOf{Predicates: all}
}
