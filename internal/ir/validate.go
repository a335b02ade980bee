package ir

import (
	"fmt"
	"slices"
)

// GraphError describes a structural problem in a Node Tree.
type GraphError struct {
	Kind string // "orphan_ref", "forward_ref" or "duplicate_id"
	ID   int
}

func (e *GraphError) Error() string {
	switch e.Kind {
	case "duplicate_id":
		return fmt.Sprintf("container id %d defined more than once", e.ID)
	case "forward_ref":
		return fmt.Sprintf("ref %d appears before its container", e.ID)
	default:
		return fmt.Sprintf("ref %d has no matching container", e.ID)
	}
}

// FindOrphanRefs returns the sorted, de-duplicated IDs of refs that point at
// no container anywhere in the given roots.
func FindOrphanRefs(roots ...Node) []int {
	defined := make(map[int]bool)
	var refs []int
	for _, root := range roots {
		Walk(root, func(n Node) bool {
			switch v := n.(type) {
			case Ref:
				refs = append(refs, v.ID)
			case Container:
				if v.NodeID() > 0 {
					defined[v.NodeID()] = true
				}
			}
			return true
		})
	}

	orphans := []int{}
	for _, id := range refs {
		if !defined[id] {
			orphans = append(orphans, id)
		}
	}
	slices.Sort(orphans)
	return slices.Compact(orphans)
}

// Validate checks that the roots, read in order, form a well-anchored graph:
// container IDs are unique and every ref points at a container that was
// already entered. Refs to an enclosing container (cycles) are valid.
// Returns the first problem found as a *GraphError.
func Validate(roots ...Node) error {
	entered := make(map[int]bool)
	var firstErr error
	for _, root := range roots {
		Walk(root, func(n Node) bool {
			switch v := n.(type) {
			case Ref:
				if !entered[v.ID] {
					firstErr = &GraphError{Kind: "forward_ref", ID: v.ID}
					if !containsID(roots, v.ID) {
						firstErr = &GraphError{Kind: "orphan_ref", ID: v.ID}
					}
					return false
				}
			case Container:
				id := v.NodeID()
				if id == 0 {
					return true
				}
				if entered[id] {
					firstErr = &GraphError{Kind: "duplicate_id", ID: id}
					return false
				}
				entered[id] = true
			}
			return true
		})
		if firstErr != nil {
			return firstErr
		}
	}
	return nil
}

func containsID(roots []Node, id int) bool {
	found := false
	for _, root := range roots {
		Walk(root, func(n Node) bool {
			if c, ok := n.(Container); ok && c.NodeID() == id {
				found = true
				return false
			}
			return true
		})
		if found {
			return true
		}
	}
	return false
}
