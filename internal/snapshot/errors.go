package snapshot

import (
	"errors"
	"fmt"
)

// UnsupportedError is returned when a value cannot be represented in any
// node form (funcs, channels, complex numbers, out-of-range unsigned
// integers, pointer loops with no container).
// It fails the capture of one call; it never aborts the program.
type UnsupportedError struct {
	Path   string // location inside the encoded value, e.g. "$.Items[2]"
	Type   string
	Reason string
}

func (e *UnsupportedError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("snapshot: cannot encode %s at %s: %s", e.Type, e.Path, e.Reason)
	}
	return fmt.Sprintf("snapshot: cannot encode %s: %s", e.Type, e.Reason)
}

// MalformedRefError is returned when a Node Tree refers to a container that
// has not been built yet (a forward reference), that does not exist, or
// when a container ID is defined twice. It is fatal to the decode call.
//
// A type that cannot be constructed is NOT a malformed tree: the decoder
// returns a Shell in that case and no error.
type MalformedRefError struct {
	ID     int
	Reason string // "forward", "unknown" or "duplicate"
}

func (e *MalformedRefError) Error() string {
	switch e.Reason {
	case "duplicate":
		return fmt.Sprintf("snapshot: malformed node tree: container %d defined twice", e.ID)
	case "forward":
		return fmt.Sprintf("snapshot: malformed node tree: ref %d precedes its container", e.ID)
	default:
		return fmt.Sprintf("snapshot: malformed node tree: ref %d has no container", e.ID)
	}
}

// NotConstructibleError is returned by the native decode functions, which
// must produce a value of a requested Go type and so cannot fall back to a
// Shell.
type NotConstructibleError struct {
	Type string
	Node string
}

func (e *NotConstructibleError) Error() string {
	return fmt.Sprintf("snapshot: cannot build %s from %s node", e.Type, e.Node)
}

// ErrTooDeep is returned when canonicalization exceeds MaxCanonicalDepth.
var ErrTooDeep = errors.New("snapshot: value nesting exceeds canonicalization bound")

// IsMalformedRef reports whether err is a malformed reference error.
func IsMalformedRef(err error) bool {
	var e *MalformedRefError
	return errors.As(err, &e)
}

// IsUnsupported reports whether err is an encode failure for an
// unrepresentable value.
func IsUnsupported(err error) bool {
	var e *UnsupportedError
	return errors.As(err, &e)
}

// IsNotConstructible reports whether err is a native decode failure.
func IsNotConstructible(err error) bool {
	var e *NotConstructibleError
	return errors.As(err, &e)
}
