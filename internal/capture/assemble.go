package capture

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/tead/internal/ir"
)

// Clock supplies entry timestamps.
type Clock interface {
	Now() time.Time
}

// IDGenerator supplies entry IDs.
type IDGenerator interface {
	Generate() string
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// UUIDv7Generator generates time-sortable UUIDv7 entry IDs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Assembler turns encoded graphs into Entries.
//
// Thread-safety: safe for concurrent use if its Clock and IDGenerator are.
type Assembler struct {
	clock Clock
	ids   IDGenerator
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithClock replaces the wall clock.
func WithClock(c Clock) AssemblerOption {
	return func(a *Assembler) {
		a.clock = c
	}
}

// WithIDs replaces the UUIDv7 ID generator.
func WithIDs(g IDGenerator) AssemblerOption {
	return func(a *Assembler) {
		a.ids = g
	}
}

// NewAssembler creates an assembler stamping wall-clock time and UUIDv7 IDs.
func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{clock: systemClock{}, ids: UUIDv7Generator{}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble builds an Entry for one root call. The three graphs must use
// disjoint IDs; a ref that points at no container, or at one not yet
// entered, is rejected with an *ir.GraphError.
func (a *Assembler) Assemble(target string, args, kwargs, result ir.Node) (ir.Entry, error) {
	if target == "" {
		return ir.Entry{}, fmt.Errorf("assemble: empty target")
	}
	e := ir.Entry{
		ID:            a.ids.Generate(),
		Schema:        ir.SchemaName,
		SchemaVersion: ir.SchemaVersion,
		Target:        target,
		Timestamp:     a.clock.Now().UTC(),
		Args:          args,
		Kwargs:        kwargs,
		Result:        result,
	}
	if err := ir.Validate(e.Roots()...); err != nil {
		return ir.Entry{}, fmt.Errorf("assemble %s: %w", target, err)
	}
	return e, nil
}
