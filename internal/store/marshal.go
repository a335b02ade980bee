package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/tead/internal/ir"
)

// row is the column form of an Entry.
type row struct {
	ID            string
	Target        string
	TS            int64
	SchemaVersion string
	Digest        string
	Data          string
}

// marshalEntry converts an Entry to its row. The data column holds the
// compact JSON document, the same layout trace files use.
func marshalEntry(e ir.Entry) (row, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return row{}, fmt.Errorf("marshal entry %s: %w", e.ID, err)
	}
	digest, err := ir.Digest(e)
	if err != nil {
		return row{}, fmt.Errorf("marshal entry %s: %w", e.ID, err)
	}
	return row{
		ID:            e.ID,
		Target:        e.Target,
		TS:            e.Timestamp.UnixNano(),
		SchemaVersion: e.SchemaVersion,
		Digest:        digest,
		Data:          string(data),
	}, nil
}

// unmarshalEntry parses the data column and checks the schema version.
func unmarshalEntry(id, data string) (ir.Entry, error) {
	var e ir.Entry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return ir.Entry{}, fmt.Errorf("unmarshal entry %s: %w", id, err)
	}
	if err := ir.CheckCompatible(e.Schema, e.SchemaVersion); err != nil {
		return ir.Entry{}, fmt.Errorf("unmarshal entry %s: %w", id, err)
	}
	if e.ID != id {
		return ir.Entry{}, fmt.Errorf("unmarshal entry %s: document carries id %q", id, e.ID)
	}
	return e, nil
}
