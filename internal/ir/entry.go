package ir

import (
	"encoding/json"
	"fmt"
	"time"
)

// Entry is one recorded root call of an instrumented target.
//
// Args is a tuple List of positional arguments, Kwargs a Dict of named
// arguments and Result the returned value. IDs are unique across the three
// trees, read as one graph in that order. A Guard encodes Result after the
// call in its own session, numbered past the inputs, so Result shows the
// post-call state; a ref from Result into Args is still well formed.
//
// Entries are immutable once assembled. Backends store and return them as is.
type Entry struct {
	ID            string
	Schema        string
	SchemaVersion string
	Target        string
	Timestamp     time.Time
	Args          Node
	Kwargs        Node
	Result        Node
}

// Roots returns the entry's graphs in encoding order.
func (e Entry) Roots() []Node {
	return []Node{orNull(e.Args), orNull(e.Kwargs), orNull(e.Result)}
}

// entryJSON is the on-disk layout of an Entry.
type entryJSON struct {
	Schema        string          `json:"trace_schema"`
	SchemaVersion string          `json:"schema_version"`
	ID            string          `json:"id"`
	Target        string          `json:"func"`
	Timestamp     time.Time       `json:"timestamp"`
	Args          json.RawMessage `json:"args_graph"`
	Kwargs        json.RawMessage `json:"kwargs_graph"`
	Result        json.RawMessage `json:"result_graph"`
}

// MarshalJSON implements json.Marshaler for Entry.
func (e Entry) MarshalJSON() ([]byte, error) {
	out := entryJSON{
		Schema:        e.Schema,
		SchemaVersion: e.SchemaVersion,
		ID:            e.ID,
		Target:        e.Target,
		Timestamp:     e.Timestamp.UTC(),
	}

	var err error
	if out.Args, err = MarshalNode(orNull(e.Args)); err != nil {
		return nil, fmt.Errorf("args_graph: %w", err)
	}
	if out.Kwargs, err = MarshalNode(orNull(e.Kwargs)); err != nil {
		return nil, fmt.Errorf("kwargs_graph: %w", err)
	}
	if out.Result, err = MarshalNode(orNull(e.Result)); err != nil {
		return nil, fmt.Errorf("result_graph: %w", err)
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler for Entry.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw entryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	graphs := make([]Node, 3)
	for i, g := range []json.RawMessage{raw.Args, raw.Kwargs, raw.Result} {
		if len(g) == 0 {
			graphs[i] = Null{}
			continue
		}
		n, err := UnmarshalNode(g)
		if err != nil {
			return fmt.Errorf("%s: %w", graphFieldNames[i], err)
		}
		graphs[i] = n
	}

	*e = Entry{
		ID:            raw.ID,
		Schema:        raw.Schema,
		SchemaVersion: raw.SchemaVersion,
		Target:        raw.Target,
		Timestamp:     raw.Timestamp.UTC(),
		Args:          graphs[0],
		Kwargs:        graphs[1],
		Result:        graphs[2],
	}
	return nil
}

var graphFieldNames = []string{"args_graph", "kwargs_graph", "result_graph"}

// EncodeEntry renders an entry as indented JSON for trace files and CLI output.
func EncodeEntry(e Entry) ([]byte, error) {
	return json.MarshalIndent(e, "", "  ")
}
