package tracefile

import (
	"encoding/json"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/format"

	"github.com/roach88/tead/internal/ir"
)

// Format selects the on-disk encoding of an entry.
type Format string

const (
	// FormatJSON writes the indented JSON document.
	FormatJSON Format = "json"

	// FormatCUE writes the document as a CUE struct literal.
	FormatCUE Format = "cue"
)

// Formats lists every supported format.
var Formats = []Format{FormatJSON, FormatCUE}

// ParseFormat accepts a format name or file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(s), ".") {
	case "json", "gjson":
		return FormatJSON, nil
	case "cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("unknown trace format %q (want json or cue)", s)
	}
}

// Ext returns the file extension including the dot.
func (f Format) Ext() string {
	switch f {
	case FormatCUE:
		return ".cue"
	default:
		return ".gjson"
	}
}

// formatOf returns the format a file name was written in.
func formatOf(name string) (Format, bool) {
	for _, f := range Formats {
		if strings.HasSuffix(name, f.Ext()) {
			return f, true
		}
	}
	return "", false
}

// Marshal encodes an entry in format f.
func Marshal(e ir.Entry, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		data, err := ir.EncodeEntry(e)
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case FormatCUE:
		return marshalCUE(e)
	default:
		return nil, fmt.Errorf("unknown trace format %q", f)
	}
}

// Unmarshal decodes and validates an entry written in format f.
func Unmarshal(data []byte, f Format) (ir.Entry, error) {
	switch f {
	case FormatJSON:
		return unmarshalJSON(data)
	case FormatCUE:
		return unmarshalCUE(data)
	default:
		return ir.Entry{}, fmt.Errorf("unknown trace format %q", f)
	}
}

func unmarshalJSON(data []byte) (ir.Entry, error) {
	if err := validateDocument(data); err != nil {
		return ir.Entry{}, err
	}
	var e ir.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return ir.Entry{}, fmt.Errorf("decode entry: %w", err)
	}
	if err := ir.CheckCompatible(e.Schema, e.SchemaVersion); err != nil {
		return ir.Entry{}, err
	}
	return e, nil
}

// marshalCUE renders the JSON document through CUE. JSON is valid CUE, so
// compiling it yields a concrete struct that the CUE formatter prints in
// its own syntax.
func marshalCUE(e ir.Entry) ([]byte, error) {
	doc, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	v := cuecontext.New().CompileBytes(doc)
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("build CUE value: %w", err)
	}
	out, err := format.Node(v.Syntax(cue.Final(), cue.Concrete(true)))
	if err != nil {
		return nil, fmt.Errorf("format CUE: %w", err)
	}
	return append(out, '\n'), nil
}

func unmarshalCUE(data []byte) (ir.Entry, error) {
	v := cuecontext.New().CompileBytes(data)
	if err := v.Err(); err != nil {
		return ir.Entry{}, fmt.Errorf("compile CUE: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return ir.Entry{}, fmt.Errorf("CUE entry is not concrete: %w", err)
	}
	doc, err := v.MarshalJSON()
	if err != nil {
		return ir.Entry{}, fmt.Errorf("export CUE as JSON: %w", err)
	}
	return unmarshalJSON(doc)
}
