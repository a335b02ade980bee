package tracefile

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/entry.schema.json
var entrySchemaJSON []byte

const entrySchemaURL = "https://tead.schemas.local/entry.schema.json"

var entrySchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	c.AssertFormat = true
	if err := c.AddResource(entrySchemaURL, bytes.NewReader(entrySchemaJSON)); err != nil {
		return nil, fmt.Errorf("entry schema load failed: %w", err)
	}
	schema, err := c.Compile(entrySchemaURL)
	if err != nil {
		return nil, fmt.Errorf("entry schema compile failed: %w", err)
	}
	return schema, nil
})

// validateDocument checks a JSON entry document against the embedded schema.
func validateDocument(data []byte) error {
	schema, err := entrySchema()
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("parse entry document: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("entry schema validation failed: %w", err)
	}
	return nil
}
