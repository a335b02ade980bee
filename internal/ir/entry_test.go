package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryJSON_RoundTrip(t *testing.T) {
	e := sampleEntry()

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var decoded Entry
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, e, decoded)
}

func TestEntryJSON_Layout(t *testing.T) {
	data, err := json.Marshal(sampleEntry())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, SchemaName, raw["trace_schema"])
	assert.Equal(t, "example.com/calc.Add", raw["func"])
	assert.Equal(t, "2026-01-02T03:04:05.000006Z", raw["timestamp"])
	assert.Contains(t, raw, "args_graph")
	assert.Contains(t, raw, "kwargs_graph")
	assert.Contains(t, raw, "result_graph")
}

func TestEntryJSON_MissingGraphsDecodeAsNull(t *testing.T) {
	var e Entry
	require.NoError(t, json.Unmarshal([]byte(`{"func":"p.F","timestamp":"2026-01-01T00:00:00Z"}`), &e))
	assert.Equal(t, Null{}, e.Args)
	assert.Equal(t, Null{}, e.Result)
}

func TestEncodeEntry_Indented(t *testing.T) {
	data, err := EncodeEntry(sampleEntry())
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"func\": \"example.com/calc.Add\"")
}
