package tracefile

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tead/internal/ir"
	"github.com/roach88/tead/internal/testutil"
)

func TestMarshal_JSONGolden(t *testing.T) {
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"))

	data, err := Marshal(sampleEntry(1, "github.com/acme/geo.Area", testutil.Epoch), FormatJSON)
	require.NoError(t, err)
	g.Assert(t, "entry_json", data)
}

func TestMarshal_RoundTrip(t *testing.T) {
	e := sampleEntry(1, "github.com/acme/geo.Area", testutil.Epoch)

	for _, f := range Formats {
		t.Run(string(f), func(t *testing.T) {
			data, err := Marshal(e, f)
			require.NoError(t, err)

			got, err := Unmarshal(data, f)
			require.NoError(t, err)
			assert.Equal(t, e, got)
		})
	}
}

func TestMarshal_CUEIsNotJSON(t *testing.T) {
	data, err := Marshal(sampleEntry(1, "geo.Area", testutil.Epoch), FormatCUE)
	require.NoError(t, err)

	assert.Contains(t, string(data), "trace_schema")
	assert.Contains(t, string(data), `"tead/v2-graph"`)
	assert.NotContains(t, string(data), `"trace_schema":`)
}

func TestUnmarshal_RejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{"trace_schema":`},
		{"missing graphs", `{"trace_schema":"tead/v2-graph","schema_version":"2.1.0","id":"a","func":"f","timestamp":"2026-01-02T03:04:05Z"}`},
		{"bad timestamp", `{"trace_schema":"tead/v2-graph","schema_version":"2.1.0","id":"a","func":"f","timestamp":"yesterday","args_graph":null,"kwargs_graph":null,"result_graph":null}`},
		{"unknown tag", `{"trace_schema":"tead/v2-graph","schema_version":"2.1.0","id":"a","func":"f","timestamp":"2026-01-02T03:04:05Z","args_graph":{"$id":1,"$bag":[]},"kwargs_graph":null,"result_graph":null}`},
		{"negative ref", `{"trace_schema":"tead/v2-graph","schema_version":"2.1.0","id":"a","func":"f","timestamp":"2026-01-02T03:04:05Z","args_graph":{"$ref":-1},"kwargs_graph":null,"result_graph":null}`},
		{"future major", `{"trace_schema":"tead/v2-graph","schema_version":"3.0.0","id":"a","func":"f","timestamp":"2026-01-02T03:04:05Z","args_graph":null,"kwargs_graph":null,"result_graph":null}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.doc), FormatJSON)
			assert.Error(t, err)
		})
	}
}

func TestUnmarshal_FutureMajorIsVersionError(t *testing.T) {
	e := sampleEntry(1, "geo.Area", testutil.Epoch)
	e.SchemaVersion = "3.0.0"
	data, err := Marshal(e, FormatJSON)
	require.NoError(t, err)

	_, err = Unmarshal(data, FormatJSON)
	var ve *ir.VersionError
	assert.ErrorAs(t, err, &ve)
}

func TestUnmarshal_CUEMustBeConcrete(t *testing.T) {
	_, err := Unmarshal([]byte(`{trace_schema: string}`), FormatCUE)
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"json", FormatJSON},
		{"gjson", FormatJSON},
		{".gjson", FormatJSON},
		{"CUE", FormatCUE},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseFormat("pickle")
	assert.Error(t, err)
}
