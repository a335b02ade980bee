package ir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntry() Entry {
	return Entry{
		ID:            "0192b4c4-0000-7000-8000-000000000001",
		Schema:        SchemaName,
		SchemaVersion: SchemaVersion,
		Target:        "example.com/calc.Add",
		Timestamp:     time.Date(2026, 1, 2, 3, 4, 5, 6000, time.UTC),
		Args:          &List{ID: 1, Tuple: true, Items: []Node{Int(1), Int(2)}},
		Kwargs:        &Dict{ID: 2, Fields: []Field{}},
		Result:        Int(3),
	}
}

func TestDigest_Deterministic(t *testing.T) {
	e := sampleEntry()
	d1, err := Digest(e)
	require.NoError(t, err)
	d2, err := Digest(e)
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
	assert.Len(t, d1, 64)
}

func TestDigest_IgnoresIdentityAndTime(t *testing.T) {
	a := sampleEntry()
	b := sampleEntry()
	b.ID = "other"
	b.Timestamp = b.Timestamp.Add(time.Hour)

	assert.Equal(t, MustDigest(a), MustDigest(b))
}

func TestDigest_SensitiveToGraphs(t *testing.T) {
	a := sampleEntry()
	b := sampleEntry()
	b.Result = Int(4)

	assert.NotEqual(t, MustDigest(a), MustDigest(b))
}

func TestDigest_DomainSeparation(t *testing.T) {
	data := []byte(`{"x":1}`)
	assert.NotEqual(t, hashWithDomain(DomainEntry, data), HashCanonical(data))
}
