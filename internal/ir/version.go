package ir

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Version constants for the trace schema.
const (
	// SchemaName identifies graph-form entries on disk and in databases.
	SchemaName = "tead/v2-graph"

	// SchemaVersion is the semantic version of the entry layout.
	// Readers accept any entry with the same major version.
	SchemaVersion = "2.1.0"
)

var currentVersion = semver.MustParse(SchemaVersion)

// VersionError reports an entry this reader cannot interpret.
type VersionError struct {
	Schema  string
	Version string
	Reason  string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("entry schema %q version %q: %s", e.Schema, e.Version, e.Reason)
}

// CheckCompatible verifies that an entry stamped with schema and version
// can be read. An empty version is accepted for entries written before
// versions were recorded.
func CheckCompatible(schema, version string) error {
	if schema != SchemaName {
		return &VersionError{Schema: schema, Version: version, Reason: "unknown schema, want " + SchemaName}
	}
	if version == "" {
		return nil
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return &VersionError{Schema: schema, Version: version, Reason: "not a semantic version"}
	}
	if v.Major() != currentVersion.Major() {
		return &VersionError{
			Schema:  schema,
			Version: version,
			Reason:  fmt.Sprintf("major version %d is not readable by %s", v.Major(), SchemaVersion),
		}
	}
	return nil
}
