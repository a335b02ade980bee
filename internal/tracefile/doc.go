// Package tracefile stores entries as one file per entry in a directory.
//
// File names are <target>__<entry id><ext>, where dots and slashes in the
// target become underscores. Two formats are supported:
//   - FormatJSON (.gjson): the entry's JSON document, validated against an
//     embedded JSON Schema when read
//   - FormatCUE (.cue): the same document as a CUE struct literal
//
// Writes go to a temporary file that is renamed into place, so readers never
// observe a partial entry. Files that cannot be parsed are skipped with a
// warning; one corrupt trace never hides the others.
package tracefile
