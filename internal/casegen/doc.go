// Package casegen turns recorded entries into Go replay tests.
//
// Entries are grouped per target, decoded untyped and canonicalized.
// Cases with the same canonical arguments and result are kept once, in the
// order they were recorded. Each target package gets one external test file
// whose cases are written with the builders of the root tead package and
// checked by tead.Replay.
//
// Only plain package-level functions can be called by name from a test, so
// entries of methods, closures and generic instantiations are skipped, as
// are entries with keyword arguments or cyclic values.
package casegen
