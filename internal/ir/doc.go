// Package ir defines the wire graph of recorded values.
//
// A recorded value is a tree of Nodes. Containers (List, Dict, KeyedMap,
// Set, Object) carry an ID unique within one Entry; a container reached a
// second time is written as Ref{ID} instead. IDs are assigned in
// depth-first pre-order across an entry's args, kwargs and result graphs,
// so a Ref always points at a container already entered.
//
// This package imports nothing internal. Encoding Go values into graphs
// and decoding them back lives in package snapshot.
//
// Key design constraints:
//   - canonical JSON (RFC 8785 key order, NFC strings) for hashing
//   - no non-finite floats; encoders record NaN and infinities as Null
//   - all JSON tags use snake_case
package ir
