// Package snapshot converts live Go values to and from Node Trees.
//
// Encoding walks a value once, in pre-order, and emits an ir.Node tree in
// which every identity-bearing container (pointer target, map, non-empty
// slice) is written in full the first time it is met and as an ir.Ref on
// every later meeting. Aliasing and cycles therefore survive the trip: a
// list that appears twice in the input decodes to one shared *Sequence.
//
// Decoding runs in one of two modes:
//
//   - ModeUntyped yields generic Values: Scalar, *Sequence, *Mapping, *Set
//     and *Shell.
//   - ModeTyped additionally builds Go structs that the Registry can name
//     and allocate, wrapped in *Typed. A struct that cannot be built, or
//     whose recorded attributes do not fit its fields, is returned as a
//     *Shell instead; that is not an error.
//
// DecodeValues and DecodeAs build native Go values of requested types
// directly, which is how recorded arguments are fed back into a function.
//
// Canonicalize, Equal and Key define structural equivalence across both
// worlds: a native value, its decoded Values and its re-decoded typed form
// all canonicalize identically.
package snapshot
