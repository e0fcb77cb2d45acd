// SPDX-License-Identifier: MIT

// Package named provides name-indexed dense vectors and matrices for the
// retrieval engine: an ordered list of unique variable names bound to a
// gonum-backed numeric payload.
//
// The central invariant of the whole module lives here: every vector and
// every matrix axis carries its name list, and all algebra aligns operands
// by name, never by position alone. Two values whose name sequences differ
// (even by order) are different spaces, and combining them is a programmer
// error — algebra on misaligned names panics, mirroring the shape panics
// of gonum's mat package. User-facing construction and name lookup return
// sentinel errors instead (see errors.go).
//
// Determinism:
//   - Name order is fixed at construction and never reordered.
//   - Names() and similar accessors return copies; callers cannot mutate
//     internal state through them.
//
// Zero-size values are legal: the parameter axis of a retrieval problem
// may be empty, in which case its vector has length 0 and its covariance
// is a 0×0 matrix. Algebra involving a zero-size operand is not defined
// and callers are expected to branch before reaching it.
package named
