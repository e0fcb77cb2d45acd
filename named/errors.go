// SPDX-License-Identifier: MIT
// Package named: sentinel error set.
// Construction and lookup return these sentinels; tests match them via
// errors.Is. Algebra on misaligned names panics with ErrNameMismatch
// wrapped in operation context (programmer error, not user input).

package named

import "errors"

var (
	// ErrLengthMismatch is returned when a name list and a value slice
	// (or a flat matrix payload) disagree in size at construction.
	ErrLengthMismatch = errors.New("named: names and values length mismatch")

	// ErrDuplicateName is returned when a name list contains duplicates,
	// either at construction or when concatenating two vectors.
	ErrDuplicateName = errors.New("named: duplicate name")

	// ErrUnknownName is returned by name lookups (Value, SetValue,
	// SelectCols) when the requested name is absent from the axis.
	ErrUnknownName = errors.New("named: unknown name")

	// ErrNameMismatch signals that two operands live in differently-named
	// (or differently-ordered) spaces. Algebra panics with this sentinel;
	// silent reconciliation by position is deliberately not offered.
	ErrNameMismatch = errors.New("named: name sequences do not match")

	// ErrNonSquare signals that a square matrix was required (Trace, Diag,
	// inversion) but row and column counts differ.
	ErrNonSquare = errors.New("named: matrix is not square")
)
