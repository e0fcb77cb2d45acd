// SPDX-License-Identifier: MIT
// Package linalg: sentinel error set. All kernels return these sentinels
// and tests match them via errors.Is.

package linalg

import "errors"

var (
	// ErrNaNMatrix reports that an input matrix contained NaN. It is a
	// non-fatal degradation signal: the accompanying result is an all-NaN
	// matrix, and callers typically log a warning and continue.
	ErrNaNMatrix = errors.New("linalg: NaN in matrix")

	// ErrSingularMatrix reports a matrix whose condition number exceeds
	// the reciprocal of machine epsilon. Strict callers abort on it;
	// lenient callers receive an all-NaN result alongside it.
	ErrSingularMatrix = errors.New("linalg: singular matrix")

	// ErrEigenFailed reports that the eigen decomposition did not
	// converge.
	ErrEigenFailed = errors.New("linalg: eigen decomposition failed")

	// ErrDimensionMismatch reports incompatible operand dimensions or
	// name axes passed to a kernel.
	ErrDimensionMismatch = errors.New("linalg: dimension mismatch")
)
