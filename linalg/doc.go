// SPDX-License-Identifier: MIT

// Package linalg provides the robust numeric kernels under the retrieval
// engine: matrix inversion with an explicit degradation policy, SVD rank,
// and the generalized chi-square statistic on possibly singular
// covariances.
//
// Inversion policy (deliberate, load-bearing):
//   - A NaN anywhere in the input never raises. The result is an all-NaN
//     matrix plus ErrNaNMatrix, so a retrieval loop can continue through
//     transient numerical trouble and terminate with an explicit
//     "undefined" result instead of crashing mid-iteration.
//   - A detected singular matrix (2-norm condition number beyond the
//     reciprocal of machine epsilon) returns ErrSingularMatrix. In strict
//     mode the matrix result is nil (callers abort); in lenient mode the
//     all-NaN matrix is returned alongside the sentinel so callers may log
//     and continue.
//
// The generalized chi-square follows Rodgers ch. 12: eigen-decompose the
// covariance, project the residual onto the left eigenvectors, and keep
// only eigenvalue/component pairs above tolerance — the retained count is
// the degrees of freedom. This is what makes hypothesis tests on the
// frequently singular prior+parameter covariances well defined.
//
// All kernels are deterministic and allocate fresh outputs; operands are
// never mutated.
package linalg
