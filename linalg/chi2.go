// SPDX-License-Identifier: MIT

package linalg

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/katalvlaran/oestim/named"
)

// DefaultEigenATol is the absolute tolerance for treating an eigenvalue
// as zero in the generalized chi-square. Deliberately looser than typical
// closeness defaults: covariances assembled from prior and parameter
// propagation carry eigenvalues that are zero only up to ~1e-5.
const DefaultEigenATol = 1e-5

// GeneralizedChiSquare evaluates the chi-square statistic of residual z
// against covariance s without assuming s is invertible (Rodgers ch. 12,
// eq. 12.1).
//
// Algorithm:
//  1. Eigen-decompose s with left eigenvectors.
//  2. Project z onto the left eigenvectors: z' = Vlᵀ·z.
//  3. Retain pairs with |eigenvalue| > atol; dof = retained count.
//  4. chi2 = Σ z'²/eigenvalue over retained pairs (real part of the
//     complex sum; imaginary parts vanish for symmetric covariances).
//
// s must be square over the same names as z. dof < z.Len() means s is
// rank deficient — typically safe to ignore, but worth a caller notice.
func GeneralizedChiSquare(s *named.Matrix, z *named.Vector, atol float64) (chi2 float64, dof int, err error) {
	n := z.Len()
	if s.Rows() != n || s.Cols() != n {
		return 0, 0, fmt.Errorf("%w: %d×%d covariance, residual of length %d",
			ErrDimensionMismatch, s.Rows(), s.Cols(), n)
	}
	if !namesMatch(s.ColNames(), z.Names()) {
		return 0, 0, fmt.Errorf("%w: covariance and residual names differ", ErrDimensionMismatch)
	}
	if atol <= 0 {
		atol = DefaultEigenATol
	}

	var eig mat.Eigen
	if ok := eig.Factorize(s.Raw(), mat.EigenLeft); !ok {
		return 0, 0, ErrEigenFailed
	}
	vals := eig.Values(nil)
	var left mat.CDense
	eig.LeftVectorsTo(&left)

	var total complex128
	for j := 0; j < n; j++ {
		if cmplx.Abs(vals[j]) <= atol {
			continue
		}
		var zp complex128
		for i := 0; i < n; i++ {
			zp += left.At(i, j) * complex(z.At(i), 0)
		}
		total += zp * zp / vals[j]
		dof++
	}
	return real(total), dof, nil
}

// ChiSquareCritical returns the chi-square cutoff at the given
// significance level and degrees of freedom (the inverse survival
// function). dof <= 0 yields 0.
func ChiSquareCritical(significance float64, dof int) float64 {
	if dof <= 0 {
		return 0
	}
	return distuv.ChiSquared{K: float64(dof)}.Quantile(1 - significance)
}

// namesMatch reports exact name-sequence equality.
func namesMatch(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
