// SPDX-License-Identifier: MIT

package linalg

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/oestim/named"
)

// machineEpsilon is the float64 unit roundoff; a condition number above
// its reciprocal means the matrix is numerically singular.
const machineEpsilon = 0x1p-52

// Invert computes the inverse of a square named matrix under the package
// degradation policy.
//
// Behavior:
//   - NaN anywhere in a: returns (all-NaN matrix, ErrNaNMatrix). Never
//     fatal, regardless of strict.
//   - cond₂(a) > 1/machineEpsilon: the matrix is singular. strict=true
//     returns (nil, ErrSingularMatrix); strict=false returns
//     (all-NaN matrix, ErrSingularMatrix) so the caller can log and
//     continue with an explicit undefined result.
//   - Otherwise: the plain inverse. Its row names are a's column names
//     and vice versa (the inverse maps the output space back).
//
// a must be square and non-empty; otherwise ErrDimensionMismatch.
func Invert(a *named.Matrix, strict bool) (*named.Matrix, error) {
	n := a.Rows()
	if n == 0 || n != a.Cols() {
		return nil, fmt.Errorf("%w: Invert needs a non-empty square matrix, got %d×%d",
			ErrDimensionMismatch, a.Rows(), a.Cols())
	}

	if a.HasNaN() {
		return named.NaNMatrix(a.ColNames(), a.RowNames()), ErrNaNMatrix
	}

	if cond := mat.Cond(a.Raw(), 2); cond > 1/machineEpsilon {
		if strict {
			return nil, fmt.Errorf("%w: condition number %.3g", ErrSingularMatrix, cond)
		}
		return named.NaNMatrix(a.ColNames(), a.RowNames()), ErrSingularMatrix
	}

	var inv mat.Dense
	if err := inv.Inverse(a.Raw()); err != nil {
		// The condition check above makes this unreachable in practice;
		// map a surprise failure onto the same singular policy.
		if strict {
			return nil, fmt.Errorf("%w: %v", ErrSingularMatrix, err)
		}
		return named.NaNMatrix(a.ColNames(), a.RowNames()), ErrSingularMatrix
	}

	flat := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			flat[i*n+j] = inv.At(i, j)
		}
	}
	out, err := named.NewMatrix(a.ColNames(), a.RowNames(), flat)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Rank returns the numerical rank of a via its singular values. atol <= 0
// selects the usual default tolerance max(r,c)·eps·σ_max.
func Rank(a *named.Matrix, atol float64) (int, error) {
	r, c := a.Rows(), a.Cols()
	if r == 0 || c == 0 {
		return 0, nil
	}
	var svd mat.SVD
	if ok := svd.Factorize(a.Raw(), mat.SVDNone); !ok {
		return 0, ErrEigenFailed
	}
	sigma := svd.Values(nil)
	tol := atol
	if tol <= 0 {
		maxDim := r
		if c > maxDim {
			maxDim = c
		}
		tol = float64(maxDim) * machineEpsilon * sigma[0]
	}
	rank := 0
	for _, s := range sigma {
		if s > tol {
			rank++
		}
	}
	return rank, nil
}
