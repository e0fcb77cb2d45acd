// Package diagnostics: the moderate-linearity test (Rodgers ch. 5.1).

package diagnostics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/oestim/linalg"
	"github.com/katalvlaran/oestim/named"
	"github.com/katalvlaran/oestim/retrieval"
)

// Defaults for the diagnostics surface.
const (
	// DefaultSignificance is the test significance level: 5% probability
	// of rejecting a correct null hypothesis.
	DefaultSignificance = 0.05

	// DefaultMaxErrorPatterns caps how many linearity ratios are
	// returned (sorted descending, worst first).
	DefaultMaxErrorPatterns = 10
)

// LinearityResult holds the outcome of the moderate-linearity test.
// Ratios compare linearization error to measurement error per posterior
// error pattern, worst first; all should be below 1 for a moderately
// linear problem. The truth-based fields are NaN unless the problem was
// built with a known true state.
type LinearityResult struct {
	// Ratios are the per-error-pattern discrepancy ratios, sorted
	// descending and truncated to the configured maximum. All-NaN when
	// the retrieval has not converged or the posterior covariance is not
	// positive semi-definite.
	Ratios []float64
	// TrueChi2 is the generalized chi-square of the truth-induced
	// residual (validation runs only).
	TrueChi2 float64
	// TrueChi2Critical is the matching critical value.
	TrueChi2Critical float64
}

// Linearity runs the moderate-linearity test on a converged retrieval.
//
// maxPatterns <= 0, significance <= 0 and atol <= 0 select the package
// defaults. Each eigen-direction of the posterior covariance S_op yields
// one perturbation sqrt(λ)·v of the solution; the forward model is
// evaluated there and the discrepancy between the actual and the
// first-order-predicted measurement change is normalized by S_y⁻¹.
//
// Soft preconditions return sentinels with a logged notice: a
// non-converged retrieval, or a posterior covariance with an eigenvalue
// negative beyond tolerance (a numerical problem upstream). A forward
// model failure returns an error.
func Linearity(r *retrieval.Retrieval, maxPatterns int, significance, atol float64) (LinearityResult, error) {
	p := r.Problem()
	if maxPatterns <= 0 {
		maxPatterns = DefaultMaxErrorPatterns
	}
	if significance <= 0 {
		significance = DefaultSignificance
	}
	if atol <= 0 {
		atol = linalg.DefaultEigenATol
	}

	xN := len(p.XNames())
	sentinel := LinearityResult{
		Ratios:           nanSlice(xN),
		TrueChi2:         math.NaN(),
		TrueChi2Critical: math.NaN(),
	}
	if !r.Converged() {
		p.Logger().Warn("linearity test skipped: retrieval did not converge")
		return sentinel, nil
	}

	res := r.Result()
	rec := r.History()[res.ConvI]

	var eig mat.Eigen
	if ok := eig.Factorize(res.SOp.Raw(), mat.EigenRight); !ok {
		return sentinel, linalg.ErrEigenFailed
	}
	vals := eig.Values(nil)
	var vecs mat.CDense
	eig.VectorsTo(&vecs)

	lamb := make([]float64, xN)
	for j := range lamb {
		lamb[j] = real(vals[j])
		if math.Abs(lamb[j]) <= atol {
			lamb[j] = 0
		}
		if lamb[j] < 0 {
			p.Logger().Warn("linearity test skipped: posterior covariance not positive semi-definite",
				"eigenvalue", lamb[j])
			return sentinel, nil
		}
	}

	sYInv, err := linalg.Invert(p.SY(), true)
	if err != nil {
		return sentinel, err
	}

	ratios := make([]float64, xN)
	for hh := 0; hh < xN; hh++ {
		// Perturb the solution along the hh-th posterior error pattern.
		xHat := rec.X.Clone()
		scale := math.Sqrt(lamb[hh])
		for i := 0; i < xN; i++ {
			xHat.Set(i, xHat.At(i)+scale*real(vecs.At(i, hh)))
		}
		yHat, err := p.EvalState(xHat)
		if err != nil {
			return sentinel, err
		}
		delY := yHat.Sub(rec.Y).Sub(rec.KX.MulVec(xHat.Sub(rec.X)))
		ratios[hh] = dot(delY, sYInv.MulVec(delY))
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(ratios)))
	if len(ratios) > maxPatterns {
		ratios = ratios[:maxPatterns]
	}
	out := LinearityResult{
		Ratios:           ratios,
		TrueChi2:         math.NaN(),
		TrueChi2Critical: math.NaN(),
	}

	if truth := p.Truth(); truth != nil {
		yTruth, err := p.EvalState(truth)
		if err != nil {
			return sentinel, err
		}
		delY := yTruth.Sub(rec.Y).Sub(rec.KX.MulVec(truth.Sub(rec.X)))
		chi2, dof, err := linalg.GeneralizedChiSquare(p.SY(), delY, atol)
		if err != nil {
			return sentinel, err
		}
		out.TrueChi2 = chi2
		out.TrueChi2Critical = linalg.ChiSquareCritical(significance, dof)
	}

	return out, nil
}

// nanSlice returns n NaNs — the undefined-result sentinel.
func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// dot returns aᵗ·b over identical name axes.
func dot(a, b *named.Vector) float64 {
	return mat.Dot(a.Raw(), b.Raw())
}
