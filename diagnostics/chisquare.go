// Package diagnostics: the four Rodgers chi-square agreement tests
// (ch. 12.3). Each compares a residual against a covariance derived from
// the converged state and passes when the observed statistic stays below
// the critical value at the configured significance.

package diagnostics

import (
	"math"

	"github.com/katalvlaran/oestim/linalg"
	"github.com/katalvlaran/oestim/named"
	"github.com/katalvlaran/oestim/retrieval"
)

// TestResult is the outcome of one chi-square agreement test.
type TestResult struct {
	// Passed is true when Chi2 < Critical, i.e. the null hypothesis of
	// agreement is NOT rejected.
	Passed bool
	// Chi2 is the observed generalized chi-square statistic.
	Chi2 float64
	// Critical is the cutoff at the configured significance and DOF.
	Critical float64
	// DOF is the matrix-rank-derived degrees of freedom.
	DOF int
}

// ChiSquareResults bundles the four agreement tests.
type ChiSquareResults struct {
	// YOptimalObservation: does the optimal solution agree with the
	// observation in measurement space (Rodgers eq. 12.9)?
	YOptimalObservation TestResult
	// YObservationPrior: does the observation agree with the prior in
	// measurement space (Rodgers ch. 12.3.3.1)?
	YObservationPrior TestResult
	// YOptimalPrior: does the optimal solution agree with the prior in
	// measurement space (Rodgers eq. 12.16)?
	YOptimalPrior TestResult
	// XOptimalPrior: does the optimal solution agree with the prior in
	// state space (Rodgers eq. 12.12)?
	XOptimalPrior TestResult
}

// ChiSquare runs all four agreement tests at the given significance
// (<= 0 selects DefaultSignificance). On a non-converged retrieval every
// test is the NaN sentinel with a logged notice and a nil error.
func ChiSquare(r *retrieval.Retrieval, significance float64) (ChiSquareResults, error) {
	out := ChiSquareResults{
		YOptimalObservation: nanTest(),
		YObservationPrior:   nanTest(),
		YOptimalPrior:       nanTest(),
		XOptimalPrior:       nanTest(),
	}
	if !r.Converged() {
		r.Problem().Logger().Warn("chi-square tests skipped: retrieval did not converge")
		return out, nil
	}

	var err error
	if out.YOptimalObservation, err = ChiSquareYOptimalObservation(r, significance, 0); err != nil {
		return out, err
	}
	if out.YObservationPrior, err = ChiSquareYObservationPrior(r, significance, 0); err != nil {
		return out, err
	}
	if out.YOptimalPrior, err = ChiSquareYOptimalPrior(r, significance, 0); err != nil {
		return out, err
	}
	if out.XOptimalPrior, err = ChiSquareXOptimalPrior(r, significance, 0); err != nil {
		return out, err
	}
	return out, nil
}

// ChiSquareYOptimalObservation tests agreement between the retrieval and
// the measurements (Rodgers eq. 12.9): residual y_op − y_obs against
// S_Ep·(K·S_a·Kᵗ + S_Ep)⁻¹·S_Ep.
func ChiSquareYOptimalObservation(r *retrieval.Retrieval, significance, atol float64) (TestResult, error) {
	rc, ok := converged(r)
	if !ok {
		return nanTest(), nil
	}
	ksak := rc.k.Mul(rc.sA).Mul(rc.k.T())
	inv, err := linalg.Invert(ksak.Add(rc.sEp), true)
	if err != nil {
		return nanTest(), err
	}
	s := rc.sEp.Mul(inv).Mul(rc.sEp)
	return runTest(r, s, rc.yOp.Sub(rc.yObs), significance, atol)
}

// ChiSquareYObservationPrior tests agreement between the observation and
// the prior in measurement space (Rodgers ch. 12.3.3.1): residual
// y_obs − y_a against K·S_a·Kᵗ + S_Ep.
func ChiSquareYObservationPrior(r *retrieval.Retrieval, significance, atol float64) (TestResult, error) {
	rc, ok := converged(r)
	if !ok {
		return nanTest(), nil
	}
	yA, err := r.Problem().YA()
	if err != nil {
		return nanTest(), err
	}
	s := rc.k.Mul(rc.sA).Mul(rc.k.T()).Add(rc.sEp)
	return runTest(r, s, rc.yObs.Sub(yA), significance, atol)
}

// ChiSquareYOptimalPrior tests agreement between the retrieval and the
// prior in measurement space (Rodgers eq. 12.16): residual y_op − y_a
// against K·S_a·Kᵗ·(K·S_a·Kᵗ + S_Ep)⁻¹·K·S_a·Kᵗ.
func ChiSquareYOptimalPrior(r *retrieval.Retrieval, significance, atol float64) (TestResult, error) {
	rc, ok := converged(r)
	if !ok {
		return nanTest(), nil
	}
	yA, err := r.Problem().YA()
	if err != nil {
		return nanTest(), err
	}
	ksak := rc.k.Mul(rc.sA).Mul(rc.k.T())
	inv, err := linalg.Invert(ksak.Add(rc.sEp), true)
	if err != nil {
		return nanTest(), err
	}
	s := ksak.Mul(inv).Mul(ksak)
	return runTest(r, s, rc.yOp.Sub(yA), significance, atol)
}

// ChiSquareXOptimalPrior tests agreement between the retrieval and the
// prior in state space (Rodgers eq. 12.12): residual x_op − x_a against
// S_a·Kᵗ·(K·S_a·Kᵗ + S_Ep)⁻¹·K·S_a.
func ChiSquareXOptimalPrior(r *retrieval.Retrieval, significance, atol float64) (TestResult, error) {
	rc, ok := converged(r)
	if !ok {
		return nanTest(), nil
	}
	inv, err := linalg.Invert(rc.k.Mul(rc.sA).Mul(rc.k.T()).Add(rc.sEp), true)
	if err != nil {
		return nanTest(), err
	}
	s := rc.sA.Mul(rc.k.T()).Mul(inv).Mul(rc.k).Mul(rc.sA)
	return runTest(r, s, rc.xOp.Sub(rc.xA), significance, atol)
}

// runTest evaluates one generalized chi-square against its critical
// value, logging a notice when the covariance is rank deficient (which
// is typically safe to ignore — it only shrinks the DOF).
func runTest(r *retrieval.Retrieval, s *named.Matrix, z *named.Vector, significance, atol float64) (TestResult, error) {
	if significance <= 0 {
		significance = DefaultSignificance
	}
	chi2, dof, err := linalg.GeneralizedChiSquare(s, z, atol)
	if err != nil {
		return nanTest(), err
	}
	if dof < z.Len() {
		r.Problem().Logger().Info("chi-square covariance is rank deficient",
			"rank", dof, "full", z.Len())
	}
	critical := linalg.ChiSquareCritical(significance, dof)
	return TestResult{
		Passed:   chi2 < critical,
		Chi2:     chi2,
		Critical: critical,
		DOF:      dof,
	}, nil
}

// convCtx gathers the converged-state operands shared by the four tests.
type convCtx struct {
	k       *named.Matrix
	sA, sEp *named.Matrix
	xA, xOp *named.Vector
	yObs    *named.Vector
	yOp     *named.Vector
}

// converged extracts the accepted-solution operands, or reports the soft
// precondition failure with a logged notice.
func converged(r *retrieval.Retrieval) (convCtx, bool) {
	if !r.Converged() {
		r.Problem().Logger().Warn("chi-square test skipped: retrieval did not converge")
		return convCtx{}, false
	}
	p := r.Problem()
	res := r.Result()
	rec := r.History()[res.ConvI]
	return convCtx{
		k:    rec.KX,
		sA:   p.SA(),
		sEp:  res.SEp,
		xA:   p.XA(),
		xOp:  res.XOp,
		yObs: p.YObs(),
		yOp:  res.YOp,
	}, true
}

// nanTest is the undefined-result sentinel.
func nanTest() TestResult {
	return TestResult{Passed: false, Chi2: math.NaN(), Critical: math.NaN()}
}
