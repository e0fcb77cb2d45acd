package retrieval_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/oestim/named"
	"github.com/katalvlaran/oestim/retrieval"
)

// expForward is a mildly nonlinear scalar model, y = exp(x).
func expForward(xb *named.Vector) (*named.Vector, error) {
	return named.NewVector([]string{"y"}, []float64{math.Exp(xb.At(0))})
}

// newExpRetrieval builds the canonical nonlinear test case: weak prior
// at x_a = 0 (sigma 2), strong observation y_obs = 2 (sigma 0.1). The
// posterior is dominated by the measurement, so the solution sits at
// ln 2 up to the prior pull and the finite-difference Jacobian error.
func newExpRetrieval(t *testing.T, opts ...retrieval.Option) *retrieval.Retrieval {
	t.Helper()
	opts = append([]retrieval.Option{quiet()}, opts...)
	p, err := retrieval.NewProblem(
		[]string{"x"}, []float64{0}, []float64{4},
		[]string{"y"}, []float64{2}, []float64{0.01},
		expForward,
		opts...,
	)
	require.NoError(t, err)
	return retrieval.New(p)
}

// TestRun_ConvergesNonlinearScalar verifies the full loop on the exp
// model: convergence with confirmation pass, the measurement-dominated
// solution, near-unit degrees of freedom and a consistent posterior.
func TestRun_ConvergesNonlinearScalar(t *testing.T) {
	r := newExpRetrieval(t)

	conv, err := r.Run(30, nil, 0)
	require.NoError(t, err)
	require.True(t, conv)
	require.True(t, r.Converged())

	res := r.Result()
	assert.Equal(t, retrieval.StopConverged, res.Reason)
	require.GreaterOrEqual(t, res.ConvI, 2, "criterion is skipped on the first pass and confirmed by one more")

	assert.InDelta(t, math.Ln2, res.XOp.At(0), 1e-2)
	assert.InDelta(t, 2.0, res.YOp.At(0), 2e-2)
	assert.InDelta(t, 1.0, res.DGF, 1e-2, "strong measurement retrieves almost one degree of freedom")
	assert.InDelta(t, res.DGF, res.DGFX.At(0), 1e-12, "scalar case: trace equals the single diagonal entry")
	assert.InDelta(t, 0.045, res.XOpErr.At(0), 1e-2)
	assert.InDelta(t, res.XOpErr.At(0)*res.XOpErr.At(0), res.SOp.At(0, 0), 1e-9)
	assert.InDelta(t, 0.01, res.SEp.At(0, 0), 1e-12, "no parameters: S_Ep is S_y")

	// The flag fired on the pass before the accepted one, under the
	// configured threshold len(y)/convergenceFactor = 0.1.
	hist := r.History()
	require.Len(t, hist, res.ConvI+1, "run stops right after the confirmation pass")
	assert.Less(t, math.Abs(hist[res.ConvI-1].D2), 0.1)
	assert.Equal(t, retrieval.DefaultGamma, hist[res.ConvI-1].Gamma)

	// The accepted solution is the state the confirmation pass was
	// evaluated at.
	assert.Equal(t, hist[res.ConvI].X.At(0), res.XOp.At(0))
}

// TestRun_FirstStepMatchesClosedForm verifies one undamped Gauss-Newton
// update on a linear identity model against the textbook solution
// x_a + S_a Kᵗ (K S_a Kᵗ + S_y)⁻¹ (y_obs − K x_a), together with the
// posterior and information diagnostics of that pass.
func TestRun_FirstStepMatchesClosedForm(t *testing.T) {
	// x_a = 0, S_a = 1, y_obs = 2, S_y = 0.01: the closed form gives
	// x_1 = 2/1.01, S = 1/101, A = 100/101.
	r := retrieval.New(newScalarProblem(t, 0, 1, 2, 0.01))

	_, err := r.Run(4, nil, 0)
	require.NoError(t, err)

	hist := r.History()
	require.GreaterOrEqual(t, len(hist), 2)

	first := hist[0]
	assert.Equal(t, 0.0, first.X.At(0), "iteration zero starts at the prior mean")
	assert.Equal(t, retrieval.DefaultGamma, first.Gamma)
	assert.InDelta(t, 1.0, first.KX.At(0, 0), 1e-12)
	assert.InDelta(t, 100.0/101.0, first.DGF, 1e-9)
	assert.InDelta(t, 1.0/101.0, first.SPosterior.At(0, 0), 1e-12)
	assert.InDelta(t, 0.5*math.Log(101), first.H, 1e-9)

	assert.InDelta(t, 2.0/1.01, hist[1].X.At(0), 1e-9,
		"the linear model is solved exactly in one step")
}

// TestRun_LinearFixtureConverges verifies end-to-end convergence on a
// linear problem that is solved exactly in one step: the follow-up pass
// produces a step of exactly zero, which satisfies the criterion at a
// healthy iterate.
func TestRun_LinearFixtureConverges(t *testing.T) {
	r := retrieval.New(newScalarProblem(t, 0, 1, 2, 0.01))

	conv, err := r.Run(10, nil, 0)
	require.NoError(t, err)
	require.True(t, conv)

	res := r.Result()
	assert.Equal(t, retrieval.StopConverged, res.Reason)
	assert.Equal(t, 2, res.ConvI, "one primary step, one flagging pass, one confirmation")
	assert.InDelta(t, 2.0/1.01, res.XOp.At(0), 1e-9)
	assert.InDelta(t, 2.0/1.01, res.YOp.At(0), 1e-9)
	assert.InDelta(t, 100.0/101.0, res.DGF, 1e-9)
}

// crossForward couples two states into two measurements by name, so a
// permuted state axis describes the same model.
func crossForward(xb *named.Vector) (*named.Vector, error) {
	x1, err := xb.Value("x1")
	if err != nil {
		return nil, err
	}
	x2, err := xb.Value("x2")
	if err != nil {
		return nil, err
	}
	return named.NewVector([]string{"y1", "y2"},
		[]float64{x1 + 0.5*x2, 0.2*x1 + x2})
}

// newCrossProblem builds the coupled two-state case over the given state
// name order; prior and covariance payloads must follow that order.
func newCrossProblem(t *testing.T, xNames []string, xA, sA []float64) *retrieval.Problem {
	t.Helper()
	p, err := retrieval.NewProblem(
		xNames, xA, sA,
		[]string{"y1", "y2"}, []float64{1, 2}, []float64{0.04, 0, 0, 0.09},
		crossForward, quiet(),
	)
	require.NoError(t, err)
	return p
}

// TestRun_DGFPermutationInvariance verifies that the retrieved degrees
// of freedom and the solution do not depend on the state name order.
func TestRun_DGFPermutationInvariance(t *testing.T) {
	base := retrieval.New(newCrossProblem(t,
		[]string{"x1", "x2"}, []float64{0.1, -0.2}, []float64{1, 0.3, 0.3, 2}))
	perm := retrieval.New(newCrossProblem(t,
		[]string{"x2", "x1"}, []float64{-0.2, 0.1}, []float64{2, 0.3, 0.3, 1}))

	conv, err := base.Run(10, nil, 0)
	require.NoError(t, err)
	require.True(t, conv)
	conv, err = perm.Run(10, nil, 0)
	require.NoError(t, err)
	require.True(t, conv)

	assert.InDelta(t, base.Result().DGF, perm.Result().DGF, 1e-9,
		"degrees of freedom must not depend on the state ordering")

	for _, name := range []string{"x1", "x2"} {
		b, err := base.Result().XOp.Value(name)
		require.NoError(t, err)
		p, err := perm.Result().XOp.Value(name)
		require.NoError(t, err)
		assert.InDelta(t, b, p, 1e-9, name)
	}
}

// TestRun_PosteriorSymmetricPSD verifies that the posterior covariance
// of a linear two-state problem is symmetric and positive definite.
func TestRun_PosteriorSymmetricPSD(t *testing.T) {
	r := retrieval.New(newCrossProblem(t,
		[]string{"x1", "x2"}, []float64{0.1, -0.2}, []float64{1, 0.3, 0.3, 2}))

	conv, err := r.Run(10, nil, 0)
	require.NoError(t, err)
	require.True(t, conv)

	sOp := r.Result().SOp
	assert.InDelta(t, sOp.At(0, 1), sOp.At(1, 0), 1e-12, "posterior must be symmetric")
	assert.Greater(t, sOp.At(0, 0), 0.0)
	assert.Greater(t, sOp.At(1, 1), 0.0)
	det := sOp.At(0, 0)*sOp.At(1, 1) - sOp.At(0, 1)*sOp.At(1, 0)
	assert.Greater(t, det, 0.0, "2×2 posterior must be positive definite")
}

// TestRun_RepairedStepDoesNotConverge verifies that a zero step produced
// by the bound repair never satisfies the criterion: the state is pinned
// to the prior, not solved.
func TestRun_RepairedStepDoesNotConverge(t *testing.T) {
	p := newScalarProblem(t, 1, 1, 0, 0.01,
		retrieval.WithLowerLimits(map[string]float64{"x": 0.9995}))
	r := retrieval.New(p)

	conv, err := r.Run(6, nil, 0)
	require.NoError(t, err)
	assert.False(t, conv)
	assert.Equal(t, retrieval.StopMaxIterations, r.Result().Reason)
	for i, rec := range r.History()[1:] {
		assert.Equal(t, 1.0, rec.X.At(0), "iteration %d must re-enter at the prior", i+1)
	}
}

// TestNew_ResultSentinels verifies the pre-Run result shape: NaN
// sentinels everywhere, no accepted index, no terminal state.
func TestNew_ResultSentinels(t *testing.T) {
	r := newExpRetrieval(t)

	res := r.Result()
	assert.False(t, res.Converged)
	assert.Equal(t, retrieval.StopNone, res.Reason)
	assert.Equal(t, -1, res.ConvI)
	assert.True(t, res.XOp.HasNaN())
	assert.True(t, res.YOp.HasNaN())
	assert.True(t, res.SOp.HasNaN())
	assert.True(t, math.IsNaN(res.DGF))

	_, err := r.Summary()
	assert.ErrorIs(t, err, retrieval.ErrNotConverged)
}

// TestRun_BadRunParameters verifies the run-parameter error class.
func TestRun_BadRunParameters(t *testing.T) {
	r := newExpRetrieval(t)
	_, err := r.Run(0, nil, 0)
	assert.ErrorIs(t, err, retrieval.ErrBadOption, "non-positive iteration budget")

	r = newExpRetrieval(t, retrieval.WithGammaSchedule([]float64{10, 5, 1}))
	_, err = r.Run(2, nil, 0)
	assert.ErrorIs(t, err, retrieval.ErrBadOption, "gamma schedule longer than the budget")

	r = newExpRetrieval(t)
	wrong, err2 := named.NewVector([]string{"z"}, []float64{0})
	require.NoError(t, err2)
	_, err = r.Run(10, wrong, 0)
	assert.ErrorIs(t, err, retrieval.ErrBadOption, "seed over the wrong axis")
}

// TestRun_SeedOverride verifies that an explicit x_0 replaces the prior
// mean as the starting state.
func TestRun_SeedOverride(t *testing.T) {
	r := newExpRetrieval(t)
	x0, err := named.NewVector([]string{"x"}, []float64{0.5})
	require.NoError(t, err)

	conv, err := r.Run(30, x0, 0)
	require.NoError(t, err)
	assert.True(t, conv)
	assert.Equal(t, 0.5, r.History()[0].X.At(0))
	assert.InDelta(t, math.Ln2, r.Result().XOp.At(0), 1e-2)
}

// TestRun_GammaSchedule verifies that scheduled damping factors are
// consumed in order, that later iterations run undamped, and that the
// criterion never fires on a damped pass.
func TestRun_GammaSchedule(t *testing.T) {
	r := newExpRetrieval(t, retrieval.WithGammaSchedule([]float64{10, 5, 1}))

	conv, err := r.Run(30, nil, 0)
	require.NoError(t, err)
	require.True(t, conv)

	hist := r.History()
	require.GreaterOrEqual(t, len(hist), 3)
	assert.Equal(t, 10.0, hist[0].Gamma)
	assert.Equal(t, 5.0, hist[1].Gamma)
	assert.Equal(t, 1.0, hist[2].Gamma)
	assert.GreaterOrEqual(t, r.Result().ConvI, 3, "damped passes cannot flag convergence")
}

// TestRun_ConstantModelDegenerate verifies the zero-degrees-of-freedom
// stop: a forward model insensitive to the state terminates the run as
// degenerate, with the full NaN-sentinel result.
func TestRun_ConstantModelDegenerate(t *testing.T) {
	constant := func(xb *named.Vector) (*named.Vector, error) {
		return named.NewVector([]string{"y"}, []float64{1})
	}
	p, err := retrieval.NewProblem(
		[]string{"x"}, []float64{0}, []float64{1},
		[]string{"y"}, []float64{2}, []float64{0.01},
		constant, quiet(),
	)
	require.NoError(t, err)
	r := retrieval.New(p)

	conv, err := r.Run(10, nil, 0)
	require.NoError(t, err)
	assert.False(t, conv)

	res := r.Result()
	assert.Equal(t, retrieval.StopDegenerate, res.Reason)
	assert.Equal(t, -1, res.ConvI)
	assert.True(t, res.XOp.HasNaN())
	assert.True(t, math.IsNaN(res.DGF))

	_, err = r.Summary()
	assert.ErrorIs(t, err, retrieval.ErrNotConverged)
}

// TestRun_TimeBudget verifies the wall-clock stop between iterations.
func TestRun_TimeBudget(t *testing.T) {
	slow := func(xb *named.Vector) (*named.Vector, error) {
		time.Sleep(20 * time.Millisecond)
		return named.NewVector([]string{"y"}, []float64{math.Exp(xb.At(0))})
	}
	p, err := retrieval.NewProblem(
		[]string{"x"}, []float64{0}, []float64{4},
		[]string{"y"}, []float64{2}, []float64{0.01},
		slow, quiet(),
	)
	require.NoError(t, err)
	r := retrieval.New(p)

	conv, err := r.Run(10, nil, time.Millisecond)
	require.NoError(t, err)
	assert.False(t, conv)
	assert.Equal(t, retrieval.StopTimeExceeded, r.Result().Reason)
	assert.Len(t, r.History(), 1, "the budget is checked after every pass")
}

// TestRun_BoundRepairResetsToPrior verifies the per-component repair: an
// update undercutting its lower limit is reset to the prior value, not
// clamped to the bound, and the repaired run reports non-convergence.
func TestRun_BoundRepairResetsToPrior(t *testing.T) {
	p := newScalarProblem(t, 1, 1, 0, 0.01,
		retrieval.WithLowerLimits(map[string]float64{"x": 0.9}))
	r := retrieval.New(p)

	conv, err := r.Run(2, nil, 0)
	require.NoError(t, err)
	assert.False(t, conv, "a flag on the final pass is never confirmed")
	assert.Equal(t, retrieval.StopMaxIterations, r.Result().Reason)

	hist := r.History()
	require.Len(t, hist, 2)
	// The unconstrained update (≈ 0.01) violates the limit, so the state
	// re-enters at the prior value.
	assert.Equal(t, 1.0, hist[1].X.At(0))
}

// TestRun_ForwardModelFailure verifies error propagation for a failing
// and for a contract-violating forward model.
func TestRun_ForwardModelFailure(t *testing.T) {
	errBoom := errors.New("boom")
	failing := func(xb *named.Vector) (*named.Vector, error) { return nil, errBoom }
	p, err := retrieval.NewProblem(
		[]string{"x"}, []float64{0}, []float64{1},
		[]string{"y"}, []float64{1}, []float64{1},
		failing, quiet(),
	)
	require.NoError(t, err)
	_, err = retrieval.New(p).Run(10, nil, 0)
	assert.ErrorIs(t, err, errBoom)

	vanishing := func(xb *named.Vector) (*named.Vector, error) { return nil, nil }
	p, err = retrieval.NewProblem(
		[]string{"x"}, []float64{0}, []float64{1},
		[]string{"y"}, []float64{1}, []float64{1},
		vanishing, quiet(),
	)
	require.NoError(t, err)
	_, err = retrieval.New(p).Run(10, nil, 0)
	assert.ErrorIs(t, err, retrieval.ErrForwardModel)
}

// TestRun_ParameterPropagation verifies that parameter uncertainty
// inflates the effective measurement covariance: S_Ep = S_y + K_b S_b K_bᵗ.
func TestRun_ParameterPropagation(t *testing.T) {
	// y = x + b + 0.01 x², with b known only to within S_b.
	fwd := func(xb *named.Vector) (*named.Vector, error) {
		x := xb.At(0)
		b := xb.At(1)
		return named.NewVector([]string{"y"}, []float64{x + b + 0.01*x*x})
	}
	p, err := retrieval.NewProblem(
		[]string{"x"}, []float64{0}, []float64{4},
		[]string{"y"}, []float64{2}, []float64{0.01},
		fwd,
		quiet(),
		retrieval.WithParameters([]string{"b"}, []float64{0.5}, []float64{0.03}),
	)
	require.NoError(t, err)
	r := retrieval.New(p)

	conv, err := r.Run(30, nil, 0)
	require.NoError(t, err)
	require.True(t, conv)

	res := r.Result()
	assert.InDelta(t, 0.04, res.SEp.At(0, 0), 1e-4, "K_b ≈ 1, so S_Ep ≈ S_y + S_b")
	assert.InDelta(t, 1.48, res.XOp.At(0), 0.1)
	assert.InDelta(t, 0.03, p.BPErr().At(0)*p.BPErr().At(0), 1e-12)

	sum, err := r.Summary()
	require.NoError(t, err)
	assert.Contains(t, sum, "b_p")
	assert.Contains(t, sum, "S_b")
}

// TestRun_Rerun verifies that a second Run recomputes everything from
// scratch and reproduces the deterministic result.
func TestRun_Rerun(t *testing.T) {
	r := newExpRetrieval(t)

	_, err := r.Run(30, nil, 0)
	require.NoError(t, err)
	firstX := r.Result().XOp.At(0)
	firstN := len(r.History())

	conv, err := r.Run(30, nil, 0)
	require.NoError(t, err)
	assert.True(t, conv)
	assert.Equal(t, firstX, r.Result().XOp.At(0))
	assert.Equal(t, firstN, len(r.History()))
}

// TestRun_MaxIterationsSentinels verifies the not-converged result shape
// when the iteration budget runs out.
func TestRun_MaxIterationsSentinels(t *testing.T) {
	r := newExpRetrieval(t)

	conv, err := r.Run(1, nil, 0)
	require.NoError(t, err)
	assert.False(t, conv, "the criterion is skipped on the only pass")

	res := r.Result()
	assert.Equal(t, retrieval.StopMaxIterations, res.Reason)
	assert.Equal(t, -1, res.ConvI)
	assert.True(t, res.XOp.HasNaN())
	assert.True(t, res.SOp.HasNaN())
	assert.True(t, math.IsNaN(res.DGF))
}

// TestSummary_Keys verifies the plain-data summary of a converged run.
func TestSummary_Keys(t *testing.T) {
	r := newExpRetrieval(t, retrieval.WithTruth([]float64{math.Ln2}))
	_, err := r.Run(30, nil, 0)
	require.NoError(t, err)
	require.True(t, r.Converged())

	sum, err := r.Summary()
	require.NoError(t, err)
	for _, key := range []string{
		"x_a", "x_a_err", "S_a", "x_op", "x_op_err", "S_op", "dgf_x",
		"y_obs", "S_y", "y_op", "S_ep", "dgf", "convergedIteration", "x_truth",
	} {
		assert.Contains(t, sum, key)
	}
	assert.Equal(t, r.Result().ConvI, sum["convergedIteration"])
	assert.NotContains(t, sum, "b_p", "no parameters were configured")
}
