// Package retrieval: public types — the forward-model contract, the
// disturbance variant, the termination state machine, the per-iteration
// record and the finalized result.

package retrieval

import (
	"github.com/katalvlaran/oestim/named"
)

// ForwardModel maps a named vector over the concatenated state+parameter
// names to a named vector over the measurement names. It must be callable
// repeatedly and deterministic for identical input; the engine enforces
// no timeout and performs no retry — a returned error aborts the run.
type ForwardModel func(xb *named.Vector) (*named.Vector, error)

// DisturbanceMode selects how a Jacobian perturbation is applied.
//
//   - Additive       — perturbed = value + factor·sqrt(prior variance).
//   - Multiplicative — perturbed = value·factor; rejected when the
//     unperturbed value is zero (undefined relative step).
type DisturbanceMode int

const (
	// Additive mode perturbs by a fraction of the prior standard deviation.
	Additive DisturbanceMode = iota

	// Multiplicative mode perturbs by scaling the current value.
	Multiplicative
)

// Disturbance is the tagged variant for the Jacobian perturbation size:
// either one factor applied uniformly, or a per-name mapping. Resolved
// once at Jacobian setup; an unusable configuration fails with
// ErrDisturbance.
type Disturbance struct {
	mode    DisturbanceMode
	uniform float64
	perVar  map[string]float64 // nil in the uniform variant
}

// UniformDisturbance applies one factor to every state and parameter
// variable.
func UniformDisturbance(factor float64, mode DisturbanceMode) Disturbance {
	return Disturbance{mode: mode, uniform: factor}
}

// PerVariableDisturbance applies a per-name factor. Every state and
// parameter name must be present in factors; a missing name fails problem
// construction with ErrDisturbance.
func PerVariableDisturbance(factors map[string]float64, mode DisturbanceMode) Disturbance {
	m := make(map[string]float64, len(factors))
	for k, v := range factors {
		m[k] = v
	}
	return Disturbance{mode: mode, perVar: m}
}

// Mode reports the perturbation mode of the variant.
func (d Disturbance) Mode() DisturbanceMode { return d.mode }

// factor resolves the perturbation factor for name.
func (d Disturbance) factor(name string) (float64, bool) {
	if d.perVar == nil {
		return d.uniform, true
	}
	f, ok := d.perVar[name]
	return f, ok
}

// StopReason is the terminal state of a retrieval run. Non-convergence
// reasons are normal outcomes, not errors.
type StopReason int

const (
	// StopNone: Run has not terminated (initial state).
	StopNone StopReason = iota

	// StopConverged: the convergence criterion fired and was confirmed by
	// one extra pass evaluated at the accepted state.
	StopConverged

	// StopMaxIterations: the iteration budget was exhausted.
	StopMaxIterations

	// StopTimeExceeded: the wall-clock budget was exhausted between
	// iterations.
	StopTimeExceeded

	// StopDegenerate: zero degrees of freedom for signal — the retrieval
	// cannot extract information and stops.
	StopDegenerate
)

// String implements fmt.Stringer for log and test output.
func (s StopReason) String() string {
	switch s {
	case StopNone:
		return "none"
	case StopConverged:
		return "converged"
	case StopMaxIterations:
		return "max iterations reached"
	case StopTimeExceeded:
		return "time exceeded"
	case StopDegenerate:
		return "degenerate (zero degrees of freedom)"
	default:
		return "unknown"
	}
}

// IterationRecord is the immutable snapshot of one engine pass. X and Y
// are the state entering the iteration and its forward evaluation; all
// other fields are the products computed at that point. Records are
// append-only and never mutated after creation.
type IterationRecord struct {
	// X is the state vector entering this iteration.
	X *named.Vector
	// Y is the forward-model evaluation at X.
	Y *named.Vector
	// KX is the Jacobian block over the state columns.
	KX *named.Matrix
	// KB is the Jacobian block over the parameter columns (zero-size
	// when the problem has no parameters).
	KB *named.Matrix
	// SPosterior is the posterior covariance of the damped estimator.
	SPosterior *named.Matrix
	// A is the averaging kernel.
	A *named.Matrix
	// DGF is trace(A), the degrees of freedom for signal.
	DGF float64
	// H is the Shannon information content −½·log det(I−A).
	H float64
	// D2 is the Mahalanobis convergence statistic under the posterior
	// metric.
	D2 float64
	// Gamma is the damping factor used in this iteration.
	Gamma float64
}

// Result is the read-only view derived once at termination. When the run
// did not converge, ConvI is -1 and every derived field is an explicit
// NaN sentinel rather than a partial computation.
type Result struct {
	// Converged reports whether the convergence criterion fired and was
	// confirmed.
	Converged bool
	// Reason is the terminal state of the run.
	Reason StopReason
	// ConvI is the history index of the accepted solution, -1 when not
	// converged.
	ConvI int
	// XOp is the retrieved optimal state.
	XOp *named.Vector
	// YOp is the forward-model evaluation at XOp.
	YOp *named.Vector
	// SOp is the posterior covariance at the solution.
	SOp *named.Matrix
	// XOpErr is sqrt(diag(SOp)), the 1-sigma solution uncertainty.
	XOpErr *named.Vector
	// DGF is the total degrees of freedom for signal at the solution.
	DGF float64
	// DGFX is diag(A), the per-variable degrees of freedom.
	DGFX *named.Vector
	// SEp is the effective measurement covariance recomputed at the
	// solution.
	SEp *named.Matrix
}
