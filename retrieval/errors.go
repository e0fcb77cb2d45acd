// Package retrieval: sentinel error set.
// Construction fails fast with these sentinels (the configuration-error
// class); mid-loop numerical degeneracy surfaces as linalg sentinels via
// the inversion policy. Non-convergence is NOT an error — see StopReason.

package retrieval

import "errors"

var (
	// ErrBadOption is returned when an option or run parameter is
	// nonsensical: nil forward model, non-positive maxIter or convergence
	// factor, a bound on an unknown state name, a gamma schedule longer
	// than maxIter, or an x_0 over the wrong names.
	ErrBadOption = errors.New("retrieval: invalid option")

	// ErrNaNInput is returned when x_a, S_a, S_y or y_obs contains NaN at
	// construction.
	ErrNaNInput = errors.New("retrieval: NaN in prior or observation input")

	// ErrSingularCovariance is returned when S_a, S_y or S_b is rank
	// deficient at construction.
	ErrSingularCovariance = errors.New("retrieval: singular covariance")

	// ErrDisturbance is returned for an unusable Jacobian disturbance:
	// a zero perturbation magnitude (zero-variance prior entry under
	// additive mode, or a multiplicative factor of 1), a multiplicative
	// disturbance on a zero-valued component, an unrecognized mode, or a
	// per-variable map missing a state/parameter name.
	ErrDisturbance = errors.New("retrieval: invalid disturbance configuration")

	// ErrForwardModel is returned when the forward model violates its
	// contract by producing a vector that does not cover the measurement
	// names. Errors returned by the model itself propagate wrapped, not
	// as this sentinel.
	ErrForwardModel = errors.New("retrieval: forward model contract violation")

	// ErrNotConverged is returned by Summary when no converged solution
	// exists to summarize.
	ErrNotConverged = errors.New("retrieval: retrieval did not converge")
)
