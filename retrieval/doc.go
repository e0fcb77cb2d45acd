// Package retrieval implements the iterative Bayesian optimal-estimation
// engine (Rodgers, 2000): given a prior state estimate, a noisy
// observation and an opaque forward model, it retrieves the state that
// best explains the observation while respecting prior uncertainty, and
// keeps full per-iteration posterior-covariance and averaging-kernel
// bookkeeping.
//
// Iteration protocol (damped Gauss-Newton / Levenberg-Marquardt):
//  1. Finite-difference Jacobian K around the current state (Jacobian).
//  2. Effective measurement covariance S_Ep = S_y + K_b·S_b·K_bᵗ.
//  3. Damped normal-equations matrix B = γ·S_a⁻¹ + K_xᵗ·S_Ep⁻¹·K_x.
//  4. Posterior covariance B⁻¹·(γ²·S_a⁻¹ + K_xᵗ·S_Ep⁻¹·K_x)·B⁻¹ —
//     the textbook B⁻¹ when γ=1, and the statistically correct covariance
//     of the damped estimator otherwise.
//  5. Gain G = B⁻¹·K_xᵗ·S_Ep⁻¹, averaging kernel A = G·K_x, degrees of
//     freedom trace(A), information content −½·log det(I−A).
//  6. State update relative to the prior (numerically stabler than a
//     step relative to the current iterate).
//  7. Per-variable bound/NaN repair to the prior value — local, logged,
//     never raised.
//  8. Convergence statistic d² = Δxᵗ·S_posterior⁻¹·Δx and the ordered
//     termination checks, including one confirmation pass after
//     provisional convergence so the accepted Jacobian, posterior
//     covariance and averaging kernel are evaluated at the solution.
//
// Termination is a state machine: Converged, MaxIterationsReached,
// TimeExceeded or DegenerateStop. Non-convergence is a normal outcome,
// not an error; all derived solution fields are then explicit NaN
// sentinels with ConvI() == -1.
//
// The engine is single-threaded and fully synchronous. The only
// suspension point is the forward model; it is never called concurrently
// and an error from it aborts the run (no retry — the forward model is
// the caller's responsibility). Each Retrieval owns its iteration history
// exclusively; nothing is shared across instances.
package retrieval
