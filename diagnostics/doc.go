// Package diagnostics provides the statistical tests that qualify a
// converged retrieval (Rodgers, 2000, ch. 5.1 and 12.3):
//
//   - Linearity: eigen-decompose the posterior covariance, perturb the
//     solution along each error pattern, and compare the actual forward
//     response against its first-order prediction, normalized by the
//     measurement noise. Ratios below 1 mean linearization error is
//     smaller than measurement noise — the problem is moderately linear.
//   - ChiSquare: four independent generalized chi-square agreement tests
//     (optimal vs observation, observation vs prior, optimal vs prior in
//     measurement and in state space), each against the critical value
//     at the configured significance and matrix-rank-derived degrees of
//     freedom.
//
// Preconditions are soft: every operation requires a converged
// retrieval, and when called without one it returns explicit NaN
// sentinel values with a logged notice — never a fatal error. Genuine
// failures (a forward-model error, a non-converging eigen
// decomposition) do return errors.
package diagnostics
