// Package oestim is an iterative Bayesian optimal-estimation toolkit for
// nonlinear inverse problems — retrieve an unknown state from a noisy
// observation through an opaque forward model, with full uncertainty and
// information-content bookkeeping (the Rodgers formalism used in
// atmospheric remote sensing).
//
// 🚀 What is oestim?
//
//	A small, deterministic library that brings together:
//		• Name-aligned vectors & matrices: every axis carries its variable
//		  names, and all algebra aligns by name, never by position
//		• Robust linear algebra: NaN-tolerant inversion, generalized
//		  chi-square on singular covariances
//		• Finite-difference Jacobians around an opaque forward model
//		• A damped Gauss-Newton / Levenberg-Marquardt retrieval engine
//		  with posterior covariance and averaging-kernel bookkeeping
//		• Statistical diagnostics: linearity test and the four Rodgers
//		  chi-square agreement tests
//
// ✨ Why choose oestim?
//
//   - Explicit convergence protocol – provisional convergence is confirmed
//     by one extra pass so the accepted Jacobian, posterior covariance and
//     averaging kernel are evaluated at the solution itself
//   - Robust by policy – transient NaNs degrade to explicit undefined
//     results instead of crashing mid-loop
//   - Deterministic – no global state; each retrieval owns its history
//   - Pure Go on gonum – no cgo, no hidden services
//
// Under the hood, everything is organized under four subpackages:
//
//	named/       — name-indexed Vector and Matrix primitives
//	linalg/      — robust inversion, rank, generalized chi-square
//	retrieval/   — problem setup, Jacobian estimation, iteration engine
//	diagnostics/ — linearity and chi-square agreement tests
//
// Quick sketch of a retrieval:
//
//	prior ──► engine ──► Jacobian ──► damped update ──► converged?
//	              ▲                                        │
//	              └────────── forward model ◄──────────────┘
//
// Dive into the package docs for the exact iteration protocol, the
// convergence criteria, and worked linear examples.
//
//	go get github.com/katalvlaran/oestim
package oestim
