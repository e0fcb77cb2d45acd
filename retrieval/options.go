// Package retrieval: functional configuration for problem construction.
// Defaults are documented constants (single source of truth); options are
// validated inside NewProblem so every failure surfaces as a
// configuration-class sentinel at construction, not mid-loop.

package retrieval

import (
	"fmt"
	"log/slog"
)

// DEFAULTS — single source of truth for zero-option behavior.
const (
	// DefaultDisturbanceFactor is the uniform additive Jacobian
	// perturbation: 0.1 of the prior standard deviation per variable.
	DefaultDisturbanceFactor = 0.1

	// DefaultConvergenceFactor scales the convergence threshold: the run
	// converges when |d²| < len(y)/DefaultConvergenceFactor (and γ == 1).
	DefaultConvergenceFactor = 10.0

	// DefaultGamma is the undamped Gauss-Newton damping factor.
	DefaultGamma = 1.0
)

// Option configures problem construction. Options are applied in order;
// validation happens afterwards inside NewProblem.
type Option func(*settings)

// settings collects option state before validation.
type settings struct {
	bNames     []string
	bP         []float64
	sB         []float64
	lower      map[string]float64
	upper      map[string]float64
	dist       Disturbance
	gamma      []float64
	convFactor float64
	truth      []float64
	haveTruth  bool
	lenient    bool
	log        *slog.Logger
}

func defaultSettings() settings {
	return settings{
		dist:       UniformDisturbance(DefaultDisturbanceFactor, Additive),
		convFactor: DefaultConvergenceFactor,
		log:        slog.Default(),
	}
}

// WithParameters attaches the parameter vector b: names, values b_p and
// covariance S_b (row-major, len(names)² values). Parameters are
// propagated into the effective measurement covariance but never
// retrieved. Defining b only makes sense with a non-zero S_b; a constant
// parameter is cheaper hardcoded into the forward model.
func WithParameters(names []string, bP []float64, sB []float64) Option {
	return func(s *settings) {
		s.bNames = append([]string(nil), names...)
		s.bP = append([]float64(nil), bP...)
		s.sB = append([]float64(nil), sB...)
	}
}

// WithLowerLimits sets per-name lower bounds on the state. When an
// update undercuts a bound, that single component is reset to its prior
// value (not to the bound) — a local, logged, non-fatal repair.
func WithLowerLimits(limits map[string]float64) Option {
	return func(s *settings) { s.lower = copyLimits(limits) }
}

// WithUpperLimits sets per-name upper bounds on the state, with the same
// reset-to-prior repair as WithLowerLimits.
func WithUpperLimits(limits map[string]float64) Option {
	return func(s *settings) { s.upper = copyLimits(limits) }
}

// WithDisturbance overrides the Jacobian perturbation specification
// (uniform or per-variable; additive or multiplicative).
func WithDisturbance(d Disturbance) Option {
	return func(s *settings) { s.dist = d }
}

// WithGammaSchedule supplies per-iteration damping factors γ_i for the
// first len(schedule) iterations (Levenberg-Marquardt-style relaxation);
// later iterations run undamped (γ = 1). The schedule must not be longer
// than maxIter at Run time.
func WithGammaSchedule(schedule []float64) Option {
	return func(s *settings) { s.gamma = append([]float64(nil), schedule...) }
}

// WithConvergenceFactor overrides the convergence-sensitivity scalar;
// larger values demand a smaller step to declare convergence.
func WithConvergenceFactor(f float64) Option {
	return func(s *settings) { s.convFactor = f }
}

// WithTruth attaches the known true state over the state names. It is
// used only by validation diagnostics (linearity test against truth),
// never by the retrieval itself.
func WithTruth(xTruth []float64) Option {
	return func(s *settings) {
		s.truth = append([]float64(nil), xTruth...)
		s.haveTruth = true
	}
}

// WithLenientInversion switches mid-loop matrix inversion from strict
// (abort on detected singularity) to lenient (log a warning, substitute
// an all-NaN result and let the loop terminate through the repair or
// non-convergence paths).
func WithLenientInversion() Option {
	return func(s *settings) { s.lenient = true }
}

// WithLogger injects the structured logger used for per-iteration
// progress and non-fatal notices. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *settings) {
		if log != nil {
			s.log = log
		}
	}
}

// validate rejects nonsensical option values after application.
func (s *settings) validate(xNames []string) error {
	if s.convFactor <= 0 {
		return fmt.Errorf("%w: convergence factor must be > 0, got %g",
			ErrBadOption, s.convFactor)
	}
	known := make(map[string]struct{}, len(xNames))
	for _, n := range xNames {
		known[n] = struct{}{}
	}
	for n := range s.lower {
		if _, ok := known[n]; !ok {
			return fmt.Errorf("%w: lower limit on unknown state name %q", ErrBadOption, n)
		}
	}
	for n := range s.upper {
		if _, ok := known[n]; !ok {
			return fmt.Errorf("%w: upper limit on unknown state name %q", ErrBadOption, n)
		}
	}
	return nil
}

func copyLimits(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
