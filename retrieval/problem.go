// Package retrieval: problem construction and validation.
// A Problem is the immutable bundle of priors, observation, covariances,
// forward model and configuration. Everything user-supplied is validated
// here, fail-fast, so the iteration loop only ever faces numerical
// trouble (which has its own degradation policy), never bad input.

package retrieval

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/katalvlaran/oestim/linalg"
	"github.com/katalvlaran/oestim/named"
)

// Problem is an immutable retrieval setup. Construct with NewProblem;
// accessors return internal values that callers must treat as read-only.
type Problem struct {
	xNames []string
	yNames []string
	bNames []string

	xA    *named.Vector
	xAErr *named.Vector
	sA    *named.Matrix
	yObs  *named.Vector
	sY    *named.Matrix
	bP    *named.Vector
	bPErr *named.Vector
	sB    *named.Matrix

	xTruth *named.Vector // nil unless supplied

	lower      map[string]float64
	upper      map[string]float64
	dist       Disturbance
	gamma      []float64
	convFactor float64
	strict     bool

	forward ForwardModel
	log     *slog.Logger

	yA *named.Vector // lazy cache of the forward evaluation at the prior
}

// NewProblem validates and assembles a retrieval problem.
//
// xNames/yNames order the state and measurement axes; xA, yObs are values
// aligned to them; sA, sY are row-major square covariances over the same
// names. Matrix payloads are flat row-major, len(names)² values.
//
// Fail-fast validation (the configuration-error class):
//   - nil forward model, bad lengths, duplicate names;
//   - NaN in x_a, S_a, S_y or y_obs (ErrNaNInput);
//   - rank-deficient S_a, S_y, or S_b (ErrSingularCovariance);
//   - unusable disturbance specification (ErrDisturbance);
//   - bounds or truth over unknown names (ErrBadOption).
func NewProblem(
	xNames []string, xA, sA []float64,
	yNames []string, yObs, sY []float64,
	forward ForwardModel,
	opts ...Option,
) (*Problem, error) {
	if forward == nil {
		return nil, fmt.Errorf("%w: nil forward model", ErrBadOption)
	}

	set := defaultSettings()
	for _, opt := range opts {
		opt(&set)
	}
	if err := set.validate(xNames); err != nil {
		return nil, err
	}

	p := &Problem{
		xNames:     append([]string(nil), xNames...),
		yNames:     append([]string(nil), yNames...),
		bNames:     set.bNames,
		lower:      set.lower,
		upper:      set.upper,
		dist:       set.dist,
		gamma:      set.gamma,
		convFactor: set.convFactor,
		strict:     !set.lenient,
		forward:    forward,
		log:        set.log,
	}

	var err error
	if p.xA, err = named.NewVector(xNames, xA); err != nil {
		return nil, fmt.Errorf("retrieval: x_a: %w", err)
	}
	if p.sA, err = named.NewMatrix(xNames, xNames, sA); err != nil {
		return nil, fmt.Errorf("retrieval: S_a: %w", err)
	}
	if p.yObs, err = named.NewVector(yNames, yObs); err != nil {
		return nil, fmt.Errorf("retrieval: y_obs: %w", err)
	}
	if p.sY, err = named.NewMatrix(yNames, yNames, sY); err != nil {
		return nil, fmt.Errorf("retrieval: S_y: %w", err)
	}
	if p.bP, err = named.NewVector(set.bNames, set.bP); err != nil {
		return nil, fmt.Errorf("retrieval: b_p: %w", err)
	}
	if p.sB, err = named.NewMatrix(set.bNames, set.bNames, padEmpty(set.sB)); err != nil {
		return nil, fmt.Errorf("retrieval: S_b: %w", err)
	}

	if p.xA.HasNaN() || p.sA.HasNaN() || p.sY.HasNaN() || p.yObs.HasNaN() {
		return nil, ErrNaNInput
	}

	if err = requireFullRank(p.sA, "S_a"); err != nil {
		return nil, err
	}
	if err = requireFullRank(p.sY, "S_y"); err != nil {
		return nil, err
	}
	if len(set.bNames) > 0 {
		if err = requireFullRank(p.sB, "S_b"); err != nil {
			return nil, err
		}
	}

	if err = p.validateDisturbance(); err != nil {
		return nil, err
	}

	p.xAErr = sqrtDiag(p.sA)
	p.bPErr = sqrtDiag(p.sB)

	if set.haveTruth {
		if p.xTruth, err = named.NewVector(xNames, set.truth); err != nil {
			return nil, fmt.Errorf("%w: x_truth: %v", ErrBadOption, err)
		}
	}

	return p, nil
}

// validateDisturbance resolves the disturbance variant against the
// concatenated state+parameter names, fail-fast.
func (p *Problem) validateDisturbance() error {
	if p.dist.mode != Additive && p.dist.mode != Multiplicative {
		return fmt.Errorf("%w: unrecognized mode %d", ErrDisturbance, p.dist.mode)
	}
	for _, n := range p.xbNames() {
		if _, ok := p.dist.factor(n); !ok {
			return fmt.Errorf("%w: no factor for %q", ErrDisturbance, n)
		}
	}
	return nil
}

// xbNames returns the concatenated state+parameter name order.
func (p *Problem) xbNames() []string {
	return append(append([]string(nil), p.xNames...), p.bNames...)
}

// XNames returns the ordered state names.
func (p *Problem) XNames() []string { return append([]string(nil), p.xNames...) }

// YNames returns the ordered measurement names.
func (p *Problem) YNames() []string { return append([]string(nil), p.yNames...) }

// BNames returns the ordered parameter names (empty without parameters).
func (p *Problem) BNames() []string { return append([]string(nil), p.bNames...) }

// HasParameters reports whether a parameter vector b was configured.
func (p *Problem) HasParameters() bool { return len(p.bNames) > 0 }

// XA returns the prior state mean (read-only).
func (p *Problem) XA() *named.Vector { return p.xA }

// XAErr returns sqrt(diag(S_a)), the prior 1-sigma uncertainty (read-only).
func (p *Problem) XAErr() *named.Vector { return p.xAErr }

// SA returns the prior covariance (read-only).
func (p *Problem) SA() *named.Matrix { return p.sA }

// YObs returns the observed measurement vector (read-only).
func (p *Problem) YObs() *named.Vector { return p.yObs }

// SY returns the measurement covariance (read-only).
func (p *Problem) SY() *named.Matrix { return p.sY }

// BP returns the parameter vector (zero-size without parameters).
func (p *Problem) BP() *named.Vector { return p.bP }

// BPErr returns sqrt(diag(S_b)) (zero-size without parameters).
func (p *Problem) BPErr() *named.Vector { return p.bPErr }

// SB returns the parameter covariance (zero-size without parameters).
func (p *Problem) SB() *named.Matrix { return p.sB }

// Truth returns the known true state, or nil when none was supplied.
func (p *Problem) Truth() *named.Vector { return p.xTruth }

// Logger returns the problem's structured logger.
func (p *Problem) Logger() *slog.Logger { return p.log }

// EvalState evaluates the forward model at state x with the configured
// parameter vector appended. An error from the model propagates wrapped.
func (p *Problem) EvalState(x *named.Vector) (*named.Vector, error) {
	xb, err := x.Concat(p.bP)
	if err != nil {
		return nil, fmt.Errorf("retrieval: state/parameter concat: %w", err)
	}
	return p.eval(xb)
}

// YA returns the forward-model evaluation at the prior, lazily computed
// once and cached (the model is assumed deterministic).
func (p *Problem) YA() (*named.Vector, error) {
	if p.yA == nil {
		y, err := p.EvalState(p.xA)
		if err != nil {
			return nil, err
		}
		p.yA = y
	}
	return p.yA.Clone(), nil
}

// eval invokes the forward model and realigns its output to the
// measurement name order. A missing measurement name violates the
// collaborator contract (ErrForwardModel).
func (p *Problem) eval(xb *named.Vector) (*named.Vector, error) {
	y, err := p.forward(xb)
	if err != nil {
		return nil, fmt.Errorf("retrieval: forward model: %w", err)
	}
	if y == nil {
		return nil, fmt.Errorf("%w: nil measurement vector", ErrForwardModel)
	}
	if namesEqual(y.Names(), p.yNames) {
		return y, nil
	}
	// Accept any order, realign by name.
	vals := make([]float64, len(p.yNames))
	for i, n := range p.yNames {
		v, err := y.Value(n)
		if err != nil {
			return nil, fmt.Errorf("%w: missing measurement %q", ErrForwardModel, n)
		}
		vals[i] = v
	}
	out, err := named.NewVector(p.yNames, vals)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// requireFullRank rejects a rank-deficient covariance.
func requireFullRank(s *named.Matrix, label string) error {
	rank, err := linalg.Rank(s, 0)
	if err != nil {
		return fmt.Errorf("retrieval: %s: %w", label, err)
	}
	if rank < s.Rows() {
		return fmt.Errorf("%w: %s has rank %d of %d", ErrSingularCovariance,
			label, rank, s.Rows())
	}
	return nil
}

// sqrtDiag returns the elementwise square root of a covariance diagonal.
func sqrtDiag(s *named.Matrix) *named.Vector {
	if s.Rows() == 0 {
		v, _ := named.NewVector(nil, nil)
		return v
	}
	d := s.Diag()
	for i := 0; i < d.Len(); i++ {
		d.Set(i, math.Sqrt(d.At(i)))
	}
	return d
}

// padEmpty maps a nil/empty payload to nil so a zero-size matrix builds
// cleanly.
func padEmpty(data []float64) []float64 {
	if len(data) == 0 {
		return nil
	}
	return data
}

// namesEqual reports exact name-sequence equality.
func namesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
