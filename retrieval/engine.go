// Package retrieval: the iteration state machine.
// Run drives the damped Gauss-Newton loop: Jacobian → effective
// measurement covariance → normal-equations update → bound repair →
// convergence statistic → ordered termination checks. The engine owns an
// append-only IterationRecord history; the finalized Result is derived
// once at termination and recomputed from scratch if Run is invoked
// again.

package retrieval

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/katalvlaran/oestim/linalg"
	"github.com/katalvlaran/oestim/named"
)

// Retrieval is one retrieval engine instance. It owns its iteration
// history exclusively; nothing is shared across instances.
type Retrieval struct {
	prob    *Problem
	records []IterationRecord
	res     Result
}

// New binds an engine to a validated problem.
func New(p *Problem) *Retrieval {
	r := &Retrieval{prob: p}
	r.finalize(false, StopNone, -1)
	return r
}

// Problem returns the underlying problem definition.
func (r *Retrieval) Problem() *Problem { return r.prob }

// Converged reports whether the last Run terminated in the Converged
// state.
func (r *Retrieval) Converged() bool { return r.res.Converged }

// Result returns the finalized view of the last Run. Before any Run, or
// after a non-convergent one, all derived fields are NaN sentinels and
// ConvI is -1.
func (r *Retrieval) Result() Result { return r.res }

// History returns the per-iteration records of the last Run in order.
// The returned slice is a copy; the records themselves are immutable
// snapshots.
func (r *Retrieval) History() []IterationRecord {
	return append([]IterationRecord(nil), r.records...)
}

// Run executes up to maxIter iterations from x0 (the prior mean when
// nil) within the wall-clock budget maxTime (no budget when <= 0).
//
// Returns the convergence flag. A returned error means the run ended
// abnormally: invalid run parameters, a forward-model failure, or a
// strict-mode singular matrix mid-loop. Non-convergence by itself is a
// normal outcome with a nil error; inspect Result().Reason.
//
// Termination checks, in order, after each iteration's update:
//
//	(a) the previous iteration flagged convergence → stop, accepting that
//	    iteration's output state; this confirmation pass exists so the
//	    Jacobian, posterior covariance and averaging kernel of the
//	    accepted solution are evaluated at the converged state;
//	(b) wall-clock budget exhausted → stop, not converged;
//	(c) (skipped on the first iteration) |d²| < len(y)/convergenceFactor
//	    with γ == 1 → flag convergence, keep iterating for the
//	    confirmation pass; a d² of exactly zero counts only when the step
//	    is genuine — no bound/NaN repair this pass and dgf > 0 — since
//	    repair resets and degenerate kernels zero the step without
//	    solving anything;
//	(d) after the second iteration, zero degrees of freedom → stop, not
//	    converged (no information to extract);
//	(e) otherwise continue.
//
// Exhausting maxIter without a stop terminates as MaxIterationsReached
// with converged=false.
func (r *Retrieval) Run(maxIter int, x0 *named.Vector, maxTime time.Duration) (bool, error) {
	p := r.prob
	if maxIter <= 0 {
		return false, fmt.Errorf("%w: maxIter must be > 0, got %d", ErrBadOption, maxIter)
	}
	if len(p.gamma) > maxIter {
		return false, fmt.Errorf("%w: gamma schedule of %d entries exceeds maxIter %d",
			ErrBadOption, len(p.gamma), maxIter)
	}

	// Re-running recomputes everything from scratch.
	r.records = r.records[:0]
	r.res = Result{ConvI: -1}

	start := time.Now()

	sAInv, err := r.invert(p.sA, "S_a")
	if err != nil {
		return false, err
	}

	gam := make([]float64, maxIter)
	for i := range gam {
		gam[i] = DefaultGamma
	}
	copy(gam, p.gamma)

	xCur, err := r.seed(x0)
	if err != nil {
		return false, err
	}
	yCur, err := p.EvalState(xCur)
	if err != nil {
		return false, err
	}

	var (
		converged bool
		reason    = StopNone
		convI     = -1
		yN        = float64(len(p.yNames))
	)

	for i := 0; i < maxIter; i++ {
		xb, err := xCur.Concat(p.bP)
		if err != nil {
			return false, err
		}
		kx, kb, err := p.Jacobian(xb, yCur)
		if err != nil {
			return false, err
		}

		// Effective measurement covariance: parameter uncertainty
		// propagated into measurement space (Rodgers sec. 3.4.3).
		sEp := p.sY.Clone()
		if p.HasParameters() {
			sEp = p.sY.Add(kb.Mul(p.sB).Mul(kb.T()))
		}
		sEpInv, err := r.invert(sEp, "S_Ep")
		if err != nil {
			return false, err
		}

		// Damped normal equations (Turner and Löhnert 2014, eq. 3).
		kxT := kx.T()
		ksk := kxT.Mul(sEpInv).Mul(kx)
		b := sAInv.Scale(gam[i]).Add(ksk)
		bInv, err := r.invert(b, "B")
		if err != nil {
			return false, err
		}

		// Posterior covariance of the damped estimator (eq. 2); reduces
		// to bInv when γ == 1.
		sPost := bInv.Mul(sAInv.Scale(gam[i] * gam[i]).Add(ksk)).Mul(bInv)

		// Gain and averaging kernel (eq. 4).
		g := bInv.Mul(kxT).Mul(sEpInv)
		a := g.Mul(kx)
		dgf := a.Trace()
		h := shannonContent(a)

		// Gauss-Newton step relative to the prior (eq. 1).
		resid := p.yObs.Sub(yCur).Add(kx.MulVec(xCur.Sub(p.xA)))
		xNext := p.xA.Add(g.MulVec(resid))

		yNext, err := p.EvalState(xNext)
		if err != nil {
			return false, err
		}

		repaired := r.repairState(xNext, i)

		// Convergence statistic: Mahalanobis step size under the
		// posterior metric (Rodgers eq. 5.29).
		sPostInv, err := r.invert(sPost, "S_posterior")
		if err != nil {
			return false, err
		}
		dx := xCur.Sub(xNext)
		d2 := dot(dx, sPostInv.MulVec(dx))

		r.records = append(r.records, IterationRecord{
			X: xCur, Y: yCur, KX: kx, KB: kb,
			SPosterior: sPost, A: a,
			DGF: dgf, H: h, D2: d2, Gamma: gam[i],
		})

		progress := []any{
			"elapsed", time.Since(start),
			"iteration", i,
			"dgf", dgf, "of", len(p.xNames),
			"d2", d2,
		}

		if converged {
			// Confirmation pass done: the accepted solution is this
			// iteration's input state, with Jacobian, posterior and
			// averaging kernel evaluated at it.
			convI = i
			reason = StopConverged
			p.log.Info("retrieval converged", progress...)
			break
		}
		if maxTime > 0 && time.Since(start) > maxTime {
			reason = StopTimeExceeded
			p.log.Warn("maximum time exceeded", progress...)
			break
		}
		if i != 0 {
			// An exactly solved problem produces a zero step; a repair
			// reset or a degenerate kernel also does, without solving
			// anything.
			exactStep := d2 == 0 && dgf > 0 && !repaired
			switch {
			case math.Abs(d2) < yN/p.convFactor && gam[i] == DefaultGamma && (d2 != 0 || exactStep):
				converged = true
				p.log.Info("convergence criteria fulfilled", progress...)
			case i > 1 && dgf == 0:
				reason = StopDegenerate
				p.log.Warn("zero degrees of freedom", progress...)
			default:
				p.log.Debug("convergence criteria not fulfilled", progress...)
			}
			if reason == StopDegenerate {
				break
			}
		}

		xCur, yCur = xNext, yNext
	}

	if reason == StopNone {
		// Budget exhausted. A convergence flag without its confirmation
		// pass is not finalized: the accepted solution's Jacobian and
		// posterior were never evaluated at the converged state.
		converged = false
		reason = StopMaxIterations
		p.log.Warn("maximum iterations reached", "iterations", maxIter)
	}
	r.finalize(converged, reason, convI)

	return converged, nil
}

// seed resolves the initial state: x0, or the prior mean when nil.
func (r *Retrieval) seed(x0 *named.Vector) (*named.Vector, error) {
	if x0 == nil {
		return r.prob.xA.Clone(), nil
	}
	if !namesEqual(x0.Names(), r.prob.xNames) {
		return nil, fmt.Errorf("%w: x_0 names do not match the state axis", ErrBadOption)
	}
	return x0.Clone(), nil
}

// repairState applies the per-variable bound/NaN repair: a component
// violating its configured limit, or gone NaN, is reset to its prior
// value (not to the bound). Local and non-fatal; reports whether any
// component was reset.
func (r *Retrieval) repairState(x *named.Vector, iteration int) bool {
	p := r.prob
	repaired := false
	for j, name := range p.xNames {
		v := x.At(j)
		lo, hasLo := p.lower[name]
		hi, hasHi := p.upper[name]
		switch {
		case hasLo && v < lo:
			p.log.Warn("state reset to prior: lower limit undercut",
				"name", name, "value", v, "prior", p.xA.At(j), "iteration", iteration)
			x.Set(j, p.xA.At(j))
			repaired = true
		case hasHi && v > hi:
			p.log.Warn("state reset to prior: upper limit exceeded",
				"name", name, "value", v, "prior", p.xA.At(j), "iteration", iteration)
			x.Set(j, p.xA.At(j))
			repaired = true
		case math.IsNaN(v):
			p.log.Warn("state reset to prior: NaN component",
				"name", name, "prior", p.xA.At(j), "iteration", iteration)
			x.Set(j, p.xA.At(j))
			repaired = true
		}
	}
	return repaired
}

// invert applies the package inversion policy with the problem's strict
// flag: degraded results (NaN input, lenient singularity) are logged and
// used as-is; a strict-mode singularity aborts the run.
func (r *Retrieval) invert(m *named.Matrix, what string) (*named.Matrix, error) {
	inv, err := linalg.Invert(m, r.prob.strict)
	if err != nil {
		if inv == nil {
			return nil, fmt.Errorf("%s: %w", what, err)
		}
		r.prob.log.Warn("matrix inversion degraded", "matrix", what, "reason", err)
	}
	return inv, nil
}

// finalize derives the Result. A converged run reads every field from
// the accepted record; any other termination leaves explicit NaN
// sentinels, never partial computations.
func (r *Retrieval) finalize(converged bool, reason StopReason, convI int) {
	p := r.prob
	if !converged {
		r.res = Result{
			Converged: false,
			Reason:    reason,
			ConvI:     -1,
			XOp:       named.NaNVector(p.xNames),
			YOp:       named.NaNVector(p.yNames),
			SOp:       named.NaNMatrix(p.xNames, p.xNames),
			XOpErr:    named.NaNVector(p.xNames),
			DGF:       math.NaN(),
			DGFX:      named.NaNVector(p.xNames),
			SEp:       named.NaNMatrix(p.yNames, p.yNames),
		}
		return
	}

	rec := r.records[convI]
	sEp := p.sY.Clone()
	if p.HasParameters() {
		sEp = p.sY.Add(rec.KB.Mul(p.sB).Mul(rec.KB.T()))
	}
	r.res = Result{
		Converged: true,
		Reason:    reason,
		ConvI:     convI,
		XOp:       rec.X.Clone(),
		YOp:       rec.Y.Clone(),
		SOp:       rec.SPosterior.Clone(),
		XOpErr:    sqrtDiag(rec.SPosterior),
		DGF:       rec.DGF,
		DGFX:      rec.A.Diag(),
		SEp:       sEp,
	}
}

// shannonContent computes −½·log det(I−A), the Shannon information
// content of the averaging kernel (Rodgers eq. 2.80). NaN when the
// determinant is non-positive or A is degraded.
func shannonContent(a *named.Matrix) float64 {
	iMinusA := named.Identity(a.RowNames()).Sub(a)
	return -0.5 * math.Log(mat.Det(iMinusA.Raw()))
}

// dot returns aᵗ·b over identical name axes.
func dot(a, b *named.Vector) float64 {
	return mat.Dot(a.Raw(), b.Raw())
}
