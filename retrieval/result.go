// Package retrieval: the plain-data summary of a converged run.
// This is the persistence surface: everything here is data — the forward
// model is deliberately never part of it and must be re-supplied by the
// caller when a summary is restored elsewhere.

package retrieval

// Summary collects the converged solution and its inputs as a plain-data
// map: named vectors/matrices (deep copies) and scalars, keyed by the
// conventional Rodgers names (x_a, S_a, x_op, S_op, dgf, ...). Returns
// ErrNotConverged when no converged solution exists.
func (r *Retrieval) Summary() (map[string]any, error) {
	if !r.res.Converged {
		return nil, ErrNotConverged
	}
	p := r.prob

	out := map[string]any{
		"x_a":                p.xA.Clone(),
		"x_a_err":            p.xAErr.Clone(),
		"S_a":                p.sA.Clone(),
		"x_op":               r.res.XOp.Clone(),
		"x_op_err":           r.res.XOpErr.Clone(),
		"S_op":               r.res.SOp.Clone(),
		"dgf_x":              r.res.DGFX.Clone(),
		"y_obs":              p.yObs.Clone(),
		"S_y":                p.sY.Clone(),
		"y_op":               r.res.YOp.Clone(),
		"S_ep":               r.res.SEp.Clone(),
		"dgf":                r.res.DGF,
		"convergedIteration": r.res.ConvI,
	}
	if p.xTruth != nil {
		out["x_truth"] = p.xTruth.Clone()
	}
	if p.HasParameters() {
		out["b_p"] = p.bP.Clone()
		out["b_p_err"] = p.bPErr.Clone()
		out["S_b"] = p.sB.Clone()
	}
	return out, nil
}
