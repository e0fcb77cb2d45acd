// Package retrieval: finite-difference Jacobian estimation.
// One forward evaluation per perturbed variable; the derivative column is
// (perturbed − base)/magnitude. Unresolvable sensitivities (NaN or ±Inf
// entries) are mapped to exactly zero — an explicit "zero sensitivity"
// policy rather than letting undefined values leak into the update.

package retrieval

import (
	"fmt"
	"math"

	"github.com/katalvlaran/oestim/named"
)

// Jacobian estimates the sensitivity of the forward model around xb, the
// concatenated state+parameter point, given its base evaluation y.
// The result is split by column origin: KX over the state names, KB over
// the parameter names (zero-size without parameters).
//
// Perturbation per variable, resolved from the configured Disturbance:
//   - Additive:       perturbed = value + factor·sqrt(prior variance);
//     a zero magnitude (zero-variance prior entry) is an undefined
//     derivative and fails with ErrDisturbance.
//   - Multiplicative: perturbed = value·factor; a zero-valued component
//     or a factor of 1 fails with ErrDisturbance.
//
// The per-variable evaluations are independent; assembly is name-indexed,
// so their order never affects the result.
func (p *Problem) Jacobian(xb, y *named.Vector) (kx, kb *named.Matrix, err error) {
	xbVars := p.xbNames()
	if !namesEqual(xb.Names(), xbVars) {
		return nil, nil, fmt.Errorf("retrieval: Jacobian point: %w", named.ErrNameMismatch)
	}
	xbErr, err := p.xAErr.Concat(p.bPErr)
	if err != nil {
		return nil, nil, fmt.Errorf("retrieval: prior sigma concat: %w", err)
	}

	if kx, err = named.NewMatrix(p.yNames, p.xNames, nil); err != nil {
		return nil, nil, err
	}
	if kb, err = named.NewMatrix(p.yNames, p.bNames, nil); err != nil {
		return nil, nil, err
	}

	for k, name := range xbVars {
		factor, _ := p.dist.factor(name) // presence validated at construction
		value := xb.At(k)

		var perturbed, magnitude float64
		switch p.dist.mode {
		case Additive:
			magnitude = factor * xbErr.At(k)
			perturbed = value + magnitude
		case Multiplicative:
			if value == 0 {
				return nil, nil, fmt.Errorf(
					"%w: multiplicative disturbance on zero-valued %q", ErrDisturbance, name)
			}
			magnitude = value * (factor - 1)
			perturbed = value * factor
		}
		if magnitude == 0 {
			return nil, nil, fmt.Errorf(
				"%w: zero perturbation magnitude for %q", ErrDisturbance, name)
		}

		point := xb.Clone()
		point.Set(k, perturbed)
		yDist, err := p.eval(point)
		if err != nil {
			return nil, nil, err
		}

		dst, col := kx, k
		if k >= len(p.xNames) {
			dst, col = kb, k-len(p.xNames)
		}
		for row := range p.yNames {
			deriv := (yDist.At(row) - y.At(row)) / magnitude
			if math.IsNaN(deriv) || math.IsInf(deriv, 0) {
				deriv = 0
			}
			dst.Set(row, col, deriv)
		}
	}

	return kx, kb, nil
}
