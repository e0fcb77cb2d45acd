// SPDX-License-Identifier: MIT
// Package named: the Vector primitive.
// A Vector binds an ordered list of unique names to a gonum VecDense of
// the same length. Element order is the name order; alignment between two
// vectors requires identical name sequences.

package named

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Vector is an ordered list of unique names paired with a fixed-size
// numeric array. The zero-size Vector (no names) is valid and represents
// an empty axis, e.g. a retrieval problem without parameter variables.
type Vector struct {
	names []string
	index map[string]int
	data  *mat.VecDense
}

// NewVector builds a Vector from names and values of equal length.
// Returns ErrLengthMismatch when the lengths disagree and ErrDuplicateName
// when a name repeats. values are copied; the caller keeps ownership.
func NewVector(names []string, values []float64) (*Vector, error) {
	if len(names) != len(values) {
		return nil, fmt.Errorf("%w: %d names, %d values",
			ErrLengthMismatch, len(names), len(values))
	}
	idx, err := buildIndex(names)
	if err != nil {
		return nil, err
	}
	v := &Vector{names: append([]string(nil), names...), index: idx}
	if len(values) > 0 {
		v.data = mat.NewVecDense(len(values), append([]float64(nil), values...))
	}
	return v, nil
}

// NaNVector returns a Vector over names with every entry NaN — the
// explicit "undefined" sentinel used for non-convergent results.
// names must be unique; a duplicate panics (programmer error: sentinel
// factories are only fed already-validated axes).
func NaNVector(names []string) *Vector {
	idx, err := buildIndex(names)
	if err != nil {
		panic(err)
	}
	v := &Vector{names: append([]string(nil), names...), index: idx}
	if len(names) > 0 {
		vals := make([]float64, len(names))
		for i := range vals {
			vals[i] = math.NaN()
		}
		v.data = mat.NewVecDense(len(names), vals)
	}
	return v
}

// Len reports the number of named entries.
func (v *Vector) Len() int { return len(v.names) }

// Names returns a copy of the ordered name list.
func (v *Vector) Names() []string { return append([]string(nil), v.names...) }

// Name returns the name at position i.
func (v *Vector) Name(i int) string { return v.names[i] }

// At returns the value at position i.
func (v *Vector) At(i int) float64 { return v.data.AtVec(i) }

// Set overwrites the value at position i.
func (v *Vector) Set(i int, val float64) { v.data.SetVec(i, val) }

// Value looks the entry up by name. Returns ErrUnknownName when the name
// is not on this axis.
func (v *Vector) Value(name string) (float64, error) {
	i, ok := v.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownName, name)
	}
	return v.data.AtVec(i), nil
}

// SetValue overwrites the entry by name. Returns ErrUnknownName when the
// name is not on this axis.
func (v *Vector) SetValue(name string, val float64) error {
	i, ok := v.index[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownName, name)
	}
	v.data.SetVec(i, val)
	return nil
}

// Data returns a copy of the values in name order.
func (v *Vector) Data() []float64 {
	out := make([]float64, len(v.names))
	for i := range out {
		out[i] = v.data.AtVec(i)
	}
	return out
}

// Raw exposes the backing VecDense for read-only interop with gonum.
// Callers must not mutate it. Nil for a zero-size Vector.
func (v *Vector) Raw() *mat.VecDense { return v.data }

// Clone returns an independent deep copy.
func (v *Vector) Clone() *Vector {
	out := &Vector{names: append([]string(nil), v.names...), index: make(map[string]int, len(v.index))}
	for k, i := range v.index {
		out.index[k] = i
	}
	if v.data != nil {
		d := &mat.VecDense{}
		d.CloneFromVec(v.data)
		out.data = d
	}
	return out
}

// Concat appends o after v, producing a new Vector over the combined
// names. Returns ErrDuplicateName when the axes overlap. Concatenation
// with a zero-size operand returns a clone of the other side.
func (v *Vector) Concat(o *Vector) (*Vector, error) {
	if o.Len() == 0 {
		return v.Clone(), nil
	}
	if v.Len() == 0 {
		return o.Clone(), nil
	}
	names := append(v.Names(), o.names...)
	vals := append(v.Data(), o.Data()...)
	return NewVector(names, vals)
}

// Add returns v + o. Panics with ErrNameMismatch when the name sequences
// differ — operands from different spaces must never be combined.
func (v *Vector) Add(o *Vector) *Vector { return v.axpy(o, 1) }

// Sub returns v − o. Panics with ErrNameMismatch when the name sequences
// differ.
func (v *Vector) Sub(o *Vector) *Vector { return v.axpy(o, -1) }

func (v *Vector) axpy(o *Vector, sign float64) *Vector {
	mustSameNames("named: vector algebra", v.names, o.names)
	out := v.Clone()
	for i := range v.names {
		out.data.SetVec(i, v.data.AtVec(i)+sign*o.data.AtVec(i))
	}
	return out
}

// HasNaN reports whether any entry is NaN.
func (v *Vector) HasNaN() bool {
	for i := range v.names {
		if math.IsNaN(v.data.AtVec(i)) {
			return true
		}
	}
	return false
}

// buildIndex validates uniqueness and produces the name→position map.
func buildIndex(names []string) (map[string]int, error) {
	idx := make(map[string]int, len(names))
	for i, n := range names {
		if _, dup := idx[n]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, n)
		}
		idx[n] = i
	}
	return idx, nil
}

// sameNames reports exact name-sequence equality (same names, same order).
func sameNames(a, b []string) bool {
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

// mustSameNames panics with ErrNameMismatch unless a and b are identical
// name sequences. op tags the failing operation for the panic message.
func mustSameNames(op string, a, b []string) {
	if !sameNames(a, b) {
		panic(fmt.Errorf("%s: %w", op, ErrNameMismatch))
	}
}
