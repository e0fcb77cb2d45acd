// SPDX-License-Identifier: MIT
// Package named: the Matrix primitive.
// A Matrix binds row names × column names to a gonum Dense. Multiplication
// requires the inner name sequences to match exactly; there is no silent
// positional fallback.

package named

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a dense matrix whose rows and columns are addressed by
// ordered, unique name lists. Zero rows or columns are valid and
// represent an empty axis (e.g. the parameter block of a problem with no
// parameter variables).
type Matrix struct {
	rowNames []string
	colNames []string
	rowIndex map[string]int
	colIndex map[string]int
	data     *mat.Dense
}

// NewMatrix builds a Matrix from row/column names and a row-major flat
// payload of len(rows)·len(cols) values. A nil payload yields zeros.
// Returns ErrDuplicateName or ErrLengthMismatch on invalid input.
func NewMatrix(rowNames, colNames []string, data []float64) (*Matrix, error) {
	rIdx, err := buildIndex(rowNames)
	if err != nil {
		return nil, err
	}
	cIdx, err := buildIndex(colNames)
	if err != nil {
		return nil, err
	}
	r, c := len(rowNames), len(colNames)
	if data != nil && len(data) != r*c {
		return nil, fmt.Errorf("%w: %d×%d matrix, %d values",
			ErrLengthMismatch, r, c, len(data))
	}
	m := &Matrix{
		rowNames: append([]string(nil), rowNames...),
		colNames: append([]string(nil), colNames...),
		rowIndex: rIdx,
		colIndex: cIdx,
	}
	if r > 0 && c > 0 {
		if data == nil {
			m.data = mat.NewDense(r, c, nil)
		} else {
			m.data = mat.NewDense(r, c, append([]float64(nil), data...))
		}
	}
	return m, nil
}

// Identity returns the identity matrix over names × names.
// names must be unique; a duplicate panics (sentinel/unit factories are
// only fed already-validated axes).
func Identity(names []string) *Matrix {
	m, err := NewMatrix(names, names, nil)
	if err != nil {
		panic(err)
	}
	for i := range names {
		m.data.Set(i, i, 1)
	}
	return m
}

// NaNMatrix returns a matrix over rowNames × colNames with every entry
// NaN — the explicit "undefined" sentinel for degraded numeric results.
// Duplicate names panic, as in Identity.
func NaNMatrix(rowNames, colNames []string) *Matrix {
	m, err := NewMatrix(rowNames, colNames, nil)
	if err != nil {
		panic(err)
	}
	r, c := len(rowNames), len(colNames)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.data.Set(i, j, math.NaN())
		}
	}
	return m
}

// Rows reports the number of named rows.
func (m *Matrix) Rows() int { return len(m.rowNames) }

// Cols reports the number of named columns.
func (m *Matrix) Cols() int { return len(m.colNames) }

// RowNames returns a copy of the ordered row-name list.
func (m *Matrix) RowNames() []string { return append([]string(nil), m.rowNames...) }

// ColNames returns a copy of the ordered column-name list.
func (m *Matrix) ColNames() []string { return append([]string(nil), m.colNames...) }

// At returns the value at row i, column j.
func (m *Matrix) At(i, j int) float64 { return m.data.At(i, j) }

// Set overwrites the value at row i, column j.
func (m *Matrix) Set(i, j int, val float64) { m.data.Set(i, j, val) }

// Value looks an entry up by row and column name.
// Returns ErrUnknownName when either name is absent.
func (m *Matrix) Value(rowName, colName string) (float64, error) {
	i, ok := m.rowIndex[rowName]
	if !ok {
		return 0, fmt.Errorf("%w: row %q", ErrUnknownName, rowName)
	}
	j, ok := m.colIndex[colName]
	if !ok {
		return 0, fmt.Errorf("%w: column %q", ErrUnknownName, colName)
	}
	return m.data.At(i, j), nil
}

// Raw exposes the backing Dense for read-only interop with gonum.
// Callers must not mutate it. Nil for a zero-size Matrix.
func (m *Matrix) Raw() *mat.Dense { return m.data }

// Clone returns an independent deep copy.
func (m *Matrix) Clone() *Matrix {
	out := &Matrix{
		rowNames: append([]string(nil), m.rowNames...),
		colNames: append([]string(nil), m.colNames...),
		rowIndex: make(map[string]int, len(m.rowIndex)),
		colIndex: make(map[string]int, len(m.colIndex)),
	}
	for k, i := range m.rowIndex {
		out.rowIndex[k] = i
	}
	for k, i := range m.colIndex {
		out.colIndex[k] = i
	}
	if m.data != nil {
		d := &mat.Dense{}
		d.CloneFrom(m.data)
		out.data = d
	}
	return out
}

// T returns the transpose; row and column name lists swap.
func (m *Matrix) T() *Matrix {
	out, err := NewMatrix(m.colNames, m.rowNames, nil)
	if err != nil {
		panic(err) // names already validated at construction
	}
	if m.data != nil {
		out.data.Copy(m.data.T())
	}
	return out
}

// Mul returns m·o. The column names of m must equal the row names of o
// exactly (same order); a mismatch panics with ErrNameMismatch. The
// result lives over m's rows × o's columns.
func (m *Matrix) Mul(o *Matrix) *Matrix {
	mustSameNames("named: Mul inner axis", m.colNames, o.rowNames)
	out, err := NewMatrix(m.rowNames, o.colNames, nil)
	if err != nil {
		panic(err)
	}
	out.data.Mul(m.data, o.data)
	return out
}

// MulVec returns m·v. The column names of m must equal v's names exactly;
// a mismatch panics with ErrNameMismatch. The result is named by m's rows.
func (m *Matrix) MulVec(v *Vector) *Vector {
	mustSameNames("named: MulVec inner axis", m.colNames, v.names)
	raw := mat.NewVecDense(len(m.rowNames), nil)
	raw.MulVec(m.data, v.data)
	out, err := NewVector(m.rowNames, rawSlice(raw))
	if err != nil {
		panic(err)
	}
	return out
}

// Add returns m + o; both axes must match exactly or the call panics with
// ErrNameMismatch.
func (m *Matrix) Add(o *Matrix) *Matrix { return m.addSub(o, 1) }

// Sub returns m − o; both axes must match exactly or the call panics with
// ErrNameMismatch.
func (m *Matrix) Sub(o *Matrix) *Matrix { return m.addSub(o, -1) }

func (m *Matrix) addSub(o *Matrix, sign float64) *Matrix {
	mustSameNames("named: matrix algebra rows", m.rowNames, o.rowNames)
	mustSameNames("named: matrix algebra cols", m.colNames, o.colNames)
	out := m.Clone()
	r, c := len(m.rowNames), len(m.colNames)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.data.Set(i, j, m.data.At(i, j)+sign*o.data.At(i, j))
		}
	}
	return out
}

// Scale returns f·m.
func (m *Matrix) Scale(f float64) *Matrix {
	out := m.Clone()
	if out.data != nil {
		out.data.Scale(f, m.data)
	}
	return out
}

// Trace returns the sum of diagonal entries. Panics with ErrNonSquare
// when row and column counts differ.
func (m *Matrix) Trace() float64 {
	if len(m.rowNames) != len(m.colNames) {
		panic(fmt.Errorf("named: Trace: %w", ErrNonSquare))
	}
	return mat.Trace(m.data)
}

// Diag returns the diagonal as a Vector named by the rows. Panics with
// ErrNonSquare when row and column counts differ.
func (m *Matrix) Diag() *Vector {
	if len(m.rowNames) != len(m.colNames) {
		panic(fmt.Errorf("named: Diag: %w", ErrNonSquare))
	}
	vals := make([]float64, len(m.rowNames))
	for i := range vals {
		vals[i] = m.data.At(i, i)
	}
	out, err := NewVector(m.rowNames, vals)
	if err != nil {
		panic(err)
	}
	return out
}

// SelectCols returns the sub-matrix holding the requested columns, in the
// requested order, over the same rows. Returns ErrUnknownName when a name
// is not a column of m.
func (m *Matrix) SelectCols(names []string) (*Matrix, error) {
	out, err := NewMatrix(m.rowNames, names, nil)
	if err != nil {
		return nil, err
	}
	for j, n := range names {
		src, ok := m.colIndex[n]
		if !ok {
			return nil, fmt.Errorf("%w: column %q", ErrUnknownName, n)
		}
		for i := range m.rowNames {
			out.data.Set(i, j, m.data.At(i, src))
		}
	}
	return out, nil
}

// HasNaN reports whether any entry is NaN.
func (m *Matrix) HasNaN() bool {
	r, c := len(m.rowNames), len(m.colNames)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.IsNaN(m.data.At(i, j)) {
				return true
			}
		}
	}
	return false
}

// rawSlice copies a VecDense into a plain slice.
func rawSlice(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
