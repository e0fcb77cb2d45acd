// SPDX-License-Identifier: MIT

package named_test

import (
	"testing"

	"github.com/katalvlaran/oestim/named"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewMatrix_Validation verifies payload-size and duplicate-name errors.
func TestNewMatrix_Validation(t *testing.T) {
	_, err := named.NewMatrix([]string{"r"}, []string{"c1", "c2"}, []float64{1})
	assert.ErrorIs(t, err, named.ErrLengthMismatch, "1×2 matrix needs 2 values")

	_, err = named.NewMatrix([]string{"r", "r"}, []string{"c"}, nil)
	assert.ErrorIs(t, err, named.ErrDuplicateName, "duplicate row name must error")
}

// TestMatrix_MulAlignsByName verifies that multiplication demands exact
// inner-axis name agreement.
func TestMatrix_MulAlignsByName(t *testing.T) {
	a, err := named.NewMatrix([]string{"y1"}, []string{"x1", "x2"}, []float64{1, 2})
	require.NoError(t, err)
	b, err := named.NewMatrix([]string{"x1", "x2"}, []string{"z1"}, []float64{3, 4})
	require.NoError(t, err)

	ab := a.Mul(b)
	assert.Equal(t, []string{"y1"}, ab.RowNames())
	assert.Equal(t, []string{"z1"}, ab.ColNames())
	assert.Equal(t, 11.0, ab.At(0, 0), "1·3 + 2·4")

	// Reordered inner axis is a different space: must panic.
	bSwap, err := named.NewMatrix([]string{"x2", "x1"}, []string{"z1"}, []float64{4, 3})
	require.NoError(t, err)
	assert.Panics(t, func() { a.Mul(bSwap) }, "reordered inner names must not align")
}

// TestMatrix_MulVec verifies matrix-vector products carry row names.
func TestMatrix_MulVec(t *testing.T) {
	h, err := named.NewMatrix([]string{"y1", "y2"}, []string{"x1"}, []float64{2, 3})
	require.NoError(t, err)
	x, err := named.NewVector([]string{"x1"}, []float64{5})
	require.NoError(t, err)

	y := h.MulVec(x)
	assert.Equal(t, []string{"y1", "y2"}, y.Names())
	assert.Equal(t, 10.0, y.At(0))
	assert.Equal(t, 15.0, y.At(1))
}

// TestMatrix_TransposeSwapsAxes verifies T() swaps name lists with values.
func TestMatrix_TransposeSwapsAxes(t *testing.T) {
	m, err := named.NewMatrix([]string{"r1", "r2"}, []string{"c1"}, []float64{1, 2})
	require.NoError(t, err)

	mt := m.T()
	assert.Equal(t, []string{"c1"}, mt.RowNames())
	assert.Equal(t, []string{"r1", "r2"}, mt.ColNames())
	assert.Equal(t, 2.0, mt.At(0, 1))
}

// TestMatrix_TraceAndDiag verifies the square-only reductions.
func TestMatrix_TraceAndDiag(t *testing.T) {
	m, err := named.NewMatrix([]string{"a", "b"}, []string{"a", "b"},
		[]float64{1, 9, 9, 2})
	require.NoError(t, err)

	assert.Equal(t, 3.0, m.Trace())
	d := m.Diag()
	assert.Equal(t, []float64{1, 2}, d.Data())

	rect, err := named.NewMatrix([]string{"a"}, []string{"b", "c"}, nil)
	require.NoError(t, err)
	assert.Panics(t, func() { rect.Trace() }, "Trace on non-square must panic")
}

// TestMatrix_SelectCols verifies the column split used for K_x / K_b.
func TestMatrix_SelectCols(t *testing.T) {
	k, err := named.NewMatrix([]string{"y1"}, []string{"x1", "b1", "x2"},
		[]float64{1, 2, 3})
	require.NoError(t, err)

	kx, err := k.SelectCols([]string{"x1", "x2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x1", "x2"}, kx.ColNames())
	assert.Equal(t, 1.0, kx.At(0, 0))
	assert.Equal(t, 3.0, kx.At(0, 1))

	_, err = k.SelectCols([]string{"nope"})
	assert.ErrorIs(t, err, named.ErrUnknownName)
}

// TestIdentityAndNaNMatrix verifies the unit and undefined factories.
func TestIdentityAndNaNMatrix(t *testing.T) {
	i := named.Identity([]string{"a", "b"})
	assert.Equal(t, 1.0, i.At(0, 0))
	assert.Equal(t, 0.0, i.At(0, 1))
	assert.Equal(t, 2.0, i.Trace())

	n := named.NaNMatrix([]string{"a"}, []string{"b"})
	assert.True(t, n.HasNaN())
}
