// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package batches implements `Batch`, the only concrete value type flowing through a computation graph.
//
// A Batch is a rank-3 array of float64: `Size` matrices, each with `Rows`×`Columns` elements.
// Each matrix is stored as a `*mat.Dense` (gonum), so the usual linear algebra is delegated to gonum.
//
// There are various ways to construct a Batch:
//
//   - New(shape) or Zeros(shape): a Batch filled with zeros.
//   - Ones(shape), Eye(shape), Rand(shape), Xavier(shape): standard initializers.
//   - UniformDistributionVector(n): a single vector with all entries 1/n.
//   - Scalar(v), FromVector(values...), FromMatrix(rows), FromSlices(slices): from Go values. Example:
//
//     b := FromMatrix([][]float64{{1, 2}, {3, 5}, {7, 11}}) // Batch of shape [1, 3, 2]
//
// Batches are meant to be used as values: arithmetic always returns a new Batch. In-place mutation
// (Set, SetMatrix) is available for initializers and for operators building their outputs.
package batches

import (
	"fmt"

	"github.com/eventflow/dualgraph/types/shapes"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrIndexOutOfRange is wrapped by the panics of out-of-bounds accesses to a Batch.
var ErrIndexOutOfRange = errors.New("index out of range")

// ErrSingular is wrapped by the panic of Inverse on a singular matrix.
var ErrSingular = errors.New("singular matrix")

// Batch of Size matrices of Rows×Columns float64 values.
type Batch struct {
	shape  shapes.Shape
	values []*mat.Dense
}

// New returns a Batch of the given shape, filled with zeros.
func New(shape shapes.Shape) *Batch {
	if !shape.Ok() {
		panic(shapes.Mismatch("batches.New(%s): invalid shape", shape))
	}
	b := &Batch{shape: shape, values: make([]*mat.Dense, shape.Size)}
	for ii := range b.values {
		b.values[ii] = mat.NewDense(shape.Rows, shape.Columns, nil)
	}
	return b
}

// Shape of the Batch. It implements shapes.HasShape.
func (b *Batch) Shape() shapes.Shape { return b.shape }

// Size is the number of matrices in the batch.
func (b *Batch) Size() int { return b.shape.Size }

// Rows of each matrix in the batch.
func (b *Batch) Rows() int { return b.shape.Rows }

// Columns of each matrix in the batch.
func (b *Batch) Columns() int { return b.shape.Columns }

func (b *Batch) checkIndex(batchIdx, row, column int) {
	if batchIdx < 0 || batchIdx >= b.shape.Size ||
		row < 0 || row >= b.shape.Rows ||
		column < 0 || column >= b.shape.Columns {
		panic(errors.Wrapf(ErrIndexOutOfRange, "index (%d, %d, %d) out of bounds for Batch%s", batchIdx, row, column, b.shape))
	}
}

func (b *Batch) checkBatchIndex(batchIdx int) {
	if batchIdx < 0 || batchIdx >= b.shape.Size {
		panic(errors.Wrapf(ErrIndexOutOfRange, "batch index %d out of bounds for Batch%s", batchIdx, b.shape))
	}
}

// At returns the element at the given (batchIdx, row, column).
func (b *Batch) At(batchIdx, row, column int) float64 {
	b.checkIndex(batchIdx, row, column)
	return b.values[batchIdx].At(row, column)
}

// Set the element at the given (batchIdx, row, column).
func (b *Batch) Set(batchIdx, row, column int, value float64) {
	b.checkIndex(batchIdx, row, column)
	b.values[batchIdx].Set(row, column, value)
}

// Value returns the first element of the batch. Typically used with scalars, like the output of losses.
func (b *Batch) Value() float64 {
	return b.values[0].At(0, 0)
}

// Matrix returns the matrix at position batchIdx. It is not a copy: changes to it are reflected in the Batch.
func (b *Batch) Matrix(batchIdx int) *mat.Dense {
	b.checkBatchIndex(batchIdx)
	return b.values[batchIdx]
}

// SetMatrix copies the values of m to the matrix at position batchIdx.
// The dimensions of m must match Rows×Columns.
func (b *Batch) SetMatrix(batchIdx int, m mat.Matrix) {
	b.checkBatchIndex(batchIdx)
	rows, columns := m.Dims()
	if rows != b.shape.Rows || columns != b.shape.Columns {
		shapes.PanicMismatch("Batch%s.SetMatrix(%d): matrix has dimensions %dx%d", b.shape, batchIdx, rows, columns)
	}
	b.values[batchIdx].Copy(m)
}

// Column returns a copy of column `column` of the matrix at batchIdx, as a slice.
func (b *Batch) Column(batchIdx, column int) []float64 {
	b.checkIndex(batchIdx, 0, column)
	return mat.Col(nil, column, b.values[batchIdx])
}

// Flat returns a copy of all values: for each matrix in the batch, the values packed column by column.
func (b *Batch) Flat() []float64 {
	flat := make([]float64, 0, b.shape.Len())
	for _, m := range b.values {
		for column := range b.shape.Columns {
			flat = append(flat, mat.Col(nil, column, m)...)
		}
	}
	return flat
}

// Copy returns a deep copy of the Batch.
func (b *Batch) Copy() *Batch {
	c := &Batch{shape: b.shape, values: make([]*mat.Dense, len(b.values))}
	for ii, m := range b.values {
		c.values[ii] = mat.DenseCopyOf(m)
	}
	return c
}

// Equal returns whether b and other have the same shape and exactly the same values.
func (b *Batch) Equal(other *Batch) bool {
	if !b.shape.Equal(other.shape) {
		return false
	}
	for ii, m := range b.values {
		if !mat.Equal(m, other.values[ii]) {
			return false
		}
	}
	return true
}

// InDelta returns whether b and other have the same shape and all values differ at most by delta.
func (b *Batch) InDelta(other *Batch, delta float64) bool {
	if !b.shape.Equal(other.shape) {
		return false
	}
	for ii, m := range b.values {
		if !mat.EqualApprox(m, other.values[ii], delta) {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer. It prints the shape and each matrix of the batch.
func (b *Batch) String() string {
	if b == nil {
		return "Batch(nil)"
	}
	str := fmt.Sprintf("Batch%s", b.shape)
	for ii, m := range b.values {
		str += fmt.Sprintf("\n  #%d: %v", ii, mat.Formatted(m, mat.Prefix("      "), mat.Squeeze()))
	}
	return str
}
