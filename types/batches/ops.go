// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package batches

import (
	"github.com/eventflow/dualgraph/types/shapes"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Plus returns the elementwise sum b+other. Shapes must be equal.
func (b *Batch) Plus(other *Batch) *Batch {
	shapes.AssertSame("Batch.Plus", b, other)
	result := New(b.shape)
	for ii, m := range b.values {
		result.values[ii].Add(m, other.values[ii])
	}
	return result
}

// Minus returns the elementwise difference b-other. Shapes must be equal.
func (b *Batch) Minus(other *Batch) *Batch {
	shapes.AssertSame("Batch.Minus", b, other)
	result := New(b.shape)
	for ii, m := range b.values {
		result.values[ii].Sub(m, other.values[ii])
	}
	return result
}

// Mul returns the elementwise (Hadamard) product. Shapes must be equal.
func (b *Batch) Mul(other *Batch) *Batch {
	shapes.AssertSame("Batch.Mul", b, other)
	result := New(b.shape)
	for ii, m := range b.values {
		result.values[ii].MulElem(m, other.values[ii])
	}
	return result
}

// Times returns the batched matrix product: for each batch index i, b[i]×other[i].
// Both must have the same size, and b.Columns must be equal to other.Rows.
func (b *Batch) Times(other *Batch) *Batch {
	if b.shape.Size != other.shape.Size || b.shape.Columns != other.shape.Rows {
		shapes.PanicMismatch("Batch.Times: incompatible shapes %s × %s", b.shape, other.shape)
	}
	result := New(shapes.Make(b.shape.Size, b.shape.Rows, other.shape.Columns))
	for ii, m := range b.values {
		result.values[ii].Mul(m, other.values[ii])
	}
	return result
}

// Scale returns the Batch multiplied by the scalar factor.
func (b *Batch) Scale(factor float64) *Batch {
	result := New(b.shape)
	for ii, m := range b.values {
		result.values[ii].Scale(factor, m)
	}
	return result
}

// Transpose returns a Batch with each matrix transposed.
func (b *Batch) Transpose() *Batch {
	result := New(b.shape.Transposed())
	for ii, m := range b.values {
		result.values[ii].Copy(m.T())
	}
	return result
}

// Inverse returns a Batch with each matrix inverted. Matrices must be square and non-singular.
func (b *Batch) Inverse() *Batch {
	if !b.shape.IsSquare() {
		shapes.PanicMismatch("Batch.Inverse: matrices must be square, got shape %s", b.shape)
	}
	result := New(b.shape)
	for ii, m := range b.values {
		if err := result.values[ii].Inverse(m); err != nil {
			panic(errors.Wrapf(ErrSingular, "Batch.Inverse: matrix #%d: %v", ii, err))
		}
	}
	return result
}

// Sum returns the sum of all elements of the Batch.
func (b *Batch) Sum() float64 {
	var sum float64
	for _, m := range b.values {
		sum += mat.Sum(m)
	}
	return sum
}

// ColumnNorm returns the Euclidean norm of the given column of the matrix at batchIdx.
func (b *Batch) ColumnNorm(batchIdx, column int) float64 {
	b.checkIndex(batchIdx, 0, column)
	return mat.Norm(b.values[batchIdx].ColView(column), 2)
}

// Clip returns a copy of the Batch where every column vector (for each matrix in the batch)
// with Euclidean norm larger than threshold is rescaled to have norm exactly threshold.
//
// Columns are clipped independently: this is used to clip the gradients of each
// parameter column separately, not globally.
func (b *Batch) Clip(threshold float64) *Batch {
	result := b.Copy()
	for _, m := range result.values {
		for column := range b.shape.Columns {
			norm := mat.Norm(m.ColView(column), 2)
			if norm <= threshold {
				continue
			}
			factor := threshold / norm
			for row := range b.shape.Rows {
				m.Set(row, column, m.At(row, column)*factor)
			}
		}
	}
	return result
}

// Apply returns a new Batch with fn applied to every element.
func (b *Batch) Apply(fn func(v float64) float64) *Batch {
	result := New(b.shape)
	for ii, m := range b.values {
		result.values[ii].Apply(func(_, _ int, v float64) float64 { return fn(v) }, m)
	}
	return result
}
