// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package batches

import (
	"math"
	"math/rand/v2"
	"sync"

	"github.com/eventflow/dualgraph/types/shapes"
	"gonum.org/v1/gonum/mat"
)

var (
	rngMu sync.Mutex
	rng   = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
)

// SetSeed resets the random number generator used by Rand and Xavier, for reproducibility.
func SetSeed(seed int64) {
	rngMu.Lock()
	defer rngMu.Unlock()
	rng = rand.New(rand.NewPCG(uint64(seed), 0))
}

// fillRandom sets every element of b to fn(u), where u is uniform in [0, 1).
func fillRandom(b *Batch, fn func(u float64) float64) *Batch {
	rngMu.Lock()
	defer rngMu.Unlock()
	for _, m := range b.values {
		raw := m.RawMatrix()
		for row := range raw.Rows {
			for column := range raw.Cols {
				raw.Data[row*raw.Stride+column] = fn(rng.Float64())
			}
		}
	}
	return b
}

// Zeros returns a Batch filled with zeros. Same as New.
func Zeros(shape shapes.Shape) *Batch {
	return New(shape)
}

// Ones returns a Batch filled with ones.
func Ones(shape shapes.Shape) *Batch {
	return Full(shape, 1)
}

// Full returns a Batch with all elements set to value.
func Full(shape shapes.Shape, value float64) *Batch {
	b := New(shape)
	for _, m := range b.values {
		raw := m.RawMatrix()
		for ii := range raw.Data {
			raw.Data[ii] = value
		}
	}
	return b
}

// Scalar returns a Batch of shape [1, 1, 1] with the given value.
func Scalar(value float64) *Batch {
	return Full(shapes.Scalar(), value)
}

// Rand returns a Batch with elements uniformly sampled from [0, 1).
func Rand(shape shapes.Shape) *Batch {
	return fillRandom(New(shape), func(u float64) float64 { return u })
}

// Eye returns a Batch where each matrix has ones on the diagonal and zeros elsewhere.
// Matrices don't need to be square.
func Eye(shape shapes.Shape) *Batch {
	b := New(shape)
	for _, m := range b.values {
		for ii := range min(shape.Rows, shape.Columns) {
			m.Set(ii, ii, 1)
		}
	}
	return b
}

// Xavier returns a Batch initialized with Glorot-uniform values, that is, uniformly sampled
// in ±√6/√(rows+columns).
func Xavier(shape shapes.Shape) *Batch {
	factor := math.Sqrt(6) / math.Sqrt(float64(shape.Rows+shape.Columns))
	return fillRandom(New(shape), func(u float64) float64 { return 2*u*factor - factor })
}

// UniformDistributionVector returns a single vector (shape [1, n, 1]) with all entries
// set to 1/n, a valid probability distribution.
func UniformDistributionVector(n int) *Batch {
	return Full(shapes.Vector(n), 1/float64(n))
}

// FromVector returns a Batch with a single column vector (shape [1, len(values), 1]).
func FromVector(values ...float64) *Batch {
	b := New(shapes.Vector(len(values)))
	for ii, v := range values {
		b.values[0].Set(ii, 0, v)
	}
	return b
}

// FromMatrix returns a Batch with a single matrix, given as a slice of rows.
// All rows must have the same length.
func FromMatrix(rows [][]float64) *Batch {
	return FromSlices([][][]float64{rows})
}

// FromSlices returns a Batch given as a slice of matrices, each one given as a slice of rows.
// The slices must be regular: all matrices with the same dimensions.
func FromSlices(values [][][]float64) *Batch {
	if len(values) == 0 || len(values[0]) == 0 || len(values[0][0]) == 0 {
		shapes.PanicMismatch("batches.FromSlices: empty values")
	}
	shape := shapes.Make(len(values), len(values[0]), len(values[0][0]))
	b := New(shape)
	for ii, matrix := range values {
		if len(matrix) != shape.Rows {
			shapes.PanicMismatch("batches.FromSlices: matrix #%d has %d rows, wanted %d", ii, len(matrix), shape.Rows)
		}
		for row, rowValues := range matrix {
			if len(rowValues) != shape.Columns {
				shapes.PanicMismatch("batches.FromSlices: matrix #%d row %d has %d columns, wanted %d",
					ii, row, len(rowValues), shape.Columns)
			}
			b.values[ii].SetRow(row, rowValues)
		}
	}
	return b
}

// FromDense returns a Batch with copies of the given matrices, that must all have the same dimensions.
func FromDense(matrices ...mat.Matrix) *Batch {
	if len(matrices) == 0 {
		shapes.PanicMismatch("batches.FromDense: no matrices given")
	}
	rows, columns := matrices[0].Dims()
	b := New(shapes.Make(len(matrices), rows, columns))
	for ii, m := range matrices {
		b.SetMatrix(ii, m)
	}
	return b
}
