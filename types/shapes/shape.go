// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package shapes defines Shape, the fixed rank-3 shape shared by batches.Batch values
// and graph.Node outputs, and associated tools.
//
// Every value flowing through a graph is a batch of `Size` matrices, each one with
// `Rows`×`Columns` elements. Column vectors are the usual layout, so a batch of
// `b` vectors of dimension `n` has shape `[b, n, 1]`.
//
// ## Glossary
//
//   - Size: number of matrices in the batch (the batch index is the first index).
//   - Rows, Columns: dimensions of each matrix in the batch.
//   - Scalar: the shape `[1, 1, 1]`, used by losses.
//
// ## Asserts
//
// Graph building code should validate the shapes of its inputs. `Shape.Check` returns
// an error wrapping ErrShapeMismatch, while `Shape.Assert` panics with it:
//
//	func hiddenLayer(w, x *graph.Node) *graph.Node {
//	   shapes.AssertDims(x, 1, w.Columns(), 1)
//	   ...
//	}
package shapes

import (
	"fmt"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
)

// ErrShapeMismatch is wrapped by every error (or panic) caused by incompatible shapes.
var ErrShapeMismatch = errors.New("shape mismatch")

// Shape is the shape of a batches.Batch or of the output of a graph.Node.
//
// Use Make (or one of Scalar, Vector, Vectors, Matrix, Matrices) to create a new shape.
type Shape struct {
	Size, Rows, Columns int
}

// Make returns a Shape with the given dimensions. All dimensions must be > 0.
func Make(size, rows, columns int) Shape {
	s := Shape{Size: size, Rows: rows, Columns: columns}
	if size <= 0 || rows <= 0 || columns <= 0 {
		exceptions.Panicf("shapes.Make(%s): cannot create a shape with an axis with dimension <= 0", s)
	}
	return s
}

// FromDims creates a Shape from a 3-element slice, in the order size, rows, columns.
func FromDims(dims []int) Shape {
	if len(dims) != 3 {
		panic(errors.Wrapf(ErrShapeMismatch, "shapes.FromDims(%v): shapes must have exactly 3 dimensions", dims))
	}
	return Make(dims[0], dims[1], dims[2])
}

// Scalar returns the shape of a scalar value, `[1, 1, 1]`.
func Scalar() Shape { return Make(1, 1, 1) }

// Vector returns the shape of one column vector of the given dimension.
func Vector(dim int) Shape { return Make(1, dim, 1) }

// Vectors returns the shape of batchSize column vectors of the given dimension.
func Vectors(batchSize, dim int) Shape { return Make(batchSize, dim, 1) }

// Matrix returns the shape of a single matrix.
func Matrix(rows, columns int) Shape { return Make(1, rows, columns) }

// Matrices returns the shape of batchSize matrices.
func Matrices(batchSize, rows, columns int) Shape { return Make(batchSize, rows, columns) }

// Ok returns whether this is a valid Shape. The zero value Shape{} is invalid.
func (s Shape) Ok() bool { return s.Size > 0 && s.Rows > 0 && s.Columns > 0 }

// Dims returns the dimensions as an array in the order size, rows, columns.
func (s Shape) Dims() [3]int { return [3]int{s.Size, s.Rows, s.Columns} }

// Dim returns the dimension of the given axis: 0 for size, 1 for rows and 2 for columns.
// Negative axes count from the end, like in the rest of the library.
func (s Shape) Dim(axis int) int {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += 3
	}
	if adjustedAxis < 0 || adjustedAxis >= 3 {
		exceptions.Panicf("Shape.Dim(%d) out-of-bounds for rank 3 (shape=%s)", axis, s)
	}
	return s.Dims()[adjustedAxis]
}

// IsScalar returns whether the shape is `[1, 1, 1]`.
func (s Shape) IsScalar() bool { return s.Size == 1 && s.Rows == 1 && s.Columns == 1 }

// IsVector returns whether the shape holds column vectors, that is Columns == 1.
func (s Shape) IsVector() bool { return s.Ok() && s.Columns == 1 }

// IsSquare returns whether each matrix in the batch is square.
func (s Shape) IsSquare() bool { return s.Ok() && s.Rows == s.Columns }

// Elements returns the number of elements of one matrix of the batch.
func (s Shape) Elements() int { return s.Rows * s.Columns }

// Len returns the total number of elements: Size×Rows×Columns.
func (s Shape) Len() int { return s.Size * s.Rows * s.Columns }

// Shape returns itself. It implements the HasShape interface.
func (s Shape) Shape() Shape { return s }

// Transposed returns the shape with rows and columns swapped.
func (s Shape) Transposed() Shape { return Shape{Size: s.Size, Rows: s.Columns, Columns: s.Rows} }

// String implements fmt.Stringer, pretty-prints the shape.
func (s Shape) String() string {
	return fmt.Sprintf("[%d, %d, %d]", s.Size, s.Rows, s.Columns)
}

// Equal compares two shapes for equality.
func (s Shape) Equal(s2 Shape) bool {
	return s == s2
}

// Mismatch returns an error wrapping ErrShapeMismatch, with the formatted message.
func Mismatch(format string, args ...any) error {
	return errors.Wrapf(ErrShapeMismatch, format, args...)
}

// PanicMismatch panics with an error wrapping ErrShapeMismatch.
func PanicMismatch(format string, args ...any) {
	panic(Mismatch(format, args...))
}
