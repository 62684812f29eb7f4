// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package shapes

// UncheckedAxis can be used in CheckDims or AssertDims functions for an axis
// whose dimension doesn't matter.
const UncheckedAxis = int(-1)

// HasShape is an interface for objects that have an associated Shape.
// `batches.Batch` (concrete values), `graph.Node` and Shape itself implement the interface.
type HasShape interface {
	Shape() Shape
}

// CheckDims checks that the shape has the given dimensions. A value of -1 in
// dimensions means it can take any value and is not checked.
//
// It returns an error wrapping ErrShapeMismatch if any of the dimensions don't match.
func (s Shape) CheckDims(size, rows, columns int) error {
	for ii, wantDim := range [3]int{size, rows, columns} {
		if wantDim != UncheckedAxis && s.Dims()[ii] != wantDim {
			return Mismatch("shape %s axis %d has dimension %d, wanted %d (shape wanted=[%d, %d, %d])",
				s, ii, s.Dims()[ii], wantDim, size, rows, columns)
		}
	}
	return nil
}

// AssertDims checks that the shape has the given dimensions. A value of -1 in
// dimensions means it can take any value and is not checked.
//
// It panics with an error wrapping ErrShapeMismatch if it doesn't match.
func (s Shape) AssertDims(size, rows, columns int) {
	if err := s.CheckDims(size, rows, columns); err != nil {
		panic(err)
	}
}

// Check returns an error wrapping ErrShapeMismatch if s is not equal to want.
func (s Shape) Check(want Shape) error {
	if !s.Equal(want) {
		return Mismatch("shape %s is different than the expected %s", s, want)
	}
	return nil
}

// Assert panics with an error wrapping ErrShapeMismatch if s is not equal to want.
func (s Shape) Assert(want Shape) {
	if err := s.Check(want); err != nil {
		panic(err)
	}
}

// CheckDims checks that the shape of shaped has the given dimensions. A value of -1 in
// dimensions means it can take any value and is not checked.
func CheckDims(shaped HasShape, size, rows, columns int) error {
	return shaped.Shape().CheckDims(size, rows, columns)
}

// AssertDims checks that the shape of shaped has the given dimensions, and panics if it doesn't.
func AssertDims(shaped HasShape, size, rows, columns int) {
	shaped.Shape().AssertDims(size, rows, columns)
}

// AssertSame panics with an error wrapping ErrShapeMismatch if the shapes of the given
// objects are not all the same. The context is used to prefix the error message.
func AssertSame(context string, shaped ...HasShape) {
	if len(shaped) == 0 {
		return
	}
	first := shaped[0].Shape()
	for ii, other := range shaped[1:] {
		if !other.Shape().Equal(first) {
			PanicMismatch("%s: operand #%d has shape %s, but operand #0 has shape %s", context, ii+1, other.Shape(), first)
		}
	}
}

// CheckScalar returns an error if the shape is not a scalar.
func (s Shape) CheckScalar() error {
	if !s.IsScalar() {
		return Mismatch("shape %s is not a scalar", s)
	}
	return nil
}

// AssertScalar panics if the shape is not a scalar.
func AssertScalar(shaped HasShape) {
	if err := shaped.Shape().CheckScalar(); err != nil {
		panic(err)
	}
}
