// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"github.com/eventflow/dualgraph/types/batches"
	"github.com/eventflow/dualgraph/types/shapes"
	"gonum.org/v1/gonum/mat"
)

// sumOp implements Sum and Average.
type sumOp struct {
	average bool
}

func (op *sumOp) Type() NodeType {
	if op.average {
		return NodeTypeAverage
	}
	return NodeTypeSum
}

func (op *sumOp) forward(node *Node) *batches.Batch {
	factor := 1.0
	if op.average {
		factor = 1.0 / float64(len(node.inputs))
	}
	value := batches.Zeros(node.shape)
	for ii, input := range node.inputs {
		value = value.Plus(input.Value())
		node.partials[ii] = batches.Full(input.shape, factor)
	}
	if op.average {
		value = value.Scale(factor)
	}
	return value
}

func (op *sumOp) backward(node *Node, input int) *batches.Batch {
	return elementwiseBackward(node, input)
}

func newSumOrAverage(op *sumOp, shape shapes.Shape, inputs []*Node) *Node {
	if len(inputs) == 0 {
		shapes.PanicMismatch("%s%s: at least one input is required", op.Type(), shape)
	}
	for ii, input := range inputs {
		if input != nil && !input.shape.Equal(shape) {
			shapes.PanicMismatch("%s%s: input #%d has shape %s", op.Type(), shape, ii, input.shape)
		}
	}
	return newNode(op, shape, inputs...)
}

// Sum returns the elementwise sum of all inputs. All inputs must have the given shape.
func Sum(shape shapes.Shape, inputs ...*Node) *Node {
	return newSumOrAverage(&sumOp{}, shape, inputs)
}

// Average returns the elementwise mean of all inputs. All inputs must have the given shape.
func Average(shape shapes.Shape, inputs ...*Node) *Node {
	return newSumOrAverage(&sumOp{average: true}, shape, inputs)
}

type mulOp struct{}

func (mulOp) Type() NodeType { return NodeTypeMul }

func (mulOp) forward(node *Node) *batches.Batch {
	lhs, rhs := node.inputs[0].Value(), node.inputs[1].Value()
	node.partials[0] = rhs
	node.partials[1] = lhs
	return lhs.Mul(rhs)
}

func (mulOp) backward(node *Node, input int) *batches.Batch {
	return elementwiseBackward(node, input)
}

// Mul returns the elementwise (Hadamard) product of lhs and rhs. Both must have the given shape.
func Mul(shape shapes.Shape, lhs, rhs *Node) *Node {
	shapes.AssertSame("Mul", shape, lhs, rhs)
	return newNode(mulOp{}, shape, lhs, rhs)
}

// matmulOp implements the product of a matrix W by a column vector a: b = W·a.
//
// The partials are the rank-3 Jacobians of b with respect to each operand, stored as Batches:
//
//   - ∂b/∂W with shape [r, c, r]: entry [i, j, i] is a[j], for each output component i.
//   - ∂b/∂a with shape [1, c, r]: entry [0, j, i] is W[i, j], that is Wᵀ.
type matmulOp struct{}

func (matmulOp) Type() NodeType { return NodeTypeMatmul }

func (matmulOp) forward(node *Node) *batches.Batch {
	matrix, vector := node.inputs[0].Value(), node.inputs[1].Value()
	rows, columns := matrix.Rows(), matrix.Columns()
	dbdW := batches.New(shapes.Make(rows, columns, rows))
	dbda := batches.New(shapes.Make(1, columns, rows))
	for i := range rows {
		for j := range columns {
			dbdW.Set(i, j, i, vector.At(0, j, 0))
			dbda.Set(0, j, i, matrix.At(0, i, j))
		}
	}
	node.partials[0] = dbdW
	node.partials[1] = dbda
	return matrix.Times(vector)
}

// backward contracts the stored Jacobian with the incoming dual.
// For the matrix, row i of the result is (∂b/∂W[i] · dual)ᵀ, so the result has the shape of W.
func (matmulOp) backward(node *Node, input int) *batches.Batch {
	partial := node.partial(input)
	dual := node.Dual()
	if input == 1 {
		return partial.Times(dual)
	}
	matrix := node.inputs[0]
	result := batches.New(matrix.shape)
	var row mat.Dense
	for i := range partial.Size() {
		row.Reset()
		row.Mul(partial.Matrix(i), dual.Matrix(0))
		for j := range matrix.Columns() {
			result.Set(0, i, j, row.At(j, 0))
		}
	}
	return result
}

// Matmul returns the product of matrix (shape [1, r, c]) by the column vector (shape [1, c, 1]).
// The output shape must be [1, r, 1]. Only one matrix per batch is supported.
func Matmul(shape shapes.Shape, matrix, vector *Node) *Node {
	if matrix.Size() != 1 {
		shapes.PanicMismatch("Matmul: only matrices of batch size 1 are supported, got %s", matrix.shape)
	}
	if err := vector.shape.CheckDims(1, matrix.Columns(), 1); err != nil {
		shapes.PanicMismatch("Matmul: matrix %s incompatible with vector %s: %v", matrix.shape, vector.shape, err)
	}
	if err := shape.CheckDims(1, matrix.Rows(), 1); err != nil {
		shapes.PanicMismatch("Matmul: invalid output shape for matrix %s: %v", matrix.shape, err)
	}
	return newNode(matmulOp{}, shape, matrix, vector)
}

type involutionOp struct{}

func (involutionOp) Type() NodeType { return NodeTypeInvolution }

func (involutionOp) forward(node *Node) *batches.Batch {
	fact, antiphases := node.inputs[0], node.inputs[1]
	node.partials[0] = batches.Full(fact.shape, -1)
	node.partials[1] = batches.Ones(antiphases.shape)
	return antiphases.Value().Minus(fact.Value())
}

func (involutionOp) backward(node *Node, input int) *batches.Batch {
	return elementwiseBackward(node, input)
}

// Involution returns `antiphases - fact`, elementwise. Both inputs must be a single vector
// with the same shape as the output.
func Involution(shape shapes.Shape, fact, antiphases *Node) *Node {
	shape.AssertDims(1, shapes.UncheckedAxis, 1)
	shapes.AssertSame("Involution", shape, fact, antiphases)
	return newNode(involutionOp{}, shape, fact, antiphases)
}
