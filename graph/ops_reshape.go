// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"github.com/eventflow/dualgraph/types/batches"
	"github.com/eventflow/dualgraph/types/shapes"
)

// Operators in this file only move values around: they don't store partials, their backward
// simply routes the corresponding portion of the dual back to the input.

// concatOp stacks vectors: offsets[i] is the first row of input #i in the output.
type concatOp struct {
	offsets []int
}

func (op *concatOp) Type() NodeType { return NodeTypeConcat }

func (op *concatOp) forward(node *Node) *batches.Batch {
	value := batches.New(node.shape)
	for ii, input := range node.inputs {
		inputValue := input.Value()
		for row := range input.Rows() {
			value.Set(0, op.offsets[ii]+row, 0, inputValue.At(0, row, 0))
		}
	}
	return value
}

func (op *concatOp) backward(node *Node, input int) *batches.Batch {
	dual := node.Dual().Matrix(0)
	offset := op.offsets[input]
	rows := node.inputs[input].Rows()
	return batches.FromDense(dual.Slice(offset, offset+rows, 0, node.Columns()))
}

// Concat stacks the input vectors (each with shape [1, n_i, 1]) into one vector of shape [1, Σn_i, 1].
func Concat(shape shapes.Shape, inputs ...*Node) *Node {
	if len(inputs) == 0 {
		shapes.PanicMismatch("Concat%s: at least one input is required", shape)
	}
	op := &concatOp{offsets: make([]int, len(inputs))}
	var totalRows int
	for ii, input := range inputs {
		if err := input.shape.CheckDims(1, shapes.UncheckedAxis, 1); err != nil {
			shapes.PanicMismatch("Concat: input #%d must be a single vector: %v", ii, err)
		}
		op.offsets[ii] = totalRows
		totalRows += input.Rows()
	}
	if err := shape.CheckDims(1, totalRows, 1); err != nil {
		shapes.PanicMismatch("Concat: invalid output shape: %v", err)
	}
	return newNode(op, shape, inputs...)
}

type packOp struct{}

func (packOp) Type() NodeType { return NodeTypePack }

func (packOp) forward(node *Node) *batches.Batch {
	value := batches.New(node.shape)
	for column, input := range node.inputs {
		inputValue := input.Value()
		for row := range input.Rows() {
			value.Set(0, row, column, inputValue.At(0, row, 0))
		}
	}
	return value
}

func (packOp) backward(node *Node, input int) *batches.Batch {
	dual := node.Dual().Matrix(0)
	return batches.FromDense(dual.Slice(0, node.Rows(), input, input+1))
}

// Pack packs k vectors (each with shape [1, n, 1]) as the columns of one matrix of shape [1, n, k].
func Pack(shape shapes.Shape, inputs ...*Node) *Node {
	if len(inputs) == 0 {
		shapes.PanicMismatch("Pack%s: at least one input is required", shape)
	}
	for ii, input := range inputs {
		if err := input.shape.CheckDims(1, inputs[0].Rows(), 1); err != nil {
			shapes.PanicMismatch("Pack: input #%d must be a vector like input #0 (%s): %v", ii, inputs[0].shape, err)
		}
	}
	if err := shape.CheckDims(1, inputs[0].Rows(), len(inputs)); err != nil {
		shapes.PanicMismatch("Pack: invalid output shape: %v", err)
	}
	return newNode(packOp{}, shape, inputs...)
}

type flattenOp struct{}

func (flattenOp) Type() NodeType { return NodeTypeFlatten }

func (flattenOp) forward(node *Node) *batches.Batch {
	input := node.inputs[0]
	inputValue := input.Value()
	value := batches.New(node.shape)
	for column := range input.Columns() {
		for row := range input.Rows() {
			value.Set(0, column*input.Rows()+row, 0, inputValue.At(0, row, column))
		}
	}
	return value
}

func (flattenOp) backward(node *Node, _ int) *batches.Batch {
	input := node.inputs[0]
	dual := node.Dual()
	result := batches.New(input.shape)
	for column := range input.Columns() {
		for row := range input.Rows() {
			result.Set(0, row, column, dual.At(0, column*input.Rows()+row, 0))
		}
	}
	return result
}

// Flatten converts a matrix (shape [1, r, c]) to a vector (shape [1, r·c, 1]) by concatenating its columns.
func Flatten(shape shapes.Shape, input *Node) *Node {
	if input.Size() != 1 {
		shapes.PanicMismatch("Flatten: only batch size 1 is supported, got %s", input.shape)
	}
	if err := shape.CheckDims(1, input.shape.Elements(), 1); err != nil {
		shapes.PanicMismatch("Flatten: invalid output shape for input %s: %v", input.shape, err)
	}
	return newNode(flattenOp{}, shape, input)
}

type transposeOp struct{}

func (transposeOp) Type() NodeType { return NodeTypeTranspose }

func (transposeOp) forward(node *Node) *batches.Batch {
	return node.inputs[0].Value().Transpose()
}

func (transposeOp) backward(node *Node, _ int) *batches.Batch {
	return node.Dual().Transpose()
}

// dual accepts contributions from consumers in either orientation: a contribution that
// doesn't match the node's shape is transposed back before being summed.
// Square matrices are never transposed.
func (transposeOp) dual(node *Node) *batches.Batch {
	return node.accumulateDual(func(contribution *batches.Batch) *batches.Batch {
		if contribution.Rows() == node.Rows() && contribution.Columns() == node.Columns() {
			return contribution
		}
		return contribution.Transpose()
	})
}

// Transpose returns the transposed matrix of input (shape [1, r, c]), with shape [1, c, r].
func Transpose(shape shapes.Shape, input *Node) *Node {
	if input.Size() != 1 {
		shapes.PanicMismatch("Transpose: only batch size 1 is supported, got %s", input.shape)
	}
	shape.Assert(input.shape.Transposed())
	return newNode(transposeOp{}, shape, input)
}
