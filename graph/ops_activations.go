// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"math"

	"github.com/eventflow/dualgraph/types/batches"
	"github.com/eventflow/dualgraph/types/shapes"
)

// elementwiseActivation implements activations applied independently to each element of a vector,
// whose Jacobian is diagonal.
//
// The partial is stored as the full Jacobian, one [n, n] matrix per batch entry, so backward is
// a matrix product with the dual.
type elementwiseActivation struct {
	nodeType NodeType

	// fn returns the activation of x, and derivative its derivative, given x and the activation y.
	fn         func(x float64) float64
	derivative func(x, y float64) float64
}

func (op *elementwiseActivation) Type() NodeType { return op.nodeType }

func (op *elementwiseActivation) forward(node *Node) *batches.Batch {
	input := node.inputs[0].Value()
	value := input.Apply(op.fn)
	jacobian := batches.New(shapes.Make(node.Size(), node.Rows(), node.Rows()))
	for b := range node.Size() {
		for i := range node.Rows() {
			jacobian.Set(b, i, i, op.derivative(input.At(b, i, 0), value.At(b, i, 0)))
		}
	}
	node.partials[0] = jacobian
	return value
}

func (op *elementwiseActivation) backward(node *Node, input int) *batches.Batch {
	return jacobianBackward(node, input)
}

var (
	sigmoidActivation = &elementwiseActivation{
		nodeType:   NodeTypeSigmoid,
		fn:         func(x float64) float64 { return 1 / (1 + math.Exp(-x)) },
		derivative: func(_, y float64) float64 { return y * (1 - y) },
	}
	tanhActivation = &elementwiseActivation{
		nodeType:   NodeTypeTanh,
		fn:         math.Tanh,
		derivative: func(_, y float64) float64 { return 1 - y*y },
	}
	reluActivation = &elementwiseActivation{
		nodeType: NodeTypeReLU,
		fn:       func(x float64) float64 { return max(x, 0) },
		derivative: func(x, _ float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		},
	}
)

// checkActivationShapes validates that input is a (batch of) vector(s) with the same shape as the output.
func checkActivationShapes(nodeType NodeType, shape shapes.Shape, input *Node) {
	if !shape.IsVector() {
		shapes.PanicMismatch("%s: output must be a (batch of) column vector(s), got %s", nodeType, shape)
	}
	if !input.shape.Equal(shape) {
		shapes.PanicMismatch("%s%s: input has shape %s", nodeType, shape, input.shape)
	}
}

func newActivation(op operator, shape shapes.Shape, input *Node) *Node {
	checkActivationShapes(op.Type(), shape, input)
	return newNode(op, shape, input)
}

// Sigmoid returns 1/(1+exp(-x)) for each element of the input vector(s).
func Sigmoid(shape shapes.Shape, input *Node) *Node {
	return newActivation(sigmoidActivation, shape, input)
}

// Tanh returns the hyperbolic tangent of each element of the input vector(s).
func Tanh(shape shapes.Shape, input *Node) *Node {
	return newActivation(tanhActivation, shape, input)
}

// ReLU returns max(x, 0) for each element of the input vector(s). The derivative at 0 is taken to be 0.
func ReLU(shape shapes.Shape, input *Node) *Node {
	return newActivation(reluActivation, shape, input)
}

type softmaxOp struct{}

func (softmaxOp) Type() NodeType { return NodeTypeSoftmax }

// forward shifts the input by its maximum before exponentiating, for numerical stability.
// The Jacobian is J[i, j] = s[i]·(δ[i, j] - s[j]).
func (softmaxOp) forward(node *Node) *batches.Batch {
	input := node.inputs[0].Value()
	value := batches.New(node.shape)
	jacobian := batches.New(shapes.Make(node.Size(), node.Rows(), node.Rows()))
	for b := range node.Size() {
		maxValue := math.Inf(-1)
		for i := range node.Rows() {
			maxValue = max(maxValue, input.At(b, i, 0))
		}
		var sum float64
		for i := range node.Rows() {
			e := math.Exp(input.At(b, i, 0) - maxValue)
			value.Set(b, i, 0, e)
			sum += e
		}
		for i := range node.Rows() {
			value.Set(b, i, 0, value.At(b, i, 0)/sum)
		}
		for i := range node.Rows() {
			si := value.At(b, i, 0)
			for j := range node.Rows() {
				sj := value.At(b, j, 0)
				if i == j {
					jacobian.Set(b, i, j, si*(1-sj))
				} else {
					jacobian.Set(b, i, j, -si*sj)
				}
			}
		}
	}
	node.partials[0] = jacobian
	return value
}

func (softmaxOp) backward(node *Node, input int) *batches.Batch {
	return jacobianBackward(node, input)
}

// Softmax normalizes each input vector into a probability distribution: exp(x_i)/Σ_j exp(x_j).
func Softmax(shape shapes.Shape, input *Node) *Node {
	return newActivation(softmaxOp{}, shape, input)
}

type expOp struct{}

func (expOp) Type() NodeType { return NodeTypeExp }

func (expOp) forward(node *Node) *batches.Batch {
	value := node.inputs[0].Value().Apply(math.Exp)
	node.partials[0] = value
	return value
}

func (expOp) backward(node *Node, input int) *batches.Batch {
	return elementwiseBackward(node, input)
}

// Exp returns e^x for each element of the input, which can have any shape equal to the output shape.
func Exp(shape shapes.Shape, input *Node) *Node {
	if !input.shape.Equal(shape) {
		shapes.PanicMismatch("Exp%s: input has shape %s", shape, input.shape)
	}
	return newNode(expOp{}, shape, input)
}
