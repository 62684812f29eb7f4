// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package graph

import (
	"math"

	"github.com/eventflow/dualgraph/types/batches"
	"github.com/eventflow/dualgraph/types/shapes"
	"github.com/gomlx/exceptions"
)

// Losses reduce a prediction ŷ and its labels y to a scalar. Their dual is a scalar, so the
// chain rule simply scales the stored partial. The labels are constants: their gradient is zero.

// lossOp implements the losses that are a sum of a per-element term.
type lossOp struct {
	nodeType NodeType

	// term returns the contribution of one element to the loss and its derivative with respect to yHat.
	// Both are later divided by the normalization returned by norm.
	term func(y, yHat float64) (loss, derivative float64)

	// norm returns the normalization factor for the given labels shape.
	norm func(shape shapes.Shape) float64
}

func (op *lossOp) Type() NodeType { return op.nodeType }

func (op *lossOp) forward(node *Node) *batches.Batch {
	labels, predictions := node.inputs[0], node.inputs[1]
	y, yHat := labels.Value(), predictions.Value()
	normalization := op.norm(labels.shape)
	partial := batches.New(predictions.shape)
	var loss float64
	for idx := range labels.shape.Iter() {
		b, row, column := idx[0], idx[1], idx[2]
		l, d := op.term(y.At(b, row, column), yHat.At(b, row, column))
		loss += l
		partial.Set(b, row, column, d/normalization)
	}
	node.partials[1] = partial
	return batches.Scalar(loss / normalization)
}

func (op *lossOp) backward(node *Node, input int) *batches.Batch {
	return lossBackward(node, input)
}

// lossBackward returns zeros for the labels (input #0), and the scaled partial for the predictions.
func lossBackward(node *Node, input int) *batches.Batch {
	if input == 0 {
		return batches.Zeros(node.inputs[0].shape)
	}
	return scalarBackward(node, input)
}

// batchSizeNorm averages over the batch only: used by losses that sum over the vector.
func batchSizeNorm(shape shapes.Shape) float64 { return float64(shape.Size) }

// meanNorm averages over every element.
func meanNorm(shape shapes.Shape) float64 { return float64(shape.Len()) }

var (
	crossEntropyLoss = &lossOp{
		nodeType: NodeTypeCrossEntropyLoss,
		term: func(y, yHat float64) (float64, float64) {
			if y == 0 {
				// Avoid 0·log(0) = NaN.
				return 0, 0
			}
			return -y * math.Log(yHat), -y / yHat
		},
		norm: batchSizeNorm,
	}
	binaryCrossEntropyLoss = &lossOp{
		nodeType: NodeTypeBinaryCrossEntropyLoss,
		term: func(y, yHat float64) (float64, float64) {
			return -(y*math.Log(yHat) + (1-y)*math.Log(1-yHat)), -y/yHat + (1-y)/(1-yHat)
		},
		norm: meanNorm,
	}
	mseLoss = &lossOp{
		nodeType: NodeTypeMSELoss,
		term: func(y, yHat float64) (float64, float64) {
			diff := yHat - y
			return diff * diff, 2 * diff
		},
		norm: meanNorm,
	}
)

func newLoss(op operator, shape shapes.Shape, labels, predictions *Node) *Node {
	if err := shape.CheckScalar(); err != nil {
		shapes.PanicMismatch("%s: the output of a loss must be a scalar: %v", op.Type(), err)
	}
	shapes.AssertSame(op.Type().String(), labels, predictions)
	return newNode(op, shape, labels, predictions)
}

// CrossEntropyLoss returns the categorical cross-entropy between the labels y (usually one-hot
// vectors) and the predicted distributions yHat (usually the output of Softmax), averaged over the batch:
//
//	-1/b · Σ y·log(ŷ)
//
// The labels are taken as constants. The output shape must be a scalar.
func CrossEntropyLoss(shape shapes.Shape, y, yHat *Node) *Node {
	return newLoss(crossEntropyLoss, shape, y, yHat)
}

// BinaryCrossEntropyLoss returns the binary cross-entropy of independent labels y ∈ {0, 1} and their
// predicted probabilities yHat, averaged over all elements:
//
//	-mean(y·log(ŷ) + (1-y)·log(1-ŷ))
func BinaryCrossEntropyLoss(shape shapes.Shape, y, yHat *Node) *Node {
	return newLoss(binaryCrossEntropyLoss, shape, y, yHat)
}

// MSELoss returns the mean squared error between the labels y and the predictions yHat,
// averaged over all elements.
func MSELoss(shape shapes.Shape, y, yHat *Node) *Node {
	return newLoss(mseLoss, shape, y, yHat)
}

// hammingLossOp is a continuous relaxation of the Hamming loss, for multi-label classification,
// with an optional regularization term on the embedding parameters.
type hammingLossOp struct {
	beta      float64
	embedding *Node
}

func (op *hammingLossOp) Type() NodeType { return NodeTypeHammingLoss }

// regularization returns the term added to the loss and the constant added to each element of
// the derivative.
func (op *hammingLossOp) regularization() (term, derivative float64) {
	if op.embedding == nil || op.beta == 0 {
		return 0, 0
	}
	var squares float64
	for _, v := range op.embedding.Value().Flat() {
		squares += v * v
	}
	return op.beta / squares, -2 * op.beta / math.Pow(squares, 1.5)
}

func (op *hammingLossOp) forward(node *Node) *batches.Batch {
	labels, predictions := node.inputs[0], node.inputs[1]
	y, yHat := labels.Value(), predictions.Value()
	normalization := meanNorm(labels.shape)
	regularizationTerm, regularizationDerivative := op.regularization()
	partial := batches.New(predictions.shape)
	var loss float64
	for idx := range labels.shape.Iter() {
		b, row, column := idx[0], idx[1], idx[2]
		yi, yHati := y.At(b, row, column), yHat.At(b, row, column)
		loss += yi*(1-yHati) + (1-yi)*yHati
		partial.Set(b, row, column, (1-2*yi)/normalization+regularizationDerivative)
	}
	node.partials[1] = partial
	return batches.Scalar(loss/normalization + regularizationTerm)
}

func (op *hammingLossOp) backward(node *Node, input int) *batches.Batch {
	return lossBackward(node, input)
}

// HammingLoss returns a continuous approximation of the Hamming loss (the fraction of wrong labels),
// for labels y ∈ {0, 1} and predictions yHat ∈ [0, 1]:
//
//	mean(y·(1-ŷ) + (1-y)·ŷ) + β/‖e‖²
//
// where ‖e‖² is the sum of the squares of the embedding Variable. The regularization discourages
// degenerate all-zero embeddings, and it is disabled if embedding is nil or beta is 0.
//
// The gradient with respect to ŷ is the exact derivative (1-2y)/N of the mean, not the
// 2(1-y)/batchSize used by earlier versions of this loss.
// It adds the constant -2β/(‖e‖²)^1.5 to the gradient of every prediction; the embedding itself
// receives no gradient from it.
func HammingLoss(shape shapes.Shape, y, yHat *Node, beta float64, embedding *Node) *Node {
	if embedding != nil && !embedding.IsVariable() {
		exceptions.Panicf("HammingLoss: embedding must be a Variable, got %s", embedding)
	}
	return newLoss(&hammingLossOp{beta: beta, embedding: embedding}, shape, y, yHat)
}

type frobeniusNormOp struct{}

func (frobeniusNormOp) Type() NodeType { return NodeTypeFrobeniusNorm }

func (frobeniusNormOp) forward(node *Node) *batches.Batch {
	m := node.inputs[0].Value()
	var sum float64
	for _, v := range m.Flat() {
		sum += v * v
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		// The norm is not differentiable at 0: use the subgradient 0.
		node.partials[0] = batches.Zeros(m.Shape())
	} else {
		node.partials[0] = m.Scale(1 / norm)
	}
	return batches.Scalar(norm)
}

func (frobeniusNormOp) backward(node *Node, input int) *batches.Batch {
	return scalarBackward(node, input)
}

// FrobeniusNorm returns √(Σ m²) of a square matrix m (shape [1, n, n]), used to score linkage matrices.
// The output shape must be a scalar.
func FrobeniusNorm(shape shapes.Shape, m *Node) *Node {
	if err := shape.CheckScalar(); err != nil {
		shapes.PanicMismatch("FrobeniusNorm: output must be a scalar: %v", err)
	}
	if m.Size() != 1 || !m.shape.IsSquare() {
		shapes.PanicMismatch("FrobeniusNorm: input must be one square matrix, got %s", m.shape)
	}
	return newNode(frobeniusNormOp{}, shape, m)
}
