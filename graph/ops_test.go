/*
 *	Copyright 2024 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package graph_test

import (
	"errors"
	"math"
	"testing"

	. "github.com/eventflow/dualgraph/graph"
	"github.com/eventflow/dualgraph/types/batches"
	"github.com/eventflow/dualgraph/types/shapes"
	"github.com/gomlx/exceptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	// Aliases:

	Vector = shapes.Vector
	Matrix = shapes.Matrix
	Scalar = shapes.Scalar
)

// constant returns a Placeholder set to value.
func constant(value *batches.Batch) *Node {
	p := Placeholder(value.Shape())
	p.SetValue(value)
	return p
}

// requireValue evaluates node and compares it to want.
func requireValue(t *testing.T, want *batches.Batch, node *Node, delta float64) {
	got := node.Value()
	require.Truef(t, want.InDelta(got, delta), "%s:\n\tgot  %s\n\twant %s", node, got, want)
}

func requireBatch(t *testing.T, want, got *batches.Batch, delta float64) {
	require.Truef(t, want.InDelta(got, delta), "got  %s\n\twant %s", got, want)
}

func requireShapeMismatch(t *testing.T, fn func()) {
	err := exceptions.TryCatch[error](fn)
	require.Error(t, err)
	require.Truef(t, errors.Is(err, shapes.ErrShapeMismatch), "expected a shape mismatch, got %v", err)
}

func TestArithmeticOps(t *testing.T) {
	a := constant(batches.FromVector(1, 2, 3))
	b := constant(batches.FromVector(10, 20, 30))
	requireValue(t, batches.FromVector(11, 22, 33), Sum(Vector(3), a, b), 0)
	requireValue(t, batches.FromVector(12, 24, 36), Sum(Vector(3), a, b, a), 0)
	requireValue(t, batches.FromVector(5.5, 11, 16.5), Average(Vector(3), a, b), 1e-12)
	requireValue(t, batches.FromVector(10, 40, 90), Mul(Vector(3), a, b), 0)
	requireValue(t, batches.FromVector(9, 18, 27), Involution(Vector(3), a, b), 0)

	w := constant(batches.FromMatrix([][]float64{{1, 0, 2}, {0, 1, -1}}))
	requireValue(t, batches.FromVector(7, -1), Matmul(Vector(2), w, a), 0)

	requireShapeMismatch(t, func() { Sum(Vector(3), a, constant(batches.Zeros(Vector(2)))) })
	requireShapeMismatch(t, func() { Sum(Vector(3)) })
	requireShapeMismatch(t, func() { Mul(Vector(3), a, constant(batches.Zeros(Matrix(3, 2)))) })
	requireShapeMismatch(t, func() { Matmul(Vector(2), w, constant(batches.Zeros(Vector(2)))) })
	requireShapeMismatch(t, func() { Matmul(Vector(3), w, a) })
	requireShapeMismatch(t, func() { Involution(Matrix(3, 2), a, b) })
}

func TestReshapeOps(t *testing.T) {
	a := constant(batches.FromVector(1, 2))
	b := constant(batches.FromVector(3, 4, 5))
	requireValue(t, batches.FromVector(1, 2, 3, 4, 5), Concat(Vector(5), a, b), 0)
	requireShapeMismatch(t, func() { Concat(Vector(4), a, b) })

	c := constant(batches.FromVector(10, 20))
	packed := Pack(Matrix(2, 2), a, c)
	requireValue(t, batches.FromMatrix([][]float64{{1, 10}, {2, 20}}), packed, 0)
	requireShapeMismatch(t, func() { Pack(Matrix(2, 2), a, b) })

	m := constant(batches.FromMatrix([][]float64{{1, 2, 3}, {4, 5, 6}}))
	requireValue(t, batches.FromVector(1, 4, 2, 5, 3, 6), Flatten(Vector(6), m), 0)
	requireShapeMismatch(t, func() { Flatten(Vector(5), m) })

	requireValue(t, batches.FromMatrix([][]float64{{1, 4}, {2, 5}, {3, 6}}), Transpose(Matrix(3, 2), m), 0)
	requireShapeMismatch(t, func() { Transpose(Matrix(2, 3), m) })
}

func TestActivationOps(t *testing.T) {
	x := constant(batches.FromVector(-1, 0, 2))
	requireValue(t, batches.FromVector(0, 0, 2), ReLU(Vector(3), x), 0)
	requireValue(t, batches.FromVector(math.Tanh(-1), 0, math.Tanh(2)), Tanh(Vector(3), x), 1e-12)
	requireValue(t, batches.FromVector(1/(1+math.E), 0.5, 1/(1+math.Exp(-2))), Sigmoid(Vector(3), x), 1e-12)
	requireValue(t, batches.FromVector(1/math.E, 1, math.Exp(2)), Exp(Vector(3), x), 1e-12)

	// Softmax is invariant to shifts, and stable for large values.
	large := constant(batches.FromVector(1000, 1000, 1000, 1000))
	requireValue(t, batches.Full(Vector(4), 0.25), Softmax(Vector(4), large), 1e-12)
	sum := Softmax(Vector(3), x).Value().Sum()
	require.InDelta(t, 1.0, sum, 1e-12)

	// Batches of vectors are supported.
	xs := constant(batches.FromSlices([][][]float64{{{1}, {2}}, {{-3}, {4}}}))
	requireValue(t, batches.FromSlices([][][]float64{{{1}, {2}}, {{0}, {4}}}), ReLU(shapes.Vectors(2, 2), xs), 0)

	requireShapeMismatch(t, func() { Sigmoid(Vector(2), x) })
	requireShapeMismatch(t, func() { Softmax(Matrix(3, 2), constant(batches.Zeros(Matrix(3, 2)))) })
}

func TestCrossEntropyLoss(t *testing.T) {
	y := constant(batches.FromVector(0, 0, 1, 0, 0))
	x := constant(batches.Zeros(Vector(5)))
	yHat := Softmax(Vector(5), x)
	loss := CrossEntropyLoss(Scalar(), y, yHat)
	require.InDelta(t, 1.6094, loss.Value().Value(), 1e-4)
	require.InDelta(t, math.Log(5), loss.Value().Value(), 1e-12)

	// The gradient of the softmax logits is ŷ - y.
	requireBatch(t, batches.FromVector(0.2, 0.2, -0.8, 0.2, 0.2), x.Dual(), 1e-9)
	// Labels are constants.
	requireBatch(t, batches.Zeros(Vector(5)), y.Dual(), 0)

	requireShapeMismatch(t, func() { CrossEntropyLoss(Vector(2), y, yHat) })
	requireShapeMismatch(t, func() { CrossEntropyLoss(Scalar(), y, constant(batches.Zeros(Vector(4)))) })
}

func TestBinaryCrossEntropyLoss(t *testing.T) {
	y := constant(batches.FromVector(0, 0, 1, 0, 0))
	yHat := Softmax(Vector(5), constant(batches.Zeros(Vector(5))))
	loss := BinaryCrossEntropyLoss(Scalar(), y, yHat)
	want := -(math.Log(0.2) + 4*math.Log(0.8)) / 5
	require.InDelta(t, want, loss.Value().Value(), 1e-12)
	require.InDelta(t, 0.5004, loss.Value().Value(), 1e-4)
}

func TestMSELoss(t *testing.T) {
	y := constant(batches.FromVector(1, 2, 3, 4))
	yHat := Variable("yHat", Vector(4), batches.FromVector(1, 3, 3, 2))
	loss := MSELoss(Scalar(), y, yHat)
	require.InDelta(t, 5.0/4, loss.Value().Value(), 1e-12)
	requireBatch(t, batches.FromVector(0, 0.5, 0, -1), yHat.Dual(), 1e-12)
}

func TestHammingLoss(t *testing.T) {
	y := constant(batches.FromVector(0, 0, 1, 0, 1))
	yHat := constant(batches.FromVector(1, 0, 0, 1, 1))
	require.InDelta(t, 0.6, HammingLoss(Scalar(), y, yHat, 0, nil).Value().Value(), 1e-12)

	optimal := constant(batches.FromVector(0, 0, 1, 0, 1))
	require.InDelta(t, 0.0, HammingLoss(Scalar(), y, optimal, 0, nil).Value().Value(), 1e-12)

	// With regularization: ‖e‖² = 2.
	embedding := Variable("e", Vector(2), batches.FromVector(1, -1))
	prediction := constant(batches.FromVector(1, 0, 0, 1, 1))
	regularized := HammingLoss(Scalar(), y, prediction, 0.5, embedding)
	require.InDelta(t, 0.6+0.25, regularized.Value().Value(), 1e-12)
	regularization := -2 * 0.5 / math.Pow(2, 1.5)
	requireBatch(t,
		batches.FromVector(0.2, 0.2, -0.2, 0.2, -0.2).Plus(batches.Full(Vector(5), regularization)),
		prediction.Dual(), 1e-12)

	require.Panics(t, func() { HammingLoss(Scalar(), y, yHat, 0.5, yHat) })
}

func TestFrobeniusNorm(t *testing.T) {
	m := Variable("m", Matrix(2, 2), batches.FromMatrix([][]float64{{1, 2}, {2, 4}}))
	norm := FrobeniusNorm(Scalar(), m)
	require.InDelta(t, 5.0, norm.Value().Value(), 1e-12)
	requireBatch(t, batches.FromMatrix([][]float64{{0.2, 0.4}, {0.4, 0.8}}), m.Dual(), 1e-12)

	zero := Variable("zero", Matrix(2, 2), nil)
	zeroNorm := FrobeniusNorm(Scalar(), zero)
	require.Equal(t, 0.0, zeroNorm.Value().Value())
	requireBatch(t, batches.Zeros(Matrix(2, 2)), zero.Dual(), 0)

	requireShapeMismatch(t, func() { FrobeniusNorm(Scalar(), constant(batches.Zeros(Matrix(2, 3)))) })
	requireShapeMismatch(t, func() { FrobeniusNorm(Vector(2), m) })
}

func TestTransposeOfMatmul(t *testing.T) {
	// b = Wᵀ·a: the gradient reaching W through the Transpose must have W's shape.
	w := Variable("w", Matrix(2, 3), batches.FromMatrix([][]float64{{1, 2, 3}, {4, 5, 6}}))
	a := constant(batches.FromVector(1, -1))
	b := Matmul(Vector(3), Transpose(Matrix(3, 2), w), a)
	requireValue(t, batches.FromVector(-3, -3, -3), b, 0)
	requireBatch(t, batches.FromMatrix([][]float64{{1, 1, 1}, {-1, -1, -1}}), w.Dual(), 0)
	assert.Equal(t, shapes.Matrix(2, 3), w.Dual().Shape())
}
