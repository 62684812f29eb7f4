/*
 *	Copyright 2023 Jan Pfeifer
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
	"testing"

	. "github.com/eventflow/dualgraph/graph"
	"github.com/eventflow/dualgraph/graph/graphtest"
	"github.com/eventflow/dualgraph/types/batches"
	"github.com/eventflow/dualgraph/types/shapes"
)

const gradientDelta = 1e-5

func values(b ...*batches.Batch) []*batches.Batch { return b }

func TestGradientArithmetic(t *testing.T) {
	batches.SetSeed(42)
	x := batches.FromSlices([][][]float64{{{1, -2}, {0.5, 3}}, {{-1, 2}, {4, 0.1}}})
	y := batches.FromSlices([][][]float64{{{0.3, 2}, {-1, 1}}, {{5, -2}, {1, 1}}})
	shape := x.Shape()

	graphtest.RunGradientCheck(t, "Sum", func(inputs []*Node) *Node {
		return Sum(shape, inputs[0], inputs[1], inputs[0])
	}, values(x, y), gradientDelta)
	graphtest.RunGradientCheck(t, "Average", func(inputs []*Node) *Node {
		return Average(shape, inputs[0], inputs[1], inputs[1])
	}, values(x, y), gradientDelta)
	graphtest.RunGradientCheck(t, "Mul", func(inputs []*Node) *Node {
		return Mul(shape, inputs[0], inputs[1])
	}, values(x, y), gradientDelta)
	graphtest.RunGradientCheck(t, "Square", func(inputs []*Node) *Node {
		return Mul(shape, inputs[0], inputs[0])
	}, values(x), gradientDelta)
	graphtest.RunGradientCheck(t, "Exp", func(inputs []*Node) *Node {
		return Exp(shape, inputs[0])
	}, values(x), gradientDelta)
	graphtest.RunGradientCheck(t, "Involution", func(inputs []*Node) *Node {
		return Involution(shapes.Vector(3), inputs[0], inputs[1])
	}, values(batches.FromVector(1, 2, 3), batches.FromVector(-1, 0, 5)), gradientDelta)
}

func TestGradientMatmul(t *testing.T) {
	batches.SetSeed(42)
	w := batches.FromMatrix([][]float64{{1, -2, 0.5}, {3, 0.1, -1}})
	a := batches.FromVector(0.7, -1.2, 2)
	graphtest.RunGradientCheck(t, "Matmul", func(inputs []*Node) *Node {
		return Matmul(shapes.Vector(2), inputs[0], inputs[1])
	}, values(w, a), gradientDelta)

	graphtest.RunGradientCheck(t, "Matmul-1x1", func(inputs []*Node) *Node {
		return Matmul(shapes.Scalar(), inputs[0], inputs[0])
	}, values(batches.Scalar(-0.8)), gradientDelta)

	graphtest.RunGradientCheck(t, "Matmul-Transpose", func(inputs []*Node) *Node {
		return Matmul(shapes.Vector(3), Transpose(shapes.Matrix(3, 2), inputs[0]), inputs[1])
	}, values(w, batches.FromVector(0.3, -0.4)), gradientDelta)

	// Two layers, the hidden one used twice.
	graphtest.RunGradientCheck(t, "Matmul-Layers", func(inputs []*Node) *Node {
		hidden := Tanh(shapes.Vector(2), Matmul(shapes.Vector(2), inputs[0], inputs[1]))
		return Sum(shapes.Vector(2), Matmul(shapes.Vector(2), inputs[2], hidden), hidden)
	}, values(w, a, batches.FromMatrix([][]float64{{0.5, -1}, {2, 0.25}})), gradientDelta)
}

func TestGradientActivations(t *testing.T) {
	batches.SetSeed(42)
	// Values away from 0, where ReLU is not differentiable.
	x := batches.FromSlices([][][]float64{{{0.5}, {-1.5}, {2}, {-0.1}}, {{-3}, {0.2}, {1}, {0.7}}})
	shape := x.Shape()
	for _, activation := range []struct {
		name string
		fn   func(shape shapes.Shape, input *Node) *Node
	}{
		{"Sigmoid", Sigmoid},
		{"Tanh", Tanh},
		{"ReLU", ReLU},
		{"Softmax", Softmax},
	} {
		graphtest.RunGradientCheck(t, activation.name, func(inputs []*Node) *Node {
			return activation.fn(shape, inputs[0])
		}, values(x), gradientDelta)
	}
}

func TestGradientReshape(t *testing.T) {
	batches.SetSeed(42)
	a := batches.FromVector(1, 2)
	b := batches.FromVector(-3, 0.5, 4)
	c := batches.FromVector(0.1, -0.2)
	m := batches.FromMatrix([][]float64{{1, 2, 3}, {-4, 5, -6}})

	graphtest.RunGradientCheck(t, "Concat", func(inputs []*Node) *Node {
		return Sigmoid(shapes.Vector(5), Concat(shapes.Vector(5), inputs[0], inputs[1]))
	}, values(a, b), gradientDelta)
	graphtest.RunGradientCheck(t, "Pack", func(inputs []*Node) *Node {
		packed := Pack(shapes.Matrix(2, 2), inputs[0], inputs[1])
		return Mul(shapes.Matrix(2, 2), packed, packed)
	}, values(a, c), gradientDelta)
	graphtest.RunGradientCheck(t, "Flatten", func(inputs []*Node) *Node {
		return Tanh(shapes.Vector(6), Flatten(shapes.Vector(6), inputs[0]))
	}, values(m), gradientDelta)
	graphtest.RunGradientCheck(t, "Transpose", func(inputs []*Node) *Node {
		transposed := Transpose(shapes.Matrix(3, 2), inputs[0])
		return Mul(shapes.Matrix(3, 2), transposed, transposed)
	}, values(m), gradientDelta)
}

func TestGradientLosses(t *testing.T) {
	batches.SetSeed(42)
	labels := batches.FromSlices([][][]float64{{{0}, {1}, {0}}, {{1}, {0}, {0}}})
	logits := batches.FromSlices([][][]float64{{{0.5}, {-1}, {2}}, {{0.1}, {0.2}, {-0.3}}})
	shape := labels.Shape()

	for _, loss := range []struct {
		name string
		fn   func(shape shapes.Shape, y, yHat *Node) *Node
	}{
		{"CrossEntropyLoss", CrossEntropyLoss},
		{"BinaryCrossEntropyLoss", BinaryCrossEntropyLoss},
		{"MSELoss", MSELoss},
		{"HammingLoss", func(shape shapes.Shape, y, yHat *Node) *Node { return HammingLoss(shape, y, yHat, 0, nil) }},
	} {
		graphtest.RunGradientCheck(t, loss.name, func(inputs []*Node) *Node {
			y := Placeholder(shape)
			y.SetValue(labels)
			return loss.fn(shapes.Scalar(), y, Softmax(shape, inputs[0]))
		}, values(logits), gradientDelta)
	}

	graphtest.RunGradientCheck(t, "FrobeniusNorm", func(inputs []*Node) *Node {
		return FrobeniusNorm(shapes.Scalar(), inputs[0])
	}, values(batches.FromMatrix([][]float64{{1, -2}, {0.5, 3}})), gradientDelta)
}
