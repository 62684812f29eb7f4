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

// Package graphtest holds test utilities for packages that depend on the graph package.
package graphtest

import (
	"fmt"
	"testing"

	"github.com/eventflow/dualgraph/graph"
	"github.com/eventflow/dualgraph/types/batches"
	"github.com/stretchr/testify/require"
)

// Epsilon is the step used for the central finite differences.
const Epsilon = 1e-6

// TestGraphFn builds the graph to be tested from its inputs, and returns its output.
type TestGraphFn func(inputs []*graph.Node) *graph.Node

// NewInputs creates one Variable per value, named "x0", "x1", ..., with a copy of the value.
func NewInputs(values ...*batches.Batch) []*graph.Node {
	inputs := make([]*graph.Node, len(values))
	for ii, value := range values {
		inputs[ii] = graph.Variable(fmt.Sprintf("x%d", ii), value.Shape(), value.Copy())
	}
	return inputs
}

// NumericGradients returns the gradients of Σ weights·f(x) with respect to each of the inputs,
// estimated with central finite differences. The inputs must be Variables or Placeholders of
// the graph root depends on.
//
// The values of the inputs are restored before returning.
func NumericGradients(root *graph.Node, inputs []*graph.Node, weights *batches.Batch) []*batches.Batch {
	nodes, _ := graph.Collect(root)
	eval := func() float64 {
		graph.ResetAll(nodes)
		return root.Value().Mul(weights).Sum()
	}
	gradients := make([]*batches.Batch, len(inputs))
	for ii, input := range inputs {
		value := input.Value()
		gradient := batches.New(input.Shape())
		for b := range value.Size() {
			for row := range value.Rows() {
				for column := range value.Columns() {
					original := value.At(b, row, column)
					value.Set(b, row, column, original+Epsilon)
					plus := eval()
					value.Set(b, row, column, original-Epsilon)
					minus := eval()
					value.Set(b, row, column, original)
					gradient.Set(b, row, column, (plus-minus)/(2*Epsilon))
				}
			}
		}
		gradients[ii] = gradient
	}
	graph.ResetAll(nodes)
	return gradients
}

// RunGradientCheck builds the graph with graphFn over Variables holding the given values, and
// compares the gradients computed by reverse-mode differentiation (Node.Dual) with the ones
// estimated with finite differences.
//
// The output is multiplied by fixed random weights before it is reduced, so that the check
// is sensitive to the position of each gradient element, and not only to their sum.
//
// delta is the margin on the difference of the analytic and numeric gradients that is acceptable.
func RunGradientCheck(t *testing.T, testName string, graphFn TestGraphFn, values []*batches.Batch, delta float64) {
	t.Run(testName, func(t *testing.T) {
		inputs := NewInputs(values...)
		output := graphFn(inputs)
		weights := graph.Placeholder(output.Shape())
		weights.SetValue(batches.Rand(output.Shape()))
		root := graph.Mul(output.Shape(), output, weights)

		nodes, _ := graph.Collect(root)
		graph.ResetAll(nodes)
		require.NotPanicsf(t, func() { root.Value() }, "%s: failed to evaluate graph", testName)
		analytic := make([]*batches.Batch, len(inputs))
		for ii, input := range inputs {
			analytic[ii] = input.Dual()
		}

		numeric := NumericGradients(output, inputs, weights.Value())
		for ii := range inputs {
			require.Truef(t, analytic[ii].InDelta(numeric[ii], delta),
				"%s: gradient of input #%d:\n\tgot  %s\n\twant %s", testName, ii, analytic[ii], numeric[ii])
		}
	})
}
