package main

import (
	"github.com/eventflow/dualgraph/graph"
	"github.com/eventflow/dualgraph/ml/train/metrics"
	"github.com/eventflow/dualgraph/types/batches"
	"github.com/eventflow/dualgraph/types/shapes"
)

// syntheticRegression returns random inputs x_i and labels y_i = H·x_i for a random hidden matrix H.
func syntheticRegression(numSamples, numInputs, numOutputs int) (inputs, labels []*batches.Batch) {
	hidden := batches.Rand(shapes.Matrix(numOutputs, numInputs))
	for range numSamples {
		x := batches.Rand(shapes.Vector(numInputs))
		inputs = append(inputs, x)
		labels = append(labels, hidden.Times(x))
	}
	return
}

// regression returns the loss of fitting the "weights" variable W to the pairs (inputs[i], labels[i]):
// the sum over samples of MSE(y_i, W·x_i). All inputs must have the same shape, and so must the labels.
func regression(inputs, labels []*batches.Batch) *graph.Node {
	numInputs, numOutputs := inputs[0].Rows(), labels[0].Rows()
	weightsShape := shapes.Matrix(numOutputs, numInputs)
	weights := graph.Variable("weights", weightsShape, batches.Xavier(weightsShape))
	losses := make([]*graph.Node, 0, len(inputs))
	for ii, x := range inputs {
		input := graph.Placeholder(shapes.Vector(numInputs))
		input.SetValue(x)
		label := graph.Placeholder(shapes.Vector(numOutputs))
		label.SetValue(labels[ii])
		prediction := graph.Matmul(shapes.Vector(numOutputs), weights, input)
		losses = append(losses, graph.MSELoss(shapes.Scalar(), label, prediction))
	}
	return graph.Sum(shapes.Scalar(), losses...)
}

// classification returns the loss of fitting the "weights" variable W so that softmax(W·x_i)
// predicts the class of x_i: the sum over samples of the cross-entropy. The class of each random
// x_i is given by its largest coordinate among the first numClasses ones.
//
// It also returns a function that measures the accuracy of the current predictions. It must be
// called after the loss has been evaluated with the current weights.
func classification(numSamples, numInputs, numClasses int) (loss *graph.Node, accuracy func() float64) {
	weights := graph.Variable("weights", shapes.Matrix(numClasses, numInputs), batches.Xavier(shapes.Matrix(numClasses, numInputs)))
	losses := make([]*graph.Node, 0, numSamples)
	labels := make([]*graph.Node, 0, numSamples)
	predictions := make([]*graph.Node, 0, numSamples)
	for range numSamples {
		x := batches.Rand(shapes.Vector(numInputs))
		input := graph.Placeholder(shapes.Vector(numInputs))
		input.SetValue(x)
		label := graph.Placeholder(shapes.Vector(numClasses))
		label.SetValue(oneHot(numClasses, argMax(x.Flat()[:min(numClasses, numInputs)])))
		logits := graph.Matmul(shapes.Vector(numClasses), weights, input)
		probabilities := graph.Softmax(shapes.Vector(numClasses), logits)
		losses = append(losses, graph.CrossEntropyLoss(shapes.Scalar(), label, probabilities))
		labels = append(labels, label)
		predictions = append(predictions, probabilities)
	}
	accuracy = func() float64 {
		mean := metrics.NewMeanAccuracy("Accuracy", "acc")
		for ii, label := range labels {
			mean.Update(metrics.CategoricalAccuracy(label.Value(), predictions[ii].Value()))
		}
		return mean.Value()
	}
	return graph.Sum(shapes.Scalar(), losses...), accuracy
}

func argMax(values []float64) int {
	best := 0
	for ii, v := range values {
		if v > values[best] {
			best = ii
		}
	}
	return best
}

func oneHot(n, class int) *batches.Batch {
	b := batches.Zeros(shapes.Vector(n))
	b.Set(0, class, 0, 1)
	return b
}
