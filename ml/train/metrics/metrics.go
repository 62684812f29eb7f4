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

// Package metrics holds a library of metrics: streaming aggregations of the loss (or any scalar)
// observed at each optimization step, and accuracy measures of predictions.
package metrics

import (
	"fmt"

	"github.com/eventflow/dualgraph/types/batches"
	"github.com/eventflow/dualgraph/types/shapes"
	"github.com/pkg/errors"
)

// Interface for a Metric.
type Interface interface {
	// Name of the metric.
	Name() string

	// ShortName is a shortened version of the name (preferably a few characters) to display in progress bars or
	// similar UIs.
	ShortName() string

	// MetricType is a key for metrics that share the same quantity or semantics. Eg.:
	// "Moving-Average-Loss" and "Mean-Loss" would both have the same "loss" metric type.
	MetricType() string

	// Update the metric with a new observed value and return the current value of the metric.
	Update(value float64) float64

	// Value returns the current value of the metric, 0 if nothing was observed yet.
	Value() float64

	// PrettyPrint is used to pretty-print a metric value, usually in a short form.
	PrettyPrint(value float64) string

	// Reset metrics internal counters, when starting a new evaluation.
	Reset()
}

const (
	LossMetricType     = "loss"
	AccuracyMetricType = "accuracy"
)

// PrettyPrintFn is a function to convert a metric value to a string.
type PrettyPrintFn func(value float64) string

// baseMetric holds the names of a metric.
type baseMetric struct {
	name, shortName, metricType string
	pPrintFn                    PrettyPrintFn // if nil will display default.
}

func (m *baseMetric) Name() string {
	return m.name
}

func (m *baseMetric) ShortName() string {
	return m.shortName
}

func (m *baseMetric) MetricType() string {
	return m.metricType
}

func (m *baseMetric) PrettyPrint(value float64) string {
	if m.pPrintFn == nil {
		return fmt.Sprintf("%.3g", value)
	}
	return m.pPrintFn(value)
}

// meanMetric keeps the mean of all observed values.
type meanMetric struct {
	baseMetric
	mean  float64
	count int64
}

// NewMeanMetric creates a metric that returns the mean of all values observed since the last Reset.
// pPrintFn can be left as nil, and a default will be used.
func NewMeanMetric(name, shortName, metricType string, pPrintFn PrettyPrintFn) Interface {
	return &meanMetric{baseMetric: baseMetric{name: name, shortName: shortName, metricType: metricType, pPrintFn: pPrintFn}}
}

// Update implements metrics.Interface.
func (m *meanMetric) Update(value float64) float64 {
	m.count++
	m.mean += (value - m.mean) / float64(m.count)
	return m.mean
}

// Value implements metrics.Interface.
func (m *meanMetric) Value() float64 { return m.mean }

// Reset implements metrics.Interface.
func (m *meanMetric) Reset() {
	m.mean = 0
	m.count = 0
}

// movingAverageMetric implements an exponential moving average.
//
// It behaves just like a meanMetric, but each new value has weight of newExampleWeight, and
// the stored weight is capped at (1-newExampleWeight).
type movingAverageMetric struct {
	meanMetric
	newExampleWeight float64
}

// NewExponentialMovingAverageMetric creates a metric that takes new values with the given weight (newExampleWeight),
// and decays the rest by 1-newExampleWeight.
//
// A typical value of newExampleWeight is 0.01, the smaller the value, the slower the moving average moves.
// pPrintFn can be left as nil, and a default will be used.
//
// This doesn't have a set prior, it will start being a normal average until there are enough terms, and it becomes
// an exponential moving average.
func NewExponentialMovingAverageMetric(name, shortName, metricType string, pPrintFn PrettyPrintFn, newExampleWeight float64) Interface {
	if newExampleWeight <= 0 || newExampleWeight > 1 {
		panic(errors.Errorf("metric %q: newExampleWeight must be in (0, 1], got %g", name, newExampleWeight))
	}
	return &movingAverageMetric{meanMetric: meanMetric{baseMetric: baseMetric{
		name: name, shortName: shortName, metricType: metricType, pPrintFn: pPrintFn}}, newExampleWeight: newExampleWeight}
}

// Update implements metrics.Interface.
func (m *movingAverageMetric) Update(value float64) float64 {
	m.count++
	weight := max(m.newExampleWeight, 1/float64(m.count))
	m.mean = m.mean*(1-weight) + value*weight
	return m.mean
}

func accuracyPPrint(value float64) string {
	return fmt.Sprintf("%.2f%%", 100*value)
}

// NewMeanAccuracy returns a mean metric of accuracies (see BinaryAccuracy and CategoricalAccuracy),
// printed as a percentage.
func NewMeanAccuracy(name, shortName string) Interface {
	return NewMeanMetric(name, shortName, AccuracyMetricType, accuracyPPrint)
}

// NewMovingAverageLoss returns an exponential moving average of the loss.
func NewMovingAverageLoss(newExampleWeight float64) Interface {
	return NewExponentialMovingAverageMetric("Moving Average Loss", "~loss", LossMetricType, nil, newExampleWeight)
}

// BinaryAccuracy returns the fraction of elements of predictions (probabilities) that, when thresholded at 0.5,
// match the labels, which are expected to be 0 or 1. Labels and predictions must have the same shape.
func BinaryAccuracy(labels, predictions *batches.Batch) float64 {
	shapes.AssertSame("BinaryAccuracy", labels, predictions)
	labelsFlat, predictionsFlat := labels.Flat(), predictions.Flat()
	var correct int
	for ii, y := range labelsFlat {
		if (predictionsFlat[ii] > 0.5) == (y > 0.5) {
			correct++
		}
	}
	return float64(correct) / float64(len(labelsFlat))
}

// CategoricalAccuracy returns the fraction of columns of predictions whose largest row is the largest row of the
// corresponding column in labels (usually one-hot encoded). Each column of each batch element is one example.
func CategoricalAccuracy(labels, predictions *batches.Batch) float64 {
	shapes.AssertSame("CategoricalAccuracy", labels, predictions)
	var correct, total int
	for i := range labels.Size() {
		for j := range labels.Columns() {
			if argMaxRow(labels, i, j) == argMaxRow(predictions, i, j) {
				correct++
			}
			total++
		}
	}
	return float64(correct) / float64(total)
}

func argMaxRow(b *batches.Batch, batchIdx, column int) int {
	best := 0
	for row := 1; row < b.Rows(); row++ {
		if b.At(batchIdx, row, column) > b.At(batchIdx, best, column) {
			best = row
		}
	}
	return best
}
