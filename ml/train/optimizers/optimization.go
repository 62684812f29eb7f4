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

// Package optimizers implements the gradient descent driver that fits the Variables of a graph
// to minimize a scalar loss.
package optimizers

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"github.com/eventflow/dualgraph/graph"
	"github.com/eventflow/dualgraph/ml/train/metrics"
	"github.com/eventflow/dualgraph/types/batches"
	"github.com/eventflow/dualgraph/types/shapes"
	"github.com/gomlx/exceptions"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

const (
	// DefaultLogEvery is the default number of iterations between log lines of the loss (with verbosity 1).
	DefaultLogEvery = 100

	// initialLossGap is subtracted from the initial loss, so Fit always runs at least one iteration.
	initialLossGap = 0.1
)

// Optimization minimizes a scalar loss by gradient descent over all the Variables it depends on.
//
// Create it with New, optionally configure it with the chained setters (LogEvery, MaxIterations,
// GradientClipping, ProgressBar), and call Fit.
type Optimization struct {
	learningRate, threshold float64
	loss                    *graph.Node

	// nodes are all the nodes the loss depends on, reset before every forward pass.
	nodes     []*graph.Node
	variables []*graph.Node

	logEvery         int
	maxIterations    int
	clippingNorm     float64
	showProgressBar  bool
	iterations       int
	lastReportedLoss float64

	// losses holds the loss computed by each Step.
	losses []float64

	metrics []metrics.Interface
}

// New creates a gradient descent optimization of loss, a node with a scalar output.
//
// The graph is traversed once, to collect all nodes and the Variables (the trainable parameters).
// Fit stops when the loss changes by no more than threshold from one iteration to the next.
func New(learningRate, threshold float64, loss *graph.Node) *Optimization {
	if learningRate <= 0 {
		exceptions.Panicf("optimizers.New: learning rate must be > 0, got %g", learningRate)
	}
	if threshold < 0 {
		exceptions.Panicf("optimizers.New: threshold must be >= 0, got %g", threshold)
	}
	shapes.AssertScalar(loss)
	o := &Optimization{
		learningRate: learningRate,
		threshold:    threshold,
		loss:         loss,
		logEvery:     DefaultLogEvery,
	}
	o.nodes, o.variables = graph.Collect(loss)
	klog.V(1).Infof("optimization of %s: %d nodes, %d variables", loss, len(o.nodes), len(o.variables))
	return o
}

// LogEvery sets the number of iterations between log lines with the current loss, logged with
// verbosity level 1. A value <= 0 disables it. Default is DefaultLogEvery.
func (o *Optimization) LogEvery(n int) *Optimization {
	o.logEvery = n
	return o
}

// MaxIterations limits the number of iterations run by Fit. Default is 0, meaning no limit:
// Fit only stops when the loss converges.
func (o *Optimization) MaxIterations(n int) *Optimization {
	o.maxIterations = n
	return o
}

// GradientClipping clips each column of the update (the gradient scaled by the learning rate) of
// every Variable to the given Euclidean norm. Default is 0, meaning no clipping.
func (o *Optimization) GradientClipping(threshold float64) *Optimization {
	o.clippingNorm = threshold
	return o
}

// ProgressBar enables a progress bar on the terminal while fitting. Default is false.
func (o *Optimization) ProgressBar(enabled bool) *Optimization {
	o.showProgressBar = enabled
	return o
}

// WithMetrics adds metrics updated with the loss of every Step, e.g.: metrics.NewMovingAverageLoss.
func (o *Optimization) WithMetrics(ms ...metrics.Interface) *Optimization {
	o.metrics = append(o.metrics, ms...)
	return o
}

// Metrics returns the metrics configured with WithMetrics.
func (o *Optimization) Metrics() []metrics.Interface { return o.metrics }

// Variables returns the trainable parameters being optimized, in the order they were found.
func (o *Optimization) Variables() []*graph.Node { return o.variables }

// Iterations returns the number of iterations (calls to Step) run so far.
func (o *Optimization) Iterations() int { return o.iterations }

// Losses returns the loss computed at each iteration run so far.
func (o *Optimization) Losses() []float64 { return o.losses }

// Loss returns the loss node being minimized.
func (o *Optimization) Loss() *graph.Node { return o.loss }

// Step runs one iteration: it resets all nodes, recomputes the loss (forward pass) and updates
// each Variable v with v - learningRate·∂loss/∂v. It returns the loss computed before the update.
func (o *Optimization) Step() float64 {
	graph.ResetAll(o.nodes)
	loss := o.loss.Value().Value()

	// All gradients are read before any Variable is changed.
	updates := make([]*batches.Batch, len(o.variables))
	for ii, v := range o.variables {
		update := v.Dual().Scale(-o.learningRate)
		if o.clippingNorm > 0 {
			update = update.Clip(o.clippingNorm)
		}
		updates[ii] = update
	}
	for ii, v := range o.variables {
		v.SetValue(v.Value().Plus(updates[ii]))
	}

	o.iterations++
	o.losses = append(o.losses, loss)
	for _, m := range o.metrics {
		m.Update(loss)
	}
	if o.logEvery > 0 && o.iterations%o.logEvery == 0 && klog.V(1).Enabled() {
		klog.Infof("iteration %s: loss=%g (Δ=%g)", humanize.Comma(int64(o.iterations)), loss, loss-o.lastReportedLoss)
		o.lastReportedLoss = loss
	}
	return loss
}

// Fit runs Step until the loss converges, that is, until it changes by no more than the threshold
// between consecutive iterations, or until MaxIterations is reached. It returns the last loss.
//
// Convergence is only measured on the loss, so Fit may stop early on a plateau, and it never stops on
// an oscillating loss unless MaxIterations is set.
//
// Errors (e.g.: a Placeholder without value) are raised as panics, see FitOrError.
func (o *Optimization) Fit() float64 {
	graph.ResetAll(o.nodes)
	oldLoss := o.loss.Value().Value()
	newLoss := oldLoss - initialLossGap
	o.lastReportedLoss = oldLoss

	var bar *progressbar.ProgressBar
	if o.showProgressBar {
		maxSteps := -1 // Unknown number of steps.
		if o.maxIterations > 0 {
			maxSteps = o.maxIterations
		}
		bar = progressbar.NewOptions(maxSteps,
			progressbar.OptionSetDescription("Fitting: "),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("iterations"),
			progressbar.OptionSetTheme(progressbar.ThemeUnicode),
		)
		defer func() { _ = bar.Finish() }()
	}

	startIteration := o.iterations
	for math.Abs(oldLoss-newLoss) > o.threshold {
		if o.maxIterations > 0 && o.iterations-startIteration >= o.maxIterations {
			klog.Warningf("optimization stopped after %s iterations without converging: loss=%g, last change=%g",
				humanize.Comma(int64(o.maxIterations)), newLoss, math.Abs(oldLoss-newLoss))
			return newLoss
		}
		oldLoss = newLoss
		newLoss = o.Step()
		if bar != nil {
			_ = bar.Add(1)
			bar.Describe(fmt.Sprintf("Fitting (loss=%.6g): ", newLoss))
		}
	}
	klog.V(1).Infof("optimization converged after %s iterations: loss=%g",
		humanize.Comma(int64(o.iterations-startIteration)), newLoss)
	return newLoss
}

// FitOrError is like Fit, but it returns an error instead of panicking.
func (o *Optimization) FitOrError() (loss float64, err error) {
	err = exceptions.TryCatch[error](func() { loss = o.Fit() })
	return
}
