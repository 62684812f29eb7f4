package optimizers

import (
	"errors"
	"math"
	"testing"

	"github.com/eventflow/dualgraph/graph"
	"github.com/eventflow/dualgraph/ml/train/metrics"
	"github.com/eventflow/dualgraph/types/batches"
	"github.com/eventflow/dualgraph/types/shapes"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// squaredDistance builds (x-1)² as the product of x+c by itself, with c = -1.
func squaredDistance(initial float64) (x, loss *graph.Node) {
	shape := shapes.Scalar()
	x = graph.Variable("x", shape, batches.Scalar(initial))
	c := graph.Placeholder(shape)
	c.SetValue(batches.Scalar(-1))
	diff := graph.Sum(shape, x, c)
	loss = graph.Matmul(shape, diff, diff)
	return
}

func TestFitSquaredDistance(t *testing.T) {
	x, loss := squaredDistance(0)
	o := New(0.001, 1e-5, loss)
	require.Equal(t, []*graph.Node{x}, o.Variables())
	require.Equal(t, loss, o.Loss())

	final := o.Fit()
	// Fit stops when the loss changes by less than 1e-5 per iteration, which happens when |x-1| ≈ 0.05.
	assert.InDelta(t, 1.0, x.Value().Value(), 0.06)
	assert.Less(t, final, 0.004)
	assert.Greater(t, o.Iterations(), 100)
	require.Len(t, o.Losses(), o.Iterations())
	assert.InDelta(t, 1.0, o.Losses()[0], 1e-12)

	// The loss never increases with this learning rate.
	for ii := 1; ii < len(o.Losses()); ii++ {
		require.LessOrEqual(t, o.Losses()[ii], o.Losses()[ii-1])
	}
}

func TestStep(t *testing.T) {
	x, loss := squaredDistance(3)
	o := New(0.1, 0, loss)
	require.InDelta(t, 4.0, o.Step(), 1e-12)
	// Gradient is 2(x-1) = 4.
	require.InDelta(t, 2.6, x.Value().Value(), 1e-12)
	require.InDelta(t, 2.56, o.Step(), 1e-12)
	require.Equal(t, 2, o.Iterations())
}

func TestMetrics(t *testing.T) {
	_, loss := squaredDistance(3)
	mean := metrics.NewMeanMetric("Mean Loss", "mean", metrics.LossMetricType, nil)
	median := metrics.NewMedianLoss()
	o := New(0.1, 0, loss).WithMetrics(mean).WithMetrics(median)
	require.Len(t, o.Metrics(), 2)
	o.Step()
	o.Step()
	// Losses are 4 and 2.56.
	require.InDelta(t, 3.28, mean.Value(), 1e-12)
	require.InDelta(t, 2.56, o.Losses()[1], 1e-12)
	require.Greater(t, median.Value(), 0.0)
}

func TestGradientClipping(t *testing.T) {
	x, loss := squaredDistance(0)
	o := New(1, 1e-5, loss).GradientClipping(0.001)
	o.Step()
	require.InDelta(t, 0.001, x.Value().Value(), 1e-12)
}

func TestMaxIterations(t *testing.T) {
	// With this learning rate x-1 is multiplied by -2 at every iteration: it never converges.
	x, loss := squaredDistance(0)
	o := New(1.5, 1e-5, loss).MaxIterations(25).LogEvery(5)
	final := must.M1(o.FitOrError())
	require.Equal(t, 25, o.Iterations())
	require.Equal(t, math.Pow(4, 24), final)
	require.Equal(t, 1+math.Pow(2, 25), x.Value().Value())
}

func TestFitFrobeniusNorm(t *testing.T) {
	m := graph.Variable("m", shapes.Matrix(2, 2), batches.FromMatrix([][]float64{{1, 2}, {2, 4}}))
	norm := graph.FrobeniusNorm(shapes.Scalar(), m)
	o := New(0.01, 1e-6, norm).MaxIterations(1000)
	o.Fit()
	require.LessOrEqual(t, o.Iterations(), 1000)
	// Each iteration reduces the norm by the learning rate, until it reaches ~0.
	nodes, _ := graph.Collect(norm)
	graph.ResetAll(nodes)
	require.Less(t, norm.Value().Value(), 0.011)
}

func TestFitOrError(t *testing.T) {
	shape := shapes.Vector(3)
	w := graph.Variable("w", shape, nil)
	labels := graph.Placeholder(shape)
	loss := graph.MSELoss(shapes.Scalar(), labels, w)
	o := New(0.1, 1e-9, loss)
	_, err := o.FitOrError()
	require.Error(t, err)
	require.True(t, errors.Is(err, graph.ErrMissingValue), "got %v", err)

	// Once the labels are set, w converges to them.
	labels.SetValue(batches.FromVector(1, -2, 3))
	must.M1(o.FitOrError())
	require.True(t, w.Value().InDelta(batches.FromVector(1, -2, 3), 1e-3), "w=%s", w.Value())
}

func TestNewValidation(t *testing.T) {
	_, loss := squaredDistance(0)
	require.Panics(t, func() { New(0, 1e-5, loss) })
	require.Panics(t, func() { New(0.1, -1, loss) })
	require.Panics(t, func() { New(0.1, 1e-5, graph.Variable("v", shapes.Vector(2), nil)) })
}
