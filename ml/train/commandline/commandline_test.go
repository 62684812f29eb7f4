package commandline

import (
	"bytes"
	"testing"

	"github.com/eventflow/dualgraph/graph"
	"github.com/eventflow/dualgraph/ml/train/metrics"
	"github.com/eventflow/dualgraph/types/batches"
	"github.com/eventflow/dualgraph/types/shapes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSettings(t *testing.T) {
	defaults := DefaultSettings()
	s, err := ParseSettings("learning_rate=0.01;max_iterations=10_000;progress_bar=true;", defaults)
	require.NoError(t, err)
	assert.Equal(t, 0.01, s.LearningRate)
	assert.Equal(t, 10000, s.MaxIterations)
	assert.True(t, s.ProgressBar)
	assert.Equal(t, defaults.Threshold, s.Threshold)
	assert.Equal(t, defaults.LogEvery, s.LogEvery)

	// String is parsed back to the same settings.
	s2, err := ParseSettings(s.String(), DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, s, s2)

	// Empty settings return the defaults.
	s, err = ParseSettings("", defaults)
	require.NoError(t, err)
	assert.Equal(t, defaults, s)

	_, err = ParseSettings("momentum=0.9", defaults)
	require.Error(t, err)
	_, err = ParseSettings("learning_rate", defaults)
	require.Error(t, err)
	_, err = ParseSettings("max_iterations=many", defaults)
	require.Error(t, err)
}

func TestReport(t *testing.T) {
	shape := shapes.Vector(2)
	w := graph.Variable("weights", shape, batches.FromVector(3, 4))
	target := graph.Placeholder(shape)
	target.SetValue(batches.FromVector(1, 1))
	loss := graph.MSELoss(shapes.Scalar(), target, w)

	s := DefaultSettings()
	s.LearningRate = 0.1
	s.MaxIterations = 3
	o := s.NewOptimization(loss).WithMetrics(metrics.NewMovingAverageLoss(0.1))
	o.Fit()
	require.Equal(t, 3, o.Iterations())

	var buf bytes.Buffer
	require.NoError(t, Report(&buf, o))
	report := buf.String()
	assert.Contains(t, report, "Iterations")
	assert.Contains(t, report, "Final loss")
	assert.Contains(t, report, "Moving Average Loss")
	assert.Contains(t, report, "weights")
	assert.Contains(t, report, "[1, 2, 1]")

	table := VariablesTable([]*graph.Node{graph.Variable("v", shape, batches.FromVector(3, -4))}).String()
	assert.Contains(t, table, "5")
	assert.Contains(t, table, "-4")
}
