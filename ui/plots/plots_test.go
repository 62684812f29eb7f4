package plots

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoints(t *testing.T) {
	points := LossPoints([]float64{4, 2, 1})
	require.Len(t, points, 3)
	assert.Equal(t, Point{MetricName: "loss", Step: 1, Value: 4}, points[0])
	assert.Equal(t, 3.0, points[2].Step)

	filePath := filepath.Join(t.TempDir(), TrainingPlotFileName)
	require.NoError(t, SavePoints(filePath, points))
	assert.Equal(t, points, must.M1(LoadPoints(filePath)))

	_, err := LoadPoints(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestSaveImage(t *testing.T) {
	dir := t.TempDir()
	points := LossPoints([]float64{4, 2, math.NaN(), 1, 0.5})
	for _, name := range []string{"loss.png", "loss.svg"} {
		filePath := filepath.Join(dir, name)
		require.NoError(t, SaveImage(filePath, "Loss", points, true))
		info, err := os.Stat(filePath)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}

	// Nothing to plot.
	err := SaveImage(filepath.Join(dir, "empty.png"), "Empty", LossPoints([]float64{0, -1}), true)
	require.Error(t, err)
}

func TestRenderSVG(t *testing.T) {
	var buf bytes.Buffer
	points := append(LossPoints([]float64{4, 2, 1}), Point{MetricName: "norm", Step: 2, Value: 3})
	require.NoError(t, RenderSVG(&buf, "Loss", points, 640, 320, false))
	assert.Contains(t, buf.String(), "<svg")
	assert.Contains(t, buf.String(), "Loss")

	buf.Reset()
	require.Error(t, RenderSVG(&buf, "Empty", nil, 640, 320, false))
}
