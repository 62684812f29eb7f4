package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eventflow/dualgraph/ml/train/optimizers"
	"github.com/eventflow/dualgraph/types/batches"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegression(t *testing.T) {
	batches.SetSeed(1)
	loss := regression(syntheticRegression(6, 3, 2))
	opt := optimizers.New(0.05, 1e-10, loss).MaxIterations(5_000)
	opt.Fit()
	losses := opt.Losses()
	require.NotEmpty(t, losses)
	assert.Less(t, losses[len(losses)-1], losses[0])
	assert.Len(t, opt.Variables(), 1)
}

func TestClassification(t *testing.T) {
	batches.SetSeed(1)
	loss, accuracy := classification(6, 4, 3)
	opt := optimizers.New(0.1, 1e-10, loss).MaxIterations(2_000)
	opt.Fit()
	losses := opt.Losses()
	require.NotEmpty(t, losses)
	assert.Less(t, losses[len(losses)-1], losses[0])
	acc := accuracy()
	assert.GreaterOrEqual(t, acc, 0.0)
	assert.LessOrEqual(t, acc, 1.0)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, 2, argMax([]float64{0.1, 0.3, 0.7, 0.2}))
	assert.Equal(t, []float64{0, 1, 0}, oneHot(3, 1).Flat())
}

func TestLoadCSV(t *testing.T) {
	csv := "a,y,b\n1,10,2\n3,22,4\n5,34,6\n"
	inputs, labels, err := loadCSV(strings.NewReader(csv), []string{"y"})
	require.NoError(t, err)
	require.Len(t, inputs, 3)
	require.Len(t, labels, 3)
	assert.Equal(t, []float64{3, 4}, inputs[1].Flat())
	assert.Equal(t, []float64{34}, labels[2].Flat())

	// y = 2a + 4b is fitted exactly.
	opt := optimizers.New(0.01, 1e-12, regression(inputs, labels)).MaxIterations(20_000)
	opt.Fit()
	assert.InDelta(t, 0, opt.Losses()[len(opt.Losses())-1], 1e-3)

	_, _, err = loadCSV(strings.NewReader(csv), []string{"z"})
	require.Error(t, err)
	_, _, err = loadCSV(strings.NewReader("a,y\n1,x\n"), []string{"y"})
	require.Error(t, err)
	// A non-numeric label among numeric ones is not read as NaN.
	_, _, err = loadCSV(strings.NewReader("a,y\n1,x\n2,3\n"), []string{"y"})
	require.ErrorContains(t, err, `"y"`)
	// Non-numeric and missing inputs.
	_, _, err = loadCSV(strings.NewReader("a,y\nfoo,1\n2,3\n"), []string{"y"})
	require.ErrorContains(t, err, `"a"`)
	_, _, err = loadCSV(strings.NewReader("a,b,y\n1,,1\n2,4,3\n"), []string{"y"})
	require.ErrorContains(t, err, `"b"`)
	_, _, err = loadCSV(strings.NewReader("y\n1\n"), []string{"y"})
	require.Error(t, err)
}

func TestLoadCSVFile(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "samples.csv")
	require.NoError(t, os.WriteFile(filePath, []byte("a,y\n1,2\n3,6\n"), 0644))
	inputs, labels, err := loadCSVFile(filePath, []string{"y"})
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, []float64{6}, labels[1].Flat())

	_, _, err = loadCSVFile(filepath.Join(t.TempDir(), "missing.csv"), []string{"y"})
	require.Error(t, err)
}
