package metrics

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStreamingMedian(t *testing.T) {
	metric := NewMedianLoss()

	// Sample from 0.01 < r < 1.0 randomly (so median r is expected to be 0.99/2 = 0.495),
	// and then feed StreamingMedian values of 1/r (so median is expected to be 1/0.495 = 2.0202020...).
	const numExamples = 100_001
	rng := rand.New(rand.NewPCG(42, 7))
	var median float64
	values := make([]float64, 0, numExamples)
	for range numExamples {
		r := 1 / (rng.Float64()*0.99 + 0.01)
		values = append(values, r)
		median = metric.Update(r)
	}
	slices.Sort(values)
	want := values[numExamples/2]
	t.Logf("got median=%.5g, wanted median=%.5g", median, want)
	require.InDelta(t, want, median, 0.01)
	require.Equal(t, median, metric.Value())

	metric.Reset()
	require.Equal(t, 0.0, metric.Value())
	require.Equal(t, 3.0, metric.Update(3))
}
