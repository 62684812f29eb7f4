package metrics

// StreamingMedianMetric implements a metric that keeps an approximate median of a metric from a streaming
// input, using constant memory.
type StreamingMedianMetric struct {
	baseMetric

	markers  [5]float64
	counters [5]int64
}

// NewMedianMetric creates a streaming median metric.
//
// It uses the P^2 algorithm, described in the paper https://dl.acm.org/doi/abs/10.1145/4372.4378,
// and in a more friendly way in the post in: https://www.baeldung.com/cs/streaming-median
//
// `prettyPrintFn` can be left as nil, and a default will be used.
func NewMedianMetric(name, shortName, metricType string, prettyPrintFn PrettyPrintFn) *StreamingMedianMetric {
	return &StreamingMedianMetric{
		baseMetric: baseMetric{name: name, shortName: shortName, metricType: metricType, pPrintFn: prettyPrintFn},
	}
}

// NewMedianLoss returns a streaming median of the loss.
func NewMedianLoss() *StreamingMedianMetric {
	return NewMedianMetric("Median Loss", "med", LossMetricType, nil)
}

var p2quantiles = [5]float64{0, 0.25, 0.5, 0.75, 1}

// Update implements metrics.Interface.
func (m *StreamingMedianMetric) Update(x float64) float64 {
	if m.counters[4] == 0 {
		// This is the very first element:
		for i := range 5 {
			m.markers[i] = x
			if i > 0 {
				m.counters[i] = 1
			}
		}
		return m.markers[2]
	}

	// Update the first and last markers and counters:
	m.markers[0] = min(x, m.markers[0])
	m.markers[4] = max(x, m.markers[4])
	// m.counter[0] is always 0.
	m.counters[4]++ // Always incremented.
	for i := 1; i < 4; i++ {
		if x <= m.markers[i] {
			m.counters[i]++
		}
	}

	// Find inner ideal counters:
	var idealCounters [5]float64
	currentN := float64(m.counters[4])
	for i := 1; i < 4; i++ {
		idealCounters[i] = p2quantiles[i] * (currentN - 1)
	}

	// Adjust counts and markers where needed:
	for i := 1; i < 4; i++ {
		d := idealCounters[i] - float64(m.counters[i])
		switch {
		case d >= 1:
			d = 1
			if m.counters[i] >= m.counters[i+1] || m.markers[i] >= m.markers[i+1] {
				continue
			}
		case d <= -1:
			d = -1
			if m.counters[i] <= m.counters[i-1] || m.markers[i] <= m.markers[i-1] {
				continue
			}
		default:
			continue
		}
		m.markers[i] = m.adjustedMarker(i, d)
		m.counters[i] += int64(d)
	}
	return m.markers[2]
}

// adjustedMarker returns the new height of marker i when moved by d (±1) positions: parabolic
// interpolation if possible, linear otherwise.
func (m *StreamingMedianMetric) adjustedMarker(i int, d float64) float64 {
	nCurrent := float64(m.counters[i])
	dnPrevious := nCurrent - float64(m.counters[i-1])
	dnNext := float64(m.counters[i+1]) - nCurrent
	dnOuter := float64(m.counters[i+1] - m.counters[i-1])
	dqPrevious := m.markers[i] - m.markers[i-1]
	dqNext := m.markers[i+1] - m.markers[i]
	dqOuter := m.markers[i+1] - m.markers[i-1]

	switch {
	case dnPrevious > 0 && dnNext > 0 && dnOuter > 0:
		term1 := (dnPrevious + d) * dqNext / dnNext
		term2 := (dnNext - d) * dqPrevious / dnPrevious
		return m.markers[i] + d/dnOuter*(term1+term2)
	case dnOuter > 0:
		return m.markers[i-1] + (dnPrevious+d)*dqOuter/dnOuter
	default:
		// All markers are clumped at the same rank.
		return m.markers[i]
	}
}

// Value implements metrics.Interface.
func (m *StreamingMedianMetric) Value() float64 { return m.markers[2] }

// Reset implements metrics.Interface.
func (m *StreamingMedianMetric) Reset() {
	m.markers = [5]float64{}
	m.counters = [5]int64{}
}
