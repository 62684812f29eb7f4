package shapes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIter(t *testing.T) {
	var got [][3]int
	for indices := range Make(2, 1, 2).Iter() {
		got = append(got, indices)
	}
	assert.Equal(t, [][3]int{{0, 0, 0}, {0, 0, 1}, {1, 0, 0}, {1, 0, 1}}, got)

	// Early break.
	count := 0
	for range Matrix(3, 3).Iter() {
		count++
		if count == 4 {
			break
		}
	}
	assert.Equal(t, 4, count)

	// Invalid shapes yield nothing.
	for range (Shape{}).Iter() {
		t.Fatal("invalid shape should not yield indices")
	}
}
