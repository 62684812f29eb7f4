package shapes

import "iter"

// Iter iterates over all the indices (batch, row, column) of the given shape, with the column
// changing fastest.
func (s Shape) Iter() iter.Seq[[3]int] {
	return func(yield func([3]int) bool) {
		if !s.Ok() {
			return
		}
		for b := range s.Size {
			for row := range s.Rows {
				for column := range s.Columns {
					if !yield([3]int{b, row, column}) {
						return
					}
				}
			}
		}
	}
}
