package limit

import (
	"fmt"

	"echidna/domain/core"

	"gonum.org/v1/gonum/floats"
)

// CountGrid returns num evenly spaced values from start towards stop. With
// endpoint false, stop itself is excluded and the spacing is (stop-start)/num.
func CountGrid(start, stop float64, num int, endpoint bool) ([]float64, error) {
	switch {
	case num <= 0:
		return nil, core.NewValidationError("grid", fmt.Sprintf("needs at least one point, got %d", num))
	case num == 1:
		return []float64{start}, nil
	}
	grid := make([]float64, num)
	if endpoint {
		return floats.Span(grid, start, stop), nil
	}
	step := (stop - start) / float64(num)
	return floats.Span(grid, start, stop-step), nil
}

// FractionalGrid spans [lowFraction*prior, highFraction*prior] with num points,
// endpoints included.
func FractionalGrid(prior, lowFraction, highFraction float64, num int) ([]float64, error) {
	if lowFraction > highFraction {
		return nil, core.NewValidationError("grid", fmt.Sprintf("fraction %g above %g", lowFraction, highFraction))
	}
	return CountGrid(lowFraction*prior, highFraction*prior, num, true)
}
