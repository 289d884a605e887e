package spectra

import (
	"fmt"
	"math"

	"echidna/domain/core"
)

// Dimension names used by the simulation output.
const (
	DimEnergy = "energy_mc"
	DimRadial = "radial_mc"
	DimTime   = "time"
)

// edgeTolerance absorbs floating point noise when snapping ranges to bin edges.
const edgeTolerance = 1e-9

// Axis is a uniformly binned dimension.
type Axis struct {
	Name string  `json:"name" yaml:"name"`
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
	Bins int     `json:"bins" yaml:"bins"`
}

// Validate checks the axis describes at least one bin of positive width
func (a Axis) Validate() error {
	if a.Bins <= 0 {
		return fmt.Errorf("%w: %s has %d bins", core.ErrInvalidAxis, a.Name, a.Bins)
	}
	if !(a.High > a.Low) || math.IsInf(a.High-a.Low, 0) {
		return fmt.Errorf("%w: %s range [%g, %g]", core.ErrInvalidAxis, a.Name, a.Low, a.High)
	}
	return nil
}

// Width returns the bin width
func (a Axis) Width() float64 {
	return (a.High - a.Low) / float64(a.Bins)
}

// Index returns the bin holding v. The upper edge belongs to the last bin.
func (a Axis) Index(v float64) (int, bool) {
	if v < a.Low || v > a.High || math.IsNaN(v) {
		return 0, false
	}
	i := int((v - a.Low) / a.Width())
	if i >= a.Bins {
		i = a.Bins - 1
	}
	return i, true
}

// Centre returns the centre of bin i
func (a Axis) Centre(i int) float64 {
	return a.Low + (float64(i)+0.5)*a.Width()
}

// Centres returns all bin centres
func (a Axis) Centres() []float64 {
	centres := make([]float64, a.Bins)
	for i := range centres {
		centres[i] = a.Centre(i)
	}
	return centres
}

// span returns the half-open bin range [lo, hi) covering [low, high],
// snapped outward to bin edges.
func (a Axis) span(low, high float64) (int, int, error) {
	w := a.Width()
	if low > high {
		return 0, 0, fmt.Errorf("%w: %s low %g above high %g", core.ErrOutOfRange, a.Name, low, high)
	}
	if low < a.Low-edgeTolerance*w || high > a.High+edgeTolerance*w {
		return 0, 0, fmt.Errorf("%w: %s [%g, %g] not within [%g, %g]",
			core.ErrOutOfRange, a.Name, low, high, a.Low, a.High)
	}
	lo := int(math.Floor((low-a.Low)/w + edgeTolerance))
	hi := int(math.Ceil((high-a.Low)/w - edgeTolerance))
	if lo < 0 {
		lo = 0
	}
	if hi > a.Bins {
		hi = a.Bins
	}
	// the upper edge belongs to the last bin, as in Fill
	if lo > a.Bins-1 {
		lo = a.Bins - 1
	}
	if hi <= lo {
		hi = lo + 1
	}
	return lo, hi, nil
}

// sub returns the axis restricted to bins [lo, hi)
func (a Axis) sub(lo, hi int) Axis {
	w := a.Width()
	return Axis{
		Name: a.Name,
		Low:  a.Low + float64(lo)*w,
		High: a.Low + float64(hi)*w,
		Bins: hi - lo,
	}
}
