package spectra

import (
	"fmt"

	"echidna/domain/core"

	"github.com/montanaflynn/stats"
	"go-hep.org/x/hep/hbook"
	"gonum.org/v1/gonum/floats"
)

// ROI records a region of interest the spectra was shrunk to, with the
// fraction of events that survived.
type ROI struct {
	Dimension  string  `json:"dimension"`
	Low        float64 `json:"low"`
	High       float64 `json:"high"`
	Efficiency float64 `json:"efficiency"`
}

// Spectra is a three dimensional histogram of simulated events in energy,
// radius and time. The contents represent NumDecays decays of the source.
type Spectra struct {
	Name      string
	NumDecays float64
	RawEvents int

	axes [3]Axis
	data []float64
	rois []ROI
}

// New creates an empty spectra over the given axes
func New(name string, energy, radial, time Axis, numDecays float64) (*Spectra, error) {
	energy.Name, radial.Name, time.Name = DimEnergy, DimRadial, DimTime
	axes := [3]Axis{energy, radial, time}
	for _, a := range axes {
		if err := a.Validate(); err != nil {
			return nil, err
		}
	}
	if numDecays < 0 {
		return nil, fmt.Errorf("%w: negative number of decays %g", core.ErrEmptySpectra, numDecays)
	}
	return &Spectra{
		Name:      name,
		NumDecays: numDecays,
		axes:      axes,
		data:      make([]float64, energy.Bins*radial.Bins*time.Bins),
	}, nil
}

// Restore rebuilds a spectra from stored contents
func Restore(name string, axes [3]Axis, data []float64, numDecays float64, rawEvents int, rois []ROI) (*Spectra, error) {
	s, err := New(name, axes[0], axes[1], axes[2], numDecays)
	if err != nil {
		return nil, err
	}
	if len(data) != len(s.data) {
		return nil, fmt.Errorf("%w: %d stored bins for %d-bin spectra", core.ErrInvalidAxis, len(data), len(s.data))
	}
	copy(s.data, data)
	s.RawEvents = rawEvents
	s.rois = append([]ROI(nil), rois...)
	return s, nil
}

// Axes returns the energy, radial and time axes in storage order
func (s *Spectra) Axes() [3]Axis {
	return s.axes
}

// Axis returns the axis of the named dimension
func (s *Spectra) Axis(dim string) (Axis, error) {
	d, err := s.dimIndex(dim)
	if err != nil {
		return Axis{}, err
	}
	return s.axes[d], nil
}

// Data returns a copy of the flattened contents
func (s *Spectra) Data() []float64 {
	return append([]float64(nil), s.data...)
}

// ROIs returns the recorded regions of interest
func (s *Spectra) ROIs() []ROI {
	return append([]ROI(nil), s.rois...)
}

// ROI returns the i-th recorded region of interest
func (s *Spectra) ROI(i int) (ROI, error) {
	if i < 0 || i >= len(s.rois) {
		return ROI{}, fmt.Errorf("%w: %s has %d rois, asked for %d", core.ErrROINotFound, s.Name, len(s.rois), i)
	}
	return s.rois[i], nil
}

func (s *Spectra) dimIndex(dim string) (int, error) {
	for i, a := range s.axes {
		if a.Name == dim {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", core.ErrUnknownDimension, dim)
}

func (s *Spectra) index(e, r, t int) int {
	return (e*s.axes[1].Bins+r)*s.axes[2].Bins + t
}

// Fill adds weight at the given coordinates
func (s *Spectra) Fill(energy, radius, time, weight float64) error {
	e, ok := s.axes[0].Index(energy)
	if !ok {
		return fmt.Errorf("%w: energy %g", core.ErrOutOfRange, energy)
	}
	r, ok := s.axes[1].Index(radius)
	if !ok {
		return fmt.Errorf("%w: radius %g", core.ErrOutOfRange, radius)
	}
	t, ok := s.axes[2].Index(time)
	if !ok {
		return fmt.Errorf("%w: time %g", core.ErrOutOfRange, time)
	}
	s.data[s.index(e, r, t)] += weight
	s.RawEvents++
	return nil
}

// Sum returns the total number of events
func (s *Spectra) Sum() float64 {
	return floats.Sum(s.data)
}

// Scale rescales the contents to represent numDecays decays
func (s *Spectra) Scale(numDecays float64) error {
	if s.NumDecays == 0 {
		return fmt.Errorf("%w: cannot scale %s", core.ErrEmptySpectra, s.Name)
	}
	floats.Scale(numDecays/s.NumDecays, s.data)
	s.NumDecays = numDecays
	return nil
}

// Cut zeroes every bin of dim whose centre lies outside [low, high]. The
// binning is left untouched.
func (s *Spectra) Cut(dim string, low, high float64) error {
	d, err := s.dimIndex(dim)
	if err != nil {
		return err
	}
	if low > high {
		return fmt.Errorf("%w: %s low %g above high %g", core.ErrOutOfRange, dim, low, high)
	}
	axis := s.axes[d]
	for i := 0; i < axis.Bins; i++ {
		c := axis.Centre(i)
		if c >= low && c <= high {
			continue
		}
		s.each(d, i, func(idx int) { s.data[idx] = 0 })
	}
	return nil
}

// each calls fn with the flat index of every bin whose coordinate along
// dimension d equals i.
func (s *Spectra) each(d, i int, fn func(idx int)) {
	nb := [3]int{s.axes[0].Bins, s.axes[1].Bins, s.axes[2].Bins}
	var c [3]int
	c[d] = i
	for c[(d+1)%3] = 0; c[(d+1)%3] < nb[(d+1)%3]; c[(d+1)%3]++ {
		for c[(d+2)%3] = 0; c[(d+2)%3] < nb[(d+2)%3]; c[(d+2)%3]++ {
			fn(s.index(c[0], c[1], c[2]))
		}
	}
}

// Shrink reduces dim to the bins covering [low, high]
func (s *Spectra) Shrink(dim string, low, high float64) error {
	d, err := s.dimIndex(dim)
	if err != nil {
		return err
	}
	lo, hi, err := s.axes[d].span(low, high)
	if err != nil {
		return err
	}
	axes := s.axes
	axes[d] = s.axes[d].sub(lo, hi)

	data := make([]float64, axes[0].Bins*axes[1].Bins*axes[2].Bins)
	var offset [3]int
	offset[d] = lo
	for e := 0; e < axes[0].Bins; e++ {
		for r := 0; r < axes[1].Bins; r++ {
			for t := 0; t < axes[2].Bins; t++ {
				src := s.index(e+offset[0], r+offset[1], t+offset[2])
				data[(e*axes[1].Bins+r)*axes[2].Bins+t] = s.data[src]
			}
		}
	}
	s.axes = axes
	s.data = data
	return nil
}

// ShrinkToROI shrinks dim to [low, high] and records the fraction of events kept
func (s *Spectra) ShrinkToROI(low, high float64, dim string) error {
	before := s.Sum()
	if err := s.Shrink(dim, low, high); err != nil {
		return err
	}
	efficiency := 0.0
	if before > 0 {
		efficiency = s.Sum() / before
	}
	s.rois = append(s.rois, ROI{Dimension: dim, Low: low, High: high, Efficiency: efficiency})
	return nil
}

// Project sums the contents over every dimension but dim
func (s *Spectra) Project(dim string) ([]float64, error) {
	d, err := s.dimIndex(dim)
	if err != nil {
		return nil, err
	}
	projection := make([]float64, s.axes[d].Bins)
	for i := range projection {
		sum := 0.0
		s.each(d, i, func(idx int) { sum += s.data[idx] })
		projection[i] = sum
	}
	return projection, nil
}

// ProjectH1D returns the projection on dim as a histogram
func (s *Spectra) ProjectH1D(dim string) (*hbook.H1D, error) {
	projection, err := s.Project(dim)
	if err != nil {
		return nil, err
	}
	axis, _ := s.Axis(dim)
	h := hbook.NewH1D(axis.Bins, axis.Low, axis.High)
	h.Annotation()["name"] = s.Name
	for i, v := range projection {
		h.Fill(axis.Centre(i), v)
	}
	return h, nil
}

// Copy returns a deep copy
func (s *Spectra) Copy() *Spectra {
	c := *s
	c.data = s.Data()
	c.rois = s.ROIs()
	return &c
}

// Summary describes the projection of a spectra on one dimension
type Summary struct {
	Dimension string  `json:"dimension"`
	Events    float64 `json:"events"`
	Mean      float64 `json:"mean"`
	PeakBin   float64 `json:"peak_bin"`
	BinMean   float64 `json:"bin_mean"`
	BinStdDev float64 `json:"bin_std_dev"`
	BinMedian float64 `json:"bin_median"`
}

// Summarize computes descriptive statistics of the projection on dim
func (s *Spectra) Summarize(dim string) (Summary, error) {
	projection, err := s.Project(dim)
	if err != nil {
		return Summary{}, err
	}
	axis, _ := s.Axis(dim)
	summary := Summary{Dimension: dim}

	data := stats.Float64Data(projection)
	if summary.Events, err = data.Sum(); err != nil {
		return summary, err
	}
	if summary.PeakBin, err = data.Max(); err != nil {
		return summary, err
	}
	if summary.BinMean, err = data.Mean(); err != nil {
		return summary, err
	}
	if summary.BinStdDev, err = data.StandardDeviation(); err != nil {
		return summary, err
	}
	if summary.BinMedian, err = data.Median(); err != nil {
		return summary, err
	}
	if summary.Events > 0 {
		summary.Mean = floats.Dot(axis.Centres(), projection) / summary.Events
	}
	return summary, nil
}
