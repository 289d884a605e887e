// Package plot renders chi-squared scans, systematic maps and spectra as PNG.
package plot

import (
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot/vg"

	"echidna/domain/limit"
	"echidna/internal/utilities"
)

// Options control a single chart
type Options struct {
	Title    string
	YLabel   string
	Width    vg.Length
	Height   vg.Length
	Penalty  *limit.Config
	Errors   *utilities.ErrorOptions
	Contours bool
}

// Option configures a chart
type Option func(*Options)

// WithTitle sets the chart title
func WithTitle(title string) Option {
	return func(o *Options) { o.Title = title }
}

// WithYLabel overrides the y axis label
func WithYLabel(label string) Option {
	return func(o *Options) { o.YLabel = label }
}

// WithPenalty adds the scan of the same signal with a penalty term
func WithPenalty(cfg *limit.Config) Option {
	return func(o *Options) { o.Penalty = cfg }
}

// WithErrors draws error bars computed from the chi-squared values
func WithErrors(opts utilities.ErrorOptions) Option {
	return func(o *Options) { o.Errors = &opts }
}

// WithContours draws contour lines instead of a filled map
func WithContours() Option {
	return func(o *Options) { o.Contours = true }
}

func newOptions(opts []Option) Options {
	o := Options{Width: 6 * vg.Inch, Height: 4 * vg.Inch}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

var (
	blue  = color.RGBA{B: 255, A: 255}
	red   = color.RGBA{R: 255, A: 255}
	black = color.RGBA{A: 255}
)

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
