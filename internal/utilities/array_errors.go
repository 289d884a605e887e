package utilities

import (
	"math"

	"echidna/domain/core"
)

// ErrorSpace selects the space an error is applied in
type ErrorSpace int

const (
	Linear ErrorSpace = iota
	Log
	Log10
)

// ErrorOptions describes a synthetic error model. LinErr takes precedence
// over FracErr when both are set.
type ErrorOptions struct {
	LinErr  float64
	FracErr float64
	Space   ErrorSpace
}

// ArrayErrors returns, for every value, the value shifted by the error
// model. In Log and Log10 space the shift is applied to the logarithm and
// the result transformed back.
func ArrayErrors(values []float64, opts ErrorOptions) ([]float64, error) {
	if opts.LinErr == 0 && opts.FracErr == 0 {
		return nil, core.ErrNoErrorModel
	}
	errs := make([]float64, len(values))
	for i, v := range values {
		switch opts.Space {
		case Log:
			v = math.Log(v)
		case Log10:
			v = math.Log10(v)
		}
		if opts.LinErr != 0 {
			v += opts.LinErr
		} else {
			v *= opts.FracErr
		}
		switch opts.Space {
		case Log:
			v = math.Exp(v)
		case Log10:
			v = math.Pow(10, v)
		}
		errs[i] = v
	}
	return errs, nil
}

// ArrayErrors2D applies ArrayErrors row by row, keeping the shape
func ArrayErrors2D(values [][]float64, opts ErrorOptions) ([][]float64, error) {
	out := make([][]float64, len(values))
	for i, row := range values {
		errs, err := ArrayErrors(row, opts)
		if err != nil {
			return nil, err
		}
		out[i] = errs
	}
	return out, nil
}
