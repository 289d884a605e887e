// Package chisquared evaluates the goodness of fit between an observed and
// an expected binned spectrum.
package chisquared

import (
	"fmt"
	"math"

	"echidna/domain/core"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Form selects the chi-squared definition
type Form string

const (
	Pearson           Form = "pearson"
	Neyman            Form = "neyman"
	PoissonLikelihood Form = "poisson_likelihood"
)

// ParseForm validates a form name. An empty name selects Poisson likelihood.
func ParseForm(s string) (Form, error) {
	switch Form(s) {
	case "":
		return PoissonLikelihood, nil
	case Pearson, Neyman, PoissonLikelihood:
		return Form(s), nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrUnknownForm, s)
}

// Calculator computes chi-squared values of a fixed form
type Calculator struct {
	form Form
}

// NewCalculator creates a calculator for the given form
func NewCalculator(form Form) (*Calculator, error) {
	if _, err := ParseForm(string(form)); err != nil {
		return nil, err
	}
	if form == "" {
		form = PoissonLikelihood
	}
	return &Calculator{form: form}, nil
}

// Form returns the chi-squared definition in use
func (c *Calculator) Form() Form {
	return c.form
}

// Evaluate returns the chi-squared of expected against observed plus the
// given penalty terms.
func (c *Calculator) Evaluate(observed, expected []float64, penalties ...float64) (float64, error) {
	if len(observed) != len(expected) {
		return 0, fmt.Errorf("%w: %d observed, %d expected", core.ErrLengthMismatch, len(observed), len(expected))
	}

	var total float64
	for i := range observed {
		o, e := observed[i], expected[i]
		if o == 0 && e == 0 {
			continue
		}
		switch c.form {
		case Pearson:
			if e <= 0 {
				return 0, fmt.Errorf("%w: bin %d observed %g", core.ErrZeroExpectation, i, o)
			}
			total += (o - e) * (o - e) / e
		case Neyman:
			if o <= 0 {
				continue
			}
			total += (o - e) * (o - e) / o
		case PoissonLikelihood:
			if e <= 0 {
				return 0, fmt.Errorf("%w: bin %d observed %g", core.ErrZeroExpectation, i, o)
			}
			term := e - o
			if o > 0 {
				term += o * math.Log(o/e)
			}
			total += 2 * term
		}
	}
	return total + floats.Sum(penalties), nil
}

// DeltaChiSquared returns the rise above the minimum chi-squared that marks
// the limit at confidence level cl for one parameter of interest.
func DeltaChiSquared(cl float64) (float64, error) {
	if !(cl > 0 && cl < 1) {
		return 0, fmt.Errorf("%w: confidence level %g not in (0, 1)", core.ErrInvalidConfig, cl)
	}
	return distuv.ChiSquared{K: 1}.Quantile(cl), nil
}
