package chisquared

import (
	"math"
	"testing"

	"echidna/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseForm(t *testing.T) {
	form, err := ParseForm("")
	require.NoError(t, err)
	assert.Equal(t, PoissonLikelihood, form)

	form, err = ParseForm("neyman")
	require.NoError(t, err)
	assert.Equal(t, Neyman, form)

	_, err = ParseForm("gaussian")
	assert.ErrorIs(t, err, core.ErrUnknownForm)
}

func TestEvaluate_Forms(t *testing.T) {
	observed := []float64{4, 9, 0}
	expected := []float64{2, 9, 1}

	tests := []struct {
		form Form
		want float64
	}{
		{Pearson, 2 + 0 + 1},
		{Neyman, 1 + 0},
		{PoissonLikelihood, 2*(2-4+4*math.Log(2)) + 0 + 2*1},
	}

	for _, tt := range tests {
		t.Run(string(tt.form), func(t *testing.T) {
			calc, err := NewCalculator(tt.form)
			require.NoError(t, err)
			got, err := calc.Evaluate(observed, expected)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestEvaluate_PerfectFitIsZero(t *testing.T) {
	for _, form := range []Form{Pearson, Neyman, PoissonLikelihood} {
		calc, err := NewCalculator(form)
		require.NoError(t, err)
		got, err := calc.Evaluate([]float64{1, 0, 5}, []float64{1, 0, 5})
		require.NoError(t, err)
		assert.InDelta(t, 0.0, got, 1e-12, string(form))
	}
}

func TestEvaluate_AddsPenalties(t *testing.T) {
	calc, err := NewCalculator(Pearson)
	require.NoError(t, err)
	got, err := calc.Evaluate([]float64{1}, []float64{1}, 0.5, 1.5)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, got, 1e-12)
}

func TestEvaluate_Errors(t *testing.T) {
	calc, err := NewCalculator(Pearson)
	require.NoError(t, err)

	_, err = calc.Evaluate([]float64{1, 2}, []float64{1})
	assert.ErrorIs(t, err, core.ErrLengthMismatch)

	_, err = calc.Evaluate([]float64{3}, []float64{0})
	assert.ErrorIs(t, err, core.ErrZeroExpectation)

	neyman, err := NewCalculator(Neyman)
	require.NoError(t, err)
	got, err := neyman.Evaluate([]float64{0}, []float64{3})
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestDeltaChiSquared(t *testing.T) {
	delta, err := DeltaChiSquared(0.9)
	require.NoError(t, err)
	assert.InDelta(t, 2.7055, delta, 1e-3)

	delta, err = DeltaChiSquared(0.683)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, delta, 1e-2)

	_, err = DeltaChiSquared(1)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}
