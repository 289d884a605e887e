package limit

import (
	"math"
	"testing"

	"echidna/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Validation(t *testing.T) {
	_, err := NewConfig(1, nil, 0)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = NewConfig(1, []float64{1, math.NaN()}, 0)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = NewConfig(1, []float64{-1}, 0)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	_, err = NewConfig(1, []float64{1}, -0.5)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)

	cfg, err := NewConfig(1, []float64{1}, 0)
	require.NoError(t, err)
	assert.False(t, cfg.HasPenalty())
}

func TestConfig_Penalty(t *testing.T) {
	cfg, err := NewConfig(100, []float64{90, 100, 110}, 5)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, cfg.Penalty(90), 1e-12)
	assert.Zero(t, cfg.Penalty(100))

	noPenalty, err := NewConfig(100, []float64{100}, 0)
	require.NoError(t, err)
	assert.Zero(t, noPenalty.Penalty(50))

	b8, err := NewConfig(1e6, []float64{1e6}, 0.053e6)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, b8.Penalty(1.053e6), 1e-9)
}

func TestConfig_RecordsAndMinimum(t *testing.T) {
	cfg, err := NewConfig(0, []float64{3, 2, 1}, 0)
	require.NoError(t, err)

	_, ok := cfg.Minimum()
	assert.False(t, ok)

	cfg.AddChiSquared(4, 0, 3)
	cfg.AddChiSquared(1, 0, 2)
	cfg.AddChiSquared(1, 0, 1)

	best, ok := cfg.Minimum()
	require.True(t, ok)
	assert.Equal(t, 1.0, best.Count, "ties go to the lowest count")

	sorted := cfg.SortedByCount()
	assert.Equal(t, []float64{1, 2, 3}, []float64{sorted[0].Count, sorted[1].Count, sorted[2].Count})
	assert.Equal(t, 3.0, cfg.ChiSquareds()[0].Count, "insertion order is kept")

	cfg.Reset()
	assert.Empty(t, cfg.ChiSquareds())
}

func TestCountGrid(t *testing.T) {
	grid, err := CountGrid(100, 0, 4, false)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{100, 75, 50, 25}, grid, 1e-9)

	grid, err = CountGrid(0, 1, 5, true)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0.25, 0.5, 0.75, 1}, grid, 1e-12)

	grid, err = CountGrid(7, 9, 1, true)
	require.NoError(t, err)
	assert.Equal(t, []float64{7}, grid)

	_, err = CountGrid(0, 1, 0, true)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestFractionalGrid_IncludesPrior(t *testing.T) {
	grid, err := FractionalGrid(1.132e6, 0.947, 1.053, 51)
	require.NoError(t, err)
	require.Len(t, grid, 51)
	assert.InDelta(t, 1.132e6, grid[25], 1e-3)

	_, err = FractionalGrid(1, 1.1, 0.9, 3)
	assert.ErrorIs(t, err, core.ErrInvalidConfig)
}

func TestSystAnalyser_Finalize(t *testing.T) {
	cfg, err := NewConfig(10, []float64{8, 10, 12}, 2)
	require.NoError(t, err)

	a := NewSystAnalyser("bkg", []float64{0, 5}, cfg.Counts)
	a.MergeRow(0, []float64{3, 1, 2})
	a.MergeRow(1, []float64{0.5, 4, 0.5})
	a.Update(1, 1, 9) // larger values never replace smaller ones

	a.Finalize(cfg)

	assert.Equal(t, []float64{10, 8}, a.PreferredValues)
	assert.Equal(t, 4.0, a.ChiSquareds[1][1])
	assert.Equal(t, []Point{{X: 5, Y: 8}, {X: 5, Y: 12}}, a.Minima)
	assert.Equal(t, []PenaltyPoint{{Value: 8, Penalty: 1}, {Value: 10, Penalty: 0}, {Value: 12, Penalty: 1}}, a.PenaltyValues)
}

func TestSystAnalyser_UnsetEntriesAreInfinite(t *testing.T) {
	a := NewSystAnalyser("bkg", []float64{1}, []float64{1, 2})
	assert.True(t, math.IsInf(a.ChiSquareds[0][1], 1))
}

func TestConfigDump_RestoresRecords(t *testing.T) {
	cfg, err := NewConfig(10, []float64{8, 10, 12}, 2)
	require.NoError(t, err)
	cfg.AddChiSquared(3.5, 1, 8)
	cfg.AddChiSquared(1.25, 0, 10)

	dump := NewConfigDump(core.ModePenalty, "sig", "bkg", cfg)
	assert.Equal(t, "bkg", dump.Owner)
	assert.Len(t, dump.Records, 2)

	restored, err := dump.Config()
	require.NoError(t, err)
	assert.Equal(t, cfg.Counts, restored.Counts)
	assert.Equal(t, cfg.ChiSquareds(), restored.ChiSquareds())
	assert.True(t, restored.HasPenalty())
}
