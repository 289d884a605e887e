package testkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echidna/domain/core"
	"echidna/domain/limit"
	"echidna/domain/spectra"
)

func smallConfig() SpectraGeneratorConfig {
	cfg := DefaultSpectraConfig()
	cfg.Events = 2000
	return cfg
}

func TestSpectraGenerator_Reproducible(t *testing.T) {
	a, err := NewSpectraGenerator(smallConfig()).Generate("Xe136_2n2b")
	require.NoError(t, err)
	b, err := NewSpectraGenerator(smallConfig()).Generate("Xe136_2n2b")
	require.NoError(t, err)

	assert.Equal(t, a.Data(), b.Data())
	assert.Equal(t, 2000.0, a.NumDecays)
	assert.Greater(t, a.RawEvents, 1900)
}

func TestSpectraGenerator_DoubleBetaBelowQValue(t *testing.T) {
	cfg := smallConfig()
	cfg.Resolution = 0
	events, err := NewSpectraGenerator(cfg).GenerateEvents("Xe136_0n2b_n1", 500)
	require.NoError(t, err)

	for _, ev := range events {
		assert.Greater(t, ev.Energy, 0.0)
		assert.Less(t, ev.Energy, xe136QValue)
		assert.LessOrEqual(t, ev.Radius, cfg.Radial.High)
		assert.GreaterOrEqual(t, ev.Time, cfg.Time.Low)
		assert.Less(t, ev.Time, cfg.Time.High)
	}
}

func TestSpectraGenerator_MajoronIndexShiftsMean(t *testing.T) {
	gen := NewSpectraGenerator(smallConfig())
	n1, err := gen.Generate("Xe136_0n2b_n1")
	require.NoError(t, err)
	n7, err := gen.Generate("Xe136_0n2b_n7")
	require.NoError(t, err)

	s1, err := n1.Summarize(spectra.DimEnergy)
	require.NoError(t, err)
	s7, err := n7.Summarize(spectra.DimEnergy)
	require.NoError(t, err)
	assert.Greater(t, s1.Mean, s7.Mean)
}

func TestSpectraGenerator_Unknown(t *testing.T) {
	_, err := NewSpectraGenerator(smallConfig()).Generate("Te130_2n2b")
	assert.Error(t, err)
	assert.Contains(t, KnownSpectra(), "B8_Solar")
	assert.Len(t, KnownSpectra(), 6)
}

func TestInMemoryRepositories(t *testing.T) {
	ctx := context.Background()
	specs := NewInMemorySpectraRepository()
	s, err := NewSpectraGenerator(smallConfig()).Generate("B8_Solar")
	require.NoError(t, err)
	require.NoError(t, specs.Save(ctx, s))

	got, err := specs.Get(ctx, "B8_Solar")
	require.NoError(t, err)
	assert.Equal(t, s.Data(), got.Data())
	_, err = specs.Get(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrSpectraNotFound)

	results := NewInMemoryResultRepository()
	run := &limit.Run{ID: core.NewRunID(), Name: "run"}
	require.NoError(t, results.CreateRun(ctx, run))
	require.NoError(t, results.SaveLimit(ctx, run.ID, limit.Limit{Signal: "b", Mode: core.ModePenalty}))
	require.NoError(t, results.SaveLimit(ctx, run.ID, limit.Limit{Signal: "a", Mode: core.ModePenalty}))
	assert.ErrorIs(t, results.SaveLimit(ctx, core.NewRunID(), limit.Limit{}), core.ErrRunNotFound)

	stored, err := results.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, stored.Limits, 2)
	assert.Equal(t, "a", stored.Limits[0].Signal)
}
