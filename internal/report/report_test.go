package report

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echidna/domain/core"
	"echidna/domain/limit"
)

func testInput() Input {
	return Input{
		Run: &limit.Run{
			ID:          core.RunID("0190a8f4-7c1e-7000-8000-000000000001"),
			Name:        "klz_majoron",
			Fingerprint: core.NewConfigFingerprint([]byte("analysis")),
			CreatedAt:   time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
			Limits: []limit.Limit{
				{Signal: "Xe136_0n2b_n1", Mode: core.ModeNoPenalty, Counts: 1234, HalfLife: 2.6e24, EffectiveMass: 0.8},
				{Signal: "Xe136_0n2b_n2", Mode: core.ModeNoPenalty, Counts: 99},
				{Signal: "Xe136_0n2b_n1", Mode: core.ModePenalty, Failure: "threshold not reached"},
			},
		},
		ChiSquared:      "poisson_likelihood",
		ConfidenceLevel: 0.9,
		Livetime:        0.3075,
		Spectra: []SpectrumRow{
			{Name: "Xe136_2n2b", NumDecays: 1e5, RawEvents: 99000, Events: 12000.5, ROIEfficiency: 0.85},
		},
		Plots: []string{"plots/Xe136_0n2b_n1_chi_squared.png"},
	}
}

func TestMarkdown(t *testing.T) {
	md := string(Markdown(testInput()))

	assert.Contains(t, md, "# Limits: klz_majoron")
	assert.Contains(t, md, "**Date**: 2026-03-01 12:30")
	assert.Contains(t, md, "**CL**: 90%")
	assert.Contains(t, md, "| Xe136_2n2b | 100000 | 99000 | 12000.5 | 0.8500 |")
	assert.Contains(t, md, "## No penalty term")
	assert.Contains(t, md, "| Xe136_0n2b_n1 | 1234 | 0 | 2.6e+24 | 0.8 |")
	assert.Contains(t, md, "| Xe136_0n2b_n2 | 99 | 0 | n/a | n/a |")
	assert.Contains(t, md, "## With penalty term")
	assert.Contains(t, md, "_threshold not reached_")
	assert.Contains(t, md, "![Xe136_0n2b_n1_chi_squared](plots/Xe136_0n2b_n1_chi_squared.png)")
}

func TestHTML(t *testing.T) {
	out := string(HTML(Markdown(testInput()), "klz_majoron"))

	assert.Contains(t, out, "<title>klz_majoron</title>")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, `<img src="plots/Xe136_0n2b_n1_chi_squared.png"`)
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	mdPath, htmlPath, err := Write(dir, testInput())
	require.NoError(t, err)

	for _, p := range []string{mdPath, htmlPath} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}

	_, _, err = Write(dir, Input{})
	assert.Error(t, err)
}
