package plot

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"

	"echidna/domain/limit"
	"echidna/domain/spectra"
	"echidna/internal/errors"
	"echidna/internal/utilities"
)

func assertPNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Greater(t, cfg.Width, 0)
	assert.Greater(t, cfg.Height, 0)
}

func scannedConfig(t *testing.T, sigma float64) *limit.Config {
	t.Helper()
	counts := []float64{20, 15, 10, 5, 0}
	cfg, err := limit.NewConfig(0, counts, sigma)
	require.NoError(t, err)
	for _, c := range counts {
		cfg.AddChiSquared(c*c/100+cfg.Penalty(c), cfg.Penalty(c), c)
	}
	return cfg
}

func testAnalyser(t *testing.T) *limit.SystAnalyser {
	t.Helper()
	prior, err := limit.NewConfig(100, []float64{90, 100, 110}, 10)
	require.NoError(t, err)
	a := limit.NewSystAnalyser("Xe136_2n2b", []float64{10, 5, 0}, prior.Counts)
	for i, s := range a.ActualCounts {
		for j, b := range a.SystValues {
			d := (b - 100) / 10
			a.Update(i, j, s*s/50+d*d)
		}
	}
	a.Finalize(prior)
	return a
}

func newTestColorMap(t *testing.T, levels []float64) palette.ColorMap {
	t.Helper()
	cm := moreland.ExtendedBlackBody()
	cm.SetMax(levels[len(levels)-1])
	cm.SetMin(levels[0])
	return cm
}

func TestSqrtLevels(t *testing.T) {
	levels := SqrtLevels(1, 9, 3)
	assert.InDeltaSlice(t, []float64{1, 4, 9}, levels, 1e-12)

	levels = SqrtLevels(-1, 4, 1)
	assert.InDeltaSlice(t, []float64{0, 4}, levels, 1e-12)
}

func TestAnalyserGrid_SortsAxes(t *testing.T) {
	a := testAnalyser(t)
	g := newAnalyserGrid(a)

	c, r := g.Dims()
	assert.Equal(t, 3, c)
	assert.Equal(t, 3, r)
	assert.Equal(t, 0.0, g.X(0))
	assert.Equal(t, 10.0, g.X(2))
	assert.Equal(t, 90.0, g.Y(0))
	// zero signal at the prior is the global minimum
	assert.Equal(t, 0.0, g.Z(0, 1))
}

func TestLevelPalette_Monotonic(t *testing.T) {
	levels := SqrtLevels(0, 100, 5)
	cm := newTestColorMap(t, levels)
	pal, err := newLevelPalette(cm, levels, 50)
	require.NoError(t, err)

	colors := pal.Colors()
	require.Len(t, colors, 50)
	first, _ := cm.At(cm.Min())
	last, _ := cm.At(cm.Max())
	assert.Equal(t, first, colors[0])
	assert.Equal(t, last, colors[49])
}

func TestChiSquaredVsSignal(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "np.png")
	require.NoError(t, ChiSquaredVsSignal(path, scannedConfig(t, 0)))
	assertPNG(t, path)

	path = filepath.Join(dir, "nested", "both.png")
	err := ChiSquaredVsSignal(path, scannedConfig(t, 0),
		WithPenalty(scannedConfig(t, 10)),
		WithErrors(utilities.ErrorOptions{FracErr: 0.05}),
		WithTitle("Xe136_0n2b_n1"))
	require.NoError(t, err)
	assertPNG(t, path)
}

func TestChiSquaredVsSignal_Empty(t *testing.T) {
	cfg, err := limit.NewConfig(0, []float64{1}, 0)
	require.NoError(t, err)

	err = ChiSquaredVsSignal(filepath.Join(t.TempDir(), "x.png"), cfg)
	require.Error(t, err)
	assert.Equal(t, errors.CodeRenderError, errors.GetCode(err))
}

func TestChiSquaredMap(t *testing.T) {
	dir := t.TempDir()
	a := testAnalyser(t)

	path := filepath.Join(dir, "map.png")
	require.NoError(t, ChiSquaredMap(path, a, WithYLabel("Xe136_2n2b counts")))
	assertPNG(t, path)

	path = filepath.Join(dir, "contours.png")
	require.NoError(t, ChiSquaredMap(path, a, WithContours()))
	assertPNG(t, path)

	empty := limit.NewSystAnalyser("empty", []float64{1}, []float64{1})
	assert.Error(t, ChiSquaredMap(filepath.Join(dir, "empty.png"), empty))

	err := ChiSquaredMap(dir, a)
	require.Error(t, err)
	assert.Equal(t, errors.CodeRenderError, errors.GetCode(err))
}

func TestPenaltyValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "penalty.png")
	require.NoError(t, PenaltyValues(path, testAnalyser(t)))
	assertPNG(t, path)

	assert.Error(t, PenaltyValues(path, &limit.SystAnalyser{}))
}

func TestSpectrum(t *testing.T) {
	s, err := spectra.New("B8_Solar",
		spectra.Axis{Low: 0, High: 10, Bins: 20},
		spectra.Axis{Low: 0, High: 1000, Bins: 1},
		spectra.Axis{Low: 0, High: 1, Bins: 1},
		10)
	require.NoError(t, err)
	for _, e := range []float64{1, 2, 2.2, 5, 7.5} {
		require.NoError(t, s.Fill(e, 10, 0.1, 1))
	}

	path := filepath.Join(t.TempDir(), "spectrum.png")
	require.NoError(t, Spectrum(path, s, spectra.DimEnergy))
	assertPNG(t, path)

	assert.Error(t, Spectrum(path, s, "depth"))
}
