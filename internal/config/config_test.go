package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echidna/domain/core"
	"echidna/internal/errors"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"DATABASE_DRIVER", "DATABASE_URL", "PORT", "OUTPUT_DIR", "ANALYSIS_FILE", "WORKERS", "LOG_LEVEL", "GIN_MODE", "PPROF_ENABLED", "PPROF_PORT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "echidna.db", cfg.Database.URL)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.GinMode)
	assert.Equal(t, "results", cfg.Paths.OutputDir)
	assert.Equal(t, "info", cfg.Run.LogLevel)
	assert.GreaterOrEqual(t, cfg.Run.Workers, 1)
	assert.False(t, cfg.Profiling.Enabled)
	assert.Equal(t, "6060", cfg.Profiling.Port)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://echidna@localhost/echidna")
	t.Setenv("WORKERS", "3")
	t.Setenv("PPROF_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Run.Workers)
	assert.True(t, cfg.Profiling.Enabled)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "mysql")

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestLoad_RejectsZeroWorkers(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("WORKERS", "0")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_RejectsUnknownGinMode(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("GIN_MODE", "verbose")

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestDefaultAnalysis_IsValid(t *testing.T) {
	a := DefaultAnalysis()
	require.NoError(t, a.Validate())
	assert.Len(t, a.Signals, 4)
	assert.Equal(t, []string{"Xe136_0n2b_n1", "Xe136_0n2b_n2", "Xe136_0n2b_n3", "Xe136_0n2b_n7"}, a.SignalNames())
	assert.InDelta(t, 0.30746, a.Livetime, 1e-5)
}

func TestLoadAnalysis_MissingFileGivesDefaults(t *testing.T) {
	a, err := LoadAnalysis(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultAnalysis(), a)
}

func TestLoadAnalysis_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analysis.yaml")
	body := `
name: toy
chi_squared: pearson
confidence_level: 0.95
signals:
  - spectrum: sig
    stop: 0
    points: 10
backgrounds:
  - spectrum: bkg
    prior: 100
    sigma_fraction: 0.1
    low_fraction: 0.8
    high_fraction: 1.2
    points: 5
modes: [penalty]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	a, err := LoadAnalysis(path)
	require.NoError(t, err)
	assert.Equal(t, "toy", a.Name)
	assert.Equal(t, "pearson", a.ChiSquared)
	assert.Equal(t, 0.95, a.ConfidenceLevel)
	require.Len(t, a.Signals, 1)
	require.Len(t, a.Backgrounds, 1)
	assert.Equal(t, []core.Mode{core.ModePenalty}, a.Modes)
	// untouched sections keep their defaults
	assert.Equal(t, DefaultAnalysis().Isotope, a.Isotope)
}

func TestLoadAnalysis_Invalid(t *testing.T) {
	cases := map[string]string{
		"bad cl":        "confidence_level: 1.5\n",
		"bad form":      "chi_squared: likelihood\n",
		"no signals":    "signals: []\n",
		"bad dimension": "fit_dimension: depth\n",
		"duplicate": `
signals:
  - spectrum: a
backgrounds:
  - spectrum: a
    prior: 1
`,
		"bad mode": "modes: [marginal]\n",
		"not yaml": "signals: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "analysis.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

			_, err := LoadAnalysis(path)
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}

func TestAnalysis_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "analysis.yaml")
	a := DefaultAnalysis()
	require.NoError(t, a.Save(path))

	loaded, err := LoadAnalysis(path)
	require.NoError(t, err)
	assert.Equal(t, a, loaded)

	fp1, err := a.Fingerprint()
	require.NoError(t, err)
	fp2, err := loaded.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2)

	loaded.ConfidenceLevel = 0.95
	fp3, err := loaded.Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, fp1, fp3)
}

func TestSignalSpec_CountsFromNumDecays(t *testing.T) {
	s := SignalSpec{Spectrum: "sig", Points: 4}

	counts, err := s.SignalCounts(100)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{100, 75, 50, 25}, counts, 1e-9)

	cfg, err := s.SignalConfig(100)
	require.NoError(t, err)
	assert.False(t, cfg.HasPenalty())
}

func TestSignalSpec_Converter(t *testing.T) {
	a := DefaultAnalysis()
	iso := a.Signals[0].Converter(a.Isotope, 0.8)
	assert.Equal(t, 6.02e-16, iso.PhaseSpace)
	assert.Equal(t, 2.57, iso.MatrixElement)
	assert.Equal(t, 0.8, iso.ROIEfficiency)
	assert.Zero(t, a.Isotope.ROIEfficiency)
}

func TestBackgroundSpec_Config(t *testing.T) {
	b := DefaultAnalysis().Backgrounds[0]

	np, err := b.Config(core.ModeNoPenalty)
	require.NoError(t, err)
	assert.Equal(t, []float64{b.Prior}, np.Counts)
	assert.False(t, np.HasPenalty())

	p, err := b.Config(core.ModePenalty)
	require.NoError(t, err)
	require.Len(t, p.Counts, 51)
	assert.InDelta(t, 0.947*b.Prior, p.Counts[0], 1e-6)
	assert.InDelta(t, b.Prior, p.Counts[25], 1e-6)
	assert.InDelta(t, 0.053*b.Prior, p.Sigma, 1e-6)

	b.Fixed = true
	fixed, err := b.Config(core.ModePenalty)
	require.NoError(t, err)
	assert.Len(t, fixed.Counts, 1)
}

func TestParseAnalysis(t *testing.T) {
	a, err := ParseAnalysis([]byte("name: body\nconfidence_level: 0.95\n"))
	require.NoError(t, err)
	assert.Equal(t, "body", a.Name)
	assert.Equal(t, 0.95, a.ConfidenceLevel)
	assert.Len(t, a.Signals, len(DefaultAnalysis().Signals))

	_, err = ParseAnalysis([]byte("confidence_level: 0\n"))
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}
