package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"echidna/domain/core"
	"echidna/domain/limit"
	"echidna/domain/spectra"
	"echidna/internal/errors"
	"echidna/internal/migration"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open(context.Background(), DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testSpectra(t *testing.T, name string) *spectra.Spectra {
	t.Helper()
	s, err := spectra.New(name,
		spectra.Axis{Low: 0, High: 10, Bins: 10},
		spectra.Axis{Low: 0, High: 1000, Bins: 2},
		spectra.Axis{Low: 0, High: 1, Bins: 1},
		50)
	require.NoError(t, err)
	require.NoError(t, s.Fill(2.5, 100, 0.5, 1))
	require.NoError(t, s.Fill(7.5, 900, 0.5, 2))
	return s
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "")
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestMigrations_AreIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, migration.NewRunner().Run(context.Background(), db))
}

func TestSpectraRepository_SaveGet(t *testing.T) {
	ctx := context.Background()
	repo := NewSpectraRepository(openTestDB(t))

	s := testSpectra(t, "Xe136_2n2b")
	require.NoError(t, s.ShrinkToROI(0, 5, spectra.DimEnergy))
	require.NoError(t, repo.Save(ctx, s))

	got, err := repo.Get(ctx, "Xe136_2n2b")
	require.NoError(t, err)
	assert.Equal(t, s.Name, got.Name)
	assert.Equal(t, s.NumDecays, got.NumDecays)
	assert.Equal(t, s.RawEvents, got.RawEvents)
	assert.Equal(t, s.Axes(), got.Axes())
	assert.Equal(t, s.Data(), got.Data())
	assert.Equal(t, s.ROIs(), got.ROIs())
}

func TestSpectraRepository_SaveReplaces(t *testing.T) {
	ctx := context.Background()
	repo := NewSpectraRepository(openTestDB(t))

	s := testSpectra(t, "B8_Solar")
	require.NoError(t, repo.Save(ctx, s))
	require.NoError(t, s.Scale(500))
	require.NoError(t, repo.Save(ctx, s))

	infos, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, 500.0, infos[0].NumDecays)
	assert.InDelta(t, s.Sum(), infos[0].Events, 1e-9)
	assert.WithinDuration(t, time.Now(), infos[0].UpdatedAt, time.Minute)
}

func TestSpectraRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewSpectraRepository(openTestDB(t))

	_, err := repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrSpectraNotFound)
	assert.True(t, core.IsNotFoundError(err))

	assert.ErrorIs(t, repo.Delete(ctx, "missing"), core.ErrSpectraNotFound)
}

func TestSpectraRepository_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewSpectraRepository(openTestDB(t))

	require.NoError(t, repo.Save(ctx, testSpectra(t, "b")))
	require.NoError(t, repo.Save(ctx, testSpectra(t, "a")))

	infos, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "a", infos[0].Name)
	assert.Equal(t, 2, infos[0].RawEvents)
	assert.Equal(t, 3.0, infos[0].Events)

	require.NoError(t, repo.Delete(ctx, "a"))
	infos, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, infos, 1)
}

func TestResultRepository_RunLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewResultRepository(openTestDB(t))

	run := &limit.Run{
		ID:          core.NewRunID(),
		Name:        "klz_majoron",
		Fingerprint: core.NewConfigFingerprint([]byte("analysis")),
		CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.CreateRun(ctx, run))

	limits := []limit.Limit{
		{Signal: "Xe136_0n2b_n1", Mode: core.ModePenalty, Counts: 12.5, BestFit: 0, Threshold: 2.7, ConfidenceLevel: 0.9, HalfLife: 2.6e24},
		{Signal: "Xe136_0n2b_n1", Mode: core.ModeNoPenalty, Counts: 10.1, ConfidenceLevel: 0.9},
		{Signal: "Xe136_0n2b_n2", Mode: core.ModeNoPenalty, ConfidenceLevel: 0.9, Failure: "threshold not reached"},
	}
	for _, l := range limits {
		require.NoError(t, repo.SaveLimit(ctx, run.ID, l))
	}
	// saving again replaces
	limits[0].Counts = 13
	require.NoError(t, repo.SaveLimit(ctx, run.ID, limits[0]))

	got, err := repo.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Name, got.Name)
	assert.Equal(t, run.Fingerprint, got.Fingerprint)
	assert.True(t, run.CreatedAt.Equal(got.CreatedAt))
	require.Len(t, got.Limits, 3)
	assert.Equal(t, core.ModeNoPenalty, got.Limits[0].Mode)
	assert.True(t, got.Limits[1].Failed())
	assert.Equal(t, 13.0, got.Limits[2].Counts)
	assert.Equal(t, 2.6e24, got.Limits[2].HalfLife)
}

func TestResultRepository_ListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewResultRepository(openTestDB(t))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var ids []core.RunID
	for i, offset := range []time.Duration{0, 500 * time.Millisecond, time.Hour} {
		run := &limit.Run{ID: core.NewRunID(), Name: "run", Fingerprint: "fp", CreatedAt: base.Add(offset)}
		require.NoError(t, repo.CreateRun(ctx, run), i)
		ids = append(ids, run.ID)
	}

	runs, err := repo.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)
}

func TestResultRepository_RunNotFound(t *testing.T) {
	repo := NewResultRepository(openTestDB(t))

	_, err := repo.GetRun(context.Background(), core.NewRunID())
	assert.ErrorIs(t, err, core.ErrRunNotFound)
}

func TestResultRepository_Dumps(t *testing.T) {
	ctx := context.Background()
	repo := NewResultRepository(openTestDB(t))
	run := &limit.Run{ID: core.NewRunID(), Name: "run", Fingerprint: "fp", CreatedAt: time.Now()}
	require.NoError(t, repo.CreateRun(ctx, run))

	cfg, err := limit.NewConfig(100, []float64{90, 100, 110}, 10)
	require.NoError(t, err)
	cfg.AddChiSquared(1.5, 1, 90)
	require.NoError(t, repo.SaveConfig(ctx, run.ID, limit.NewConfigDump(core.ModePenalty, "sig", "bkg", cfg)))

	analyser := limit.NewSystAnalyser("bkg", []float64{0, 1}, []float64{90, 100, 110})
	analyser.Update(0, 1, 0.5)
	analyser.Update(1, 0, 2)
	analyser.Update(0, 0, 1)
	analyser.Update(0, 2, 1)
	analyser.Update(1, 1, 3)
	analyser.Update(1, 2, 4)
	analyser.Finalize(cfg)
	dump := limit.AnalyserDump{Mode: core.ModePenalty, SignalIndex: 0, Signal: "sig", Analyser: analyser}
	require.NoError(t, repo.SaveAnalyser(ctx, run.ID, dump))

	configs, err := repo.ListConfigs(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, "bkg", configs[0].Owner)
	assert.Equal(t, cfg.ChiSquareds(), configs[0].Records)

	analysers, err := repo.ListAnalysers(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, analysers, 1)
	assert.Equal(t, analyser, analysers[0].Analyser)

	assert.Error(t, repo.SaveAnalyser(ctx, run.ID, limit.AnalyserDump{Signal: "sig"}))
}
