package ui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"echidna/domain/core"
	"echidna/domain/limit"
	"echidna/internal/api"
	"echidna/internal/testkit"
)

func newTestApp(t *testing.T) (*App, core.RunID, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	results := testkit.NewInMemoryResultRepository()
	spectraRepo := testkit.NewInMemorySpectraRepository()
	runID := core.NewRunID()
	ctx := context.Background()
	require.NoError(t, results.CreateRun(ctx, &limit.Run{ID: runID, Name: "klz", CreatedAt: time.Now().UTC()}))
	require.NoError(t, results.SaveLimit(ctx, runID, limit.Limit{Signal: "n1", Mode: core.ModePenalty, Counts: 12.5}))
	require.NoError(t, results.SaveLimit(ctx, runID, limit.Limit{Signal: "n3", Mode: core.ModePenalty, Failure: "threshold not reached"}))

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, runID.String()), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, runID.String(), "report.html"), []byte("<html>report</html>"), 0o644))

	apiRouter := api.NewRouter(api.NewResultsHandler(results, spectraRepo, nil), nil)
	app, err := NewApp(Config{OutputDir: dir}, results, spectraRepo, apiRouter)
	require.NoError(t, err)
	return app, runID, dir
}

func get(app *App, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestIndexListsRuns(t *testing.T) {
	app, runID, _ := newTestApp(t)

	w := get(app, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), runID.String())
	assert.Contains(t, w.Body.String(), "No spectra stored.")
}

func TestRunPage(t *testing.T) {
	app, runID, _ := newTestApp(t)

	w := get(app, "/runs/"+runID.String())
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "12.5")
	assert.Contains(t, body, "threshold not reached")
	assert.Contains(t, body, "/reports/"+runID.String()+"/report.html")
	assert.NotContains(t, body, "results.xlsx")

	assert.Equal(t, http.StatusBadRequest, get(app, "/runs/nope").Code)
	assert.Equal(t, http.StatusNotFound, get(app, "/runs/"+core.NewRunID().String()).Code)
}

func TestReportsAreServed(t *testing.T) {
	app, runID, _ := newTestApp(t)

	w := get(app, "/reports/"+runID.String()+"/report.html")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "report")
}

func TestAPIIsMounted(t *testing.T) {
	app, runID, _ := newTestApp(t)

	w := get(app, "/api/runs/"+runID.String())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "klz", gjson.Get(w.Body.String(), "name").String())
}
