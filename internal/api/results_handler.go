package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"echidna/domain/core"
	"echidna/domain/limit"
	"echidna/domain/spectra"
	"echidna/internal/config"
	appErrors "echidna/internal/errors"
	"echidna/ports"
)

const maxAnalysisBody = 1 << 20

// Launcher starts a limit run in the background and returns its id
type Launcher interface {
	Launch(analysis *config.Analysis) (core.RunID, error)
}

// ResultsHandler serves stored runs, limits and spectra as JSON
type ResultsHandler struct {
	results  ports.ResultRepository
	spectra  ports.SpectraRepository
	launcher Launcher
	analysis func() (*config.Analysis, error)
	logger   *zap.Logger
}

// NewResultsHandler creates a new results handler
func NewResultsHandler(results ports.ResultRepository, spectraRepo ports.SpectraRepository, logger *zap.Logger) *ResultsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultsHandler{results: results, spectra: spectraRepo, logger: logger}
}

// SetLauncher enables POST /runs. defaults supplies the analysis used when
// the request body is empty.
func (h *ResultsHandler) SetLauncher(launcher Launcher, defaults func() (*config.Analysis, error)) {
	h.launcher = launcher
	h.analysis = defaults
}

// NewRouter builds a gin engine with the results routes under /api.
// hub may be nil.
func NewRouter(h *ResultsHandler, hub *SSEHub) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	rg := router.Group("/api")
	h.RegisterRoutes(rg)
	if hub != nil {
		rg.GET("/events", hub.HandleSSE)
	}
	return router
}

// RegisterRoutes adds the results routes to a router group
func (h *ResultsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
	rg.GET("/runs", h.ListRuns)
	rg.POST("/runs", h.LaunchRun)
	rg.GET("/runs/:runId", h.GetRun)
	rg.GET("/runs/:runId/limits", h.ListLimits)
	rg.GET("/runs/:runId/configs", h.ListConfigs)
	rg.GET("/runs/:runId/analysers", h.ListAnalysers)
	rg.GET("/spectra", h.ListSpectra)
	rg.GET("/spectra/:name", h.GetSpectra)
}

// Health reports that the server is up
func (h *ResultsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListRuns returns the most recent runs
func (h *ResultsHandler) ListRuns(c *gin.Context) {
	maxRuns := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		maxRuns = n
	}

	runs, err := h.results.ListRuns(c.Request.Context(), maxRuns)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

// LaunchRun starts a limit run from the YAML analysis in the body
func (h *ResultsHandler) LaunchRun(c *gin.Context) {
	if h.launcher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run launching is disabled"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxAnalysisBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	var analysis *config.Analysis
	if len(body) == 0 && h.analysis != nil {
		analysis, err = h.analysis()
	} else {
		analysis, err = config.ParseAnalysis(body)
	}
	if err != nil {
		if appErrors.GetCode(err) == appErrors.CodeConfigInvalid {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.fail(c, err)
		return
	}

	runID, err := h.launcher.Launch(analysis)
	if err != nil {
		if appErrors.GetCode(err) == appErrors.CodeConfigInvalid {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run_id": runID, "name": analysis.Name})
}

// GetRun returns a run with its limits
func (h *ResultsHandler) GetRun(c *gin.Context) {
	runID, ok := h.runID(c)
	if !ok {
		return
	}
	run, err := h.results.GetRun(c.Request.Context(), runID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// ListLimits returns the limits of a run, optionally filtered by mode
func (h *ResultsHandler) ListLimits(c *gin.Context) {
	runID, ok := h.runID(c)
	if !ok {
		return
	}
	if _, err := h.results.GetRun(c.Request.Context(), runID); err != nil {
		h.fail(c, err)
		return
	}
	limits, err := h.results.ListLimits(c.Request.Context(), runID)
	if err != nil {
		h.fail(c, err)
		return
	}

	mode := core.Mode(c.Query("mode"))
	filtered := make([]limit.Limit, 0, len(limits))
	for _, l := range limits {
		if mode == "" || l.Mode == mode {
			filtered = append(filtered, l)
		}
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "limits": filtered})
}

// ListConfigs returns the stored config snapshots of a run
func (h *ResultsHandler) ListConfigs(c *gin.Context) {
	runID, ok := h.runID(c)
	if !ok {
		return
	}
	if _, err := h.results.GetRun(c.Request.Context(), runID); err != nil {
		h.fail(c, err)
		return
	}
	configs, err := h.results.ListConfigs(c.Request.Context(), runID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "configs": configs})
}

// ListAnalysers returns the stored SystAnalysers of a run
func (h *ResultsHandler) ListAnalysers(c *gin.Context) {
	runID, ok := h.runID(c)
	if !ok {
		return
	}
	if _, err := h.results.GetRun(c.Request.Context(), runID); err != nil {
		h.fail(c, err)
		return
	}
	analysers, err := h.results.ListAnalysers(c.Request.Context(), runID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"run_id": runID, "analysers": analysers})
}

// ListSpectra returns every stored spectrum without bin contents
func (h *ResultsHandler) ListSpectra(c *gin.Context) {
	infos, err := h.spectra.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"spectra": infos})
}

// GetSpectra returns the axes, ROIs and per-dimension summaries of a spectrum
func (h *ResultsHandler) GetSpectra(c *gin.Context) {
	name, err := core.ParseSpectraName(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, err := h.spectra.Get(c.Request.Context(), name)
	if err != nil {
		h.fail(c, err)
		return
	}

	summaries := make([]spectra.Summary, 0, 3)
	for _, dim := range []string{spectra.DimEnergy, spectra.DimRadial, spectra.DimTime} {
		summary, err := s.Summarize(dim)
		if err != nil {
			h.fail(c, err)
			return
		}
		summaries = append(summaries, summary)
	}

	c.JSON(http.StatusOK, gin.H{
		"name":       s.Name,
		"num_decays": s.NumDecays,
		"raw_events": s.RawEvents,
		"events":     s.Sum(),
		"axes":       s.Axes(),
		"rois":       s.ROIs(),
		"summaries":  summaries,
	})
}

func (h *ResultsHandler) runID(c *gin.Context) (core.RunID, bool) {
	runID, err := core.ParseRunID(c.Param("runId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid run ID"})
		return "", false
	}
	return runID, true
}

func (h *ResultsHandler) fail(c *gin.Context, err error) {
	if core.IsNotFoundError(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if errors.Is(err, core.ErrEmptySpectra) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
