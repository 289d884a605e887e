package ui

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"echidna/domain/core"
	"echidna/domain/limit"
	"echidna/ports"
)

//go:embed templates/*.html
var embeddedFiles embed.FS

// App serves the run browser, the rendered reports and the JSON API
type App struct {
	router    *chi.Mux
	results   ports.ResultRepository
	spectra   ports.SpectraRepository
	templates *template.Template
	outputDir string
	logger    *zap.Logger
}

// Config holds UI application configuration
type Config struct {
	OutputDir string
	Logger    *zap.Logger
}

// NewApp creates the UI application. api is mounted under /api and may be nil.
func NewApp(config Config, results ports.ResultRepository, spectraRepo ports.SpectraRepository, api http.Handler) (*App, error) {
	funcMap := template.FuncMap{
		"num": func(v float64) string {
			if v == 0 {
				return "n/a"
			}
			return fmt.Sprintf("%.4g", v)
		},
		"float": func(v float64) string { return fmt.Sprintf("%.4g", v) },
		"stamp": func(t time.Time) string { return t.Format("2006-01-02 15:04") },
		"short": func(f core.ConfigFingerprint) string { return core.Hash(f).Short() },
	}
	templates, err := template.New("").Funcs(funcMap).ParseFS(embeddedFiles, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{
		router:    chi.NewRouter(),
		results:   results,
		spectra:   spectraRepo,
		templates: templates,
		outputDir: config.OutputDir,
		logger:    logger,
	}

	app.setupMiddleware()
	app.setupRoutes(api)
	return app, nil
}

// ServeHTTP implements http.Handler
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

// setupRoutes configures the application routes
func (a *App) setupRoutes(api http.Handler) {
	a.router.Get("/", a.handleIndex)
	a.router.Get("/runs/{id}", a.handleRun)

	reports := http.FileServer(http.Dir(a.outputDir))
	a.router.Handle("/reports/*", http.StripPrefix("/reports/", reports))

	if api != nil {
		a.router.Mount("/api", api)
	}
}

type indexPage struct {
	Runs    []*limit.Run
	Spectra []ports.SpectraInfo
}

// handleIndex lists recent runs and stored spectra
func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	runs, err := a.results.ListRuns(r.Context(), 50)
	if err != nil {
		a.logger.Error("failed to list runs", zap.Error(err))
		http.Error(w, "Failed to load runs", http.StatusInternalServerError)
		return
	}
	infos, err := a.spectra.List(r.Context())
	if err != nil {
		a.logger.Error("failed to list spectra", zap.Error(err))
		http.Error(w, "Failed to load spectra", http.StatusInternalServerError)
		return
	}
	a.renderTemplate(w, "index.html", indexPage{Runs: runs, Spectra: infos})
}

type runPage struct {
	Run      *limit.Run
	Report   string
	Workbook string
}

// handleRun shows the limits of one run with links to its outputs
func (a *App) handleRun(w http.ResponseWriter, r *http.Request) {
	runID, err := core.ParseRunID(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid run ID", http.StatusBadRequest)
		return
	}
	run, err := a.results.GetRun(r.Context(), runID)
	if err != nil {
		if core.IsNotFoundError(err) {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
		a.logger.Error("failed to load run", zap.String("run_id", runID.String()), zap.Error(err))
		http.Error(w, "Failed to load run", http.StatusInternalServerError)
		return
	}

	page := runPage{Run: run}
	if a.exists(runID, "report.html") {
		page.Report = "/reports/" + runID.String() + "/report.html"
	}
	if a.exists(runID, "results.xlsx") {
		page.Workbook = "/reports/" + runID.String() + "/results.xlsx"
	}
	a.renderTemplate(w, "run.html", page)
}

func (a *App) exists(runID core.RunID, name string) bool {
	_, err := os.Stat(filepath.Join(a.outputDir, runID.String(), name))
	return err == nil
}

// renderTemplate renders to a buffer first so template errors do not leave
// a half written page.
func (a *App) renderTemplate(w http.ResponseWriter, templateName string, data interface{}) {
	var buf bytes.Buffer
	if err := a.templates.ExecuteTemplate(&buf, templateName, data); err != nil {
		a.logger.Error("template error", zap.String("template", templateName), zap.Error(err))
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		a.logger.Warn("failed to write response", zap.Error(err))
	}
}
