package container

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"echidna/adapters/sqlstore"
	"echidna/app"
	"echidna/internal/api"
	"echidna/internal/config"
	"echidna/ports"
	"echidna/ui"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	// Infrastructure
	DB *sqlx.DB

	// Repositories
	SpectraRepo ports.SpectraRepository
	ResultRepo  ports.ResultRepository

	// Services
	SSEHub         *api.SSEHub
	LimitService   *app.LimitService
	SpectraService *app.SpectraService

	cancel context.CancelFunc
}

// New creates a new dependency injection container
func New(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Container{Config: cfg, Logger: logger}, nil
}

// Open connects to the configured database and initializes every component
func (c *Container) Open(ctx context.Context) error {
	db, err := sqlstore.Open(ctx, c.Config.Database.Driver, c.Config.Database.URL)
	if err != nil {
		return err
	}
	return c.InitWithDatabase(db)
}

// InitWithDatabase initializes components that require database access
func (c *Container) InitWithDatabase(db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}
	c.DB = db

	if err := db.Ping(); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}

	c.SpectraRepo = sqlstore.NewSpectraRepository(db)
	c.ResultRepo = sqlstore.NewResultRepository(db)
	c.initServices()

	c.Logger.Info("container initialized",
		zap.String("driver", c.Config.Database.Driver),
		zap.String("output_dir", c.Config.Paths.OutputDir))
	return nil
}

// initServices wires the services over the repositories. Background runs
// are cancelled on Shutdown.
func (c *Container) initServices() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.SSEHub = api.NewSSEHub(c.Logger)
	c.LimitService = app.NewLimitService(c.SpectraRepo, c.ResultRepo, c.Logger,
		app.WithOutputDir(c.Config.Paths.OutputDir),
		app.WithWorkers(c.Config.Run.Workers),
		app.WithProgress(c.SSEHub),
		app.WithBaseContext(ctx))
	c.SpectraService = app.NewSpectraService(c.SpectraRepo, c.Logger)
}

// Analysis loads the configured analysis file
func (c *Container) Analysis() (*config.Analysis, error) {
	return config.LoadAnalysis(c.Config.Paths.AnalysisFile)
}

// ResultsHandler builds the JSON API handler with run launching enabled
func (c *Container) ResultsHandler() *api.ResultsHandler {
	h := api.NewResultsHandler(c.ResultRepo, c.SpectraRepo, c.Logger)
	h.SetLauncher(c.LimitService, c.Analysis)
	return h
}

// Handler builds the HTTP application: the run browser and reports served
// by the UI with the JSON API mounted under /api.
func (c *Container) Handler() (http.Handler, error) {
	if c.Config.Server.GinMode != "" {
		gin.SetMode(c.Config.Server.GinMode)
	}
	apiRouter := api.NewRouter(c.ResultsHandler(), c.SSEHub)
	uiApp, err := ui.NewApp(ui.Config{OutputDir: c.Config.Paths.OutputDir, Logger: c.Logger},
		c.ResultRepo, c.SpectraRepo, apiRouter)
	if err != nil {
		return nil, err
	}
	return uiApp, nil
}

// Shutdown cancels background runs, waits for them and closes the database
func (c *Container) Shutdown(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.LimitService != nil {
		done := make(chan struct{})
		go func() {
			c.LimitService.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			c.Logger.Warn("background runs still active at shutdown")
		}
	}
	if c.SSEHub != nil {
		c.SSEHub.Close()
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
