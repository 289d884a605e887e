package main

import (
	"context"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"echidna/internal/config"
	"echidna/internal/container"
	"echidna/internal/logging"
	"echidna/ui"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(appConfig.Run.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if appConfig.Profiling.Enabled {
		go func() {
			logger.Info("pprof server listening", zap.String("port", appConfig.Profiling.Port))
			if err := http.ListenAndServe("localhost:"+appConfig.Profiling.Port, nil); err != nil {
				logger.Warn("pprof server failed", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appContainer, err := container.New(appConfig, logger)
	if err != nil {
		logger.Fatal("Failed to create application container", zap.Error(err))
	}
	if err := appContainer.Open(ctx); err != nil {
		logger.Fatal("Failed to initialize container", zap.Error(err))
	}
	defer appContainer.Shutdown(context.Background())

	handler, err := appContainer.Handler()
	if err != nil {
		logger.Fatal("Failed to build server", zap.Error(err))
	}

	if err := ui.Serve(ctx, ":"+appConfig.Server.Port, handler, logger); err != nil {
		logger.Error("Server failed", zap.Error(err))
	}
}
