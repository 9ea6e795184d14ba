// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AtRiskMedia/formrelay-go/internal/application/container"
	"github.com/AtRiskMedia/formrelay-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/formrelay-go/internal/presentation/http/server"
	"github.com/AtRiskMedia/formrelay-go/pkg/config"
	"github.com/gin-gonic/gin"
)

// Initialize performs the complete startup sequence
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	log.Println("\033[32m" + `
  ┌─┐┌─┐┬─┐┌┬┐  ┬─┐┌─┐┬  ┌─┐┬ ┬
  ├┤ │ │├┬┘│││  ├┬┘├┤ │  ├─┤└┬┘
  └  └─┘┴└─┴ ┴  ┴└─└─┘┴─┘┴ ┴ ┴
` + "\033[97m" + `
  made by At Risk Media
` + "\033[0m")

	// Step 1: Create the channeled logger
	logger, err := logging.NewChanneledLogger(logging.DefaultLoggerConfig())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logger.Startup().Info("Initializing...")

	// Step 2: Create dependency injection container
	appContainer := container.NewContainer(logger)
	logger.Startup().Info("Dependency injection container created with singleton services")

	if appContainer.StoreDegraded {
		logger.Startup().Warn("Backing store unavailable, running degraded: entries stay in memory only")
	} else {
		logger.Startup().Info("Backing store ready", "driver", appContainer.DB.ConnectionInfo())
	}

	// Step 3: Start the channel hub
	logger.Startup().Info("Starting channel hub...")
	go appContainer.Hub.Run(ctx)

	// Step 4: Start partition reaper
	logger.Startup().Info("Starting partition reaper...")
	go appContainer.ReaperService.Run(ctx)

	// Step 5: Start HTTP server
	startServerTime := time.Now()
	port := config.Port
	httpServer := server.New(port, appContainer)
	logger.Startup().Info("HTTP server initialized", "port", port, "duration", time.Since(startServerTime))

	// Step 6: Setup graceful shutdown
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
		}
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"port", port)

	// Wait for shutdown signal
	<-gracefulShutdown
	logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")

	shutdownStart := time.Now()

	// Stop accepting new connections first, then tear down channels and
	// pending approvals.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	cancelBackgroundTasks()

	appContainer.Close()
	logger.Shutdown().Info("Container closed successfully")

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
