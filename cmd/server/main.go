package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload" // Automatically load .env file if present
	"github.com/rxtech-lab/profile-launchpad/internal/config"
	"github.com/rxtech-lab/profile-launchpad/internal/server"
	"go.uber.org/zap"
)

// Build information (set via ldflags)
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildTime  = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()
	if *showVersion {
		fmt.Printf("Profile Launchpad %s (commit %s, built %s)\n", Version, CommitHash, BuildTime)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	logger, err := server.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("Failed to initialize logger: ", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	svc, err := server.Initialize(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer svc.Close()

	// The fee job can also be triggered over HTTP by an external scheduler
	if cfg.FeeCollectionSchedule != "" {
		scheduler, err := server.StartFeeSchedule(cfg.FeeCollectionSchedule, svc.FeeCollectionJob, 10*time.Minute, logger)
		if err != nil {
			logger.Fatal("Failed to schedule fee collection", zap.Error(err))
		}
		defer func() { <-scheduler.Stop().Done() }()
	}

	apiServer := svc.NewAPIServer(cfg, logger)
	startedPort, err := apiServer.Start(&cfg.Port)
	if err != nil {
		logger.Fatal("Failed to start API server", zap.Error(err))
	}
	logger.Info("API server started", zap.Int("port", startedPort), zap.String("protocol", cfg.Protocol))

	// Set up graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Info("Shutting down server")
	if err := apiServer.Shutdown(); err != nil {
		logger.Error("Error shutting down API server", zap.Error(err))
	}
	logger.Info("Server shut down successfully")
}
