package handler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rxtech-lab/profile-launchpad/internal/api"
	"github.com/rxtech-lab/profile-launchpad/internal/config"
	"github.com/rxtech-lab/profile-launchpad/internal/server"
)

var (
	apiServer *api.APIServer
	initOnce  sync.Once
	initErr   error
)

// Handler is the main Vercel function handler
func Handler(w http.ResponseWriter, r *http.Request) {
	// Initialize the API server only once per instance
	initOnce.Do(func() {
		initErr = initializeAPIServer()
	})
	if initErr != nil {
		log.Printf("Failed to initialize API server: %v", initErr)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	adaptor.FiberApp(apiServer.GetFiberApp())(w, r)
}

// initializeAPIServer wires the same services as the long-running server
func initializeAPIServer() error {
	// In Vercel, only /tmp is writable
	if os.Getenv("VERCEL") == "1" && os.Getenv("POSTGRES_URL") == "" && os.Getenv("SQLITE_PATH") == "" {
		os.Setenv("SQLITE_PATH", "/tmp/launchpad.db")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := server.NewLogger(cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	svc, err := server.Initialize(ctx, cfg, logger)
	if err != nil {
		return err
	}

	apiServer = svc.NewAPIServer(cfg, logger)

	// Add a root route for Vercel
	apiServer.GetFiberApp().Get("/", func(c *fiber.Ctx) error {
		return c.JSON(map[string]interface{}{
			"message": "Profile Launchpad API",
			"status":  "running",
			"version": "1.0.0",
		})
	})
	return nil
}
