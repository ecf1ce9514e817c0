package api

import (
	"fmt"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/rxtech-lab/profile-launchpad/internal/api/middleware"
	"github.com/rxtech-lab/profile-launchpad/internal/services"
	"github.com/rxtech-lab/profile-launchpad/internal/utils"
	"go.uber.org/zap"
)

// ServerParams holds the collaborators of the HTTP surface.
type ServerParams struct {
	Orchestrator         services.Orchestrator
	LaunchService        services.LaunchService
	FeeCollectionService services.FeeCollectionService
	FeeCollectionJob     services.FeeCollectionJob
	Verifier             utils.IdentityVerifier
	// CronSecret guards the fee collection trigger and the admin routes
	CronSecret string
	Logger     *zap.Logger
}

type APIServer struct {
	app                  *fiber.App
	orchestrator         services.Orchestrator
	launchService        services.LaunchService
	feeCollectionService services.FeeCollectionService
	feeCollectionJob     services.FeeCollectionJob
	verifier             utils.IdentityVerifier
	cronSecret           string
	logger               *zap.Logger
	port                 int
}

func NewAPIServer(params ServerParams) *APIServer {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// Add middleware
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))

	log := params.Logger
	if log == nil {
		log = zap.NewNop()
	}

	server := &APIServer{
		app:                  app,
		orchestrator:         params.Orchestrator,
		launchService:        params.LaunchService,
		feeCollectionService: params.FeeCollectionService,
		feeCollectionJob:     params.FeeCollectionJob,
		verifier:             params.Verifier,
		cronSecret:           params.CronSecret,
		logger:               log.Named("api"),
	}
	server.setupRoutes()
	return server
}

func (s *APIServer) setupRoutes() {
	requireIdentity := middleware.IdentityMiddleware(middleware.IdentityConfig{Verifier: s.verifier})
	requireCronSecret := middleware.CronSecretMiddleware(s.cronSecret)

	api := s.app.Group("/api")

	// Launch lifecycle
	api.Post("/launch", requireIdentity, s.handleCreateLaunch)
	api.Post("/claim", requireIdentity, s.handleClaimLaunch)
	api.Get("/auth/me", requireIdentity, s.handleCurrentUser)

	// Public token listing
	api.Get("/tokens", s.handleListLaunches)
	api.Get("/tokens/:id", s.handleGetLaunch)
	api.Get("/tokens/:id/vesting", s.handleGetVesting)

	// Operator routes
	api.Get("/admin/unsynced-routers", requireCronSecret, s.handleUnsyncedRouters)
	s.app.Get("/cron/collect-fees", requireCronSecret, s.handleCollectFees)

	// Health check
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})
}

// Start listens on port, or on a random available port when port is nil.
func (s *APIServer) Start(port *int) (int, error) {
	if port == nil {
		listener, err := net.Listen("tcp", ":0")
		if err != nil {
			return 0, fmt.Errorf("failed to find available port: %w", err)
		}
		assigned := listener.Addr().(*net.TCPAddr).Port
		// Close the listener so Fiber can use it
		listener.Close()
		port = &assigned
	}
	s.port = *port

	go func() {
		if err := s.app.Listen(fmt.Sprintf(":%d", s.port)); err != nil {
			s.logger.Error("API server stopped", zap.Error(err))
		}
	}()

	return s.port, nil
}

func (s *APIServer) Shutdown() error {
	return s.app.Shutdown()
}

// GetFiberApp exposes the underlying app for adaptors and in-process tests
func (s *APIServer) GetFiberApp() *fiber.App {
	return s.app
}
