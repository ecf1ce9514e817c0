package server

import (
	"context"
	"fmt"

	"github.com/rxtech-lab/profile-launchpad/internal/api"
	"github.com/rxtech-lab/profile-launchpad/internal/chain"
	"github.com/rxtech-lab/profile-launchpad/internal/config"
	"github.com/rxtech-lab/profile-launchpad/internal/protocol"
	"github.com/rxtech-lab/profile-launchpad/internal/services"
	"github.com/rxtech-lab/profile-launchpad/internal/utils"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
)

// Services is the wired application.
type Services struct {
	DB                   services.DBService
	Adapter              protocol.Adapter
	UserService          services.UserService
	LaunchService        services.LaunchService
	FeeCollectionService services.FeeCollectionService
	RateLimitService     services.RateLimitService
	Orchestrator         services.Orchestrator
	FeeCollectionJob     services.FeeCollectionJob
	Verifier             utils.IdentityVerifier
}

// NewLogger builds a production zap logger at the given level.
func NewLogger(level string) (*zap.Logger, error) {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsed)
	return cfg.Build()
}

// OpenDatabase connects to postgres when configured and to sqlite otherwise.
func OpenDatabase(cfg *config.Config) (services.DBService, error) {
	if cfg.PostgresURL != "" {
		return services.NewPostgresDBService(cfg.PostgresURL)
	}
	return services.NewSqliteDBService(cfg.SqlitePath)
}

// NewAdapter selects the launch protocol for the lifetime of the process.
func NewAdapter(cfg *config.Config, client chain.Client, logger *zap.Logger) (protocol.Adapter, error) {
	switch cfg.Protocol {
	case protocol.ClankerName:
		return protocol.NewClankerAdapter(cfg.Clanker, client, logger)
	case protocol.DopplerName:
		bytecode, err := protocol.CompileFeeRouter(cfg.FeeRouterSolcVersion)
		if err != nil {
			return nil, fmt.Errorf("failed to compile fee router: %w", err)
		}
		router, err := protocol.NewFeeRouter(client, bytecode, cfg.Doppler.Numeraire, logger)
		if err != nil {
			return nil, err
		}
		return protocol.NewDopplerAdapter(cfg.Doppler, client, router, logger)
	default:
		return nil, fmt.Errorf("unsupported protocol %q", cfg.Protocol)
	}
}

// InitializeServices wires the stores, orchestrator and fee job around an adapter.
func InitializeServices(db *gorm.DB, adapter protocol.Adapter, verifier utils.IdentityVerifier, cfg *config.Config, logger *zap.Logger) *Services {
	userService := services.NewUserService(db)
	launchService := services.NewLaunchService(db)
	feeCollectionService := services.NewFeeCollectionService(db)
	rateLimitService := services.NewRateLimitService(db, cfg.LaunchWindow, nil)

	orchestrator := services.NewOrchestrator(services.OrchestratorParams{
		Users:     userService,
		Launches:  launchService,
		RateLimit: rateLimitService,
		Adapter:   adapter,
		Logger:    logger,
	})
	job := services.NewFeeCollectionJob(launchService, feeCollectionService, adapter, cfg.FeeJobConcurrency, logger)

	return &Services{
		Adapter:              adapter,
		UserService:          userService,
		LaunchService:        launchService,
		FeeCollectionService: feeCollectionService,
		RateLimitService:     rateLimitService,
		Orchestrator:         orchestrator,
		FeeCollectionJob:     job,
		Verifier:             verifier,
	}
}

// Initialize opens the database, dials the chain and wires everything.
func Initialize(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Services, error) {
	dbService, err := OpenDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database service: %w", err)
	}

	client, err := chain.Dial(ctx, cfg.RPCURL, cfg.ChainID, cfg.AdminPrivateKey, logger)
	if err != nil {
		dbService.Close()
		return nil, fmt.Errorf("failed to connect to chain: %w", err)
	}

	adapter, err := NewAdapter(cfg, client, logger)
	if err != nil {
		dbService.Close()
		return nil, fmt.Errorf("failed to initialize %s adapter: %w", cfg.Protocol, err)
	}

	verifier := utils.NewJwtAuthenticator(cfg.JwksURI)
	verifier.Audience = cfg.JwtAudience

	svc := InitializeServices(dbService.GetDB(), adapter, verifier, cfg, logger)
	svc.DB = dbService
	logger.Info("services initialized",
		zap.String("protocol", adapter.Name()),
		zap.String("claim_mode", string(adapter.ClaimMode())),
		zap.String("admin", client.AdminAddress().Hex()))
	return svc, nil
}

// NewAPIServer builds the HTTP surface over the wired services.
func (s *Services) NewAPIServer(cfg *config.Config, logger *zap.Logger) *api.APIServer {
	return api.NewAPIServer(api.ServerParams{
		Orchestrator:         s.Orchestrator,
		LaunchService:        s.LaunchService,
		FeeCollectionService: s.FeeCollectionService,
		FeeCollectionJob:     s.FeeCollectionJob,
		Verifier:             s.Verifier,
		CronSecret:           cfg.CronSecret,
		Logger:               logger,
	})
}

func (s *Services) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
