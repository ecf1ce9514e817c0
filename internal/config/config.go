package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rxtech-lab/profile-launchpad/internal/protocol"
	"github.com/rxtech-lab/profile-launchpad/internal/utils"
)

// Config is the process configuration read from the environment.
type Config struct {
	Port int

	// PostgresURL selects postgres; otherwise SqlitePath is used
	PostgresURL string
	SqlitePath  string

	RPCURL          string
	ChainID         int64
	AdminPrivateKey string

	// Protocol picks the launch adapter for the whole process
	Protocol string
	Clanker  protocol.ClankerConfig
	Doppler  protocol.DopplerConfig
	// FeeRouterSolcVersion is the compiler used for the embedded fee router
	FeeRouterSolcVersion string

	CronSecret  string
	JwksURI     string
	JwtAudience string

	LaunchWindow          time.Duration
	FeeJobConcurrency     int
	FeeCollectionSchedule string
	LogLevel              string
}

func Load() (*Config, error) {
	launchWindow, err := getEnvDuration("LAUNCH_WINDOW", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	chainID, err := getEnvInt64("CHAIN_ID", 8453)
	if err != nil {
		return nil, err
	}

	clanker, err := loadClanker(chainID)
	if err != nil {
		return nil, err
	}
	doppler, err := loadDoppler()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                  getEnvInt("PORT", 8080),
		PostgresURL:           getEnvString("POSTGRES_URL", ""),
		SqlitePath:            getEnvString("SQLITE_PATH", "launchpad.db"),
		RPCURL:                getEnvString("RPC_URL", ""),
		ChainID:               chainID,
		AdminPrivateKey:       getEnvString("ADMIN_PRIVATE_KEY", ""),
		Protocol:              strings.ToLower(getEnvString("PROTOCOL", protocol.ClankerName)),
		Clanker:               clanker,
		Doppler:               doppler,
		FeeRouterSolcVersion:  getEnvString("FEE_ROUTER_SOLC_VERSION", protocol.FeeRouterSolcVersion),
		CronSecret:            getEnvString("CRON_SECRET", ""),
		JwksURI:               getEnvString("JWKS_URI", ""),
		JwtAudience:           getEnvString("JWT_AUDIENCE", ""),
		LaunchWindow:          launchWindow,
		FeeJobConcurrency:     getEnvInt("FEE_JOB_CONCURRENCY", 4),
		FeeCollectionSchedule: getEnvString("FEE_COLLECTION_SCHEDULE", ""),
		LogLevel:              getEnvString("LOG_LEVEL", "info"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings every entry point needs.
func (c *Config) Validate() error {
	switch c.Protocol {
	case protocol.ClankerName, protocol.DopplerName:
	default:
		return fmt.Errorf("unsupported PROTOCOL %q, expected %s or %s", c.Protocol, protocol.ClankerName, protocol.DopplerName)
	}
	if c.RPCURL == "" {
		return fmt.Errorf("RPC_URL is required")
	}
	if c.AdminPrivateKey == "" {
		return fmt.Errorf("ADMIN_PRIVATE_KEY is required")
	}
	if c.JwksURI == "" {
		return fmt.Errorf("JWKS_URI is required")
	}
	if c.CronSecret == "" {
		return fmt.Errorf("CRON_SECRET is required")
	}
	if c.FeeJobConcurrency < 1 {
		return fmt.Errorf("FEE_JOB_CONCURRENCY must be positive, got %d", c.FeeJobConcurrency)
	}
	return nil
}

func loadClanker(chainID int64) (protocol.ClankerConfig, error) {
	cfg := protocol.DefaultClankerConfig()
	cfg.ChainID = chainID

	addresses := []struct {
		key    string
		target *common.Address
	}{
		{"CLANKER_FACTORY", &cfg.Factory},
		{"CLANKER_LP_LOCKER", &cfg.LpLocker},
		{"CLANKER_FEE_LOCKER", &cfg.FeeLocker},
		{"CLANKER_VAULT", &cfg.Vault},
		{"CLANKER_HOOK", &cfg.Hook},
		{"CLANKER_MEV_MODULE", &cfg.MevModule},
		{"CLANKER_PAIRED_TOKEN", &cfg.PairedToken},
	}
	for _, a := range addresses {
		if err := overrideAddress(a.key, a.target); err != nil {
			return cfg, err
		}
	}
	cfg.Interface = getEnvString("CLANKER_INTERFACE", cfg.Interface)
	return cfg, nil
}

func loadDoppler() (protocol.DopplerConfig, error) {
	cfg := protocol.DefaultDopplerConfig()

	addresses := []struct {
		key    string
		target *common.Address
	}{
		{"DOPPLER_AIRLOCK", &cfg.Airlock},
		{"DOPPLER_TOKEN_FACTORY", &cfg.TokenFactory},
		{"DOPPLER_GOVERNANCE_FACTORY", &cfg.GovernanceFactory},
		{"DOPPLER_INITIALIZER", &cfg.Initializer},
		{"DOPPLER_MIGRATOR", &cfg.Migrator},
		{"DOPPLER_HOOK", &cfg.DopplerHook},
		{"DOPPLER_NUMERAIRE", &cfg.Numeraire},
	}
	for _, a := range addresses {
		if err := overrideAddress(a.key, a.target); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func overrideAddress(key string, target *common.Address) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	if !utils.IsValidEthereumAddress(value) {
		return fmt.Errorf("invalid address for %s: %q", key, value)
	}
	*target = common.HexToAddress(value)
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	if value := os.Getenv(key); value != "" {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %q (%w)", key, value, err)
		}
		return intValue, nil
	}
	return defaultValue, nil
}
