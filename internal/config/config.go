// Package config loads the presale service configuration from YAML, an
// optional .env file and IDO_* environment variables, in that order.
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/R3E-Network/presale_layer/internal/presale"
)

// Config is the full service configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Vesting   VestingConfig   `yaml:"vesting"`
	Liquidity LiquidityConfig `yaml:"liquidity"`
	Keeper    KeeperConfig    `yaml:"keeper"`
	Events    EventsConfig    `yaml:"events"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr" env:"IDO_HTTP_ADDR"`
	RateLimit       int           `yaml:"rate_limit" env:"IDO_HTTP_RATE_LIMIT"`
	Burst           int           `yaml:"burst" env:"IDO_HTTP_BURST"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"IDO_HTTP_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"IDO_HTTP_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"IDO_HTTP_SHUTDOWN_TIMEOUT"`
	CORSOrigins     []string      `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	// Driver is "memory" or "postgres".
	Driver         string `yaml:"driver" env:"IDO_DATABASE_DRIVER"`
	DSN            string `yaml:"dsn" env:"IDO_DATABASE_URL"`
	MigrateOnStart bool   `yaml:"migrate_on_start" env:"IDO_DATABASE_MIGRATE"`
}

type AuthConfig struct {
	// PublicKeyPath points at a PEM encoded RSA public key used to verify
	// bearer tokens.
	PublicKeyPath string   `yaml:"public_key_path" env:"IDO_JWT_PUBLIC_KEY"`
	SkipPaths     []string `yaml:"skip_paths"`
	// TrustCallerHeader accepts X-Caller-ID without a token. Local use only.
	TrustCallerHeader bool `yaml:"trust_caller_header" env:"IDO_AUTH_TRUST_CALLER_HEADER"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"IDO_LOG_LEVEL"`
	Format string `yaml:"format" env:"IDO_LOG_FORMAT"`
}

type VestingConfig struct {
	SecondReleaseOffset time.Duration `yaml:"second_release_offset" env:"IDO_VESTING_SECOND_OFFSET"`
	ThirdReleaseOffset  time.Duration `yaml:"third_release_offset" env:"IDO_VESTING_THIRD_OFFSET"`
}

// Offsets converts the section to the core type.
func (v VestingConfig) Offsets() presale.VestingOffsets {
	return presale.VestingOffsets{Second: v.SecondReleaseOffset, Third: v.ThirdReleaseOffset}
}

type LiquidityConfig struct {
	// Destination receives the listing share of proceeds and units.
	Destination string `yaml:"destination" env:"IDO_LIQUIDITY_DESTINATION"`
	// ReservePercent of supply is deposited on top of it at sale creation.
	ReservePercent uint64 `yaml:"reserve_percent" env:"IDO_LIQUIDITY_RESERVE_PERCENT"`
}

type KeeperConfig struct {
	Enabled  bool   `yaml:"enabled" env:"IDO_KEEPER_ENABLED"`
	Schedule string `yaml:"schedule" env:"IDO_KEEPER_SCHEDULE"`
	Operator string `yaml:"operator" env:"IDO_KEEPER_OPERATOR"`
}

type EventsConfig struct {
	BufferSize    int    `yaml:"buffer_size" env:"IDO_EVENTS_BUFFER"`
	RedisAddr     string `yaml:"redis_addr" env:"IDO_REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"IDO_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" env:"IDO_REDIS_DB"`
	RedisChannel  string `yaml:"redis_channel" env:"IDO_REDIS_CHANNEL"`
}

// DefaultPath is where Load looks when no path is given.
var DefaultPath = filepath.Join("config", "presale.yaml")

// Default returns the configuration used for any value not set elsewhere.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			RateLimit:       20,
			Burst:           40,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{Driver: "memory"},
		Auth:     AuthConfig{SkipPaths: []string{"/healthz", "/metrics"}},
		Logging:  LoggingConfig{Level: "info", Format: "json"},
		Vesting: VestingConfig{
			SecondReleaseOffset: presale.DefaultSecondReleaseOffset,
			ThirdReleaseOffset:  presale.DefaultThirdReleaseOffset,
		},
		Liquidity: LiquidityConfig{
			Destination:    "liquidity_pool",
			ReservePercent: presale.LiquidityUnitsPercent,
		},
		Keeper:    KeeperConfig{Schedule: "@every 30s"},
		Events:    EventsConfig{BufferSize: 1000, RedisChannel: "presale.events"},
	}
}

// Load builds a Config from defaults, the YAML file at path, the .env file
// at envFile and the process environment. A missing file at the default path
// is not an error; an explicitly given path must exist.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !stderrors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !stderrors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	if err := envdecode.Decode(cfg); err != nil && !stderrors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database: dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("database: unknown driver %q", c.Database.Driver)
	}

	if c.Vesting.SecondReleaseOffset <= 0 || c.Vesting.ThirdReleaseOffset <= 0 {
		return fmt.Errorf("vesting: release offsets must be positive")
	}
	if c.Vesting.ThirdReleaseOffset <= c.Vesting.SecondReleaseOffset {
		return fmt.Errorf("vesting: third release offset must be after the second")
	}
	if c.Liquidity.Destination == "" {
		return fmt.Errorf("liquidity: destination is required")
	}
	if c.Liquidity.ReservePercent > 100 {
		return fmt.Errorf("liquidity: reserve_percent must be at most 100")
	}
	if c.HTTP.RateLimit <= 0 || c.HTTP.Burst <= 0 {
		return fmt.Errorf("http: rate_limit and burst must be positive")
	}
	if c.Keeper.Enabled && c.Keeper.Operator == "" {
		return fmt.Errorf("keeper: operator is required when the keeper is enabled")
	}
	if c.Auth.PublicKeyPath == "" && !c.Auth.TrustCallerHeader {
		return fmt.Errorf("auth: public_key_path is required unless trust_caller_header is set")
	}
	return nil
}
