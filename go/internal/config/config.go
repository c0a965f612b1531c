package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// FileEnv names the optional YAML file applied between defaults and env
const FileEnv = "PAIRTALK_CONFIG"

// Gem ledger backends
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Match    MatchConfig    `yaml:"match"`
	Gems     GemsConfig     `yaml:"gems"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	NATS     NATSConfig     `yaml:"nats"`
	Auth     AuthConfig     `yaml:"auth"`
}

type ServerConfig struct {
	Port            string        `yaml:"port" env:"PORT"`
	AllowedOrigins  []string      `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// MatchConfig holds the durations that drive matches
type MatchConfig struct {
	InitialDuration   time.Duration `yaml:"initial_duration" env:"MATCH_INITIAL_DURATION"`
	ExtensionDuration time.Duration `yaml:"extension_duration" env:"MATCH_EXTENSION_DURATION"`
	DecisionWindow    time.Duration `yaml:"decision_window" env:"MATCH_DECISION_WINDOW"`
	DisconnectGrace   time.Duration `yaml:"disconnect_grace" env:"MATCH_DISCONNECT_GRACE"`
	PairCooldown      time.Duration `yaml:"pair_cooldown" env:"MATCH_PAIR_COOLDOWN"`
	PurgeInterval     time.Duration `yaml:"purge_interval" env:"MATCH_PURGE_INTERVAL"`
	ChatMaxLength     int           `yaml:"chat_max_length" env:"MATCH_CHAT_MAX_LENGTH"`
}

type GemsConfig struct {
	Backend         string `yaml:"backend" env:"GEMS_BACKEND"`
	StartingBalance int64  `yaml:"starting_balance" env:"GEMS_STARTING_BALANCE"`
	ExtendCost      int64  `yaml:"extend_cost" env:"GEMS_EXTEND_COST"`
}

// DatabaseConfig holds Postgres connection settings. URL, when set, wins
// over the individual fields.
type DatabaseConfig struct {
	URL      string `yaml:"url" env:"DATABASE_URL"`
	Host     string `yaml:"host" env:"DB_HOST"`
	Port     int    `yaml:"port" env:"DB_PORT"`
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"password" env:"DB_PASSWORD"`
	Database string `yaml:"database" env:"DB_NAME"`
	SSLMode  string `yaml:"sslmode" env:"DB_SSLMODE"`
}

// DSN returns the Postgres connection URL.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
}

// NATSConfig configures match event publishing. An empty URL disables it.
type NATSConfig struct {
	URL           string `yaml:"url" env:"NATS_URL"`
	StreamName    string `yaml:"stream_name" env:"NATS_STREAM"`
	SubjectPrefix string `yaml:"subject_prefix" env:"NATS_SUBJECT_PREFIX"`
	BufferSize    int    `yaml:"buffer_size" env:"NATS_BUFFER_SIZE"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL  time.Duration `yaml:"token_ttl" env:"JWT_EXPIRES_IN"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            "8080",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Match: MatchConfig{
			InitialDuration:   120 * time.Second,
			ExtensionDuration: 300 * time.Second,
			DecisionWindow:    15 * time.Second,
			DisconnectGrace:   15 * time.Second,
			PairCooldown:      16 * time.Hour,
			PurgeInterval:     10 * time.Minute,
			ChatMaxLength:     500,
		},
		Gems: GemsConfig{
			Backend:         BackendMemory,
			StartingBalance: 3,
			ExtendCost:      1,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Password: "postgres",
			Database: "pairtalk",
			SSLMode:  "disable",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		NATS: NATSConfig{
			StreamName:    "MATCH_EVENTS",
			SubjectPrefix: "pairtalk",
			BufferSize:    1000,
		},
		Auth: AuthConfig{
			TokenTTL: 7 * 24 * time.Hour,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by PAIRTALK_CONFIG and the environment, in that order. A .env file in the
// working directory is loaded into the environment first.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("could not load .env file")
	}
	return load(os.Getenv(FileEnv))
}

func load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// Validate rejects configurations the service cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, fmt.Errorf("%w: server port is empty", ErrInvalid))
	}

	durations := map[string]time.Duration{
		"match.initial_duration":   c.Match.InitialDuration,
		"match.extension_duration": c.Match.ExtensionDuration,
		"match.decision_window":    c.Match.DecisionWindow,
		"match.disconnect_grace":   c.Match.DisconnectGrace,
		"match.pair_cooldown":      c.Match.PairCooldown,
		"match.purge_interval":     c.Match.PurgeInterval,
		"auth.token_ttl":           c.Auth.TokenTTL,
	}
	for name, d := range durations {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s must be positive, got %s", ErrInvalid, name, d))
		}
	}
	if c.Match.ChatMaxLength <= 0 {
		errs = append(errs, fmt.Errorf("%w: match.chat_max_length must be positive", ErrInvalid))
	}

	switch c.Gems.Backend {
	case BackendMemory, BackendPostgres, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("%w: unknown gems backend %q", ErrInvalid, c.Gems.Backend))
	}
	if c.Gems.StartingBalance < 0 || c.Gems.ExtendCost <= 0 {
		errs = append(errs, fmt.Errorf("%w: gem starting balance must be >= 0 and extend cost > 0", ErrInvalid))
	}

	if len(c.Auth.JWTSecret) < 16 {
		errs = append(errs, fmt.Errorf("%w: JWT_SECRET must be at least 16 characters", ErrInvalid))
	}

	return errors.Join(errs...)
}
