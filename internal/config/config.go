// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	DatabaseMongo  = "mongo"
	DatabaseSQLite = "sqlite"

	defaultConfigFile = "config.toml"
)

// ServerConfig holds all server-related settings
type ServerConfig struct {
	Port             int    `koanf:"port"`
	Host             string `koanf:"host"`
	MetricsEnabled   bool   `koanf:"metrics_enabled"`
	RequestTimeoutMs int    `koanf:"request_timeout_ms"` // Actor request timeout in milliseconds
}

// DatabaseConfig selects and configures the vote store
type DatabaseConfig struct {
	Type         string `koanf:"type"` // "mongo" or "sqlite"
	URI          string `koanf:"uri"`
	Name         string `koanf:"name"`
	SQLitePath   string `koanf:"sqlite_path"`
	Transactions bool   `koanf:"transactions"` // Mongo only, requires a replica set
}

// RedisConfig holds the rate limiter connection
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// VotingConfig tunes the vote engine
type VotingConfig struct {
	VotesPerMinute  int `koanf:"votes_per_minute"`
	ActorPoolSize   int `koanf:"actor_pool_size"`
	CandidateWindow int `koanf:"candidate_window"`
}

// ReconcileConfig schedules the counter repair job
type ReconcileConfig struct {
	Schedule    string `koanf:"schedule"` // cron expression, empty disables
	Concurrency int    `koanf:"concurrency"`
}

// AuthConfig holds the JWT verification secret
type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
}

// Config holds the complete application configuration
type Config struct {
	Server         *ServerConfig    `koanf:"server"`
	Database       *DatabaseConfig  `koanf:"database"`
	Redis          *RedisConfig     `koanf:"redis"`
	Voting         *VotingConfig    `koanf:"voting"`
	Reconcile      *ReconcileConfig `koanf:"reconcile"`
	Auth           *AuthConfig      `koanf:"auth"`
	AllowedOrigins []string         `koanf:"allowed_origins"`
	LogLevel       string           `koanf:"log_level"`
	Debug          bool             `koanf:"debug"`
}

// DefaultConfig provides default server settings
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Port:             8080,
		Host:             "0.0.0.0",
		MetricsEnabled:   true,
		RequestTimeoutMs: 5000,
	}
}

// DefaultDatabaseConfig provides default database settings
func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Type:       DatabaseSQLite,
		URI:        "mongodb://localhost:27017",
		Name:       "scholar",
		SQLitePath: "scholar.db",
	}
}

// Default returns the full configuration with every default applied.
func Default() *Config {
	return &Config{
		Server:   DefaultConfig(),
		Database: DefaultDatabaseConfig(),
		Redis:    &RedisConfig{},
		Voting: &VotingConfig{
			VotesPerMinute:  30,
			ActorPoolSize:   8,
			CandidateWindow: 500,
		},
		Reconcile: &ReconcileConfig{
			Schedule:    "@every 1h",
			Concurrency: 8,
		},
		Auth:           &AuthConfig{},
		AllowedOrigins: []string{"*"},
		LogLevel:       "info",
	}
}

// RequestTimeout returns the actor request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutMs) * time.Millisecond
}

// LoadConfig applies, in order: defaults, the TOML file named by SCHOLAR_CONFIG
// (config.toml when unset), a .env file, then environment variables.
func LoadConfig() (*Config, error) {
	cfg := Default()

	path := os.Getenv("SCHOLAR_CONFIG")
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	} else if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Silent when no .env exists
	_ = godotenv.Load()

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case DatabaseMongo:
		if c.Database.URI == "" {
			return fmt.Errorf("database.uri is required when database.type is %s", DatabaseMongo)
		}
	case DatabaseSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("database.sqlite_path is required when database.type is %s", DatabaseSQLite)
		}
	default:
		return fmt.Errorf("unsupported database type %q", c.Database.Type)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}

func applyEnv(cfg *Config) {
	// Server
	setInt("PORT", &cfg.Server.Port)
	setString("HOST", &cfg.Server.Host)
	setBool("METRICS_ENABLED", &cfg.Server.MetricsEnabled)
	setInt("REQUEST_TIMEOUT_MS", &cfg.Server.RequestTimeoutMs)

	// Database
	setString("DB_TYPE", &cfg.Database.Type)
	setString("DATABASE_URL", &cfg.Database.URI)
	setString("DB_NAME", &cfg.Database.Name)
	setString("SQLITE_PATH", &cfg.Database.SQLitePath)
	setBool("MONGO_TRANSACTIONS", &cfg.Database.Transactions)

	// Redis
	setString("REDIS_ADDR", &cfg.Redis.Addr)
	setString("REDIS_USERNAME", &cfg.Redis.Username)
	setString("REDIS_PASSWORD", &cfg.Redis.Password)
	setInt("REDIS_DB", &cfg.Redis.DB)

	// Voting and reconciliation
	setInt("VOTES_PER_MINUTE", &cfg.Voting.VotesPerMinute)
	setInt("ACTOR_POOL_SIZE", &cfg.Voting.ActorPoolSize)
	setInt("VOTING_CANDIDATE_WINDOW", &cfg.Voting.CandidateWindow)
	setString("RECONCILE_SCHEDULE", &cfg.Reconcile.Schedule)
	setInt("RECONCILE_CONCURRENCY", &cfg.Reconcile.Concurrency)

	setString("JWT_SECRET", &cfg.Auth.JWTSecret)
	setString("LOG_LEVEL", &cfg.LogLevel)
	setBool("DEBUG", &cfg.Debug)

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = strings.Split(origins, ",")
	}
}

func setString(key string, dst *string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setInt(key string, dst *int) {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			*dst = n
		}
	}
}

func setBool(key string, dst *bool) {
	if value := os.Getenv(key); value != "" {
		*dst = value == "true"
	}
}
