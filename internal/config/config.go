package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskboard/internal/auth"
	"github.com/gosuda/taskboard/internal/channel"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Server    ServerConfig
	Channel   ChannelConfig
	RateLimit RateLimitConfig
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string //nolint:gosec // G117: DB connection config
	DBName      string
	SSLMode     string
	MaxConns    int
	AutoMigrate bool
}

// RedisConfig holds Redis connection settings. An empty Addr disables the
// shared request limiter.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// JWTConfig holds the credential verification settings.
type JWTConfig struct {
	Secret    string //nolint:gosec // G117: JWT signing secret config
	Algorithm string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	CORSOrigins       []string
}

// ChannelConfig tunes live card sessions.
type ChannelConfig struct {
	MessageFloor time.Duration
	SendQueue    int
	WriteTimeout time.Duration
}

// RateLimitConfig bounds REST requests per user.
type RateLimitConfig struct {
	RPS    float64
	Burst  int
	Window time.Duration
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (JWT secret, DB password) must be set explicitly.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("TASKBOARD_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("TASKBOARD_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	autoMigrate, err := getEnvBool("TASKBOARD_DB_AUTO_MIGRATE", true)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("TASKBOARD_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readHeaderTimeout, err := getEnvDuration("TASKBOARD_SERVER_READ_HEADER_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	shutdownTimeout, err := getEnvDuration("TASKBOARD_SERVER_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	defaults := channel.DefaultOptions()

	messageFloor, err := getEnvDuration("TASKBOARD_CHANNEL_MESSAGE_FLOOR", defaults.MessageFloor)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	sendQueue, err := getEnvInt("TASKBOARD_CHANNEL_SEND_QUEUE", defaults.SendQueue)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	channelWriteTimeout, err := getEnvDuration("TASKBOARD_CHANNEL_WRITE_TIMEOUT", defaults.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rps, err := getEnvFloat("TASKBOARD_RATE_LIMIT_RPS", 10)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	burst, err := getEnvInt("TASKBOARD_RATE_LIMIT_BURST", 20)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	window, err := getEnvDuration("TASKBOARD_RATE_LIMIT_WINDOW", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("TASKBOARD_CORS_ORIGINS", []string{"http://localhost:3000"})

	cfg := &Config{
		Database: DatabaseConfig{
			Host:        getEnv("TASKBOARD_DB_HOST", "localhost"),
			Port:        dbPort,
			User:        getEnv("TASKBOARD_DB_USER", "taskboard"),
			Password:    getEnv("TASKBOARD_DB_PASSWORD", ""),
			DBName:      getEnv("TASKBOARD_DB_NAME", "taskboard"),
			SSLMode:     getEnv("TASKBOARD_DB_SSLMODE", "disable"),
			MaxConns:    dbMaxConns,
			AutoMigrate: autoMigrate,
		},
		Redis: RedisConfig{
			Addr:     getEnv("TASKBOARD_REDIS_ADDR", ""),
			Password: getEnv("TASKBOARD_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:    getEnv("TASKBOARD_JWT_SECRET", ""),
			Algorithm: getEnv("TASKBOARD_JWT_ALGORITHM", "HS256"),
		},
		Server: ServerConfig{
			Addr:              getEnv("TASKBOARD_SERVER_ADDR", ":8080"),
			ReadHeaderTimeout: readHeaderTimeout,
			ShutdownTimeout:   shutdownTimeout,
			CORSOrigins:       corsOrigins,
		},
		Channel: ChannelConfig{
			MessageFloor: messageFloor,
			SendQueue:    sendQueue,
			WriteTimeout: channelWriteTimeout,
		},
		RateLimit: RateLimitConfig{
			RPS:    rps,
			Burst:  burst,
			Window: window,
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// JWT secret is required (no insecure default).
	if c.JWT.Secret == "" {
		return errors.New("TASKBOARD_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("TASKBOARD_JWT_SECRET must be at least 32 characters")
	}
	if !slices.Contains(auth.SupportedAlgorithms, c.JWT.Algorithm) {
		return fmt.Errorf("TASKBOARD_JWT_ALGORITHM must be one of %s, got %q",
			strings.Join(auth.SupportedAlgorithms, ", "), c.JWT.Algorithm)
	}

	if c.Database.SSLMode == "disable" {
		log.Warn().Msg("TASKBOARD_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
	}

	// Bounds checks.
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("TASKBOARD_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("TASKBOARD_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.Server.ReadHeaderTimeout <= 0 {
		return fmt.Errorf("TASKBOARD_SERVER_READ_HEADER_TIMEOUT must be positive, got %s", c.Server.ReadHeaderTimeout)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("TASKBOARD_SERVER_SHUTDOWN_TIMEOUT must be positive, got %s", c.Server.ShutdownTimeout)
	}
	if c.Channel.MessageFloor < 0 {
		return fmt.Errorf("TASKBOARD_CHANNEL_MESSAGE_FLOOR must not be negative, got %s", c.Channel.MessageFloor)
	}
	if c.Channel.SendQueue < 1 {
		return fmt.Errorf("TASKBOARD_CHANNEL_SEND_QUEUE must be >= 1, got %d", c.Channel.SendQueue)
	}
	if c.Channel.WriteTimeout <= 0 {
		return fmt.Errorf("TASKBOARD_CHANNEL_WRITE_TIMEOUT must be positive, got %s", c.Channel.WriteTimeout)
	}
	if c.RateLimit.RPS <= 0 {
		return fmt.Errorf("TASKBOARD_RATE_LIMIT_RPS must be positive, got %g", c.RateLimit.RPS)
	}
	if c.RateLimit.Burst < 1 {
		return fmt.Errorf("TASKBOARD_RATE_LIMIT_BURST must be >= 1, got %d", c.RateLimit.Burst)
	}
	if c.RateLimit.Window < time.Second {
		return fmt.Errorf("TASKBOARD_RATE_LIMIT_WINDOW must be at least 1s, got %s", c.RateLimit.Window)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Options converts the channel settings for channel.NewSession.
func (c *ChannelConfig) Options() channel.Options {
	return channel.Options{
		MessageFloor: c.MessageFloor,
		SendQueue:    c.SendQueue,
		WriteTimeout: c.WriteTimeout,
	}
}

// WindowLimit is the number of requests a user may make in one Redis window:
// the sustained rate over the window, but never less than the burst.
func (c *RateLimitConfig) WindowLimit() int {
	n := int(c.RPS * c.Window.Seconds())
	return max(n, c.Burst)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
