package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port              string        `yaml:"port"`
	Environment       string        `yaml:"environment"`
	LogLevel          slog.Level    `yaml:"-"`
	RedisURL          string        `yaml:"redis_url"`
	DataDir           string        `yaml:"data_dir"`
	SnapshotTTL       time.Duration `yaml:"snapshot_ttl"`
	DefaultGridWidth  int           `yaml:"default_grid_width"`
	DefaultGridHeight int           `yaml:"default_grid_height"`
	WorkerCount       int           `yaml:"worker_count"` // delivery workers in the API process; 0 disables the queue
}

// fileConfig mirrors Config for the optional YAML file; LogLevel is a string
// there.
type fileConfig struct {
	Config   `yaml:",inline"`
	LogLevel string `yaml:"log_level"`
}

func defaults() *Config {
	return &Config{
		Port:              "8080",
		Environment:       "development",
		LogLevel:          slog.LevelInfo,
		RedisURL:          "localhost:6379",
		DataDir:           "./data",
		SnapshotTTL:       24 * time.Hour,
		DefaultGridWidth:  10,
		DefaultGridHeight: 6,
		WorkerCount:       1,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if set), then environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.DataDir = getEnv("DATA_DIR", cfg.DataDir)

	var err error
	if cfg.SnapshotTTL, err = getEnvDuration("SNAPSHOT_TTL", cfg.SnapshotTTL); err != nil {
		return nil, err
	}
	if cfg.DefaultGridWidth, err = getEnvInt("DEFAULT_GRID_WIDTH", cfg.DefaultGridWidth); err != nil {
		return nil, err
	}
	if cfg.DefaultGridHeight, err = getEnvInt("DEFAULT_GRID_HEIGHT", cfg.DefaultGridHeight); err != nil {
		return nil, err
	}
	if cfg.WorkerCount, err = getEnvInt("WORKER_COUNT", cfg.WorkerCount); err != nil {
		return nil, err
	}

	if cfg.DefaultGridWidth < 1 || cfg.DefaultGridHeight < 1 {
		return nil, fmt.Errorf("default grid size must be at least 1x1, got %dx%d", cfg.DefaultGridWidth, cfg.DefaultGridHeight)
	}
	if cfg.WorkerCount < 0 {
		return nil, fmt.Errorf("worker count must not be negative, got %d", cfg.WorkerCount)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	fc := fileConfig{Config: *c}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	*c = fc.Config
	if fc.LogLevel != "" {
		c.LogLevel = parseLogLevel(fc.LogLevel)
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
