// Package config loads run configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Input formats.
const (
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
)

// Transaction store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// maxWorkers caps the partitioned fold's engine count.
const maxWorkers = 256

// Config holds the application configuration.
type Config struct {
	Format             string
	Workers            int
	Store              string
	StoreDir           string
	RedisAddr          string
	AuditJournalPath   string
	KafkaBrokers       []string
	KafkaTopic         string
	ArchiveDatabaseURL string
	LogLevel           string
}

// Load reads configuration from TXNFOLD_* environment variables, after
// loading a .env file when one exists. Unset variables fall back to
// defaults for a local one-shot run.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Format:             getenv("TXNFOLD_FORMAT", FormatCSV),
		Workers:            getenvInt("TXNFOLD_WORKERS", 1),
		Store:              getenv("TXNFOLD_STORE", StoreMemory),
		StoreDir:           os.Getenv("TXNFOLD_STORE_DIR"),
		RedisAddr:          getenv("TXNFOLD_REDIS_ADDR", "localhost:6379"),
		AuditJournalPath:   os.Getenv("TXNFOLD_AUDIT_JOURNAL"),
		KafkaTopic:         getenv("TXNFOLD_KAFKA_TOPIC", "accounts.settled"),
		ArchiveDatabaseURL: os.Getenv("TXNFOLD_ARCHIVE_DATABASE_URL"),
		LogLevel:           getenv("TXNFOLD_LOG_LEVEL", "info"),
	}

	if raw := os.Getenv("TXNFOLD_KAFKA_BROKERS"); raw != "" {
		for _, broker := range strings.Split(raw, ",") {
			if b := strings.TrimSpace(broker); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var invalid []string

	if c.Format != FormatCSV && c.Format != FormatJSONL {
		invalid = append(invalid, fmt.Sprintf("TXNFOLD_FORMAT must be %q or %q", FormatCSV, FormatJSONL))
	}
	if c.Workers < 1 || c.Workers > maxWorkers {
		invalid = append(invalid, fmt.Sprintf("TXNFOLD_WORKERS must be between 1 and %d", maxWorkers))
	}

	switch c.Store {
	case StoreMemory, StoreSQLite, StoreRedis:
	default:
		invalid = append(invalid, fmt.Sprintf("TXNFOLD_STORE must be %q, %q, or %q", StoreMemory, StoreSQLite, StoreRedis))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		invalid = append(invalid, "TXNFOLD_LOG_LEVEL must be debug, info, warn, or error")
	}

	if c.Store == StoreRedis && c.RedisAddr == "" {
		invalid = append(invalid, "TXNFOLD_REDIS_ADDR is required when TXNFOLD_STORE is redis")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		invalid = append(invalid, "TXNFOLD_KAFKA_TOPIC is required when TXNFOLD_KAFKA_BROKERS is set")
	}

	if len(invalid) > 0 {
		return errors.New("invalid configuration: " + strings.Join(invalid, "; "))
	}

	return nil
}

// Level maps the configured log level onto slog.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
