package config

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvVars = []string{
	"TXNFOLD_FORMAT",
	"TXNFOLD_WORKERS",
	"TXNFOLD_STORE",
	"TXNFOLD_STORE_DIR",
	"TXNFOLD_REDIS_ADDR",
	"TXNFOLD_AUDIT_JOURNAL",
	"TXNFOLD_KAFKA_BROKERS",
	"TXNFOLD_KAFKA_TOPIC",
	"TXNFOLD_ARCHIVE_DATABASE_URL",
	"TXNFOLD_LOG_LEVEL",
}

func resetEnv() {
	for _, key := range configEnvVars {
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	resetEnv()
	defer resetEnv()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, FormatCSV, cfg.Format)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "accounts.settled", cfg.KafkaTopic)
	assert.Empty(t, cfg.AuditJournalPath)
	assert.Empty(t, cfg.ArchiveDatabaseURL)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}

func TestLoadFromEnv(t *testing.T) {
	resetEnv()
	defer resetEnv()

	os.Setenv("TXNFOLD_FORMAT", "jsonl")
	os.Setenv("TXNFOLD_WORKERS", "8")
	os.Setenv("TXNFOLD_STORE", "sqlite")
	os.Setenv("TXNFOLD_STORE_DIR", "/var/lib/txnfold")
	os.Setenv("TXNFOLD_KAFKA_BROKERS", "broker-1:9092, broker-2:9092")
	os.Setenv("TXNFOLD_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, FormatJSONL, cfg.Format)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, "/var/lib/txnfold", cfg.StoreDir)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	resetEnv()
	defer resetEnv()

	os.Setenv("TXNFOLD_FORMAT", "xml")
	os.Setenv("TXNFOLD_STORE", "dynamo")
	os.Setenv("TXNFOLD_WORKERS", "0")
	os.Setenv("TXNFOLD_LOG_LEVEL", "verbose")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TXNFOLD_FORMAT")
	assert.Contains(t, err.Error(), "TXNFOLD_STORE")
	assert.Contains(t, err.Error(), "TXNFOLD_WORKERS")
	assert.Contains(t, err.Error(), "TXNFOLD_LOG_LEVEL")
}

func TestLoadRejectsTooManyWorkers(t *testing.T) {
	resetEnv()
	defer resetEnv()

	os.Setenv("TXNFOLD_WORKERS", "10000")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TXNFOLD_WORKERS")
}

func TestLoadNonNumericWorkersFallsBack(t *testing.T) {
	resetEnv()
	defer resetEnv()

	os.Setenv("TXNFOLD_WORKERS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Workers)
}

func TestValidateKafkaTopicRequiredWithBrokers(t *testing.T) {
	cfg := &Config{
		Format:       FormatCSV,
		Workers:      1,
		Store:        StoreMemory,
		LogLevel:     "info",
		KafkaBrokers: []string{"broker-1:9092"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TXNFOLD_KAFKA_TOPIC")
}

func TestValidateRedisAddrRequiredForRedisStore(t *testing.T) {
	cfg := &Config{
		Format:   FormatCSV,
		Workers:  1,
		Store:    StoreRedis,
		LogLevel: "info",
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TXNFOLD_REDIS_ADDR")
}

func TestLevelMapping(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.level}
			assert.Equal(t, tt.want, cfg.Level())
		})
	}
}
