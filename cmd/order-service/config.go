package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/foodorder/internal/app"
)

const (
	envHTTPAddr               = "FOODORDER_HTTP_ADDR"
	envGRPCAddr               = "FOODORDER_GRPC_ADDR"
	envMetricsAddr            = "FOODORDER_METRICS_ADDR"
	envStorageDriver          = "FOODORDER_STORAGE_DRIVER"
	envPostgresDSN            = "FOODORDER_POSTGRES_DSN"
	envPostgresAutoMigrate    = "FOODORDER_POSTGRES_AUTO_MIGRATE"
	envCatalogFile            = "FOODORDER_CATALOG_FILE"
	envKafkaBrokers           = "KAFKA_BROKERS"
	envKafkaGroupID           = "FOODORDER_KAFKA_GROUP_ID"
	envKafkaMaxRetries        = "FOODORDER_KAFKA_MAX_RETRIES"
	envOutboxPollInterval     = "FOODORDER_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize        = "FOODORDER_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts      = "FOODORDER_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay       = "FOODORDER_OUTBOX_RETRY_DELAY"
	envOutboxMaxPending       = "FOODORDER_OUTBOX_MAX_PENDING"
	envOutboxMaxAge           = "FOODORDER_OUTBOX_MAX_AGE"
	envOutboxCleanupInterval  = "FOODORDER_OUTBOX_CLEANUP_INTERVAL"
	envOutboxRetention        = "FOODORDER_OUTBOX_RETENTION"
	envOutboxCleanupBatchSize = "FOODORDER_OUTBOX_CLEANUP_BATCH_SIZE"
)

type envLookup func(string) (string, bool)

// configWarning — значение переменной окружения, которое не удалось применить.
type configWarning struct {
	Key   string
	Value string
	Err   error
}

func (w configWarning) String() string {
	return fmt.Sprintf("%s=%q: %v", w.Key, w.Value, w.Err)
}

// readConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Некорректные значения не применяются и возвращаются как предупреждения.
func readConfigFromEnv(lookup envLookup) (app.Config, []configWarning) {
	cfg := app.DefaultConfig()
	var warnings []configWarning

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseBool(v)
		if err != nil {
			warnings = append(warnings, configWarning{Key: key, Value: v, Err: err})
			return
		}
		*dst = parsed
	}
	integer := func(key string, dst *int, valid func(int) bool, msg string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseInt(v, valid, msg)
		if err != nil {
			warnings = append(warnings, configWarning{Key: key, Value: v, Err: err})
			return
		}
		*dst = parsed
	}
	duration := func(key string, dst *time.Duration, valid func(time.Duration) bool, msg string) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		parsed, err := parseDuration(v, valid, msg)
		if err != nil {
			warnings = append(warnings, configWarning{Key: key, Value: v, Err: err})
			return
		}
		*dst = parsed
	}

	positive := func(v int) bool { return v > 0 }
	nonNegative := func(v int) bool { return v >= 0 }
	positiveDuration := func(v time.Duration) bool { return v > 0 }
	nonNegativeDuration := func(v time.Duration) bool { return v >= 0 }

	str(envHTTPAddr, &cfg.HTTPAddr)
	str(envGRPCAddr, &cfg.GRPCAddr)
	str(envMetricsAddr, &cfg.MetricsAddr)
	str(envStorageDriver, &cfg.StorageDriver)
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	str(envPostgresDSN, &cfg.PostgresDSN)
	boolean(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	str(envCatalogFile, &cfg.CatalogFile)

	str(envKafkaBrokers, &cfg.KafkaBrokers)
	str(envKafkaGroupID, &cfg.KafkaGroupID)
	integer(envKafkaMaxRetries, &cfg.KafkaMaxRetries, nonNegative, "must be >= 0")

	duration(envOutboxPollInterval, &cfg.OutboxPollInterval, positiveDuration, "must be > 0")
	integer(envOutboxBatchSize, &cfg.OutboxBatchSize, positive, "must be > 0")
	integer(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts, positive, "must be > 0")
	duration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegativeDuration, "must be >= 0")
	integer(envOutboxMaxPending, &cfg.OutboxMaxPending, nonNegative, "must be >= 0")
	duration(envOutboxMaxAge, &cfg.OutboxMaxAge, nonNegativeDuration, "must be >= 0")

	duration(envOutboxCleanupInterval, &cfg.OutboxCleanupInterval, positiveDuration, "must be > 0")
	duration(envOutboxRetention, &cfg.OutboxRetention, positiveDuration, "must be > 0")
	integer(envOutboxCleanupBatchSize, &cfg.OutboxCleanupBatchSize, positive, "must be > 0")

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, msg string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid int value %q: %w", raw, err)
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("invalid int value %d: %s", value, msg)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, msg string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration value %q: %w", raw, err)
	}
	if valid != nil && !valid(value) {
		return 0, fmt.Errorf("invalid duration value %s: %s", value, msg)
	}
	return value, nil
}
