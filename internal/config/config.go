// Package config provides configuration for the application
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Source and sink kinds.
const (
	KindKafka = "kafka"
	KindDir   = "dir"
)

// Schema spellings.
const (
	SpellingCorrected = "corrected"
	SpellingLegacy    = "legacy"
)

// Config holds all configuration for the application
type Config struct {
	Service ServiceConfig
	Logging LoggingConfig
	Source  SourceConfig
	Sink    SinkConfig
	Schema  SchemaConfig
	Worker  WorkerConfig
	Retry   RetryConfig
	Metrics MetricsConfig
}

// ServiceConfig holds service settings
type ServiceConfig struct {
	Name string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string
}

// KafkaConfig holds Kafka connection settings shared by source and sink
type KafkaConfig struct {
	Brokers []string
}

// SourceConfig selects where landing documents come from
type SourceConfig struct {
	Kind         string
	Kafka        KafkaConfig
	Topic        string
	GroupID      string
	Dir          string
	PollInterval time.Duration
}

// SinkConfig selects where routed documents go
type SinkConfig struct {
	Kind          string
	Kafka         KafkaConfig
	StagingTopic  string
	RejectedTopic string
	StagingDir    string
	RejectedDir   string
}

// SchemaConfig picks the required-field spelling
type SchemaConfig struct {
	Spelling string
}

// WorkerConfig sizes the queue and the worker pool
type WorkerConfig struct {
	Count     int
	QueueSize int
}

// RetryConfig controls destination write retries
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// MetricsConfig holds the metrics server settings
type MetricsConfig struct {
	Port string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error

	cfg.Service.Name = getEnv("SERVICE_NAME", "telemetrygate")
	cfg.Logging.Level = getEnv("LOG_LEVEL", "info")

	cfg.Source.Kind = strings.ToLower(getEnv("SOURCE_KIND", KindKafka))
	cfg.Sink.Kind = strings.ToLower(getEnv("SINK_KIND", KindKafka))

	if cfg.Source.Kind == KindKafka || cfg.Sink.Kind == KindKafka {
		brokers := parseList(os.Getenv("KAFKA_BROKERS"))
		if len(brokers) == 0 {
			return nil, fmt.Errorf("KAFKA_BROKERS must contain at least one valid broker address")
		}
		cfg.Source.Kafka.Brokers = brokers
		cfg.Sink.Kafka.Brokers = brokers
	}

	switch cfg.Source.Kind {
	case KindKafka:
		if cfg.Source.Topic, err = requireEnv("KAFKA_LANDING_TOPIC"); err != nil {
			return nil, err
		}
		cfg.Source.GroupID = getEnv("KAFKA_GROUP_ID", "telemetrygate-validator")
	case KindDir:
		if cfg.Source.Dir, err = requireEnv("LANDING_DIR"); err != nil {
			return nil, err
		}
		if cfg.Source.PollInterval, err = getDuration("LANDING_POLL_INTERVAL", 2*time.Second); err != nil {
			return nil, err
		}
		if cfg.Source.PollInterval <= 0 {
			return nil, fmt.Errorf("LANDING_POLL_INTERVAL must be positive")
		}
	default:
		return nil, fmt.Errorf("SOURCE_KIND must be %q or %q, got %q", KindKafka, KindDir, cfg.Source.Kind)
	}

	switch cfg.Sink.Kind {
	case KindKafka:
		if cfg.Sink.StagingTopic, err = requireEnv("KAFKA_STAGING_TOPIC"); err != nil {
			return nil, err
		}
		if cfg.Sink.RejectedTopic, err = requireEnv("KAFKA_REJECTED_TOPIC"); err != nil {
			return nil, err
		}
		if cfg.Sink.StagingTopic == cfg.Sink.RejectedTopic {
			return nil, fmt.Errorf("KAFKA_STAGING_TOPIC and KAFKA_REJECTED_TOPIC must differ")
		}
	case KindDir:
		if cfg.Sink.StagingDir, err = requireEnv("STAGING_DIR"); err != nil {
			return nil, err
		}
		if cfg.Sink.RejectedDir, err = requireEnv("REJECTED_DIR"); err != nil {
			return nil, err
		}
		if cfg.Sink.StagingDir == cfg.Sink.RejectedDir {
			return nil, fmt.Errorf("STAGING_DIR and REJECTED_DIR must differ")
		}
	default:
		return nil, fmt.Errorf("SINK_KIND must be %q or %q, got %q", KindKafka, KindDir, cfg.Sink.Kind)
	}

	cfg.Schema.Spelling = strings.ToLower(getEnv("SCHEMA_SPELLING", SpellingCorrected))
	if cfg.Schema.Spelling != SpellingCorrected && cfg.Schema.Spelling != SpellingLegacy {
		return nil, fmt.Errorf("SCHEMA_SPELLING must be %q or %q, got %q", SpellingCorrected, SpellingLegacy, cfg.Schema.Spelling)
	}

	if cfg.Worker.Count, err = getInt("WORKER_COUNT", 4); err != nil {
		return nil, err
	}
	if cfg.Worker.Count <= 0 {
		return nil, fmt.Errorf("WORKER_COUNT must be greater than 0")
	}
	if cfg.Worker.QueueSize, err = getInt("QUEUE_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.Worker.QueueSize <= 0 {
		return nil, fmt.Errorf("QUEUE_SIZE must be greater than 0")
	}

	if cfg.Retry.MaxAttempts, err = getInt("RETRY_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.Retry.MaxAttempts < 0 {
		return nil, fmt.Errorf("RETRY_MAX_ATTEMPTS must not be negative")
	}
	if cfg.Retry.BaseDelay, err = getDuration("RETRY_BASE_DELAY", 100*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.Retry.MaxDelay, err = getDuration("RETRY_MAX_DELAY", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.Retry.MaxDelay < cfg.Retry.BaseDelay {
		return nil, fmt.Errorf("RETRY_MAX_DELAY must not be lower than RETRY_BASE_DELAY")
	}
	if cfg.Retry.Multiplier, err = getFloat("RETRY_MULTIPLIER", 2.0); err != nil {
		return nil, err
	}
	if cfg.Retry.Multiplier < 1 {
		return nil, fmt.Errorf("RETRY_MULTIPLIER must be at least 1")
	}

	cfg.Metrics.Port = getEnv("METRICS_PORT", "9090")

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) (string, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

func getInt(key string, def int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}

// parseList splits a comma-separated list, dropping blanks.
func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
