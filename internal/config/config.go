package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// DefaultFeedURL is the CWA open-data endpoint for automatic rain gauge
// observations.
const DefaultFeedURL = "https://opendata.cwa.gov.tw/fileapi/v1/opendataapi/O-A0002-001"

const maxFetchRetries = 10

// Config holds all service settings, populated from environment variables.
type Config struct {
	FeedURL         string
	APIKey          string
	FetchTimeout    time.Duration
	FetchMaxRetries int
	RawSnapshotPath string

	DBPath        string
	FetchSchedule string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Optional Kafka fan-out of normalized records.
	KafkaEnabled            bool
	KafkaBrokers            []string
	KafkaObservationTopic   string
	KafkaPrecipitationTopic string
}

// OneShot reports whether the service should run the pipeline once and exit.
func (c *Config) OneShot() bool {
	return c.FetchSchedule == ""
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("FETCH_TIMEOUT", "20s"))
	if err != nil || fetchTimeout <= 0 {
		return nil, errors.New("invalid FETCH_TIMEOUT")
	}

	retries, err := parseFetchMaxRetries()
	if err != nil {
		return nil, err
	}

	kafkaEnabled, err := parseBool("KAFKA_ENABLED", false)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		FeedURL:         sharedcfg.EnvOrDefault("FEED_URL", DefaultFeedURL),
		APIKey:          os.Getenv("CWA_API_KEY"),
		FetchTimeout:    fetchTimeout,
		FetchMaxRetries: retries,
		RawSnapshotPath: os.Getenv("RAW_SNAPSHOT_PATH"),

		DBPath:        sharedcfg.EnvOrDefault("DB_PATH", "data.db"),
		FetchSchedule: os.Getenv("FETCH_SCHEDULE"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaEnabled:            kafkaEnabled,
		KafkaBrokers:            sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaObservationTopic:   sharedcfg.EnvOrDefault("KAFKA_OBSERVATION_TOPIC", "weather-observations"),
		KafkaPrecipitationTopic: sharedcfg.EnvOrDefault("KAFKA_PRECIPITATION_TOPIC", "weather-precipitation"),
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

func parseFetchMaxRetries() (int, error) {
	s := os.Getenv("FETCH_MAX_RETRIES")
	if s == "" {
		return 3, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > maxFetchRetries {
		return 0, fmt.Errorf("invalid FETCH_MAX_RETRIES: must be 0-%d", maxFetchRetries)
	}
	return n, nil
}

func parseBool(key string, fallback bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
