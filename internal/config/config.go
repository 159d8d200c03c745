package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/covid-stats-etl/internal/domain"
)

// Invocation modes.
const (
	ModeSingleRegion = "single-region"
	ModeAllRegions   = "all-regions"
	ModeWatch        = "watch"
)

// Config holds all settings, populated from environment variables.
type Config struct {
	Mode    string
	Region  string
	Sources []domain.RegionSource
	FeedURL string

	DBPath   string
	ChartDir string

	UserAgent       string
	FetchTimeout    time.Duration // 0 disables the client timeout
	WatchInterval   time.Duration
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Optional Kafka sink for stored records.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaEnabled bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	return LoadMode("")
}

// LoadMode is Load with the invocation mode taken from mode instead of
// INGEST_MODE when mode is non-empty.
func LoadMode(mode string) (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	watchInterval, err := time.ParseDuration(sharedcfg.EnvOrDefault("WATCH_INTERVAL", "6h"))
	if err != nil || watchInterval <= 0 {
		return nil, errors.New("invalid WATCH_INTERVAL")
	}

	fetchTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("FETCH_TIMEOUT", "30s"))
	if err != nil || fetchTimeout < 0 {
		return nil, errors.New("invalid FETCH_TIMEOUT")
	}

	catalog := defaultCatalog()
	if path := os.Getenv("SOURCES_FILE"); path != "" {
		catalog, err = LoadCatalog(path)
		if err != nil {
			return nil, fmt.Errorf("SOURCES_FILE: %w", err)
		}
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		Mode:            sharedcfg.EnvOrDefault("INGEST_MODE", ModeSingleRegion),
		Region:          strings.ToUpper(sharedcfg.EnvOrDefault("REGION", "MN")),
		Sources:         catalog.Regions,
		FeedURL:         sharedcfg.EnvOrDefault("FEED_URL", catalog.FeedURL),
		DBPath:          sharedcfg.EnvOrDefault("DB_PATH", "db/covid19stats.db"),
		ChartDir:        sharedcfg.EnvOrDefault("CHART_DIR", "images"),
		UserAgent:       sharedcfg.EnvOrDefault("USER_AGENT", "covid-stats-etl/1.0"),
		FetchTimeout:    fetchTimeout,
		WatchInterval:   watchInterval,
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		KafkaBrokers:    brokers,
		KafkaTopic:      sharedcfg.EnvOrDefault("KAFKA_TOPIC", "covid-daily-stats"),
		KafkaEnabled:    kafkaEnabled,
	}
	if mode != "" {
		cfg.Mode = mode
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeSingleRegion, ModeAllRegions, ModeWatch:
	default:
		return fmt.Errorf("INGEST_MODE %q is not one of %s, %s, %s", c.Mode, ModeSingleRegion, ModeAllRegions, ModeWatch)
	}
	if c.Mode != ModeAllRegions {
		if _, ok := c.Source(c.Region); !ok {
			return fmt.Errorf("REGION %q has no configured source page", c.Region)
		}
	}
	if c.Mode == ModeAllRegions && c.FeedURL == "" {
		return errors.New("FEED_URL is required for all-regions mode")
	}
	if c.DBPath == "" {
		return errors.New("DB_PATH is required")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if c.KafkaEnabled && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when Kafka is enabled")
	}
	return nil
}

// Source returns the configured situation page for region.
func (c *Config) Source(region string) (domain.RegionSource, bool) {
	for _, s := range c.Sources {
		if strings.EqualFold(s.Code, region) {
			return s, true
		}
	}
	return domain.RegionSource{}, false
}
