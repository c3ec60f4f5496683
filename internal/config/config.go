// Package config loads and validates pipelinewatch configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/pipelinewatch/internal/daterange"
	"github.com/JakeFAU/pipelinewatch/internal/pipeline"
)

// Storage backends accepted by storage.backend.
const (
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig          `mapstructure:"server"`
	Auth      AuthConfig            `mapstructure:"auth"`
	Scan      ScanConfig            `mapstructure:"scan"`
	Storage   StorageConfig         `mapstructure:"storage"`
	DB        DBConfig              `mapstructure:"db"`
	PubSub    PubSubConfig          `mapstructure:"pubsub"`
	Logging   LoggingConfig         `mapstructure:"logging"`
	Pipelines []pipeline.Definition `mapstructure:"pipelines"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ScanConfig governs the background scan loop.
type ScanConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	Epoch       string        `mapstructure:"epoch"`
	Timezone    string        `mapstructure:"timezone"`
	DefaultRows int           `mapstructure:"default_rows"`
}

// StorageConfig selects where snapshots are persisted.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls access to the database queried by query stages.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// PubSubConfig holds metadata for scan-completed notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PIPELINEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("scan.interval", time.Hour)
	v.SetDefault("scan.epoch", "2018-09-01")
	v.SetDefault("scan.timezone", "Local")
	v.SetDefault("scan.default_rows", 14)
	v.SetDefault("storage.backend", BackendLocal)
	v.SetDefault("storage.dir", "data/csv")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 2)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Scan.Interval <= 0 {
		return fmt.Errorf("scan.interval must be > 0")
	}
	if _, err := c.Epoch(); err != nil {
		return fmt.Errorf("scan.epoch: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("scan.timezone: %w", err)
	}
	if c.Scan.DefaultRows < 0 {
		return fmt.Errorf("scan.default_rows must be >= 0")
	}
	switch c.Storage.Backend {
	case BackendLocal:
		if strings.TrimSpace(c.Storage.Dir) == "" {
			return fmt.Errorf("storage.dir must be set for the local backend")
		}
	case BackendGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("storage.backend %q is not one of local, gcs, memory", c.Storage.Backend)
	}
	if len(c.Pipelines) == 0 {
		return fmt.Errorf("pipelines must define at least one pipeline")
	}
	if pipeline.NeedsDatabase(c.Pipelines) && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set when a pipeline uses query stages")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	return nil
}

// Epoch returns the first date every scan covers.
func (c Config) Epoch() (daterange.Date, error) {
	d, err := daterange.Parse(c.Scan.Epoch)
	if err != nil {
		return daterange.Date{}, fmt.Errorf("parse epoch: %w", err)
	}
	return d, nil
}

// Location returns the zone that decides which calendar day "today" is.
func (c Config) Location() (*time.Location, error) {
	if c.Scan.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Scan.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load location: %w", err)
	}
	return loc, nil
}
