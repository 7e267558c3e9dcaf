// Package config defines the application configuration: feed source,
// database connection, ingestion tuning and logging.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the full application configuration, populated from defaults,
// an optional config file and GTFSIMPORT_* environment variables.
type Config struct {
	Logger LoggerConfig `mapstructure:"logger"`
	Feed   FeedConfig   `mapstructure:"feed"`
	Arango ArangoConfig `mapstructure:"arango"`
	Ingest IngestConfig `mapstructure:"ingest"`
}

// LoggerConfig holds the logger settings.
type LoggerConfig struct {
	Level       string `mapstructure:"level"`
	Format      string `mapstructure:"format" validate:"oneof=console json"`
	AddSource   bool   `mapstructure:"add_source"`
	ServiceName string `mapstructure:"service_name"`
	LogFile     string `mapstructure:"log_file"`
	MaxSize     int    `mapstructure:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAge      int    `mapstructure:"max_age"`
	Compress    bool   `mapstructure:"compress"`
}

// FeedConfig describes where the feed archive comes from and where it is
// unpacked.
type FeedConfig struct {
	URL     string `mapstructure:"url" validate:"required,url"`
	ZipPath string `mapstructure:"zip_path" validate:"required"`
	Dir     string `mapstructure:"dir" validate:"required"`
	Cleanup bool   `mapstructure:"cleanup"`
}

// ArangoConfig holds the graph database connection details.
type ArangoConfig struct {
	Endpoint string `mapstructure:"endpoint" validate:"required,url"`
	Database string `mapstructure:"database" validate:"required"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// IngestConfig tunes the load pipeline. BatchSize is the accumulated row
// count at which a bulk import is released; CommitSize is the intermediate
// commit threshold for the database-side enrichment queries.
type IngestConfig struct {
	BatchSize  int `mapstructure:"batch_size" validate:"gt=0"`
	CommitSize int `mapstructure:"commit_size" validate:"gt=0"`
}

// SetDefaults installs the default values on a viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "gtfs-import")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// Île-de-France Mobilités static offer, the feed this importer was
	// built against. Any GTFS static zip works.
	v.SetDefault("feed.url", "https://data.iledefrance-mobilites.fr/explore/dataset/offre-horaires-tc-gtfs-idfm/files/a925e164271e4bca93433756d6a340d1/download/")
	v.SetDefault("feed.zip_path", "gtfs.zip")
	v.SetDefault("feed.dir", "gtfs")
	v.SetDefault("feed.cleanup", true)

	v.SetDefault("arango.endpoint", "http://localhost:8529")
	v.SetDefault("arango.database", "GTFS")
	v.SetDefault("arango.username", "root")
	v.SetDefault("arango.password", "")

	v.SetDefault("ingest.batch_size", 50_000)
	v.SetDefault("ingest.commit_size", 100_000)
}

// NewFromViper unmarshals and validates the configuration.
func NewFromViper(v *viper.Viper) (*Config, error) {
	v.BindEnv("arango.password", "GTFSIMPORT_ARANGO_PASSWORD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// NewDefaultConfig returns a configuration carrying only the defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Validate checks the configuration against its struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("configuration validation: %w", err)
	}
	return nil
}
