package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "gtfs.zip", cfg.Feed.ZipPath)
	assert.Equal(t, "gtfs", cfg.Feed.Dir)
	assert.True(t, cfg.Feed.Cleanup)
	assert.Equal(t, "http://localhost:8529", cfg.Arango.Endpoint)
	assert.Equal(t, "GTFS", cfg.Arango.Database)
	assert.Equal(t, 50_000, cfg.Ingest.BatchSize)
	assert.Equal(t, 100_000, cfg.Ingest.CommitSize)
}

func TestNewFromViperOverrides(t *testing.T) {
	t.Parallel()

	v := viper.New()
	SetDefaults(v)
	v.Set("arango.database", "transit")
	v.Set("ingest.batch_size", 1000)

	cfg, err := NewFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "transit", cfg.Arango.Database)
	assert.Equal(t, 1000, cfg.Ingest.BatchSize)
}

func TestNewFromViperPasswordEnv(t *testing.T) {
	t.Setenv("GTFSIMPORT_ARANGO_PASSWORD", "s3cret")

	v := viper.New()
	SetDefaults(v)

	cfg, err := NewFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Arango.Password)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty feed url", func(c *Config) { c.Feed.URL = "" }},
		{"malformed arango endpoint", func(c *Config) { c.Arango.Endpoint = "not-a-url" }},
		{"empty database name", func(c *Config) { c.Arango.Database = "" }},
		{"zero batch size", func(c *Config) { c.Ingest.BatchSize = 0 }},
		{"negative commit size", func(c *Config) { c.Ingest.CommitSize = -1 }},
		{"unknown log format", func(c *Config) { c.Logger.Format = "xml" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewDefaultConfig()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
