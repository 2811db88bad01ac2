package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a fully-populated Config that passes Validate.
func validConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

func TestDefaultsProduceValidConfig(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data", cfg.Sources.DataDir)
	assert.Equal(t, "un_consolidated.xml", cfg.Sources.UNFile)
	assert.Equal(t, "uk_consolidated.xml", cfg.Sources.UKFile)
	assert.Equal(t, "ofac_consolidated.xml", cfg.Sources.OFACFile)
	assert.Equal(t, "eu_consolidated.xml", cfg.Sources.EUFile)
	assert.Equal(t, DefaultThreshold, cfg.Matching.Threshold)
	assert.Equal(t, 14*24*time.Hour, cfg.Matching.StaleAfter)
	assert.Equal(t, 4, cfg.Screening.Concurrency)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.Matching.Threshold = 82
	cfg.Server.Port = 9090
	ApplyDefaults(cfg)

	assert.Equal(t, 82.0, cfg.Matching.Threshold)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad mode", func(c *Config) { c.Server.Mode = "production" }},
		{"missing data dir", func(c *Config) { c.Sources.DataDir = "" }},
		{"missing un file", func(c *Config) { c.Sources.UNFile = "" }},
		{"threshold too low", func(c *Config) { c.Matching.Threshold = 49 }},
		{"threshold too high", func(c *Config) { c.Matching.Threshold = 101 }},
		{"zero max results", func(c *Config) { c.Matching.MaxResults = -1 }},
		{"zero concurrency", func(c *Config) { c.Screening.Concurrency = -1 }},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"snapshot enabled without path", func(c *Config) { c.Snapshot.Enabled = true; c.Snapshot.Path = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSourcesPath(t *testing.T) {
	s := SourcesConfig{DataDir: "/var/lib/amlscreen"}
	assert.Equal(t, "/var/lib/amlscreen/un_consolidated.xml", s.Path("un_consolidated.xml"))
}
