// Package config provides configuration loading, defaults, and validation
// for the screening engine.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix used by all engine settings.
const envPrefix = "AMLSCREEN"

// newViper builds a pre-configured Viper instance with the engine's standard
// settings: YAML file type, AMLSCREEN_ env prefix, automatic env binding,
// and a key replacer that maps "." → "_" so that nested keys like
// "sources.data_dir" resolve to "AMLSCREEN_SOURCES_DATA_DIR".
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// Unmarshal only sees keys viper knows about, so every key is bound
	// explicitly; AutomaticEnv alone does not cover env-only loading.
	for _, key := range configKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// configKeys lists every configuration key, enabling AMLSCREEN_* overrides
// whether or not a config file is present.
var configKeys = []string{
	"server.port", "server.mode", "server.read_timeout", "server.write_timeout",
	"server.shutdown_timeout", "server.reload_timeout",
	"sources.data_dir", "sources.un_file", "sources.uk_file",
	"sources.ofac_file", "sources.eu_file",
	"snapshot.enabled", "snapshot.path",
	"matching.threshold", "matching.max_results", "matching.stale_after",
	"screening.concurrency", "screening.max_batch_rows",
	"watch.enabled", "watch.debounce",
	"log.level", "log.format", "log.output_paths", "log.error_output_paths",
}

// Load reads the YAML file at configPath, merges any AMLSCREEN_* environment
// variable overrides, applies defaults for unset fields, and validates the
// result.  It returns a fully-populated *Config or a descriptive error.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from AMLSCREEN_* environment
// variables, with no config file required.  Deployments that drop the
// engine next to the data directory use this path.
func LoadFromEnv() (*Config, error) {
	v := newViper()
	return unmarshalAndFinalize(v)
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// MustLoad is a convenience wrapper around Load that panics on any error.
// It is intended for use in main() where a config-load failure is always
// fatal.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
