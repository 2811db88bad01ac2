// Package config defines all configuration structures for the screening
// engine.  No I/O or parsing logic lives here — only plain data types and
// validation.
package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// ReloadTimeout is the wall-clock bound applied to a reload triggered
	// over HTTP, guarding against pathological XML input.
	ReloadTimeout time.Duration `mapstructure:"reload_timeout"`
}

// SourcesConfig locates the four consolidated sanctions list files.  The
// filename selects which parser is invoked for a source; it never drives
// schema detection.
type SourcesConfig struct {
	DataDir  string `mapstructure:"data_dir"`
	UNFile   string `mapstructure:"un_file"`
	UKFile   string `mapstructure:"uk_file"`
	OFACFile string `mapstructure:"ofac_file"`
	EUFile   string `mapstructure:"eu_file"`
}

// Path returns the absolute path of the named source file inside DataDir.
func (s SourcesConfig) Path(filename string) string {
	return filepath.Join(s.DataDir, filename)
}

// SnapshotConfig controls the persisted repository snapshot that lets a
// restart skip reparsing unchanged source files.
type SnapshotConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// MatchingConfig holds the matching engine tunables.
type MatchingConfig struct {
	// Threshold is the minimum score (0-100) a candidate must reach to be
	// returned.  Documented default 70; operators may raise it up to the
	// 82 used by stricter compliance regimes.
	Threshold float64 `mapstructure:"threshold"`

	// MaxResults caps the ranked result list per query.
	MaxResults int `mapstructure:"max_results"`

	// StaleAfter is the age past which loaded data is flagged stale.
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

// ScreeningConfig holds batch orchestration tunables.
type ScreeningConfig struct {
	// Concurrency is the number of parallel workers a batch screen uses.
	Concurrency int `mapstructure:"concurrency"`

	// MaxBatchRows bounds a single uploaded client batch.
	MaxBatchRows int `mapstructure:"max_batch_rows"`
}

// WatchConfig controls the optional data-directory watcher that triggers a
// reload when source files are replaced on disk.
type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level            string   `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format           string   `mapstructure:"format"` // "json" | "console"
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// Config is the root configuration structure for the engine.  Every
// component reads its settings from the relevant sub-struct; nothing reads
// viper directly outside this package.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Matching  MatchingConfig  `mapstructure:"matching"`
	Screening ScreeningConfig `mapstructure:"screening"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Log       LogConfig       `mapstructure:"log"`
}

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error
// as fatal and refuse to start.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	if c.Sources.DataDir == "" {
		return fmt.Errorf("config: sources.data_dir is required")
	}
	for name, f := range map[string]string{
		"sources.un_file":   c.Sources.UNFile,
		"sources.uk_file":   c.Sources.UKFile,
		"sources.ofac_file": c.Sources.OFACFile,
		"sources.eu_file":   c.Sources.EUFile,
	} {
		if f == "" {
			return fmt.Errorf("config: %s is required", name)
		}
	}

	if c.Snapshot.Enabled && c.Snapshot.Path == "" {
		return fmt.Errorf("config: snapshot.path is required when snapshot.enabled is true")
	}

	if c.Matching.Threshold < 50 || c.Matching.Threshold > 100 {
		return fmt.Errorf("config: matching.threshold %.1f is out of range [50, 100]", c.Matching.Threshold)
	}
	if c.Matching.MaxResults < 1 {
		return fmt.Errorf("config: matching.max_results must be ≥ 1, got %d", c.Matching.MaxResults)
	}
	if c.Matching.StaleAfter <= 0 {
		return fmt.Errorf("config: matching.stale_after must be positive")
	}

	if c.Screening.Concurrency < 1 {
		return fmt.Errorf("config: screening.concurrency must be ≥ 1, got %d", c.Screening.Concurrency)
	}
	if c.Screening.MaxBatchRows < 1 {
		return fmt.Errorf("config: screening.max_batch_rows must be ≥ 1, got %d", c.Screening.MaxBatchRows)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
