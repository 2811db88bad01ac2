package config

import "time"

// Default source filenames follow the operational convention for the four
// consolidated lists dropped into the data directory.
const (
	DefaultUNFile   = "un_consolidated.xml"
	DefaultUKFile   = "uk_consolidated.xml"
	DefaultOFACFile = "ofac_consolidated.xml"
	DefaultEUFile   = "eu_consolidated.xml"
)

// DefaultThreshold is the default match threshold.  70 keeps recall high
// enough for compliance review; stricter operators raise it via
// configuration.
const DefaultThreshold = 70.0

// DefaultStaleAfter flags data older than two weeks — the refresh cadence
// expected of consolidated sanctions lists.
const DefaultStaleAfter = 14 * 24 * time.Hour

// ApplyDefaults fills every unset field of cfg with its platform default.
// Explicitly configured values are never overwritten.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "release"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Server.ReloadTimeout == 0 {
		cfg.Server.ReloadTimeout = 5 * time.Minute
	}

	if cfg.Sources.DataDir == "" {
		cfg.Sources.DataDir = "data"
	}
	if cfg.Sources.UNFile == "" {
		cfg.Sources.UNFile = DefaultUNFile
	}
	if cfg.Sources.UKFile == "" {
		cfg.Sources.UKFile = DefaultUKFile
	}
	if cfg.Sources.OFACFile == "" {
		cfg.Sources.OFACFile = DefaultOFACFile
	}
	if cfg.Sources.EUFile == "" {
		cfg.Sources.EUFile = DefaultEUFile
	}

	if cfg.Snapshot.Path == "" {
		cfg.Snapshot.Path = "instance/sanctions_snapshot.json"
	}

	if cfg.Matching.Threshold == 0 {
		cfg.Matching.Threshold = DefaultThreshold
	}
	if cfg.Matching.MaxResults == 0 {
		cfg.Matching.MaxResults = 25
	}
	if cfg.Matching.StaleAfter == 0 {
		cfg.Matching.StaleAfter = DefaultStaleAfter
	}

	if cfg.Screening.Concurrency == 0 {
		cfg.Screening.Concurrency = 4
	}
	if cfg.Screening.MaxBatchRows == 0 {
		cfg.Screening.MaxBatchRows = 5000
	}

	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 2 * time.Second
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if len(cfg.Log.OutputPaths) == 0 {
		cfg.Log.OutputPaths = []string{"stdout"}
	}
	if len(cfg.Log.ErrorOutputPaths) == 0 {
		cfg.Log.ErrorOutputPaths = []string{"stderr"}
	}
}
