// Package config handles tool configuration loading and management.
package config

// Config holds all tool settings.
type Config struct {
	Data    DataConfig    `yaml:"data"`
	Cache   CacheConfig   `yaml:"cache"`
	Export  ExportConfig  `yaml:"export"`
	Logging LoggingConfig `yaml:"logging"`
}

// DataConfig holds game data locations.
type DataConfig struct {
	LodPath  string `yaml:"lod_path"`  // Directory holding the *.lod archives
	DumpPath string `yaml:"dump_path"` // Output directory for extracted assets
	Map      string `yaml:"map"`       // Outdoor map used when none is given
}

// CacheConfig holds decoded asset cache settings.
type CacheConfig struct {
	Enabled     bool  `yaml:"enabled"`
	MaxCostMB   int64 `yaml:"max_cost_mb"`  // Budget for cached images
	NumCounters int64 `yaml:"num_counters"` // Admission counters, about 10x the expected item count
}

// ExportConfig holds settings for derived asset output.
type ExportConfig struct {
	TileResolver string `yaml:"tile_resolver"` // band or legacy
	Models       bool   `yaml:"models"`        // Include BSP models in map exports
	Billboards   bool   `yaml:"billboards"`    // Resolve billboard sprites in map exports
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			LodPath:  "./target/mm6/data",
			DumpPath: "./target/assets",
			Map:      "oute3.odm",
		},
		Cache: CacheConfig{
			Enabled:     true,
			MaxCostMB:   256,
			NumCounters: 100_000,
		},
		Export: ExportConfig{
			TileResolver: "band",
			Models:       true,
			Billboards:   true,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Format:  "console",
			LogFile: "",
		},
	}
}
