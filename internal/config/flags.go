package config

import "flag"

// Flags holds command-line overrides. Zero values leave the config alone.
type Flags struct {
	ConfigPath string
	LodPath    string
	DumpPath   string
	Map        string
	LogLevel   string
	Debug      bool
	NoCache    bool
}

// Bind registers the flags on fs. Each subcommand binds its own set.
func (f *Flags) Bind(fs *flag.FlagSet) {
	fs.StringVar(&f.ConfigPath, "config", "", "Path to config file")
	fs.StringVar(&f.LodPath, "lod", "", "Directory holding the LOD archives")
	fs.StringVar(&f.DumpPath, "out", "", "Output directory")
	fs.StringVar(&f.Map, "map", "", "Outdoor map name, e.g. oute3.odm")
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&f.NoCache, "no-cache", false, "Disable the decoded asset cache")
}

// apply applies flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f.LodPath != "" {
		cfg.Data.LodPath = f.LodPath
	}
	if f.DumpPath != "" {
		cfg.Data.DumpPath = f.DumpPath
	}
	if f.Map != "" {
		cfg.Data.Map = f.Map
	}
	if f.LogLevel != "" {
		cfg.Logging.Level = f.LogLevel
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.NoCache {
		cfg.Cache.Enabled = false
	}
}
