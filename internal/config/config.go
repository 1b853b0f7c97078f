package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete tool configuration. Values come from the config
// file, environment and command line flags, merged through viper.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Opt    OptConfig    `mapstructure:"opt"`
	Output OutputConfig `mapstructure:"output"`
	Watch  WatchConfig  `mapstructure:"watch"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error"
	Level string `mapstructure:"level"`
	// Format is the log output format: "text" or "json"
	Format string `mapstructure:"format"`
}

// OptConfig controls the optimization pipeline.
type OptConfig struct {
	// Passes are the pass names to run, in order. Empty means the full
	// pipeline in its canonical order.
	Passes []string `mapstructure:"passes"`
	// Jobs is the number of graphs optimized concurrently. 0 means one
	// worker per CPU.
	Jobs int `mapstructure:"jobs"`
}

// OutputConfig controls how results are presented.
type OutputConfig struct {
	// Color enables styled terminal output
	Color bool `mapstructure:"color"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	// DebounceMs is how long to wait after a file change before
	// reprocessing, in milliseconds
	DebounceMs int `mapstructure:"debounce_ms"`
}

// Debounce returns the watch debounce interval as a time.Duration.
func (w *WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMs) * time.Millisecond
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Opt: OptConfig{
			Passes: []string{},
			Jobs:   0,
		},
		Output: OutputConfig{
			Color: true,
		},
		Watch: WatchConfig{
			DebounceMs: 200,
		},
	}
}

// SetDefaults registers default values with viper.
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.format", defaults.Log.Format)

	viper.SetDefault("opt.passes", defaults.Opt.Passes)
	viper.SetDefault("opt.jobs", defaults.Opt.Jobs)

	viper.SetDefault("output.color", defaults.Output.Color)

	viper.SetDefault("watch.debounce_ms", defaults.Watch.DebounceMs)
}

// Load reads the configuration from viper into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "gradir")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gradir"
	}
	return filepath.Join(home, ".config", "gradir")
}

// ConfigFile returns the path to the config file.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
