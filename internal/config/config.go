// Package config provides configuration management for savesentry using Viper.
package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// AppName is the application name used for config file and directory naming.
const AppName = "savesentry"

// DefaultDebounceThreshold is the minimum gap between two change events
// required to create a new snapshot instead of amending the last one.
const DefaultDebounceThreshold = 5 * time.Second

// DefaultQueueSize bounds the watcher's change-notification intake queue.
const DefaultQueueSize = 256

// DefaultProcessName is the game process checked during restore preflight.
const DefaultProcessName = "Hades2"

// Config represents the top-level configuration structure.
type Config struct {
	// SaveDir is the live game save directory being watched.
	SaveDir string `mapstructure:"save_dir" yaml:"save_dir"`

	// SnapshotDir is the root of the snapshot storage layout.
	SnapshotDir string `mapstructure:"snapshot_dir" yaml:"snapshot_dir"`

	// DebounceThreshold coalesces rapid save writes into one snapshot.
	DebounceThreshold time.Duration `mapstructure:"debounce_threshold" yaml:"debounce_threshold"`

	// ProcessName is the game process name for the restore preflight check.
	ProcessName string `mapstructure:"process_name" yaml:"process_name"`

	// CaptureCommand is the external screen capture command. The output
	// path is appended as the final argument. Empty disables screenshots.
	CaptureCommand string `mapstructure:"capture_command" yaml:"capture_command"`

	// QueueSize bounds the change-notification intake queue.
	QueueSize int `mapstructure:"queue_size" yaml:"queue_size"`
}

// Init initializes Viper with default configuration.
// Call this once at application startup before accessing config values.
func Init() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Search paths (in order of precedence)
	viper.AddConfigPath(".")
	viper.AddConfigPath(filepath.Join(xdg.ConfigHome, AppName))

	viper.SetEnvPrefix("SAVESENTRY")
	viper.AutomaticEnv()

	viper.SetDefault("save_dir", DefaultSaveDir())
	viper.SetDefault("snapshot_dir", DefaultSnapshotDir())
	viper.SetDefault("debounce_threshold", DefaultDebounceThreshold)
	viper.SetDefault("process_name", DefaultProcessName)
	viper.SetDefault("capture_command", "")
	viper.SetDefault("queue_size", DefaultQueueSize)
}

// Load reads the configuration file.
// If path is provided, it reads from that specific file.
// If path is empty, it searches in the default locations and falls back
// to defaults when no file exists.
func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// If the user asked for a specific file, missing is an error
			if path != "" {
				return nil, errors.Wrapf(err, "config file not found at %s", path)
			}
		} else {
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}

	return &cfg, nil
}

// Validate checks a Config for values the engine cannot run with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.SaveDir == "" {
		return errors.New("save_dir is required")
	}
	if cfg.SnapshotDir == "" {
		return errors.New("snapshot_dir is required")
	}
	if cfg.DebounceThreshold <= 0 {
		return errors.New("debounce_threshold must be positive")
	}
	if cfg.QueueSize <= 0 {
		return errors.New("queue_size must be positive")
	}
	return nil
}

// DefaultSaveDir returns the conventional Hades II save location for the
// current user. The game stores saves under the user's documents tree;
// when that cannot be determined the current directory is returned and
// the user must configure save_dir explicitly.
func DefaultSaveDir() string {
	if xdg.UserDirs.Documents != "" {
		return filepath.Join(xdg.UserDirs.Documents, "Saved Games", "Hades II")
	}
	return "."
}

// DefaultSnapshotDir returns the snapshot storage root under the XDG
// data home.
func DefaultSnapshotDir() string {
	return filepath.Join(xdg.DataHome, AppName, "snapshots")
}
