// Package config provides unified configuration loading for cogmap.
// It supports loading from YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nvandessel/cogmap/internal/backup"
	"github.com/nvandessel/cogmap/internal/logging"
	"github.com/nvandessel/cogmap/internal/store"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Defaults used by Default.
const (
	DefaultMaxDelta   = 0.001
	DefaultMaxEpochs  = 1000
	DefaultBackupKeep = 10
)

// CogmapConfig contains all cogmap configuration settings.
type CogmapConfig struct {
	// Simulation holds the controller defaults used when a command does not
	// pass explicit limits.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Store configures the run history database.
	Store StoreConfig `json:"store" yaml:"store"`

	// Logging contains settings for operational and epoch logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Backup configures history archives.
	Backup BackupConfig `json:"backup" yaml:"backup"`
}

// SimulationConfig configures Run and Converge.
type SimulationConfig struct {
	// MaxDelta is the convergence threshold on the average squared change.
	MaxDelta float64 `json:"max_delta" yaml:"max_delta"`

	// MaxEpochs bounds every run.
	MaxEpochs int `json:"max_epochs" yaml:"max_epochs"`

	// Trace records the outputs of every epoch.
	Trace bool `json:"trace" yaml:"trace"`
}

// StoreConfig configures run history.
type StoreConfig struct {
	// Path is the SQLite database. Empty means ~/.cogmap/history.db.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LoggingConfig configures cogmap's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables epoch logging to epochs.jsonl.
	// "trace" additionally includes every concept output.
	Level string `json:"level" yaml:"level"`

	// Dir is where epochs.jsonl is written. Empty means ~/.cogmap.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// BackupConfig configures `cogmap history backup`.
type BackupConfig struct {
	// Dir holds generated archives. Empty means ~/.cogmap/backups.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`

	// Keep is how many archives to retain; 0 keeps all.
	Keep int `json:"keep" yaml:"keep"`

	// MaxAge removes older archives, e.g. "30d" or "2w". Empty disables it.
	MaxAge string `json:"max_age,omitempty" yaml:"max_age,omitempty"`
}

// Default returns a CogmapConfig with sensible defaults.
func Default() *CogmapConfig {
	return &CogmapConfig{
		Simulation: SimulationConfig{
			MaxDelta:  DefaultMaxDelta,
			MaxEpochs: DefaultMaxEpochs,
			Trace:     true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Backup: BackupConfig{
			Keep: DefaultBackupKeep,
		},
	}
}

// DefaultPath returns ~/.cogmap/config.yaml.
func DefaultPath() (string, error) {
	dir, err := store.GlobalCogmapPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.cogmap/config.yaml -> environment variables
func Load() (*CogmapConfig, error) {
	config := Default()

	// Try to load from default config file
	if configPath, err := DefaultPath(); err == nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file. Keys missing
// from the file keep their defaults.
func LoadFromFile(path string) (*CogmapConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Paths may reference ${HOME} and friends
	config.Store.Path = expandEnvVars(config.Store.Path)
	config.Logging.Dir = expandEnvVars(config.Logging.Dir)
	config.Backup.Dir = expandEnvVars(config.Backup.Dir)

	return config, nil
}

// Save writes the configuration as YAML, creating the directory if needed.
func (c *CogmapConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *CogmapConfig) Validate() error {
	d := c.Simulation.MaxDelta
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		return fmt.Errorf("%w: max_delta must be a finite non-negative number, got %v", ErrInvalidConfig, d)
	}

	if c.Simulation.MaxEpochs < 0 {
		return fmt.Errorf("%w: max_epochs must be non-negative, got %d", ErrInvalidConfig, c.Simulation.MaxEpochs)
	}

	if c.Logging.Level != "" && !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("%w: invalid log level: %s (valid: info, debug, trace, or empty for default)", ErrInvalidConfig, c.Logging.Level)
	}

	if c.Backup.Keep < 0 {
		return fmt.Errorf("%w: backup keep must be non-negative, got %d", ErrInvalidConfig, c.Backup.Keep)
	}
	if _, err := c.BackupRetention(); err != nil {
		return err
	}

	return nil
}

// BackupRetention converts the backup limits into a retention policy.
func (c *CogmapConfig) BackupRetention() (backup.Retention, error) {
	r := backup.Retention{Keep: c.Backup.Keep}
	if c.Backup.MaxAge != "" {
		age, err := backup.ParseAge(c.Backup.MaxAge)
		if err != nil {
			return backup.Retention{}, fmt.Errorf("%w: backup max_age: %v", ErrInvalidConfig, err)
		}
		r.MaxAge = age
	}
	return r, nil
}

// BackupDir returns the archive directory, resolving the default.
func (c *CogmapConfig) BackupDir() (string, error) {
	if c.Backup.Dir != "" {
		return c.Backup.Dir, nil
	}
	return backup.DefaultBackupDir()
}

// StorePath returns the run database path, resolving the default.
func (c *CogmapConfig) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	return store.DefaultDBPath("")
}

// LogDir returns the epoch log directory, resolving the default.
func (c *CogmapConfig) LogDir() (string, error) {
	if c.Logging.Dir != "" {
		return c.Logging.Dir, nil
	}
	return store.GlobalCogmapPath()
}

// applyEnvOverrides applies environment variable overrides to the config.
// Unparseable numbers are ignored.
func applyEnvOverrides(config *CogmapConfig) {
	if v := os.Getenv("COGMAP_MAX_DELTA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Simulation.MaxDelta = f
		}
	}

	if v := os.Getenv("COGMAP_MAX_EPOCHS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Simulation.MaxEpochs = n
		}
	}

	if v := os.Getenv("COGMAP_TRACE"); v != "" {
		config.Simulation.Trace = v == "true" || v == "1"
	}

	if v := os.Getenv("COGMAP_STORE_PATH"); v != "" {
		config.Store.Path = v
	}

	if v := os.Getenv("COGMAP_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("COGMAP_LOG_DIR"); v != "" {
		config.Logging.Dir = v
	}

	if v := os.Getenv("COGMAP_BACKUP_DIR"); v != "" {
		config.Backup.Dir = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
