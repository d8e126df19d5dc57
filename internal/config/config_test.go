package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	config := Default()

	// Simulation defaults
	if config.Simulation.MaxDelta != 0.001 {
		t.Errorf("expected MaxDelta 0.001, got %v", config.Simulation.MaxDelta)
	}
	if config.Simulation.MaxEpochs != 1000 {
		t.Errorf("expected MaxEpochs 1000, got %d", config.Simulation.MaxEpochs)
	}
	if !config.Simulation.Trace {
		t.Error("expected Trace to be true by default")
	}

	// Store and logging defaults
	if config.Store.Path != "" {
		t.Errorf("expected empty Store.Path, got '%s'", config.Store.Path)
	}
	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}
	if config.Backup.Keep != 10 || config.Backup.MaxAge != "" {
		t.Errorf("unexpected backup defaults: %+v", config.Backup)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoadFromFile(t *testing.T) {
	configPath := writeConfig(t, `
simulation:
  max_delta: 0.0001
  max_epochs: 50
  trace: false
store:
  path: /tmp/cogmap-test.db
logging:
  level: debug
  dir: /tmp/cogmap-logs
backup:
  dir: /x/backups
  keep: 3
  max_age: 30d
`)

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Simulation.MaxDelta != 0.0001 {
		t.Errorf("expected MaxDelta 0.0001, got %v", config.Simulation.MaxDelta)
	}
	if config.Simulation.MaxEpochs != 50 {
		t.Errorf("expected MaxEpochs 50, got %d", config.Simulation.MaxEpochs)
	}
	if config.Simulation.Trace {
		t.Error("expected Trace to be false")
	}
	if config.Store.Path != "/tmp/cogmap-test.db" {
		t.Errorf("expected Store.Path '/tmp/cogmap-test.db', got '%s'", config.Store.Path)
	}
	if config.Logging.Level != "debug" || config.Logging.Dir != "/tmp/cogmap-logs" {
		t.Errorf("unexpected logging config: %+v", config.Logging)
	}
	if config.Backup.Dir != "/x/backups" {
		t.Errorf("expected Backup.Dir '/x/backups', got '%s'", config.Backup.Dir)
	}
	if config.Backup.Keep != 3 || config.Backup.MaxAge != "30d" {
		t.Errorf("unexpected backup config: %+v", config.Backup)
	}
}

func TestLoadFromFile_PartialKeepsDefaults(t *testing.T) {
	config, err := LoadFromFile(writeConfig(t, "logging:\n  level: trace\n"))
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.Logging.Level != "trace" {
		t.Errorf("expected Logging.Level 'trace', got '%s'", config.Logging.Level)
	}
	if config.Simulation.MaxEpochs != DefaultMaxEpochs || config.Simulation.MaxDelta != DefaultMaxDelta {
		t.Errorf("defaults lost: %+v", config.Simulation)
	}
}

func TestLoadFromFile_EnvExpansion(t *testing.T) {
	t.Setenv("COGMAP_TEST_DIR", "/data/maps")
	config, err := LoadFromFile(writeConfig(t, "store:\n  path: ${COGMAP_TEST_DIR}/history.db\n"))
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if config.Store.Path != "/data/maps/history.db" {
		t.Errorf("expected expanded path, got '%s'", config.Store.Path)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("COGMAP_MAX_DELTA", "0.5")
	t.Setenv("COGMAP_MAX_EPOCHS", "7")
	t.Setenv("COGMAP_TRACE", "false")
	t.Setenv("COGMAP_STORE_PATH", "/x/y.db")
	t.Setenv("COGMAP_LOG_LEVEL", "debug")
	t.Setenv("COGMAP_LOG_DIR", "/x/logs")
	t.Setenv("COGMAP_BACKUP_DIR", "/x/backups")

	config := Default()
	applyEnvOverrides(config)

	if config.Simulation.MaxDelta != 0.5 {
		t.Errorf("expected MaxDelta 0.5, got %v", config.Simulation.MaxDelta)
	}
	if config.Simulation.MaxEpochs != 7 {
		t.Errorf("expected MaxEpochs 7, got %d", config.Simulation.MaxEpochs)
	}
	if config.Simulation.Trace {
		t.Error("expected Trace to be false")
	}
	if config.Store.Path != "/x/y.db" {
		t.Errorf("expected Store.Path '/x/y.db', got '%s'", config.Store.Path)
	}
	if config.Logging.Level != "debug" || config.Logging.Dir != "/x/logs" {
		t.Errorf("unexpected logging config: %+v", config.Logging)
	}
}

func TestEnvOverrides_IgnoresBadNumbers(t *testing.T) {
	t.Setenv("COGMAP_MAX_DELTA", "tiny")
	t.Setenv("COGMAP_MAX_EPOCHS", "many")

	config := Default()
	applyEnvOverrides(config)

	if config.Simulation.MaxDelta != DefaultMaxDelta || config.Simulation.MaxEpochs != DefaultMaxEpochs {
		t.Errorf("bad env values should be ignored, got %+v", config.Simulation)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("COGMAP_MAX_EPOCHS", "")
	t.Setenv("COGMAP_LOG_LEVEL", "trace")

	path, err := DefaultPath()
	if err != nil {
		t.Fatal(err)
	}
	fileCfg := Default()
	fileCfg.Simulation.MaxEpochs = 42
	fileCfg.Logging.Level = "debug"
	if err := fileCfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	config, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Simulation.MaxEpochs != 42 {
		t.Errorf("expected MaxEpochs 42 from file, got %d", config.Simulation.MaxEpochs)
	}
	if config.Logging.Level != "trace" {
		t.Errorf("expected env to override file level, got '%s'", config.Logging.Level)
	}
}

func TestLoad_NoFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	config, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Simulation.MaxEpochs != DefaultMaxEpochs {
		t.Errorf("expected default MaxEpochs, got %d", config.Simulation.MaxEpochs)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *CogmapConfig)
		wantErr bool
	}{
		{"defaults", func(c *CogmapConfig) {}, false},
		{"zero delta", func(c *CogmapConfig) { c.Simulation.MaxDelta = 0 }, false},
		{"zero epochs", func(c *CogmapConfig) { c.Simulation.MaxEpochs = 0 }, false},
		{"negative delta", func(c *CogmapConfig) { c.Simulation.MaxDelta = -1 }, true},
		{"NaN delta", func(c *CogmapConfig) { c.Simulation.MaxDelta = math.NaN() }, true},
		{"infinite delta", func(c *CogmapConfig) { c.Simulation.MaxDelta = math.Inf(1) }, true},
		{"negative epochs", func(c *CogmapConfig) { c.Simulation.MaxEpochs = -1 }, true},
		{"empty level", func(c *CogmapConfig) { c.Logging.Level = "" }, false},
		{"debug level", func(c *CogmapConfig) { c.Logging.Level = "debug" }, false},
		{"trace level", func(c *CogmapConfig) { c.Logging.Level = "trace" }, false},
		{"unknown level", func(c *CogmapConfig) { c.Logging.Level = "verbose" }, true},
		{"keep all backups", func(c *CogmapConfig) { c.Backup.Keep = 0 }, false},
		{"negative keep", func(c *CogmapConfig) { c.Backup.Keep = -1 }, true},
		{"backup age in days", func(c *CogmapConfig) { c.Backup.MaxAge = "30d" }, false},
		{"bad backup age", func(c *CogmapConfig) { c.Backup.MaxAge = "a month" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Default()
			tt.mutate(config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error %v does not wrap ErrInvalidConfig", err)
			}
		})
	}
}

func TestResolvedPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	config := Default()
	storePath, err := config.StorePath()
	if err != nil {
		t.Fatal(err)
	}
	if storePath != filepath.Join(home, ".cogmap", "history.db") {
		t.Errorf("StorePath() = %s", storePath)
	}
	logDir, err := config.LogDir()
	if err != nil {
		t.Fatal(err)
	}
	if logDir != filepath.Join(home, ".cogmap") {
		t.Errorf("LogDir() = %s", logDir)
	}

	config.Store.Path = "/custom.db"
	config.Logging.Dir = "/logs"
	if p, _ := config.StorePath(); p != "/custom.db" {
		t.Errorf("StorePath() = %s, want /custom.db", p)
	}
	if d, _ := config.LogDir(); d != "/logs" {
		t.Errorf("LogDir() = %s, want /logs", d)
	}

	backupDir, err := config.BackupDir()
	if err != nil {
		t.Fatal(err)
	}
	if backupDir != filepath.Join(home, ".cogmap", "backups") {
		t.Errorf("BackupDir() = %s", backupDir)
	}
}

func TestBackupRetention(t *testing.T) {
	config := Default()
	config.Backup.MaxAge = "2w"

	r, err := config.BackupRetention()
	if err != nil {
		t.Fatalf("BackupRetention() error = %v", err)
	}
	if r.Keep != DefaultBackupKeep || r.MaxAge != 14*24*time.Hour {
		t.Errorf("BackupRetention() = %+v", r)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	config := Default()
	config.Simulation.MaxDelta = 0.02
	config.Store.Path = "/a/b.db"
	if err := config.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	back, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if back.Simulation.MaxDelta != 0.02 || back.Store.Path != "/a/b.db" {
		t.Errorf("round trip lost values: %+v", back)
	}
}

func TestLoadFromFile_NotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	_, err := LoadFromFile(writeConfig(t, "simulation:\n  max_epochs: [invalid yaml\n"))
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}
