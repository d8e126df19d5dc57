package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/cogmap/internal/config"
)

func TestGetConfigValue(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Path = "/data/history.db"

	tests := []struct {
		key       string
		want      any
		wantFound bool
	}{
		{"simulation.max_delta", config.DefaultMaxDelta, true},
		{"simulation.max_epochs", config.DefaultMaxEpochs, true},
		{"simulation.trace", true, true},
		{"store.path", "/data/history.db", true},
		{"logging.level", "info", true},
		{"logging.dir", "", true},
		{"backup.keep", config.DefaultBackupKeep, true},
		{"backup.max_age", "", true},
		{"llm.provider", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, found := getConfigValue(cfg, tt.key)
			if found != tt.wantFound {
				t.Fatalf("found = %v, want %v", found, tt.wantFound)
			}
			if got != tt.want {
				t.Errorf("value = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetConfigValue(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantErr bool
		check   func(*config.CogmapConfig) bool
	}{
		{"simulation.max_delta", "1e-6", false, func(c *config.CogmapConfig) bool { return c.Simulation.MaxDelta == 1e-6 }},
		{"simulation.max_delta", "-1", true, nil},
		{"simulation.max_delta", "NaN", true, nil},
		{"simulation.max_delta", "small", true, nil},
		{"simulation.max_epochs", "250", false, func(c *config.CogmapConfig) bool { return c.Simulation.MaxEpochs == 250 }},
		{"simulation.max_epochs", "-5", true, nil},
		{"simulation.max_epochs", "1.5", true, nil},
		{"simulation.trace", "false", false, func(c *config.CogmapConfig) bool { return !c.Simulation.Trace }},
		{"simulation.trace", "maybe", true, nil},
		{"store.path", "/tmp/runs.db", false, func(c *config.CogmapConfig) bool { return c.Store.Path == "/tmp/runs.db" }},
		{"logging.level", "trace", false, func(c *config.CogmapConfig) bool { return c.Logging.Level == "trace" }},
		{"logging.level", "verbose", true, nil},
		{"logging.dir", "/var/log/cogmap", false, func(c *config.CogmapConfig) bool { return c.Logging.Dir == "/var/log/cogmap" }},
		{"backup.keep", "3", false, func(c *config.CogmapConfig) bool { return c.Backup.Keep == 3 }},
		{"backup.keep", "-3", true, nil},
		{"backup.max_age", "30d", false, func(c *config.CogmapConfig) bool { return c.Backup.MaxAge == "30d" }},
		{"backup.max_age", "forever", true, nil},
		{"backup.dir", "/srv/backups", false, func(c *config.CogmapConfig) bool { return c.Backup.Dir == "/srv/backups" }},
		{"unknown.key", "x", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := config.Default()
			err := setConfigValue(cfg, tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("setConfigValue() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("config not updated: %+v", cfg)
			}
		})
	}
}

func TestConfigSetAndGet(t *testing.T) {
	tmpDir := t.TempDir()
	home := isolateHome(t, tmpDir)

	out, err := execute(t, newConfigCmd(), "config", "set", "simulation.max_epochs", "42")
	if err != nil {
		t.Fatalf("config set failed: %v", err)
	}
	if out != "Set simulation.max_epochs = 42\n" {
		t.Errorf("set output = %q", out)
	}

	data, err := os.ReadFile(filepath.Join(home, ".cogmap", "config.yaml"))
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if !strings.Contains(string(data), "max_epochs: 42") {
		t.Errorf("config file = %s", data)
	}

	out, err = execute(t, newConfigCmd(), "config", "get", "simulation.max_epochs", "--json")
	if err != nil {
		t.Fatalf("config get failed: %v", err)
	}
	var got map[string]any
	decodeJSON(t, out, &got)
	if got["value"] != float64(42) {
		t.Errorf("value = %v, want 42", got["value"])
	}
}

func TestConfigSet_InvalidLeavesFileAlone(t *testing.T) {
	tmpDir := t.TempDir()
	home := isolateHome(t, tmpDir)

	out, err := execute(t, newConfigCmd(), "config", "set", "simulation.max_delta", "-1")
	if err != nil {
		t.Fatalf("config set returned error: %v", err)
	}
	if !strings.HasPrefix(out, "Error: ") {
		t.Errorf("output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(home, ".cogmap", "config.yaml")); !os.IsNotExist(err) {
		t.Error("invalid value should not write the config file")
	}
}

func TestConfigGet_UnknownKey(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	out, err := execute(t, newConfigCmd(), "config", "get", "nope")
	if err != nil {
		t.Fatalf("config get failed: %v", err)
	}
	if out != "Unknown configuration key: nope\n" {
		t.Errorf("output = %q", out)
	}
}

func TestConfigList(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	out, err := execute(t, newConfigCmd(), "config", "list")
	if err != nil {
		t.Fatalf("config list failed: %v", err)
	}
	for _, want := range []string{"simulation.max_delta:   0.001", "simulation.max_epochs:  1000", "store.path:             (default)", "backup.keep:            10"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output missing %q:\n%s", want, out)
		}
	}
}
