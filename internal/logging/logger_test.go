package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/cogmap/internal/activation"
	"github.com/nvandessel/cogmap/internal/fcm"
	"github.com/nvandessel/cogmap/internal/simulation"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  slog.Level
	}{
		{"info", "info", slog.LevelInfo},
		{"debug", "debug", slog.LevelDebug},
		{"trace", "trace", LevelTrace},
		{"uppercase INFO", "INFO", slog.LevelInfo},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"uppercase TRACE", "TRACE", LevelTrace},
		{"mixed case Debug", "Debug", slog.LevelDebug},
		{"unknown defaults to info", "unknown", slog.LevelInfo},
		{"empty defaults to info", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidLevel(t *testing.T) {
	for _, s := range []string{"info", "DEBUG", " trace "} {
		if !ValidLevel(s) {
			t.Errorf("ValidLevel(%q) = false", s)
		}
	}
	for _, s := range []string{"", "warn", "verbose"} {
		if ValidLevel(s) {
			t.Errorf("ValidLevel(%q) = true", s)
		}
	}
}

func TestNewLogger_LabelsTraceLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger("trace", &buf)
	logger.Log(context.Background(), LevelTrace, "very verbose")

	if !strings.Contains(buf.String(), "level=TRACE") {
		t.Errorf("trace record not labelled: %q", buf.String())
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name       string
		level      string
		logAtDebug bool
		logAtInfo  bool
	}{
		{"info filters debug", "info", false, true},
		{"debug passes debug", "debug", true, true},
		{"trace passes debug", "trace", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.level, &buf)

			logger.Debug("debug message")
			hasDebug := strings.Contains(buf.String(), "debug message")
			if hasDebug != tt.logAtDebug {
				t.Errorf("debug message visible = %v, want %v (buf: %q)", hasDebug, tt.logAtDebug, buf.String())
			}

			buf.Reset()
			logger.Info("info message")
			hasInfo := strings.Contains(buf.String(), "info message")
			if hasInfo != tt.logAtInfo {
				t.Errorf("info message visible = %v, want %v (buf: %q)", hasInfo, tt.logAtInfo, buf.String())
			}
		})
	}
}

func TestLevelTrace(t *testing.T) {
	// Trace should be below debug (more verbose)
	if LevelTrace >= slog.LevelDebug {
		t.Errorf("LevelTrace (%d) should be less than LevelDebug (%d)", LevelTrace, slog.LevelDebug)
	}
}

// stepped returns a one-concept map after n epochs with epochs observed by el.
func stepped(t *testing.T, el *EpochLogger, n int) *simulation.Result {
	t.Helper()
	m := fcm.New("solo")
	c := fcm.NewConcept("x", activation.NewSigmoid())
	c.SetOutput(fcm.Of(0))
	if err := m.AddConcept(c); err != nil {
		t.Fatal(err)
	}
	if err := m.AddConnection(fcm.NewConnection("loop", 1)); err != nil {
		t.Fatal(err)
	}
	if err := m.Connect("x", "loop", "x"); err != nil {
		t.Fatal(err)
	}

	cfg := simulation.DefaultConfig()
	cfg.Observers = []simulation.Observer{el}
	res, err := simulation.NewController(m, cfg).Run(n)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func readEntries(t *testing.T, dir string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, EpochFileName))
	if err != nil {
		t.Fatalf("failed to read %s: %v", EpochFileName, err)
	}
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("failed to parse JSONL entry %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestNewEpochLogger_InfoLevel(t *testing.T) {
	dir := t.TempDir()
	el := NewEpochLogger(dir, "info")

	// At info level, epoch logger should be nil
	if el != nil {
		t.Error("expected nil EpochLogger at info level")
	}

	// A nil logger is still a usable observer
	stepped(t, el, 2)

	if _, err := os.Stat(filepath.Join(dir, EpochFileName)); err == nil {
		t.Errorf("%s should not exist at info level", EpochFileName)
	}
}

func TestNewEpochLogger_DebugLevel(t *testing.T) {
	dir := t.TempDir()
	el := NewEpochLogger(dir, "debug")
	defer el.Close()

	stepped(t, el, 2)

	entries := readEntries(t, dir)
	if len(entries) != 3 {
		t.Fatalf("expected 2 epoch lines and 1 run line, got %d", len(entries))
	}
	first := entries[0]
	if first["event"] != "epoch" || first["map"] != "solo" || first["mode"] != "run" || first["epoch"] != 1.0 {
		t.Errorf("first entry = %v", first)
	}
	if _, ok := first["time"]; !ok {
		t.Error("expected 'time' field in epoch log entry")
	}
	if _, ok := first["outputs"]; ok {
		t.Error("outputs should only be logged at trace level")
	}
	// x moves from 0 to sigmoid(0) = 0.5.
	if first["delta"] != 0.25 {
		t.Errorf("first delta = %v, want 0.25", first["delta"])
	}

	run := entries[2]
	if run["event"] != "run" || run["epochs"] != 2.0 || run["max_epochs"] != 2.0 {
		t.Errorf("run entry = %v", run)
	}
}

func TestNewEpochLogger_TraceLevelRecordsOutputs(t *testing.T) {
	dir := t.TempDir()
	el := NewEpochLogger(dir, "trace")
	defer el.Close()

	stepped(t, el, 1)

	outputs, ok := readEntries(t, dir)[0]["outputs"].(map[string]any)
	if !ok {
		t.Fatal("expected outputs at trace level")
	}
	// sigmoid(0 + 0) = 0.5
	if outputs["x"] != 0.5 {
		t.Errorf("outputs[x] = %v, want 0.5", outputs["x"])
	}
}

func TestEpochLogger_AppendsAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		el := NewEpochLogger(dir, "debug")
		stepped(t, el, 1)
		el.Close()
	}
	if n := len(readEntries(t, dir)); n != 4 {
		t.Errorf("got %d lines after two runs, want 4", n)
	}
}

func TestEpochLogger_NilSafety(t *testing.T) {
	// nil EpochLogger should not panic
	var el *EpochLogger
	el.Log(map[string]any{"event": "should_not_panic"})
	el.ObserveEpoch(simulation.EpochEvent{})
	el.ObserveRun(&simulation.Result{})
	el.Close()
}

func TestEpochLogger_DoesNotMutateCallerMap(t *testing.T) {
	el := NewEpochLogger(t.TempDir(), "debug")
	defer el.Close()

	event := map[string]any{"event": "test"}
	el.Log(event)

	if _, hasTime := event["time"]; hasTime {
		t.Error("Log() should not mutate caller's map, but 'time' was injected")
	}
}

func TestEpochLogger_LogAfterClose(t *testing.T) {
	el := NewEpochLogger(t.TempDir(), "debug")

	el.Log(map[string]any{"event": "before_close"})
	el.Close()
	el.Close()

	// Should be a no-op, not panic or error
	el.Log(map[string]any{"event": "after_close"})
}

func TestNewEpochLogger_CreatesDir(t *testing.T) {
	nestedDir := filepath.Join(t.TempDir(), "sub", "dir")

	el := NewEpochLogger(nestedDir, "debug")
	if el == nil {
		t.Fatal("expected non-nil EpochLogger when dir needs creation")
	}
	defer el.Close()

	el.Log(map[string]any{"event": "dir_create_test"})

	if _, err := os.Stat(filepath.Join(nestedDir, EpochFileName)); err != nil {
		t.Fatalf("%s should exist after dir creation: %v", EpochFileName, err)
	}
}

func TestEpochLogger_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	el := NewEpochLogger(dir, "debug")
	defer el.Close()

	el.Log(map[string]any{"event": "perm_test"})

	info, err := os.Stat(filepath.Join(dir, EpochFileName))
	if err != nil {
		t.Fatalf("failed to stat %s: %v", EpochFileName, err)
	}

	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permissions = %o, want 0600", perm)
	}
}

func TestJSONValue(t *testing.T) {
	tests := []struct {
		in   fcm.Value
		want any
	}{
		{fcm.Undefined, nil},
		{fcm.Of(0.25), 0.25},
		{fcm.Of(math.NaN()), "NaN"},
		{fcm.Of(math.Inf(-1)), "-Inf"},
	}
	for _, tt := range tests {
		if got := JSONValue(tt.in); got != tt.want {
			t.Errorf("JSONValue(%s) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
