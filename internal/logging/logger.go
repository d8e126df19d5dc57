// Package logging provides leveled logging and epoch tracing for cogmap.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - An EpochLogger for structured JSONL epoch traces (epochs.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"maps"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/nvandessel/cogmap/internal/fcm"
	"github.com/nvandessel/cogmap/internal/simulation"
)

// LevelTrace is a custom slog level below Debug. At this level every
// concept output is written with each epoch.
const LevelTrace = slog.LevelDebug - 4

// EpochFileName is the JSONL file written by EpochLogger.
const EpochFileName = "epochs.jsonl"

// ParseLevel maps a string level name to a slog.Level.
// Supported values: "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether s names a supported level.
func ValidLevel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info", "debug", "trace":
		return true
	}
	return false
}

// NewLogger creates a leveled slog.Logger writing to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Label the custom trace level
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// EpochLogger writes one JSON line per epoch and one per finished run. It
// implements simulation.RunObserver and is safe for concurrent use. A nil
// EpochLogger is safe to use; all methods are no-ops on nil receiver.
type EpochLogger struct {
	mu      sync.Mutex
	file    *os.File
	outputs bool
}

// NewEpochLogger creates an epoch logger writing to dir/epochs.jsonl.
// At "info" level (the default), returns nil and no file is created.
// At "debug" the file is opened for append; "trace" also records every
// concept output. Returns nil if the file cannot be opened.
func NewEpochLogger(dir string, level string) *EpochLogger {
	lvl := ParseLevel(level)
	if lvl == slog.LevelInfo {
		return nil
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}

	path := filepath.Join(dir, EpochFileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}

	return &EpochLogger{file: f, outputs: lvl <= LevelTrace}
}

// ObserveEpoch logs an "epoch" event.
func (el *EpochLogger) ObserveEpoch(ev simulation.EpochEvent) {
	if el == nil {
		return
	}
	entry := map[string]any{
		"event": "epoch",
		"map":   ev.Map.Name(),
		"mode":  string(ev.Mode),
		"epoch": ev.Epoch,
		"delta": JSONValue(ev.Delta),
	}
	if el.outputs {
		outputs := make(map[string]any, ev.Map.ConceptCount())
		for c := range ev.Map.Concepts() {
			outputs[c.Name()] = JSONValue(c.Output())
		}
		entry["outputs"] = outputs
	}
	el.Log(entry)
}

// ObserveRun logs a "run" event with the outcome.
func (el *EpochLogger) ObserveRun(res *simulation.Result) {
	if el == nil {
		return
	}
	entry := map[string]any{
		"event":       "run",
		"map":         res.Map,
		"mode":        string(res.Mode),
		"epochs":      res.Epochs,
		"max_epochs":  res.MaxEpochs,
		"delta":       JSONValue(res.Delta),
		"converged":   res.Converged,
		"duration_ms": res.Duration.Milliseconds(),
	}
	if res.Mode == simulation.ModeConverge {
		entry["max_delta"] = res.MaxDelta
	}
	el.Log(entry)
}

// Log writes an event as a single JSONL line.
// A "time" field is added automatically. The caller's map is not mutated.
// Safe to call on nil receiver.
func (el *EpochLogger) Log(event map[string]any) {
	if el == nil {
		return
	}

	entry := maps.Clone(event)
	if entry == nil {
		entry = make(map[string]any, 1)
	}
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	el.mu.Lock()
	defer el.mu.Unlock()
	if el.file == nil {
		return
	}
	_, _ = el.file.Write(data)
}

// Close closes the underlying file. Safe to call on nil receiver.
func (el *EpochLogger) Close() {
	if el == nil {
		return
	}

	el.mu.Lock()
	defer el.mu.Unlock()

	if el.file != nil {
		el.file.Close()
		el.file = nil
	}
}

// JSONValue converts a value for encoding/json: nil when undefined, the
// text form for NaN and infinities, otherwise the number.
func JSONValue(v fcm.Value) any {
	f, ok := v.Float()
	switch {
	case !ok:
		return nil
	case math.IsNaN(f) || math.IsInf(f, 0):
		return v.String()
	default:
		return f
	}
}
