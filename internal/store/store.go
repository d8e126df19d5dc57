package store

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nvandessel/cogmap/internal/fcm"
	"github.com/nvandessel/cogmap/internal/simulation"
)

var (
	// ErrRunNotFound is returned when no run matches an ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrAmbiguousID is returned when an ID prefix matches several runs.
	ErrAmbiguousID = errors.New("run ID prefix is ambiguous")
)

// Run is one recorded simulation.
type Run struct {
	ID         string        `json:"id"`
	Map        string        `json:"map"`
	Mode       string        `json:"mode"` // "run", "converge"
	MaxDelta   *float64      `json:"max_delta,omitempty"`
	MaxEpochs  int           `json:"max_epochs"`
	Epochs     int           `json:"epochs"`
	Converged  bool          `json:"converged"`
	FinalDelta fcm.Value     `json:"-"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Document   string        `json:"document,omitempty"`

	// Trace of concept outputs; Outputs[epoch][i] belongs to Concepts[i].
	// Empty for untraced runs and in ListRuns results.
	Concepts []string      `json:"concepts,omitempty"`
	Outputs  [][]fcm.Value `json:"-"`
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	Map   string // exact map name; empty = all
	Limit int    // 0 = no limit
}

// RunStore records simulation runs.
type RunStore interface {
	SaveRun(ctx context.Context, run *Run) error

	// GetRun returns a run with its trace. id may be a unique prefix.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns runs newest first, without traces.
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	DeleteRun(ctx context.Context, id string) error
	Close() error
}

// NewRun converts a simulation result into a Run with a fresh ID. document
// is the map definition the run started from, or empty.
func NewRun(res *simulation.Result, document string) *Run {
	run := &Run{
		ID:         uuid.NewString(),
		Map:        res.Map,
		Mode:       string(res.Mode),
		MaxEpochs:  res.MaxEpochs,
		Epochs:     res.Epochs,
		Converged:  res.Converged,
		FinalDelta: res.Delta,
		StartedAt:  res.StartedAt.UTC(),
		Duration:   res.Duration,
		Document:   document,
	}
	if res.Mode == simulation.ModeConverge {
		d := res.MaxDelta
		run.MaxDelta = &d
	}
	if res.Trace != nil {
		run.Concepts = append([]string(nil), res.Trace.Concepts...)
		run.Outputs = make([][]fcm.Value, len(res.Trace.Epochs))
		for i, s := range res.Trace.Epochs {
			run.Outputs[i] = append([]fcm.Value(nil), s.Outputs...)
		}
	}
	return run
}

// encodeValue stores a value as text so NaN and infinities survive. The
// second result is false for undefined values, which are stored as NULL.
func encodeValue(v fcm.Value) (string, bool) {
	f, ok := v.Float()
	if !ok {
		return "", false
	}
	return strconv.FormatFloat(f, 'g', -1, 64), true
}

func decodeValue(s string, valid bool) fcm.Value {
	if !valid {
		return fcm.Undefined
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fcm.Of(math.NaN())
	}
	return fcm.Of(f)
}
