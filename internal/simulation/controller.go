package simulation

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/nvandessel/cogmap/internal/fcm"
)

var (
	// ErrInvalidEpochs is returned for a negative epoch budget.
	ErrInvalidEpochs = errors.New("max epochs must not be negative")

	// ErrInvalidDelta is returned for a NaN or infinite convergence threshold.
	ErrInvalidDelta = errors.New("max delta must be a finite number")
)

// Mode names how a run was driven.
type Mode string

const (
	ModeRun      Mode = "run"
	ModeConverge Mode = "converge"
)

// Config holds the controller's options.
type Config struct {
	// Trace records every concept's output after every epoch. Default: true.
	Trace bool

	// Logger receives run start/finish at info and per-epoch deltas at
	// debug. Nil discards.
	Logger *slog.Logger

	// Observers are notified after every epoch, in order.
	Observers []Observer
}

// DefaultConfig returns the default controller configuration.
func DefaultConfig() Config {
	return Config{Trace: true}
}

// Result describes one Run or Converge call.
type Result struct {
	Map       string
	Mode      Mode
	MaxEpochs int
	MaxDelta  float64 // converge only
	Epochs    int     // epochs actually executed
	Delta     fcm.Value
	Converged bool // converge only
	StartedAt time.Time
	Duration  time.Duration
	Trace     *Trace // nil unless Config.Trace
}

// Controller runs epochs of a single map. It is not safe for concurrent
// use, and the map must not be modified while a run is in progress.
type Controller struct {
	m      *fcm.Map
	config Config
	logger *slog.Logger
}

// NewController creates a controller for m.
func NewController(m *fcm.Map, config Config) *Controller {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{m: m, config: config, logger: logger}
}

// Map returns the map being driven.
func (c *Controller) Map() *fcm.Map { return c.m }

// AddObserver registers an additional observer.
func (c *Controller) AddObserver(o Observer) {
	c.config.Observers = append(c.config.Observers, o)
}

// Run executes exactly maxEpochs epochs.
func (c *Controller) Run(maxEpochs int) (*Result, error) {
	if maxEpochs < 0 {
		return nil, fmt.Errorf("run %q: %w: %d", c.m.Name(), ErrInvalidEpochs, maxEpochs)
	}

	res := c.start(ModeRun, maxEpochs, 0)
	for res.Epochs < maxEpochs {
		c.step(res)
	}
	return c.finish(res), nil
}

// Converge executes epochs until the average squared delta is defined,
// finite and at most maxDelta, or until maxEpochs epochs have run. The
// delta is evaluated once before the first epoch.
func (c *Controller) Converge(maxDelta float64, maxEpochs int) (*Result, error) {
	if maxEpochs < 0 {
		return nil, fmt.Errorf("converge %q: %w: %d", c.m.Name(), ErrInvalidEpochs, maxEpochs)
	}
	if math.IsNaN(maxDelta) || math.IsInf(maxDelta, 0) {
		return nil, fmt.Errorf("converge %q: %w: %v", c.m.Name(), ErrInvalidDelta, maxDelta)
	}

	res := c.start(ModeConverge, maxEpochs, maxDelta)
	for !settled(res.Delta, maxDelta) && res.Epochs < maxEpochs {
		c.step(res)
	}
	res.Converged = settled(res.Delta, maxDelta)
	return c.finish(res), nil
}

// settled reports whether delta is defined, finite and at most maxDelta.
func settled(delta fcm.Value, maxDelta float64) bool {
	d, ok := delta.Float()
	if !ok || math.IsNaN(d) || math.IsInf(d, 0) {
		return false
	}
	return d <= maxDelta
}

func (c *Controller) start(mode Mode, maxEpochs int, maxDelta float64) *Result {
	res := &Result{
		Map:       c.m.Name(),
		Mode:      mode,
		MaxEpochs: maxEpochs,
		MaxDelta:  maxDelta,
		StartedAt: time.Now(),
		Delta:     c.m.AverageSquareDelta(),
	}
	if c.config.Trace {
		res.Trace = newTrace(c.m)
		res.Trace.record(c.m, 0, res.Delta)
	}

	attrs := []any{"map", res.Map, "mode", mode, "max_epochs", maxEpochs}
	if mode == ModeConverge {
		attrs = append(attrs, "max_delta", maxDelta)
	}
	c.logger.Info("simulation started", attrs...)
	return res
}

func (c *Controller) step(res *Result) {
	c.m.Execute()
	res.Epochs++
	res.Delta = c.m.AverageSquareDelta()

	if res.Trace != nil {
		res.Trace.record(c.m, res.Epochs, res.Delta)
	}
	c.logger.Debug("epoch complete", "map", res.Map, "epoch", res.Epochs, "delta", res.Delta.String())

	ev := EpochEvent{Map: c.m, Mode: res.Mode, Epoch: res.Epochs, Delta: res.Delta}
	for _, o := range c.config.Observers {
		o.ObserveEpoch(ev)
	}
}

func (c *Controller) finish(res *Result) *Result {
	res.Duration = time.Since(res.StartedAt)

	attrs := []any{
		"map", res.Map,
		"mode", res.Mode,
		"epochs", res.Epochs,
		"delta", res.Delta.String(),
		"duration", res.Duration,
	}
	if res.Mode == ModeConverge {
		attrs = append(attrs, "converged", res.Converged)
	}
	c.logger.Info("simulation finished", attrs...)

	for _, o := range c.config.Observers {
		if ro, ok := o.(RunObserver); ok {
			ro.ObserveRun(res)
		}
	}
	return res
}
