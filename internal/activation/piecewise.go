package activation

import (
	"fmt"
	"math"
)

// Linear is clamp(factor*(P+I+theta), min, max).
type Linear struct {
	Base
	factor float64
	min    float64
	max    float64
}

// Linear defaults: identity with no clamping.
const DefaultLinearFactor = 1.0

// NewLinear returns a Linear with default parameters.
func NewLinear() *Linear {
	return &Linear{
		Base:   newBase(),
		factor: DefaultLinearFactor,
		min:    math.Inf(-1),
		max:    math.Inf(1),
	}
}

func (l *Linear) Kind() Kind { return KindLinear }

// Factor returns the slope.
func (l *Linear) Factor() float64 { return l.factor }

// Min returns the lower clamp bound.
func (l *Linear) Min() float64 { return l.min }

// Max returns the upper clamp bound.
func (l *Linear) Max() float64 { return l.max }

// SetFactor sets the slope.
func (l *Linear) SetFactor(f float64) error {
	if math.IsNaN(f) {
		return fmt.Errorf("%w: linear factor is NaN", ErrInvalidParameter)
	}
	l.factor = f
	return nil
}

// SetBounds sets the clamp interval. min must not exceed max.
func (l *Linear) SetBounds(min, max float64) error {
	if math.IsNaN(min) || math.IsNaN(max) || min > max {
		return fmt.Errorf("%w: linear bounds [%v, %v]", ErrInvalidParameter, min, max)
	}
	l.min = min
	l.max = max
	return nil
}

func (l *Linear) Activate(input, prev float64, hasPrev bool) float64 {
	x := l.previous(prev, hasPrev) + input + l.threshold
	result := x * l.factor
	result = math.Max(result, l.min)
	return math.Min(result, l.max)
}

// Nary clamps P+I+theta to [-1, 1] and quantizes it to multiples of 1/n.
type Nary struct {
	Base
	n int
}

// DefaultNaryN is the default number of quantization steps per unit.
const DefaultNaryN = 2

// NewNary returns a Nary with default parameters.
func NewNary() *Nary {
	return &Nary{Base: newBase(), n: DefaultNaryN}
}

func (n *Nary) Kind() Kind { return KindNary }

// N returns the number of quantization steps per unit.
func (n *Nary) N() int { return n.n }

// SetN sets the number of quantization steps per unit. n must be positive.
func (n *Nary) SetN(v int) error {
	if v < 1 {
		return fmt.Errorf("%w: nary n must be >= 1, got %d", ErrInvalidParameter, v)
	}
	n.n = v
	return nil
}

func (n *Nary) Activate(input, prev float64, hasPrev bool) float64 {
	x := n.previous(prev, hasPrev) + input + n.threshold
	x = math.Max(x, -1.0)
	x = math.Min(x, 1.0)
	steps := float64(n.n)
	// Round half up, so -0.5 steps lands on 0 rather than -1.
	return math.Floor(x*steps+0.5) / steps
}

// Signum compares P+I with theta. Above maps to 1, below to -1 (BIPOLAR) or
// 0 (BINARY), and equality to zeroValue.
type Signum struct {
	Base
	mode      Mode
	zeroValue float64
}

// NewSignum returns a Signum with default parameters.
func NewSignum() *Signum {
	return &Signum{Base: newBase(), mode: ModeBipolar}
}

func (s *Signum) Kind() Kind { return KindSignum }

// Mode returns the output range.
func (s *Signum) Mode() Mode { return s.mode }

// SetMode sets the output range.
func (s *Signum) SetMode(m Mode) error {
	if m != ModeBipolar && m != ModeBinary {
		return fmt.Errorf("%w: mode %q", ErrInvalidParameter, m)
	}
	s.mode = m
	return nil
}

// ZeroValue returns the value produced when P+I equals the threshold.
func (s *Signum) ZeroValue() float64 { return s.zeroValue }

// SetZeroValue sets the value produced when P+I equals the threshold.
func (s *Signum) SetZeroValue(v float64) { s.zeroValue = v }

func (s *Signum) Activate(input, prev float64, hasPrev bool) float64 {
	x := s.previous(prev, hasPrev) + input
	switch {
	case x > s.threshold:
		return 1.0
	case x < s.threshold:
		if s.mode == ModeBinary {
			return 0.0
		}
		return -1.0
	default:
		return s.zeroValue
	}
}

// Interval is a window function: 1 while P+I-theta lies strictly inside
// (-amplitude, amplitude), otherwise -1 (BIPOLAR) or zeroValue (BINARY).
type Interval struct {
	Base
	mode      Mode
	amplitude float64
	zeroValue float64
}

// DefaultIntervalAmplitude is the default half-width of the Interval window.
const DefaultIntervalAmplitude = 1.0

// NewInterval returns an Interval with default parameters.
func NewInterval() *Interval {
	return &Interval{Base: newBase(), mode: ModeBipolar, amplitude: DefaultIntervalAmplitude}
}

func (iv *Interval) Kind() Kind { return KindInterval }

// Mode returns the output range.
func (iv *Interval) Mode() Mode { return iv.mode }

// SetMode sets the output range.
func (iv *Interval) SetMode(m Mode) error {
	if m != ModeBipolar && m != ModeBinary {
		return fmt.Errorf("%w: mode %q", ErrInvalidParameter, m)
	}
	iv.mode = m
	return nil
}

// Amplitude returns the half-width of the window.
func (iv *Interval) Amplitude() float64 { return iv.amplitude }

// SetAmplitude sets the half-width of the window. It must be positive.
func (iv *Interval) SetAmplitude(a float64) error {
	if math.IsNaN(a) || a <= 0 {
		return fmt.Errorf("%w: interval amplitude must be > 0, got %v", ErrInvalidParameter, a)
	}
	iv.amplitude = a
	return nil
}

// ZeroValue returns the value produced outside the window in BINARY mode.
func (iv *Interval) ZeroValue() float64 { return iv.zeroValue }

// SetZeroValue sets the value produced outside the window in BINARY mode.
func (iv *Interval) SetZeroValue(v float64) { iv.zeroValue = v }

func (iv *Interval) Activate(input, prev float64, hasPrev bool) float64 {
	x := iv.previous(prev, hasPrev) + input - iv.threshold
	if x > -iv.amplitude && x < iv.amplitude {
		return 1.0
	}
	if iv.mode == ModeBinary {
		return iv.zeroValue
	}
	return -1.0
}
