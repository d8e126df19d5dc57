// Package activation implements the activation functions used by cognitive
// map concepts. Each variant maps the accumulated input of a concept (plus,
// optionally, its previous output) to the concept's next output.
//
// All variants share a threshold and an "include previous output" flag. The
// formulas are pure: the edge-case handling that decides whether a formula
// runs at all (fixed outputs, missing inputs, infinities) lives in the
// update engine, not here.
package activation

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Default values shared by every variant.
const (
	DefaultThreshold       = 0.0
	DefaultIncludePrevious = true
)

var (
	// ErrInvalidThreshold is returned when a threshold is NaN or infinite.
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrInvalidParameter is returned when a variant-specific parameter is
	// outside its domain.
	ErrInvalidParameter = errors.New("invalid activator parameter")

	// ErrUnknownKind is returned when an activator kind name is not recognized.
	ErrUnknownKind = errors.New("unknown activator kind")
)

// Kind identifies an activation function variant.
type Kind string

const (
	KindCauchy   Kind = "cauchy"
	KindGaussian Kind = "gauss"
	KindTanh     Kind = "tanh"
	KindLinear   Kind = "linear"
	KindNary     Kind = "nary"
	KindSigmoid  Kind = "sigmoid"
	KindSignum   Kind = "signum"
	KindInterval Kind = "interval"
)

// Kinds lists every supported variant in a stable order.
var Kinds = []Kind{
	KindCauchy, KindGaussian, KindTanh, KindLinear,
	KindNary, KindSigmoid, KindSignum, KindInterval,
}

// kindAliases maps accepted spellings to their canonical kind.
var kindAliases = map[string]Kind{
	"cauchy":             KindCauchy,
	"gauss":              KindGaussian,
	"gaussian":           KindGaussian,
	"tanh":               KindTanh,
	"hyperbolic_tangent": KindTanh,
	"hyperbolictangent":  KindTanh,
	"linear":             KindLinear,
	"nary":               KindNary,
	"sigmoid":            KindSigmoid,
	"signum":             KindSignum,
	"interval":           KindInterval,
}

// ParseKind resolves a kind name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Mode selects the output range of step-shaped variants (Signum, Interval).
type Mode string

const (
	// ModeBipolar produces values in {-1, zeroValue, +1}.
	ModeBipolar Mode = "BIPOLAR"
	// ModeBinary produces values in {0, zeroValue, 1}.
	ModeBinary Mode = "BINARY"
)

// ParseMode resolves a mode name, case-insensitively. The empty string maps
// to ModeBipolar.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(ModeBipolar):
		return ModeBipolar, nil
	case string(ModeBinary):
		return ModeBinary, nil
	default:
		return "", fmt.Errorf("%w: mode %q (valid: BIPOLAR, BINARY)", ErrInvalidParameter, s)
	}
}

// Activator computes a concept's next output from its accumulated input.
type Activator interface {
	// Kind reports which variant this is.
	Kind() Kind

	// Threshold returns the variant's threshold (theta).
	Threshold() float64

	// IncludePrevious reports whether the previous output is added to the input.
	IncludePrevious() bool

	// Activate returns the next output for the given accumulated input.
	// prev is the concept's previous output; hasPrev is false when that
	// output is undefined.
	Activate(input, prev float64, hasPrev bool) float64
}

// Base holds the parameters shared by every variant. It is embedded by the
// concrete activators.
type Base struct {
	threshold       float64
	includePrevious bool
}

func newBase() Base {
	return Base{threshold: DefaultThreshold, includePrevious: DefaultIncludePrevious}
}

// Threshold returns the threshold.
func (b *Base) Threshold() float64 { return b.threshold }

// SetThreshold sets the threshold. NaN and infinite values are rejected.
func (b *Base) SetThreshold(t float64) error {
	if math.IsNaN(t) || math.IsInf(t, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, t)
	}
	b.threshold = t
	return nil
}

// IncludePrevious reports whether the previous output is part of the sum.
func (b *Base) IncludePrevious() bool { return b.includePrevious }

// SetIncludePrevious toggles whether the previous output is part of the sum.
func (b *Base) SetIncludePrevious(include bool) { b.includePrevious = include }

// previous returns the previous output to add to the input, or 0 when it is
// excluded, undefined or NaN.
func (b *Base) previous(prev float64, hasPrev bool) float64 {
	if !b.includePrevious || !hasPrev || math.IsNaN(prev) {
		return 0
	}
	return prev
}
