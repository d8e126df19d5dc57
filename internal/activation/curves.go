package activation

import (
	"fmt"
	"math"
)

// Sigmoid is the logistic function 1 / (1 + e^(-k*(P+I+theta))).
type Sigmoid struct {
	Base
	k float64
}

// DefaultSigmoidK is the default steepness of Sigmoid.
const DefaultSigmoidK = 1.0

// NewSigmoid returns a Sigmoid with default parameters.
func NewSigmoid() *Sigmoid {
	return &Sigmoid{Base: newBase(), k: DefaultSigmoidK}
}

func (s *Sigmoid) Kind() Kind { return KindSigmoid }

// K returns the steepness.
func (s *Sigmoid) K() float64 { return s.k }

// SetK sets the steepness.
func (s *Sigmoid) SetK(k float64) error {
	if math.IsNaN(k) {
		return fmt.Errorf("%w: sigmoid k is NaN", ErrInvalidParameter)
	}
	s.k = k
	return nil
}

func (s *Sigmoid) Activate(input, prev float64, hasPrev bool) float64 {
	x := s.previous(prev, hasPrev) + input + s.threshold
	return 1.0 / (1.0 + math.Exp(-s.k*x))
}

// HyperbolicTangent is tanh(P+I+theta).
type HyperbolicTangent struct {
	Base
}

// NewHyperbolicTangent returns a HyperbolicTangent with default parameters.
func NewHyperbolicTangent() *HyperbolicTangent {
	return &HyperbolicTangent{Base: newBase()}
}

func (h *HyperbolicTangent) Kind() Kind { return KindTanh }

func (h *HyperbolicTangent) Activate(input, prev float64, hasPrev bool) float64 {
	return math.Tanh(h.previous(prev, hasPrev) + input + h.threshold)
}

// Gaussian is e^(-(P+I)^2 / 2 * width^2). The threshold does not shift the
// curve.
type Gaussian struct {
	Base
	width  float64
	width2 float64
}

// DefaultGaussianWidth is the default width of Gaussian.
const DefaultGaussianWidth = 1.0

// NewGaussian returns a Gaussian with default parameters.
func NewGaussian() *Gaussian {
	g := &Gaussian{Base: newBase()}
	g.width = DefaultGaussianWidth
	g.width2 = DefaultGaussianWidth * DefaultGaussianWidth
	return g
}

func (g *Gaussian) Kind() Kind { return KindGaussian }

// Width returns the width parameter.
func (g *Gaussian) Width() float64 { return g.width }

// SetWidth sets the width parameter.
func (g *Gaussian) SetWidth(w float64) error {
	if math.IsNaN(w) || math.IsInf(w, 0) {
		return fmt.Errorf("%w: gaussian width %v", ErrInvalidParameter, w)
	}
	g.width = w
	g.width2 = w * w
	return nil
}

func (g *Gaussian) Activate(input, prev float64, hasPrev bool) float64 {
	x := g.previous(prev, hasPrev) + input
	return math.Exp(-1.0 * math.Pow(x, 2.0) / 2.0 * g.width2)
}

// Cauchy is 1 / (pi * (1 + (P+I-theta)^2)).
type Cauchy struct {
	Base
}

// NewCauchy returns a Cauchy with default parameters.
func NewCauchy() *Cauchy {
	return &Cauchy{Base: newBase()}
}

func (c *Cauchy) Kind() Kind { return KindCauchy }

func (c *Cauchy) Activate(input, prev float64, hasPrev bool) float64 {
	x := c.previous(prev, hasPrev) + input
	return 1.0 / (math.Pi * (1.0 + math.Pow(x-c.threshold, 2)))
}
