package activation

import (
	"errors"
	"fmt"
	"math"
)

// Params is the serializable parameter set of an activator. Nil fields keep
// the variant's defaults. Fields that do not apply to a variant are ignored
// by New and left nil by ParamsOf.
type Params struct {
	Threshold       *float64
	IncludePrevious *bool

	Factor *float64 // linear
	Min    *float64 // linear
	Max    *float64 // linear

	K         *float64 // sigmoid
	Width     *float64 // gauss
	N         *int     // nary
	Mode      string   // signum, interval
	ZeroValue *float64 // signum, interval
	Amplitude *float64 // interval
}

// New builds an activator of the given kind, applying the non-nil params.
func New(kind Kind, p Params) (Activator, error) {
	var (
		act  Activator
		base *Base
		errs []error
	)

	switch kind {
	case KindCauchy:
		a := NewCauchy()
		act, base = a, &a.Base
	case KindGaussian:
		a := NewGaussian()
		if p.Width != nil {
			errs = append(errs, a.SetWidth(*p.Width))
		}
		act, base = a, &a.Base
	case KindTanh:
		a := NewHyperbolicTangent()
		act, base = a, &a.Base
	case KindLinear:
		a := NewLinear()
		if p.Factor != nil {
			errs = append(errs, a.SetFactor(*p.Factor))
		}
		if p.Min != nil || p.Max != nil {
			lo, hi := a.Min(), a.Max()
			if p.Min != nil {
				lo = *p.Min
			}
			if p.Max != nil {
				hi = *p.Max
			}
			errs = append(errs, a.SetBounds(lo, hi))
		}
		act, base = a, &a.Base
	case KindNary:
		a := NewNary()
		if p.N != nil {
			errs = append(errs, a.SetN(*p.N))
		}
		act, base = a, &a.Base
	case KindSigmoid:
		a := NewSigmoid()
		if p.K != nil {
			errs = append(errs, a.SetK(*p.K))
		}
		act, base = a, &a.Base
	case KindSignum:
		a := NewSignum()
		if p.Mode != "" {
			m, err := ParseMode(p.Mode)
			errs = append(errs, err)
			if err == nil {
				errs = append(errs, a.SetMode(m))
			}
		}
		if p.ZeroValue != nil {
			a.SetZeroValue(*p.ZeroValue)
		}
		act, base = a, &a.Base
	case KindInterval:
		a := NewInterval()
		if p.Mode != "" {
			m, err := ParseMode(p.Mode)
			errs = append(errs, err)
			if err == nil {
				errs = append(errs, a.SetMode(m))
			}
		}
		if p.Amplitude != nil {
			errs = append(errs, a.SetAmplitude(*p.Amplitude))
		}
		if p.ZeroValue != nil {
			a.SetZeroValue(*p.ZeroValue)
		}
		act, base = a, &a.Base
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	if p.Threshold != nil {
		errs = append(errs, base.SetThreshold(*p.Threshold))
	}
	if p.IncludePrevious != nil {
		base.SetIncludePrevious(*p.IncludePrevious)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("build %s activator: %w", kind, err)
	}
	return act, nil
}

// ParamsOf reports the full parameter set of an activator, so that
// New(a.Kind(), ParamsOf(a)) rebuilds an equivalent activator. Infinite
// linear bounds (the defaults) are left nil.
func ParamsOf(a Activator) Params {
	threshold := a.Threshold()
	include := a.IncludePrevious()
	p := Params{Threshold: &threshold, IncludePrevious: &include}

	switch v := a.(type) {
	case *Gaussian:
		p.Width = ptr(v.Width())
	case *Linear:
		p.Factor = ptr(v.Factor())
		if !math.IsInf(v.Min(), 0) {
			p.Min = ptr(v.Min())
		}
		if !math.IsInf(v.Max(), 0) {
			p.Max = ptr(v.Max())
		}
	case *Nary:
		n := v.N()
		p.N = &n
	case *Sigmoid:
		p.K = ptr(v.K())
	case *Signum:
		p.Mode = string(v.Mode())
		p.ZeroValue = ptr(v.ZeroValue())
	case *Interval:
		p.Mode = string(v.Mode())
		p.Amplitude = ptr(v.Amplitude())
		p.ZeroValue = ptr(v.ZeroValue())
	}
	return p
}

func ptr(f float64) *float64 { return &f }
