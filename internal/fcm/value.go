package fcm

import (
	"math"
	"strconv"
)

// Value is an optional scalar. An undefined Value means "no signal"; a
// defined Value may still hold NaN, which means "invalid signal present".
// The zero Value is undefined.
type Value struct {
	v  float64
	ok bool
}

// Undefined is the Value carrying no signal.
var Undefined = Value{}

// Of returns a defined Value holding f.
func Of(f float64) Value { return Value{v: f, ok: true} }

// FromPtr converts a nullable float into a Value.
func FromPtr(f *float64) Value {
	if f == nil {
		return Undefined
	}
	return Of(*f)
}

// Defined reports whether the value carries a signal.
func (x Value) Defined() bool { return x.ok }

// Float returns the number and whether it is defined.
func (x Value) Float() (float64, bool) { return x.v, x.ok }

// Or returns the number, or def when undefined.
func (x Value) Or(def float64) float64 {
	if !x.ok {
		return def
	}
	return x.v
}

// IsNaN reports whether the value is defined and NaN.
func (x Value) IsNaN() bool { return x.ok && math.IsNaN(x.v) }

// IsInf reports whether the value is defined and infinite.
func (x Value) IsInf() bool { return x.ok && math.IsInf(x.v, 0) }

// Ptr returns the value as a nullable float.
func (x Value) Ptr() *float64 {
	if !x.ok {
		return nil
	}
	f := x.v
	return &f
}

// Equal reports whether two values are identical, treating NaN as equal to
// NaN.
func (x Value) Equal(y Value) bool {
	if x.ok != y.ok {
		return false
	}
	if !x.ok {
		return true
	}
	if math.IsNaN(x.v) {
		return math.IsNaN(y.v)
	}
	return x.v == y.v
}

func (x Value) String() string {
	if !x.ok {
		return "undefined"
	}
	return strconv.FormatFloat(x.v, 'g', -1, 64)
}
