package fcm

import (
	"math"
	"slices"
	"testing"

	"github.com/nvandessel/cogmap/internal/activation"
)

// recorder logs every visit as a string.
type recorder struct {
	BaseVisitor
	visits      []string
	skipConcept string
	stopAt      string
}

func (r *recorder) VisitMap(m *Map) bool {
	r.visits = append(r.visits, "map:"+m.Name())
	return r.stopAt != "map"
}

func (r *recorder) VisitConcept(c *Concept) bool {
	r.visits = append(r.visits, "concept:"+c.Name())
	return c.Name() != r.skipConcept
}

func (r *recorder) VisitActivator(c *Concept, a activation.Activator) bool {
	r.visits = append(r.visits, "activator:"+c.Name()+":"+string(a.Kind()))
	return true
}

func (r *recorder) VisitConnection(c *Connection) bool {
	r.visits = append(r.visits, "connection:"+c.Name())
	return c.Name() != r.stopAt
}

func buildWalkMap(t *testing.T) *Map {
	t.Helper()
	m := New("walk")
	mustAddConcept(t, m, "b", activation.NewGaussian(), Undefined, false)
	mustAddConcept(t, m, "a", activation.NewCauchy(), Undefined, false)
	mustAddConcept(t, m, "c", nil, Undefined, false)
	mustConnect(t, m, "a", "y", "b", 1)
	mustConnect(t, m, "b", "x", "c", 1)
	return m
}

func TestWalk(t *testing.T) {
	tests := []struct {
		name     string
		rec      *recorder
		complete bool
		want     []string
	}{
		{
			name:     "full",
			rec:      &recorder{},
			complete: true,
			want: []string{
				"map:walk",
				"concept:a", "activator:a:cauchy",
				"concept:b", "activator:b:gauss",
				"concept:c",
				"connection:x", "connection:y",
			},
		},
		{
			name:     "stop at map",
			rec:      &recorder{stopAt: "map"},
			complete: false,
			want:     []string{"map:walk"},
		},
		{
			name:     "skip concept",
			rec:      &recorder{skipConcept: "a"},
			complete: true,
			want: []string{
				"map:walk",
				"concept:a",
				"concept:b", "activator:b:gauss",
				"concept:c",
				"connection:x", "connection:y",
			},
		},
		{
			name:     "stop at connection",
			rec:      &recorder{stopAt: "x"},
			complete: false,
			want: []string{
				"map:walk",
				"concept:a", "activator:a:cauchy",
				"concept:b", "activator:b:gauss",
				"concept:c",
				"connection:x",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := buildWalkMap(t)
			if got := m.Walk(tt.rec); got != tt.complete {
				t.Errorf("Walk() = %v, want %v", got, tt.complete)
			}
			if !slices.Equal(tt.rec.visits, tt.want) {
				t.Errorf("visits = %v, want %v", tt.rec.visits, tt.want)
			}
		})
	}
}

func TestWalk_BaseVisitor(t *testing.T) {
	m := buildWalkMap(t)
	if !m.Walk(BaseVisitor{}) {
		t.Error("BaseVisitor should walk to completion")
	}
}

func TestValue(t *testing.T) {
	if Undefined.Defined() || (Value{}).Defined() {
		t.Error("zero Value should be undefined")
	}
	if Undefined.IsNaN() || Undefined.IsInf() {
		t.Error("undefined is neither NaN nor infinite")
	}

	nan := Of(math.NaN())
	if !nan.Defined() || !nan.IsNaN() {
		t.Error("Of(NaN) should be a defined NaN")
	}
	if nan.Equal(Undefined) || !nan.Equal(Of(math.NaN())) {
		t.Error("NaN must equal NaN and differ from undefined")
	}
	if !Of(math.Inf(-1)).IsInf() {
		t.Error("Of(-Inf) should be infinite")
	}

	if Undefined.Ptr() != nil {
		t.Error("Undefined.Ptr() should be nil")
	}
	if p := Of(1.5).Ptr(); p == nil || *p != 1.5 {
		t.Errorf("Of(1.5).Ptr() = %v", p)
	}
	if !FromPtr(nil).Equal(Undefined) || !FromPtr(Of(2).Ptr()).Equal(Of(2)) {
		t.Error("FromPtr round trip failed")
	}
	if Undefined.Or(7) != 7 || Of(3).Or(7) != 3 {
		t.Error("Or returned the wrong value")
	}

	for v, want := range map[Value]string{Undefined: "undefined", Of(0.25): "0.25", Of(math.Inf(1)): "+Inf"} {
		if v.String() != want {
			t.Errorf("String() = %q, want %q", v.String(), want)
		}
	}
}
