package fcm

import (
	"math"
	"testing"

	"github.com/nvandessel/cogmap/internal/activation"
)

func linearNoPrev() *activation.Linear {
	l := activation.NewLinear()
	l.SetIncludePrevious(false)
	return l
}

func TestAverageSquareDelta_Ring4(t *testing.T) {
	m := buildRing4(t)

	if d := m.AverageSquareDelta(); d.Defined() {
		t.Fatalf("delta before any epoch = %v, want undefined", d)
	}

	m.Execute()

	d := m.AverageSquareDelta()
	if !d.Equal(Of(0.25)) {
		t.Errorf("delta after one epoch = %v, want 0.25", d)
	}
	if !m.LastDelta().Equal(d) {
		t.Errorf("LastDelta() = %v, want %v", m.LastDelta(), d)
	}
}

func TestAverageSquareDelta_SkipsUndefined(t *testing.T) {
	m := New("partial")
	c := mustAddConcept(t, m, "a", nil, Of(3), false)
	mustAddConcept(t, m, "b", nil, Undefined, false)
	c.prevOutput = Of(1)

	if d := m.AverageSquareDelta(); !d.Equal(Of(4)) {
		t.Errorf("delta = %v, want 4", d)
	}

	c.output = Of(math.NaN())
	if d := m.AverageSquareDelta(); !d.IsNaN() {
		t.Errorf("delta with NaN output = %v, want NaN", d)
	}
}

// Stage must read only the previous epoch's outputs: after staging a
// feedback cycle, no output has moved and every staged value is computed
// from the old snapshot.
func TestStage_TwoPhase(t *testing.T) {
	m := New("cycle")
	tanh := activation.NewHyperbolicTangent()
	mustAddConcept(t, m, "a", tanh, Of(0.5), false)
	mustAddConcept(t, m, "b", tanh, Of(-0.25), false)
	mustAddConcept(t, m, "c", tanh, Of(1.0), false)
	mustConnect(t, m, "a", "ab", "b", 0.7)
	mustConnect(t, m, "b", "bc", "c", -0.4)
	mustConnect(t, m, "c", "ca", "a", 0.9)

	before := map[string]Value{}
	for c := range m.Concepts() {
		before[c.Name()] = c.Output()
	}

	m.Stage()

	for c := range m.Concepts() {
		if !c.Output().Equal(before[c.Name()]) {
			t.Errorf("%s output changed during stage: %v -> %v", c.Name(), before[c.Name()], c.Output())
		}
		if !c.PrevOutput().Equal(before[c.Name()]) {
			t.Errorf("%s prevOutput = %v, want %v", c.Name(), c.PrevOutput(), before[c.Name()])
		}
	}

	want := map[string]float64{
		"a": math.Tanh(0.5 + 0.9*1.0),
		"b": math.Tanh(-0.25 + 0.7*0.5),
		"c": math.Tanh(1.0 + -0.4*-0.25),
	}
	for name, w := range want {
		got, ok := m.Concept(name).NextOutput().Float()
		if !ok || math.Abs(got-w) > 1e-12 {
			t.Errorf("%s nextOutput = %v, want %v", name, m.Concept(name).NextOutput(), w)
		}
	}

	m.Commit()
	for name, w := range want {
		if got := m.Concept(name).Output(); !got.Equal(m.Concept(name).NextOutput()) {
			t.Errorf("%s output after commit = %v, want %v", name, got, w)
		}
	}
}

func TestExecute_FixedNeverChanges(t *testing.T) {
	m := New("fixed")
	sig := activation.NewSigmoid()
	mustAddConcept(t, m, "driver", sig, Of(10), false)
	mustAddConcept(t, m, "pinned", sig, Of(0.3), true)
	mustConnect(t, m, "driver", "d-p", "pinned", 5)
	mustConnect(t, m, "pinned", "p-d", "driver", 1)

	for i := 0; i < 20; i++ {
		m.Execute()
		if got := m.Concept("pinned").Output(); !got.Equal(Of(0.3)) {
			t.Fatalf("epoch %d: pinned output = %v, want 0.3", i+1, got)
		}
	}
}

func TestExecute_NoActivatorHoldsOutput(t *testing.T) {
	m := New("hold")
	mustAddConcept(t, m, "src", activation.NewHyperbolicTangent(), Of(1), true)
	mustAddConcept(t, m, "plain", nil, Of(7), false)
	mustConnect(t, m, "src", "s-p", "plain", 1)

	m.Execute()
	c := m.Concept("plain")
	if !c.Output().Equal(Of(7)) || !c.PrevOutput().Equal(Of(7)) {
		t.Errorf("plain output=%v prev=%v, want 7 and 7", c.Output(), c.PrevOutput())
	}
}

func TestExecute_NoIncomingIsUndefined(t *testing.T) {
	m := New("isolated")
	mustAddConcept(t, m, "lonely", activation.NewSigmoid(), Of(0.4), false)

	m.Execute()
	c := m.Concept("lonely")
	if c.Output().Defined() {
		t.Errorf("output = %v, want undefined", c.Output())
	}
	if !c.PrevOutput().Equal(Of(0.4)) {
		t.Errorf("prevOutput = %v, want 0.4", c.PrevOutput())
	}
}

func TestExecute_NumericPropagation(t *testing.T) {
	tests := []struct {
		name       string
		source     Value
		weight     float64
		wantNaN    bool
		wantUndef  bool
		wantOutput float64
	}{
		{name: "finite", source: Of(2), weight: 0.5, wantOutput: 1},
		{name: "positive infinity", source: Of(math.Inf(1)), weight: 1, wantNaN: true},
		{name: "negative infinity", source: Of(math.Inf(-1)), weight: 1, wantNaN: true},
		{name: "undefined source", source: Undefined, weight: 1, wantUndef: true},
		{name: "NaN source skipped", source: Of(math.NaN()), weight: 1, wantUndef: true},
		{name: "NaN weight", source: Of(1), weight: math.NaN(), wantNaN: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New("numeric")
			mustAddConcept(t, m, "src", activation.NewLinear(), tt.source, true)
			mustAddConcept(t, m, "dst", linearNoPrev(), Of(0), false)
			mustConnect(t, m, "src", "edge", "dst", tt.weight)

			m.Execute()
			got := m.Concept("dst").Output()
			switch {
			case tt.wantNaN:
				if !got.IsNaN() {
					t.Errorf("output = %v, want NaN", got)
				}
			case tt.wantUndef:
				if got.Defined() {
					t.Errorf("output = %v, want undefined", got)
				}
				if m.Concept("dst").Input().Defined() {
					t.Errorf("input = %v, want undefined", m.Concept("dst").Input())
				}
			default:
				if !got.Equal(Of(tt.wantOutput)) {
					t.Errorf("output = %v, want %v", got, tt.wantOutput)
				}
			}
		})
	}
}

func TestExecute_InfinitySkipsOtherInputs(t *testing.T) {
	m := New("inf")
	mustAddConcept(t, m, "a", nil, Of(math.Inf(1)), true)
	mustAddConcept(t, m, "b", nil, Of(1), true)
	mustAddConcept(t, m, "dst", linearNoPrev(), Of(0), false)
	mustConnect(t, m, "a", "a-dst", "dst", 1)
	mustConnect(t, m, "b", "b-dst", "dst", 1)

	m.Execute()
	if got := m.Concept("dst").Output(); !got.IsNaN() {
		t.Errorf("output = %v, want NaN", got)
	}
}

func TestExecute_InfinityLeavesLaterDelayLines(t *testing.T) {
	m := New("inf-delay")
	mustAddConcept(t, m, "a", nil, Of(math.Inf(1)), true)
	mustAddConcept(t, m, "b", nil, Of(1), true)
	mustAddConcept(t, m, "dst", linearNoPrev(), Of(0), false)
	mustConnect(t, m, "a", "a-dst", "dst", 1)
	delayed := mustConnect(t, m, "b", "b-dst", "dst", 1)
	if err := delayed.SetDelay(2); err != nil {
		t.Fatal(err)
	}

	m.Execute()
	if got := m.Concept("dst").Output(); !got.IsNaN() {
		t.Errorf("output = %v, want NaN", got)
	}
	if delayed.Pending() != 0 {
		t.Errorf("b-dst pending = %d, want 0", delayed.Pending())
	}
	if delayed.Output().Defined() {
		t.Errorf("b-dst output = %v, want undefined", delayed.Output())
	}
}

func TestExecute_SumsInputs(t *testing.T) {
	m := New("sum")
	mustAddConcept(t, m, "a", nil, Of(1), true)
	mustAddConcept(t, m, "b", nil, Of(2), true)
	mustAddConcept(t, m, "u", nil, Undefined, true)
	mustAddConcept(t, m, "dst", activation.NewLinear(), Of(10), false)
	mustConnect(t, m, "a", "a-dst", "dst", 1)
	mustConnect(t, m, "b", "b-dst", "dst", -3)
	mustConnect(t, m, "u", "u-dst", "dst", 1)

	m.Execute()
	dst := m.Concept("dst")
	if !dst.Input().Equal(Of(-5)) {
		t.Errorf("input = %v, want -5", dst.Input())
	}
	// Previous output is included by default.
	if !dst.Output().Equal(Of(5)) {
		t.Errorf("output = %v, want 5", dst.Output())
	}
}

func TestConnection_Delay(t *testing.T) {
	for _, delay := range []int{1, 2, 5} {
		src := NewConcept("src", nil)
		conn := NewConnection("e", 2)
		conn.from = src
		if err := conn.SetDelay(delay); err != nil {
			t.Fatalf("SetDelay(%d): %v", delay, err)
		}

		for epoch := 1; epoch <= delay+10; epoch++ {
			src.output = Of(float64(epoch))
			got := conn.CalculateOutput()
			if epoch <= delay {
				if got.Defined() {
					t.Errorf("delay %d epoch %d: output = %v, want undefined", delay, epoch, got)
				}
				continue
			}
			want := Of(float64(epoch-delay) * 2)
			if !got.Equal(want) {
				t.Errorf("delay %d epoch %d: output = %v, want %v", delay, epoch, got, want)
			}
			if !conn.Output().Equal(got) {
				t.Errorf("Output() = %v, want cached %v", conn.Output(), got)
			}
		}
		if conn.Pending() != delay {
			t.Errorf("delay %d: %d values pending, want %d", delay, conn.Pending(), delay)
		}
	}
}

func TestConnection_SetDelayResetsBuffer(t *testing.T) {
	src := NewConcept("src", nil)
	src.output = Of(1)
	conn := NewConnection("e", 1)
	conn.from = src
	if err := conn.SetDelay(1); err != nil {
		t.Fatal(err)
	}
	conn.CalculateOutput()
	if conn.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", conn.Pending())
	}

	if err := conn.SetDelay(1); err != nil {
		t.Fatal(err)
	}
	if conn.Pending() != 0 {
		t.Errorf("pending after SetDelay = %d, want 0", conn.Pending())
	}
	if got := conn.CalculateOutput(); got.Defined() {
		t.Errorf("first output after reset = %v, want undefined", got)
	}

	if err := conn.SetDelay(-1); err == nil {
		t.Error("SetDelay(-1) should fail")
	}
}

func TestConnection_UndefinedSourceIsBuffered(t *testing.T) {
	src := NewConcept("src", nil)
	conn := NewConnection("e", 1)
	conn.from = src
	if err := conn.SetDelay(1); err != nil {
		t.Fatal(err)
	}

	conn.CalculateOutput() // pushes undefined
	src.output = Of(3)
	if got := conn.CalculateOutput(); got.Defined() {
		t.Errorf("output = %v, want the buffered undefined", got)
	}
	if got := conn.CalculateOutput(); !got.Equal(Of(3)) {
		t.Errorf("output = %v, want 3", got)
	}
}

func TestExecute_DelayedEdgeInMap(t *testing.T) {
	m := New("delayed")
	mustAddConcept(t, m, "src", nil, Of(4), true)
	mustAddConcept(t, m, "dst", linearNoPrev(), Undefined, false)
	conn := mustConnect(t, m, "src", "e", "dst", 0.5)
	if err := conn.SetDelay(3); err != nil {
		t.Fatal(err)
	}

	for epoch := 1; epoch <= 3; epoch++ {
		m.Execute()
		if got := m.Concept("dst").Output(); got.Defined() {
			t.Fatalf("epoch %d: output = %v, want undefined", epoch, got)
		}
	}
	m.Execute()
	if got := m.Concept("dst").Output(); !got.Equal(Of(2)) {
		t.Errorf("epoch 4: output = %v, want 2", got)
	}
}
