package simulation

import (
	"math"
	"testing"
)

// AssertConverged asserts that a converge run reached its threshold within
// maxEpochs epochs.
func AssertConverged(t *testing.T, res *Result, maxEpochs int) {
	t.Helper()
	if !res.Converged {
		t.Errorf("AssertConverged: %s did not converge after %d epochs (delta %s, max %g)",
			res.Map, res.Epochs, res.Delta, res.MaxDelta)
		return
	}
	if res.Epochs > maxEpochs {
		t.Errorf("AssertConverged: %s took %d epochs, want at most %d", res.Map, res.Epochs, maxEpochs)
	}
}

// AssertExhausted asserts that a converge run used its whole epoch budget
// without reaching the threshold.
func AssertExhausted(t *testing.T, res *Result) {
	t.Helper()
	if res.Converged {
		t.Errorf("AssertExhausted: %s converged after %d epochs (delta %s)", res.Map, res.Epochs, res.Delta)
	}
	if res.Epochs != res.MaxEpochs {
		t.Errorf("AssertExhausted: %s ran %d of %d epochs", res.Map, res.Epochs, res.MaxEpochs)
	}
}

// AssertOutputSettles asserts that a concept's output stays within
// [min, max] in every traced epoch from afterEpoch on.
func AssertOutputSettles(t *testing.T, res *Result, concept string, min, max float64, afterEpoch int) {
	t.Helper()
	if res.Trace == nil {
		t.Fatal("AssertOutputSettles: result has no trace")
	}
	series := res.Trace.Series(concept)
	if series == nil {
		t.Fatalf("AssertOutputSettles: concept %s not traced", concept)
	}
	for epoch := afterEpoch; epoch < len(series); epoch++ {
		v, ok := series[epoch].Float()
		if !ok {
			t.Errorf("AssertOutputSettles: epoch %d: %s is undefined", epoch, concept)
			continue
		}
		if math.IsNaN(v) || v < min || v > max {
			t.Errorf("AssertOutputSettles: epoch %d: %s output %.6f not in [%.4f, %.4f]", epoch, concept, v, min, max)
		}
	}
}

// AssertOutputConstant asserts that a concept's output equals want in every
// traced epoch.
func AssertOutputConstant(t *testing.T, res *Result, concept string, want float64) {
	t.Helper()
	if res.Trace == nil {
		t.Fatal("AssertOutputConstant: result has no trace")
	}
	for epoch, v := range res.Trace.Series(concept) {
		if got, ok := v.Float(); !ok || got != want {
			t.Errorf("AssertOutputConstant: epoch %d: %s output %s, want %g", epoch, concept, v, want)
		}
	}
}
