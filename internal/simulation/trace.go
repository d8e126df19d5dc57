package simulation

import (
	"slices"

	"github.com/nvandessel/cogmap/internal/fcm"
)

// Snapshot holds every concept's output after one epoch. Epoch 0 is the
// state before the first epoch.
type Snapshot struct {
	Epoch   int
	Outputs []fcm.Value // indexed like Trace.Concepts
	Delta   fcm.Value
}

// Trace is the per-epoch history of a run.
type Trace struct {
	Concepts []string // name order
	Epochs   []Snapshot
}

func newTrace(m *fcm.Map) *Trace {
	return &Trace{Concepts: m.ConceptNames()}
}

func (t *Trace) record(m *fcm.Map, epoch int, delta fcm.Value) {
	outputs := make([]fcm.Value, len(t.Concepts))
	for i, name := range t.Concepts {
		if c := m.Concept(name); c != nil {
			outputs[i] = c.Output()
		}
	}
	t.Epochs = append(t.Epochs, Snapshot{Epoch: epoch, Outputs: outputs, Delta: delta})
}

// Series returns the outputs of one concept, one per recorded epoch. It
// returns nil for unknown concepts.
func (t *Trace) Series(concept string) []fcm.Value {
	idx := slices.Index(t.Concepts, concept)
	if idx < 0 {
		return nil
	}
	series := make([]fcm.Value, len(t.Epochs))
	for i, s := range t.Epochs {
		series[i] = s.Outputs[idx]
	}
	return series
}

// Output returns a concept's output after the given epoch.
func (t *Trace) Output(epoch int, concept string) (fcm.Value, bool) {
	idx := slices.Index(t.Concepts, concept)
	if idx < 0 || epoch < 0 || epoch >= len(t.Epochs) {
		return fcm.Undefined, false
	}
	return t.Epochs[epoch].Outputs[idx], true
}

// Last returns the final snapshot.
func (t *Trace) Last() Snapshot {
	if len(t.Epochs) == 0 {
		return Snapshot{}
	}
	return t.Epochs[len(t.Epochs)-1]
}
