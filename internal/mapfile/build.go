package mapfile

import (
	"fmt"

	"github.com/nvandessel/cogmap/internal/activation"
	"github.com/nvandessel/cogmap/internal/fcm"
)

// Build creates a live map from its definition.
func (s *MapSpec) Build() (*fcm.Map, error) {
	m := fcm.New(s.Name)
	m.SetDescription(s.Description)

	for _, cs := range s.Concepts {
		var act activation.Activator
		if cs.Activator != nil {
			a, err := cs.Activator.Build()
			if err != nil {
				return nil, fmt.Errorf("map %q: concept %q: %w", s.Name, cs.Name, err)
			}
			act = a
		}

		c := fcm.NewConcept(cs.Name, act)
		c.SetDescription(cs.Description)
		c.SetInput(fcm.FromPtr(cs.Input))
		c.SetOutput(fcm.FromPtr(cs.Output))
		c.SetFixed(cs.Fixed)
		if err := m.AddConcept(c); err != nil {
			return nil, fmt.Errorf("map %q: %w", s.Name, err)
		}
	}

	for _, cs := range s.Connections {
		weight := fcm.DefaultWeight
		if cs.Weight != nil {
			weight = *cs.Weight
		}
		conn := fcm.NewConnection(cs.Name, weight)
		conn.SetDescription(cs.Description)
		if err := conn.SetDelay(cs.Delay); err != nil {
			return nil, fmt.Errorf("map %q: %w", s.Name, err)
		}
		if err := m.AddConnection(conn); err != nil {
			return nil, fmt.Errorf("map %q: %w", s.Name, err)
		}
		if err := m.Connect(cs.From, cs.Name, cs.To); err != nil {
			return nil, fmt.Errorf("map %q: connection %q: %w", s.Name, cs.Name, err)
		}
	}
	return m, nil
}

// BuildAll builds every map of the document.
func (d *Document) BuildAll() ([]*fcm.Map, error) {
	maps := make([]*fcm.Map, 0, len(d.Maps))
	for i := range d.Maps {
		m, err := d.Maps[i].Build()
		if err != nil {
			return nil, err
		}
		maps = append(maps, m)
	}
	return maps, nil
}

// Build creates the activation function.
func (a *ActivatorSpec) Build() (activation.Activator, error) {
	kind, err := activation.ParseKind(a.Type)
	if err != nil {
		return nil, err
	}
	return activation.New(kind, activation.Params{
		Threshold:       a.Threshold,
		IncludePrevious: a.IncludePrevious,
		Factor:          a.Factor,
		Min:             a.Min,
		Max:             a.Max,
		K:               a.K,
		Width:           a.Width,
		N:               a.N,
		Mode:            a.Mode,
		ZeroValue:       a.ZeroValue,
		Amplitude:       a.Amplitude,
	})
}

// FromMap describes a live map. Connections without a source or target
// produce specs with an empty endpoint, which do not validate.
func FromMap(m *fcm.Map) MapSpec {
	b := &specBuilder{}
	m.Walk(b)
	return b.spec
}

// NewDocument wraps map definitions into a document.
func NewDocument(maps ...*fcm.Map) *Document {
	doc := &Document{Maps: make([]MapSpec, 0, len(maps))}
	for _, m := range maps {
		doc.Maps = append(doc.Maps, FromMap(m))
	}
	return doc
}

// specBuilder collects a MapSpec from a map traversal.
type specBuilder struct {
	fcm.BaseVisitor
	spec MapSpec
}

func (b *specBuilder) VisitMap(m *fcm.Map) bool {
	b.spec = MapSpec{Name: m.Name(), Description: m.Description()}
	return true
}

func (b *specBuilder) VisitConcept(c *fcm.Concept) bool {
	b.spec.Concepts = append(b.spec.Concepts, ConceptSpec{
		Name:        c.Name(),
		Description: c.Description(),
		Input:       c.Input().Ptr(),
		Output:      c.Output().Ptr(),
		Fixed:       c.Fixed(),
	})
	return true
}

func (b *specBuilder) VisitActivator(c *fcm.Concept, a activation.Activator) bool {
	p := activation.ParamsOf(a)
	spec := &ActivatorSpec{
		Type:            string(a.Kind()),
		Threshold:       p.Threshold,
		IncludePrevious: p.IncludePrevious,
		Mode:            p.Mode,
		ZeroValue:       p.ZeroValue,
		Factor:          p.Factor,
		Min:             p.Min,
		Max:             p.Max,
		K:               p.K,
		Width:           p.Width,
		N:               p.N,
		Amplitude:       p.Amplitude,
	}
	b.spec.Concepts[len(b.spec.Concepts)-1].Activator = spec
	return true
}

func (b *specBuilder) VisitConnection(conn *fcm.Connection) bool {
	cs := ConnectionSpec{
		Name:        conn.Name(),
		Description: conn.Description(),
		Delay:       conn.Delay(),
	}
	if conn.From() != nil {
		cs.From = conn.From().Name()
	}
	if conn.To() != nil {
		cs.To = conn.To().Name()
	}
	w := conn.Weight()
	cs.Weight = &w
	b.spec.Connections = append(b.spec.Connections, cs)
	return true
}
