package fcm

import (
	"fmt"
	"slices"
	"strings"

	"github.com/nvandessel/cogmap/internal/activation"
)

// Concept is a node of a cognitive map. Its output is recomputed every epoch
// from the outputs of its incoming connections, unless it is fixed or has no
// activator.
type Concept struct {
	name        string
	description string
	activator   activation.Activator

	input      Value
	output     Value
	prevOutput Value
	nextOutput Value
	fixed      bool

	// Edge sets keyed by connection name. The map owns the connections.
	in  map[string]*Connection
	out map[string]*Connection
}

// NewConcept creates a concept. act may be nil, in which case the concept
// holds its output unchanged.
func NewConcept(name string, act activation.Activator) *Concept {
	return &Concept{
		name:      name,
		activator: act,
		in:        make(map[string]*Connection),
		out:       make(map[string]*Connection),
	}
}

// Name returns the concept's name.
func (c *Concept) Name() string { return c.name }

// Description returns the free-form description.
func (c *Concept) Description() string { return c.description }

// SetDescription sets the free-form description.
func (c *Concept) SetDescription(d string) { c.description = d }

// Activator returns the activation policy, or nil.
func (c *Concept) Activator() activation.Activator { return c.activator }

// SetActivator replaces the activation policy.
func (c *Concept) SetActivator(a activation.Activator) { c.activator = a }

// Input returns the last accumulated input.
func (c *Concept) Input() Value { return c.input }

// SetInput overrides the accumulated input. It is recomputed by the next
// epoch.
func (c *Concept) SetInput(v Value) { c.input = v }

// Output returns the current output.
func (c *Concept) Output() Value { return c.output }

// SetOutput sets the current output.
func (c *Concept) SetOutput(v Value) { c.output = v }

// PrevOutput returns the output captured before the last update.
func (c *Concept) PrevOutput() Value { return c.prevOutput }

// NextOutput returns the staged output of the current epoch.
func (c *Concept) NextOutput() Value { return c.nextOutput }

// Fixed reports whether the output is pinned.
func (c *Concept) Fixed() bool { return c.fixed }

// SetFixed pins or unpins the output.
func (c *Concept) SetFixed(fixed bool) { c.fixed = fixed }

// InConnections returns the incoming connections sorted by name.
func (c *Concept) InConnections() []*Connection { return sortedConnections(c.in) }

// OutConnections returns the outgoing connections sorted by name.
func (c *Concept) OutConnections() []*Connection { return sortedConnections(c.out) }

func (c *Concept) String() string {
	var b strings.Builder
	b.WriteString(c.name)
	if c.activator != nil {
		fmt.Fprintf(&b, " [%s]", c.activator.Kind())
	}
	fmt.Fprintf(&b, " output=%s", c.output)
	if c.fixed {
		b.WriteString(" (fixed)")
	}
	return b.String()
}

func sortedConnections(set map[string]*Connection) []*Connection {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	slices.Sort(names)

	conns := make([]*Connection, len(names))
	for i, name := range names {
		conns[i] = set[name]
	}
	return conns
}
