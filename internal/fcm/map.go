// Package fcm implements fuzzy cognitive maps: named concepts joined by
// weighted, optionally delayed connections, updated in synchronous epochs.
//
// A Map owns its concepts and connections. Concepts and connections keep
// pointers to each other for traversal, but they are only created, wired and
// removed through the Map. Iteration is always in name order.
//
// An epoch is split in two phases. Stage computes every concept's next
// output from the committed outputs of the previous epoch; Commit then
// publishes all of them at once. No output changes between the two, so the
// result does not depend on evaluation order, even around feedback cycles.
//
// A Map is not safe for concurrent use.
package fcm

import (
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"
)

// Map is a fuzzy cognitive map.
type Map struct {
	name        string
	description string

	concepts    map[string]*Concept
	connections map[string]*Connection

	lastDelta Value
}

// New creates an empty map.
func New(name string) *Map {
	return &Map{
		name:        name,
		concepts:    make(map[string]*Concept),
		connections: make(map[string]*Connection),
	}
}

// Name returns the map's name.
func (m *Map) Name() string { return m.name }

// Description returns the free-form description.
func (m *Map) Description() string { return m.description }

// SetDescription sets the free-form description.
func (m *Map) SetDescription(d string) { m.description = d }

// AddConcept adds c to the map.
func (m *Map) AddConcept(c *Concept) error {
	if c == nil || isBlank(c.name) {
		return fmt.Errorf("add concept: %w", ErrEmptyName)
	}
	if _, exists := m.concepts[c.name]; exists {
		return fmt.Errorf("add concept %q: %w", c.name, ErrDuplicateName)
	}
	m.concepts[c.name] = c
	return nil
}

// AddConnection adds c to the map, unwired.
func (m *Map) AddConnection(c *Connection) error {
	if c == nil || isBlank(c.name) {
		return fmt.Errorf("add connection: %w", ErrEmptyName)
	}
	if _, exists := m.connections[c.name]; exists {
		return fmt.Errorf("add connection %q: %w", c.name, ErrDuplicateName)
	}
	m.connections[c.name] = c
	return nil
}

// Connect wires an existing connection from one existing concept to
// another. A connection that was already wired is detached from its old
// endpoints first.
func (m *Map) Connect(fromName, connName, toName string) error {
	from, err := m.lookupConcept(fromName)
	if err != nil {
		return fmt.Errorf("connect source: %w", err)
	}
	conn, err := m.lookupConnection(connName)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	to, err := m.lookupConcept(toName)
	if err != nil {
		return fmt.Errorf("connect target: %w", err)
	}

	if conn.from != nil {
		delete(conn.from.out, conn.name)
	}
	if conn.to != nil {
		delete(conn.to.in, conn.name)
	}

	conn.from = from
	conn.to = to
	from.out[conn.name] = conn
	to.in[conn.name] = conn
	return nil
}

// RemoveConcept removes a concept and unsets it as the endpoint of its own
// connections. The connections stay in the map, half-linked. Blank and
// unknown names are ignored. The removed concept is returned, or nil.
func (m *Map) RemoveConcept(name string) *Concept {
	c, ok := m.concepts[name]
	if !ok {
		return nil
	}
	delete(m.concepts, name)

	for _, conn := range c.out {
		conn.from = nil
	}
	for _, conn := range c.in {
		conn.to = nil
	}
	clear(c.out)
	clear(c.in)
	return c
}

// RemoveConnection removes a connection and detaches it from its endpoints.
// Blank and unknown names are ignored. The removed connection is returned,
// or nil.
func (m *Map) RemoveConnection(name string) *Connection {
	conn, ok := m.connections[name]
	if !ok {
		return nil
	}
	delete(m.connections, name)

	if conn.from != nil {
		delete(conn.from.out, conn.name)
		conn.from = nil
	}
	if conn.to != nil {
		delete(conn.to.in, conn.name)
		conn.to = nil
	}
	return conn
}

// Concept returns the named concept, or nil.
func (m *Map) Concept(name string) *Concept { return m.concepts[name] }

// Connection returns the named connection, or nil.
func (m *Map) Connection(name string) *Connection { return m.connections[name] }

// ConceptCount returns the number of concepts.
func (m *Map) ConceptCount() int { return len(m.concepts) }

// ConnectionCount returns the number of connections.
func (m *Map) ConnectionCount() int { return len(m.connections) }

// ConceptNames returns the concept names in iteration order.
func (m *Map) ConceptNames() []string {
	return slices.Sorted(maps.Keys(m.concepts))
}

// Concepts iterates over the concepts in name order.
func (m *Map) Concepts() iter.Seq[*Concept] {
	return func(yield func(*Concept) bool) {
		for _, name := range slices.Sorted(maps.Keys(m.concepts)) {
			if !yield(m.concepts[name]) {
				return
			}
		}
	}
}

// Connections iterates over the connections in name order.
func (m *Map) Connections() iter.Seq[*Connection] {
	return func(yield func(*Connection) bool) {
		for _, name := range slices.Sorted(maps.Keys(m.connections)) {
			if !yield(m.connections[name]) {
				return
			}
		}
	}
}

// SetOutput sets the output of the named concept.
func (m *Map) SetOutput(name string, v Value) error {
	c, err := m.lookupConcept(name)
	if err != nil {
		return fmt.Errorf("set output: %w", err)
	}
	c.output = v
	return nil
}

// SetFixedOutput sets the output of the named concept and pins it.
func (m *Map) SetFixedOutput(name string, v Value) error {
	c, err := m.lookupConcept(name)
	if err != nil {
		return fmt.Errorf("set fixed output: %w", err)
	}
	c.output = v
	c.fixed = true
	return nil
}

// SetOutputs sets several outputs in name order, pinning them when fixed
// is true. Every name is checked before any output changes.
func (m *Map) SetOutputs(values map[string]float64, fixed bool) error {
	names := slices.Sorted(maps.Keys(values))
	for _, name := range names {
		if _, err := m.lookupConcept(name); err != nil {
			return fmt.Errorf("set outputs: %w", err)
		}
	}
	for _, name := range names {
		c := m.concepts[name]
		c.output = Of(values[name])
		if fixed {
			c.fixed = true
		}
	}
	return nil
}

// Reset clears the output of every non-fixed concept and the previous
// output of every concept.
func (m *Map) Reset() {
	for _, c := range m.concepts {
		if !c.fixed {
			c.output = Undefined
		}
		c.prevOutput = Undefined
	}
	m.lastDelta = Undefined
}

// Copy returns an independent copy of the map with the same wiring. Delay
// lines start empty. Activators are shared.
func (m *Map) Copy() *Map {
	cp := New(m.name)
	cp.description = m.description
	cp.lastDelta = m.lastDelta

	for name, c := range m.concepts {
		nc := NewConcept(name, c.activator)
		nc.description = c.description
		nc.input = c.input
		nc.output = c.output
		nc.prevOutput = c.prevOutput
		nc.nextOutput = c.nextOutput
		nc.fixed = c.fixed
		cp.concepts[name] = nc
	}

	for name, conn := range m.connections {
		nc := NewConnection(name, conn.weight)
		nc.description = conn.description
		nc.delay = conn.delay
		nc.output = conn.output
		cp.connections[name] = nc

		if conn.from != nil {
			if from, ok := cp.concepts[conn.from.name]; ok {
				nc.from = from
				from.out[name] = nc
			}
		}
		if conn.to != nil {
			if to, ok := cp.concepts[conn.to.name]; ok {
				nc.to = to
				to.in[name] = nc
			}
		}
	}
	return cp
}

func (m *Map) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "map %q: %d concepts, %d connections", m.name, len(m.concepts), len(m.connections))
	for c := range m.Concepts() {
		fmt.Fprintf(&b, "\n  %s", c)
	}
	for conn := range m.Connections() {
		fmt.Fprintf(&b, "\n  %s", conn)
	}
	return b.String()
}

func (m *Map) lookupConcept(name string) (*Concept, error) {
	if isBlank(name) {
		return nil, fmt.Errorf("blank concept name: %w", ErrNotFound)
	}
	c, ok := m.concepts[name]
	if !ok {
		return nil, fmt.Errorf("concept %q: %w", name, ErrNotFound)
	}
	return c, nil
}

func (m *Map) lookupConnection(name string) (*Connection, error) {
	if isBlank(name) {
		return nil, fmt.Errorf("blank connection name: %w", ErrNotFound)
	}
	conn, ok := m.connections[name]
	if !ok {
		return nil, fmt.Errorf("connection %q: %w", name, ErrNotFound)
	}
	return conn, nil
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }
