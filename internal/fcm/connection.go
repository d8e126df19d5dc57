package fcm

import (
	"fmt"
)

// DefaultWeight is the weight of a connection created without one.
const DefaultWeight = 1.0

// Connection is a directed, weighted edge between two concepts. A connection
// with a positive delay holds its transfers in a FIFO and releases each one
// delay epochs later.
type Connection struct {
	name        string
	description string
	weight      float64
	delay       int

	from *Concept
	to   *Concept

	output Value
	buffer []Value
}

// NewConnection creates an unwired connection.
func NewConnection(name string, weight float64) *Connection {
	return &Connection{name: name, weight: weight}
}

// Name returns the connection's name.
func (c *Connection) Name() string { return c.name }

// Description returns the free-form description.
func (c *Connection) Description() string { return c.description }

// SetDescription sets the free-form description.
func (c *Connection) SetDescription(d string) { c.description = d }

// Weight returns the multiplier applied to the source output.
func (c *Connection) Weight() float64 { return c.weight }

// SetWeight sets the multiplier applied to the source output.
func (c *Connection) SetWeight(w float64) { c.weight = w }

// Delay returns the number of epochs a transfer is held back.
func (c *Connection) Delay() int { return c.delay }

// SetDelay sets the delay and discards any values in flight.
func (c *Connection) SetDelay(d int) error {
	if d < 0 {
		return fmt.Errorf("connection %q: %w: %d", c.name, ErrInvalidDelay, d)
	}
	c.delay = d
	c.buffer = nil
	return nil
}

// From returns the source concept, or nil when unset.
func (c *Connection) From() *Concept { return c.from }

// To returns the target concept, or nil when unset.
func (c *Connection) To() *Concept { return c.to }

// Output returns the result of the last CalculateOutput call.
func (c *Connection) Output() Value { return c.output }

// Pending returns the number of values held in the delay line.
func (c *Connection) Pending() int { return len(c.buffer) }

// CalculateOutput computes the transfer of the source's current output and
// advances the delay line. The result is undefined when the source or its
// output is undefined, or while the delay line is filling.
func (c *Connection) CalculateOutput() Value {
	out := Undefined
	if c.from != nil {
		if f, ok := c.from.output.Float(); ok {
			out = Of(f * c.weight)
		}
	}

	if c.delay > 0 {
		c.buffer = append(c.buffer, out)
		if len(c.buffer) > c.delay {
			out = c.buffer[0]
			copy(c.buffer, c.buffer[1:])
			c.buffer = c.buffer[:len(c.buffer)-1]
		} else {
			out = Undefined
		}
	}

	c.output = out
	return out
}

func (c *Connection) String() string {
	from, to := "<unset>", "<unset>"
	if c.from != nil {
		from = c.from.name
	}
	if c.to != nil {
		to = c.to.name
	}
	s := fmt.Sprintf("%s: %s -> %s (weight %g", c.name, from, to, c.weight)
	if c.delay > 0 {
		s += fmt.Sprintf(", delay %d", c.delay)
	}
	return s + ")"
}
