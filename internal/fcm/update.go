package fcm

import "math"

// Execute runs one epoch: Stage followed by Commit.
func (m *Map) Execute() {
	m.Stage()
	m.Commit()
}

// Stage computes the next output of every concept from the committed
// outputs. It does not change any output; call Commit to publish.
func (m *Map) Stage() {
	for c := range m.Concepts() {
		c.stage()
	}
}

// Commit publishes the staged next output of every concept.
func (m *Map) Commit() {
	for _, c := range m.concepts {
		c.output = c.nextOutput
	}
}

// AverageSquareDelta returns the mean of (output - prevOutput)^2 over the
// concepts where both are defined, or Undefined when there are none. The
// result is remembered and available from LastDelta.
func (m *Map) AverageSquareDelta() Value {
	var sum float64
	count := 0
	for _, c := range m.concepts {
		out, ok := c.output.Float()
		if !ok {
			continue
		}
		prev, ok := c.prevOutput.Float()
		if !ok {
			continue
		}
		d := out - prev
		sum += d * d
		count++
	}

	if count == 0 {
		m.lastDelta = Undefined
	} else {
		m.lastDelta = Of(sum / float64(count))
	}
	return m.lastDelta
}

// LastDelta returns the result of the last AverageSquareDelta call.
func (m *Map) LastDelta() Value { return m.lastDelta }

// stage computes nextOutput, reading only committed outputs.
func (c *Concept) stage() {
	c.prevOutput = c.output

	if c.activator == nil || c.fixed {
		c.nextOutput = c.output
		return
	}
	if len(c.in) == 0 {
		c.nextOutput = Undefined
		return
	}

	var sum float64
	count := 0
	for _, conn := range c.InConnections() {
		// An infinite source ends the epoch for this concept: connections
		// after it are not evaluated and their delay lines stay put.
		if conn.from != nil && conn.from.output.IsInf() {
			c.nextOutput = Of(math.NaN())
			return
		}
		transfer := conn.CalculateOutput()

		if conn.from == nil {
			continue
		}
		src := conn.from.output
		if !src.Defined() || src.IsNaN() {
			continue
		}
		if v, ok := transfer.Float(); ok {
			sum += v
			count++
		}
	}

	if count == 0 {
		c.input = Undefined
		c.nextOutput = Undefined
		return
	}

	c.input = Of(sum)
	if math.IsNaN(sum) {
		c.nextOutput = Of(math.NaN())
		return
	}
	prev, hasPrev := c.output.Float()
	c.nextOutput = Of(c.activator.Activate(sum, prev, hasPrev))
}
