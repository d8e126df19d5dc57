// Package visualization renders cognitive maps as Graphviz DOT or JSON.
package visualization

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nvandessel/cogmap/internal/activation"
	"github.com/nvandessel/cogmap/internal/fcm"
)

// Format specifies the output format for graph rendering.
type Format string

const (
	FormatDOT  Format = "dot"
	FormatJSON Format = "json"
)

// ParseFormat accepts "dot" or "json".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatDOT, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown graph format %q (want dot or json)", s)
	}
}

// nodeColors maps activator kinds to DOT colors.
var nodeColors = map[activation.Kind]string{
	activation.KindSigmoid:  "steelblue",
	activation.KindTanh:     "lightskyblue",
	activation.KindSignum:   "tomato",
	activation.KindInterval: "orange",
	activation.KindGaussian: "mediumseagreen",
	activation.KindCauchy:   "darkseagreen",
	activation.KindLinear:   "goldenrod",
	activation.KindNary:     "plum",
}

// RenderDOT produces a Graphviz DOT representation of the map. Fixed
// concepts get a double border; inhibiting (negative) connections are
// dashed. Connections missing an endpoint are left out.
func RenderDOT(m *fcm.Map) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", m.Name())
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=ellipse, style=filled, fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\", fontsize=10];\n\n")

	for c := range m.Concepts() {
		kind := "none"
		color := "lightgray"
		if a := c.Activator(); a != nil {
			kind = string(a.Kind())
			if col, ok := nodeColors[a.Kind()]; ok {
				color = col
			}
		}
		label := truncate(c.Name(), 40) + "\n" + c.Output().String()
		attrs := fmt.Sprintf("label=%q, fillcolor=%q, tooltip=%q", label, color, kind)
		if c.Fixed() {
			attrs += ", peripheries=2"
		}
		fmt.Fprintf(&b, "  %q [%s];\n", c.Name(), attrs)
	}
	b.WriteString("\n")

	for conn := range m.Connections() {
		if conn.From() == nil || conn.To() == nil {
			continue
		}
		label := strconv.FormatFloat(conn.Weight(), 'g', -1, 64)
		if conn.Delay() > 0 {
			label += fmt.Sprintf(" (delay %d)", conn.Delay())
		}
		style := "solid"
		if conn.Weight() < 0 {
			style = "dashed"
		}
		fmt.Fprintf(&b, "  %q -> %q [label=%q, style=%s, tooltip=%q];\n",
			conn.From().Name(), conn.To().Name(), label, style, conn.Name())
	}

	b.WriteString("}\n")
	return b.String()
}

// Graph is the JSON rendering of a map.
type Graph struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Nodes       []Node `json:"nodes"`
	Edges       []Edge `json:"edges"`
	NodeCount   int    `json:"node_count"`
	EdgeCount   int    `json:"edge_count"`
}

// Node is one concept. Output is the value's text form ("undefined",
// "NaN", "+Inf" or a number).
type Node struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
	Activator   string `json:"activator,omitempty"`
	Output      string `json:"output"`
	Fixed       bool   `json:"fixed"`
}

// Edge is one connection. Source or Target is empty for a connection that
// lost an endpoint.
type Edge struct {
	ID     string  `json:"id"`
	Source string  `json:"source,omitempty"`
	Target string  `json:"target,omitempty"`
	Weight float64 `json:"weight"`
	Delay  int     `json:"delay,omitempty"`
}

// RenderJSON produces the node and edge lists of the map.
func RenderJSON(m *fcm.Map) *Graph {
	g := &Graph{
		Name:        m.Name(),
		Description: m.Description(),
		Nodes:       make([]Node, 0, m.ConceptCount()),
		Edges:       make([]Edge, 0, m.ConnectionCount()),
	}
	for c := range m.Concepts() {
		n := Node{
			ID:          c.Name(),
			Description: c.Description(),
			Output:      c.Output().String(),
			Fixed:       c.Fixed(),
		}
		if a := c.Activator(); a != nil {
			n.Activator = string(a.Kind())
		}
		g.Nodes = append(g.Nodes, n)
	}
	for conn := range m.Connections() {
		e := Edge{ID: conn.Name(), Weight: conn.Weight(), Delay: conn.Delay()}
		if conn.From() != nil {
			e.Source = conn.From().Name()
		}
		if conn.To() != nil {
			e.Target = conn.To().Name()
		}
		g.Edges = append(g.Edges, e)
	}
	g.NodeCount = len(g.Nodes)
	g.EdgeCount = len(g.Edges)
	return g
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
