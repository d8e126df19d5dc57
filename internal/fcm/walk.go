package fcm

import "github.com/nvandessel/cogmap/internal/activation"

// Visitor receives a push-style traversal of a map. Each method returns
// false to stop.
type Visitor interface {
	VisitMap(m *Map) bool
	// VisitConcept returning false skips the concept's activator but
	// continues with the next concept.
	VisitConcept(c *Concept) bool
	VisitActivator(c *Concept, a activation.Activator) bool
	VisitConnection(c *Connection) bool
}

// BaseVisitor implements Visitor by continuing everywhere. Embed it to
// override only the methods of interest.
type BaseVisitor struct{}

func (BaseVisitor) VisitMap(*Map) bool                                 { return true }
func (BaseVisitor) VisitConcept(*Concept) bool                         { return true }
func (BaseVisitor) VisitActivator(*Concept, activation.Activator) bool { return true }
func (BaseVisitor) VisitConnection(*Connection) bool                   { return true }

// Walk visits the map, then each concept in name order followed by its
// activator (when set), then each connection in name order. It reports
// whether the traversal ran to completion.
func (m *Map) Walk(v Visitor) bool {
	if !v.VisitMap(m) {
		return false
	}
	for c := range m.Concepts() {
		if !v.VisitConcept(c) {
			continue
		}
		if c.activator != nil && !v.VisitActivator(c, c.activator) {
			return false
		}
	}
	for conn := range m.Connections() {
		if !v.VisitConnection(conn) {
			return false
		}
	}
	return true
}
