package simulation

import "github.com/nvandessel/cogmap/internal/fcm"

// EpochEvent is delivered to observers after each epoch has been committed.
// Map is the live map; observers must not modify it.
type EpochEvent struct {
	Map   *fcm.Map
	Mode  Mode
	Epoch int
	Delta fcm.Value
}

// Observer is notified after every epoch.
type Observer interface {
	ObserveEpoch(ev EpochEvent)
}

// RunObserver is an Observer that also wants the final Result of each run.
type RunObserver interface {
	Observer
	ObserveRun(res *Result)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ev EpochEvent)

// ObserveEpoch calls f(ev).
func (f ObserverFunc) ObserveEpoch(ev EpochEvent) { f(ev) }
