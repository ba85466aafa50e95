package vehicle

import (
	"sync"

	"github.com/miruna26/aicore-data-collection/logger"
)

// Overwrite describes a text field being replaced while it already held a value
type Overwrite struct {
	VehicleID string
	Field     Field
	Old       string
	New       *string
}

// Observer receives vehicle diagnostics
type Observer interface {
	OnOverwrite(Overwrite)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(Overwrite)

// OnOverwrite calls f(o)
func (f ObserverFunc) OnOverwrite(o Overwrite) {
	f(o)
}

// LogObserver logs overwrites. A nil Logger falls back to logger.ForVehicle.
type LogObserver struct {
	Logger *logger.Logger
}

// OnOverwrite logs the old and new value
func (l LogObserver) OnOverwrite(o Overwrite) {
	log := l.Logger
	if log == nil {
		log = logger.ForVehicle(o.VehicleID)
	}

	event := log.Info().
		Str("field", string(o.Field)).
		Str("old", o.Old)
	if o.New != nil {
		event = event.Str("new", *o.New)
	} else {
		event = event.Interface("new", nil)
	}
	event.Msg("Overwriting vehicle data")
}

// Recorder collects overwrite events
type Recorder struct {
	mu     sync.Mutex
	events []Overwrite
}

// OnOverwrite records the event
func (r *Recorder) OnOverwrite(o Overwrite) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, o)
}

// Events returns the recorded events in arrival order
func (r *Recorder) Events() []Overwrite {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Overwrite(nil), r.events...)
}
