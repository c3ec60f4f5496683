// Package memory records scan events in memory for tests and local runs.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/pipelinewatch/internal/notify"
)

// Recorder stores every event it is given.
type Recorder struct {
	mu     sync.RWMutex
	events []notify.Event
	err    error
}

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{}
}

// FailWith makes subsequent Notify calls return err without recording.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Notify implements notify.Notifier.
func (r *Recorder) Notify(_ context.Context, event notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded events in arrival order.
func (r *Recorder) Events() []notify.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]notify.Event, len(r.events))
	copy(out, r.events)
	return out
}
