package events

import (
	"sync"

	"stakepool/core/types"
)

// Event represents a structured state change emitted by an account.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. the gateway,
// metrics).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Rendered wraps an already rendered event so it can travel through an
// Emitter.
type Rendered struct {
	*types.Event
}

func (r Rendered) EventType() string {
	if r.Event == nil {
		return ""
	}
	return r.Type
}

// Recorder is an Emitter that keeps the most recent events in memory.
type Recorder struct {
	mu     sync.Mutex
	limit  int
	events []*types.Event
}

// NewRecorder keeps at most limit events; zero keeps everything.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

func (r *Recorder) Emit(ev Event) {
	if r == nil || ev == nil {
		return
	}
	var rendered *types.Event
	switch e := ev.(type) {
	case Rendered:
		rendered = e.Event
	case interface{ Event() *types.Event }:
		rendered = e.Event()
	}
	if rendered == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, rendered)
	if r.limit > 0 && len(r.events) > r.limit {
		r.events = append([]*types.Event(nil), r.events[len(r.events)-r.limit:]...)
	}
}

// Events returns a copy of the recorded events, oldest first.
func (r *Recorder) Events() []*types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*types.Event(nil), r.events...)
}
