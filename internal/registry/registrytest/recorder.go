// Package registrytest provides an in-memory connection handle that records
// every event sent to it.
package registrytest

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/omis-2025/strangerwave-sub000/internal/events"
)

var recorderSeq atomic.Uint64

type Recorder struct {
	id string

	mu     sync.Mutex
	events []events.Event
	closed bool
}

func NewRecorder() *Recorder {
	return &Recorder{id: fmt.Sprintf("rec-%d", recorderSeq.Add(1))}
}

func (r *Recorder) ID() string { return r.id }

func (r *Recorder) Send(e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("handle %s closed", r.id)
	}
	r.events = append(r.events, e)
	return nil
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Events returns a copy of everything received so far.
func (r *Recorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the type of every received event in order.
func (r *Recorder) Types() []string {
	evs := r.Events()
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.EventType()
	}
	return out
}

// Last returns the most recent event of the given type.
func (r *Recorder) Last(eventType string) (events.Event, bool) {
	evs := r.Events()
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i].EventType() == eventType {
			return evs[i], true
		}
	}
	return nil, false
}

// Count returns how many events of the given type were received.
func (r *Recorder) Count(eventType string) int {
	n := 0
	for _, e := range r.Events() {
		if e.EventType() == eventType {
			n++
		}
	}
	return n
}
