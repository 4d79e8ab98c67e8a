package eventloop

import (
	"sync"

	"github.com/cryguy/jsbridge/internal/core"
)

// Event is one item handed to the owning goroutine through the queue.
type Event struct {
	// ID identifies the event in logs.
	ID string
	// Mask selects the step categories that may service the event.
	Mask core.EventFlags
	// Run executes the event on the owning goroutine.
	Run func() error
	// Drop, if set, is called instead of Run when the loop closes with the
	// event still queued.
	Drop func(error)
}

// eventQueue is a mutex-guarded FIFO with a coalescing wake signal.
//
// Producers on any goroutine Enqueue; the owning goroutine is the only
// consumer. The size-1 signal channel lets the consumer wait with select
// alongside its context and timers.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
	closed bool
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends e and wakes the consumer. It returns false once the
// queue is closed.
func (q *eventQueue) Enqueue(e Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, e)
	q.wakeLocked()
	return true
}

// Wake signals the consumer without queueing anything.
func (q *eventQueue) Wake() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.wakeLocked()
	}
}

func (q *eventQueue) wakeLocked() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// TryDequeue removes and returns the oldest event whose mask intersects
// flags. Events that do not match keep their position.
func (q *eventQueue) TryDequeue(flags core.EventFlags) (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.events {
		if e.Mask&flags == 0 {
			continue
		}
		copy(q.events[i:], q.events[i+1:])
		q.events[len(q.events)-1] = Event{}
		q.events = q.events[:len(q.events)-1]
		return e, true
	}
	return Event{}, false
}

// Ready reports whether an event whose mask intersects flags is queued.
func (q *eventQueue) Ready(flags core.EventFlags) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.events {
		if e.Mask&flags != 0 {
			return true
		}
	}
	return false
}

// Len returns the number of queued events.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Wait returns the wake channel.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Close rejects further events and returns the ones still queued.
func (q *eventQueue) Close() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	q.closed = true
	close(q.signal)
	rest := q.events
	q.events = nil
	return rest
}
