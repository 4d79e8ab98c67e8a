// Package eventloop drives timers, idle callbacks, file readiness and
// queued events for one engine on its owning goroutine.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cryguy/jsbridge/internal/core"
)

// minInterval is the smallest repeat period of an interval timer.
const minInterval = 10 * time.Millisecond

// filePollInterval caps a wait while file handlers are registered, since
// descriptor readiness cannot wake the loop by itself.
const filePollInterval = 10 * time.Millisecond

// timerEntry represents a pending setTimeout or setInterval callback.
// The actual callback is stored in globalThis.__timerCallbacks[id] on the
// JS side. Go only tracks scheduling metadata.
type timerEntry struct {
	deadline time.Time
	interval time.Duration // 0 for setTimeout, >0 for setInterval
	id       int
	seq      uint64 // registration order, breaks deadline ties
}

// FileHandler is called with the subset of its mask that became ready.
type FileHandler func(ready core.FileMask) error

type fileEntry struct {
	fd   int
	mask core.FileMask
	fn   FileHandler
}

// EventLoop holds everything the owning goroutine may service in one step.
// Enqueue and Wake are safe from any goroutine; every other method must be
// called by the owner.
type EventLoop struct {
	mu     sync.Mutex
	timers map[int]*timerEntry
	nextID int
	seq    uint64

	idle     []int
	idleNext int

	files    []*fileEntry
	fileNext int

	queue *eventQueue
}

// New creates an empty EventLoop.
func New() *EventLoop {
	return &EventLoop{
		timers: make(map[int]*timerEntry),
		queue:  newEventQueue(),
	}
}

// RegisterTimer creates a timer entry and returns its ID.
// The actual JS callback is stored in globalThis.__timerCallbacks[id].
func (el *EventLoop) RegisterTimer(delay time.Duration, isInterval bool) int {
	el.mu.Lock()
	defer el.mu.Unlock()
	if delay < 0 {
		delay = 0
	}
	el.nextID++
	el.seq++
	entry := &timerEntry{
		deadline: time.Now().Add(delay),
		id:       el.nextID,
		seq:      el.seq,
	}
	if isInterval {
		entry.interval = max(delay, minInterval)
	}
	el.timers[entry.id] = entry
	return entry.id
}

// ClearTimer cancels a timer by ID.
func (el *EventLoop) ClearTimer(id int) {
	el.mu.Lock()
	defer el.mu.Unlock()
	delete(el.timers, id)
}

// RegisterIdle queues an idle callback and returns its ID. The callback
// itself lives in globalThis.__idleCallbacks[id].
func (el *EventLoop) RegisterIdle() int {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.idleNext++
	el.idle = append(el.idle, el.idleNext)
	return el.idleNext
}

// ClearIdle cancels an idle callback.
func (el *EventLoop) ClearIdle(id int) {
	el.mu.Lock()
	defer el.mu.Unlock()
	for i, v := range el.idle {
		if v == id {
			el.idle = append(el.idle[:i], el.idle[i+1:]...)
			return
		}
	}
}

// SetFileHandler installs or replaces the handler for fd.
func (el *EventLoop) SetFileHandler(fd int, mask core.FileMask, fn FileHandler) error {
	if fd < 0 {
		return fmt.Errorf("invalid file descriptor %d", fd)
	}
	if !pollSupported {
		return errors.New("file handlers are not supported on this platform")
	}
	el.mu.Lock()
	defer el.mu.Unlock()
	for _, f := range el.files {
		if f.fd == fd {
			f.mask, f.fn = mask, fn
			return nil
		}
	}
	el.files = append(el.files, &fileEntry{fd: fd, mask: mask, fn: fn})
	return nil
}

// DeleteFileHandler removes the handler for fd and reports whether one existed.
func (el *EventLoop) DeleteFileHandler(fd int) bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	for i, f := range el.files {
		if f.fd == fd {
			el.files = append(el.files[:i], el.files[i+1:]...)
			return true
		}
	}
	return false
}

// Enqueue hands e to the owning goroutine. It reports false after Close.
func (el *EventLoop) Enqueue(e Event) bool {
	return el.queue.Enqueue(e)
}

// Wake interrupts a Wait in progress, or makes the next one return at once.
func (el *EventLoop) Wake() {
	el.queue.Wake()
}

// DoOneEvent services at most one item selected by flags, in this order:
// a queued event, a ready file handler, the earliest due timer, and, only
// when nothing else ran, one idle callback. It never blocks. The returned
// error is whatever the serviced item raised.
func (el *EventLoop) DoOneEvent(rt core.JSRuntime, flags core.EventFlags) (bool, error) {
	flags = flags.Normalize()

	if flags&(core.WindowEvents|core.FileEvents) != 0 {
		if e, ok := el.queue.TryDequeue(flags); ok {
			return true, e.Run()
		}
	}
	if flags.Has(core.FileEvents) {
		if ok, err := el.serviceFiles(); ok {
			return true, err
		}
	}
	if flags.Has(core.TimerEvents) {
		if id, ok := el.takeDueTimer(time.Now()); ok {
			return true, el.fireTimer(rt, id)
		}
	}
	if flags.Has(core.IdleEvents) {
		if id, ok := el.takeIdle(); ok {
			return true, el.fireIdle(rt, id)
		}
	}
	return false, nil
}

// takeDueTimer picks the earliest timer whose deadline has passed. An
// interval timer is rescheduled, a one-shot timer is removed.
func (el *EventLoop) takeDueTimer(now time.Time) (int, bool) {
	el.mu.Lock()
	defer el.mu.Unlock()

	var next *timerEntry
	for _, t := range el.timers {
		if t.deadline.After(now) {
			continue
		}
		if next == nil || t.deadline.Before(next.deadline) ||
			(t.deadline.Equal(next.deadline) && t.seq < next.seq) {
			next = t
		}
	}
	if next == nil {
		return 0, false
	}
	if next.interval > 0 {
		next.deadline = now.Add(next.interval)
	} else {
		delete(el.timers, next.id)
	}
	return next.id, true
}

func (el *EventLoop) takeIdle() (int, bool) {
	el.mu.Lock()
	defer el.mu.Unlock()
	if len(el.idle) == 0 {
		return 0, false
	}
	id := el.idle[0]
	el.idle = el.idle[1:]
	return id, true
}

// fireTimer fires a timer callback by invoking the JS-side callback map.
func (el *EventLoop) fireTimer(rt core.JSRuntime, id int) error {
	js := fmt.Sprintf(`(function() {
		var entry = globalThis.__timerCallbacks[%d];
		if (!entry) return;
		if (!entry.interval) delete globalThis.__timerCallbacks[%d];
		entry.fn.apply(null, entry.args || []);
	})()`, id, id)
	if err := rt.Eval(js); err != nil {
		return fmt.Errorf("timer %d: %w", id, err)
	}
	return nil
}

func (el *EventLoop) fireIdle(rt core.JSRuntime, id int) error {
	js := fmt.Sprintf(`(function() {
		var fn = globalThis.__idleCallbacks[%d];
		if (!fn) return;
		delete globalThis.__idleCallbacks[%d];
		var start = Date.now();
		fn({ didTimeout: false, timeRemaining: function() { return Math.max(0, 50 - (Date.now() - start)); } });
	})()`, id, id)
	if err := rt.Eval(js); err != nil {
		return fmt.Errorf("idle callback %d: %w", id, err)
	}
	return nil
}

// serviceFiles polls every registered descriptor without blocking and
// runs the first ready handler, starting after the one that ran last.
func (el *EventLoop) serviceFiles() (bool, error) {
	el.mu.Lock()
	if len(el.files) == 0 {
		el.mu.Unlock()
		return false, nil
	}
	start := el.fileNext % len(el.files)
	files := append(append([]*fileEntry(nil), el.files[start:]...), el.files[:start]...)
	el.mu.Unlock()

	fds := make([]int, len(files))
	masks := make([]core.FileMask, len(files))
	for i, f := range files {
		fds[i], masks[i] = f.fd, f.mask
	}
	ready, err := pollReady(fds, masks)
	if err != nil {
		return true, fmt.Errorf("polling file handlers: %w", err)
	}
	for i, got := range ready {
		if got == 0 {
			continue
		}
		el.mu.Lock()
		el.fileNext = start + i + 1
		el.mu.Unlock()
		if herr := files[i].fn(got); herr != nil {
			return true, fmt.Errorf("file handler %d: %w", files[i].fd, herr)
		}
		return true, nil
	}
	return false, nil
}

// NextDeadline returns the earliest timer deadline.
func (el *EventLoop) NextDeadline() (time.Time, bool) {
	el.mu.Lock()
	defer el.mu.Unlock()
	var next time.Time
	found := false
	for _, t := range el.timers {
		if !found || t.deadline.Before(next) {
			next, found = t.deadline, true
		}
	}
	return next, found
}

// Wait blocks until the loop is woken, the next timer is due, maxWait
// elapses or ctx ends, whichever comes first. Only the categories in flags
// count: Wait returns at once when a queued event or idle callback they
// select is pending, and timers and file handlers shorten the wait only
// when their category is selected. A zero maxWait waits without a cap.
func (el *EventLoop) Wait(ctx context.Context, flags core.EventFlags, maxWait time.Duration) error {
	flags = flags.Normalize()

	el.mu.Lock()
	busy := flags.Has(core.IdleEvents) && len(el.idle) > 0
	hasFiles := flags.Has(core.FileEvents) && len(el.files) > 0
	el.mu.Unlock()
	if busy || el.queue.Ready(flags&(core.WindowEvents|core.FileEvents)) {
		return ctx.Err()
	}

	wait := maxWait
	if hasFiles && (wait == 0 || wait > filePollInterval) {
		wait = filePollInterval
	}
	if deadline, ok := el.NextDeadline(); ok && flags.Has(core.TimerEvents) {
		until := time.Until(deadline)
		if until <= 0 {
			return ctx.Err()
		}
		if wait == 0 || until < wait {
			wait = until
		}
	}

	var timeout <-chan time.Time
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-el.queue.Wait():
	case <-timeout:
	}
	return nil
}

// HasPending reports whether any timer, idle callback or queued event is
// outstanding.
func (el *EventLoop) HasPending() bool {
	el.mu.Lock()
	n := len(el.timers) + len(el.idle)
	el.mu.Unlock()
	return n > 0 || el.queue.Len() > 0
}

// Close rejects further events and drops every queued one with err, and
// clears timers, idle callbacks and file handlers.
func (el *EventLoop) Close(err error) {
	for _, e := range el.queue.Close() {
		if e.Drop != nil {
			e.Drop(err)
		}
	}
	el.mu.Lock()
	defer el.mu.Unlock()
	el.timers = make(map[int]*timerEntry)
	el.idle = nil
	el.files = nil
}
