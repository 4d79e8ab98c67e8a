package eventloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryguy/jsbridge/internal/core"
)

// recordingRuntime captures evaluated source instead of running it.
type recordingRuntime struct {
	mu    sync.Mutex
	evals []string
	fail  error
}

func (r *recordingRuntime) Eval(js string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evals = append(r.evals, js)
	return r.fail
}
func (r *recordingRuntime) EvalString(js string) (string, error) { return "", r.Eval(js) }
func (r *recordingRuntime) EvalBool(js string) (bool, error)     { return false, r.Eval(js) }
func (r *recordingRuntime) RegisterFunc(string, any) error       { return nil }
func (r *recordingRuntime) SetGlobal(string, any) error          { return nil }
func (r *recordingRuntime) RunMicrotasks()                       {}
func (r *recordingRuntime) Close()                               {}

func (r *recordingRuntime) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.evals)
}

func TestQueuedEventsRunInOrder(t *testing.T) {
	el := New()
	var got []string
	for _, id := range []string{"a", "b", "c"} {
		require.True(t, el.Enqueue(Event{
			ID:   id,
			Mask: core.WindowEvents | core.FileEvents,
			Run:  func() error { got = append(got, id); return nil },
		}))
	}

	rt := &recordingRuntime{}
	for range 3 {
		did, err := el.DoOneEvent(rt, core.AllEvents|core.DontWait)
		require.NoError(t, err)
		assert.True(t, did)
	}
	did, err := el.DoOneEvent(rt, core.AllEvents)
	require.NoError(t, err)
	assert.False(t, did)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestQueuedEventsRespectFlags(t *testing.T) {
	el := New()
	ran := ""
	el.Enqueue(Event{ID: "win", Mask: core.WindowEvents, Run: func() error { ran += "win"; return nil }})
	el.Enqueue(Event{ID: "call", Mask: core.WindowEvents | core.FileEvents, Run: func() error { ran += "call"; return nil }})

	rt := &recordingRuntime{}
	did, _ := el.DoOneEvent(rt, core.TimerEvents)
	assert.False(t, did, "timer-only step leaves queued events alone")

	did, _ = el.DoOneEvent(rt, core.FileEvents)
	assert.True(t, did)
	assert.Equal(t, "call", ran, "file step skips window events but services calls")

	did, _ = el.DoOneEvent(rt, core.WindowEvents)
	assert.True(t, did)
	assert.Equal(t, "callwin", ran)
}

func TestQueuedEventErrorIsReturned(t *testing.T) {
	el := New()
	boom := errors.New("boom")
	el.Enqueue(Event{Mask: core.WindowEvents, Run: func() error { return boom }})
	did, err := el.DoOneEvent(&recordingRuntime{}, core.AllEvents)
	assert.True(t, did)
	assert.ErrorIs(t, err, boom)
}

func TestTimersFireWhenDue(t *testing.T) {
	el := New()
	rt := &recordingRuntime{}

	late := el.RegisterTimer(time.Hour, false)
	early := el.RegisterTimer(0, false)

	did, err := el.DoOneEvent(rt, core.TimerEvents)
	require.NoError(t, err)
	assert.True(t, did)
	require.Equal(t, 1, rt.count())
	assert.Contains(t, rt.evals[0], "__timerCallbacks[")

	did, _ = el.DoOneEvent(rt, core.TimerEvents)
	assert.False(t, did, "the hour-long timer is not due")

	el.ClearTimer(late)
	_, ok := el.NextDeadline()
	assert.False(t, ok)
	assert.NotEqual(t, early, late)
}

func TestIntervalTimerReschedules(t *testing.T) {
	el := New()
	rt := &recordingRuntime{}
	id := el.RegisterTimer(0, true)

	did, _ := el.DoOneEvent(rt, core.TimerEvents)
	assert.True(t, did)

	deadline, ok := el.NextDeadline()
	require.True(t, ok, "interval timers stay registered")
	assert.WithinDuration(t, time.Now().Add(minInterval), deadline, 5*time.Millisecond)

	el.ClearTimer(id)
	assert.False(t, el.HasPending())
}

func TestTimerErrorIsReturned(t *testing.T) {
	el := New()
	rt := &recordingRuntime{fail: errors.New("ReferenceError: x is not defined")}
	el.RegisterTimer(0, false)
	did, err := el.DoOneEvent(rt, core.AllEvents)
	assert.True(t, did)
	assert.ErrorContains(t, err, "ReferenceError")
}

func TestIdleRunsOnlyWhenNothingElse(t *testing.T) {
	el := New()
	rt := &recordingRuntime{}
	el.RegisterIdle()
	el.RegisterTimer(0, false)

	el.DoOneEvent(rt, core.AllEvents)
	require.Equal(t, 1, rt.count())
	assert.Contains(t, rt.evals[0], "__timerCallbacks")

	el.DoOneEvent(rt, core.AllEvents)
	require.Equal(t, 2, rt.count())
	assert.Contains(t, rt.evals[1], "__idleCallbacks")

	id := el.RegisterIdle()
	el.ClearIdle(id)
	did, _ := el.DoOneEvent(rt, core.IdleEvents)
	assert.False(t, did)
}

func TestWaitWakesOnEnqueue(t *testing.T) {
	el := New()
	go func() {
		time.Sleep(10 * time.Millisecond)
		el.Enqueue(Event{Mask: core.WindowEvents, Run: func() error { return nil }})
	}()

	start := time.Now()
	require.NoError(t, el.Wait(context.Background(), core.AllEvents, 0))
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitHonoursTimersAndCap(t *testing.T) {
	el := New()
	el.RegisterTimer(20*time.Millisecond, false)
	start := time.Now()
	require.NoError(t, el.Wait(context.Background(), core.AllEvents, time.Second))
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	el2 := New()
	start = time.Now()
	require.NoError(t, el2.Wait(context.Background(), core.AllEvents, 15*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestWaitIgnoresUnselectedCategories(t *testing.T) {
	el := New()
	require.True(t, el.Enqueue(Event{Mask: core.WindowEvents, Run: func() error { return nil }}))
	el.RegisterIdle()
	<-el.queue.Wait()

	start := time.Now()
	require.NoError(t, el.Wait(context.Background(), core.TimerEvents, 30*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	start = time.Now()
	require.NoError(t, el.Wait(context.Background(), core.WindowEvents, time.Second))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestWaitReturnsContextError(t *testing.T) {
	el := New()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, el.Wait(ctx, core.AllEvents, 0), context.DeadlineExceeded)
}

func TestCloseDropsQueuedEvents(t *testing.T) {
	el := New()
	closed := errors.New("closed")
	var dropped error
	el.Enqueue(Event{Mask: core.WindowEvents, Run: func() error { return nil }, Drop: func(err error) { dropped = err }})
	el.RegisterTimer(time.Hour, false)

	el.Close(closed)
	assert.ErrorIs(t, dropped, closed)
	assert.False(t, el.HasPending())
	assert.False(t, el.Enqueue(Event{Mask: core.WindowEvents}))
}
