package jsbridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestRunUntilQuitFromScript(t *testing.T) {
	in := newTestInterp(t)
	require.NoError(t, in.RegisterCommand("quit", in.Quit))

	_, err := in.Eval("var fired = 0; setTimeout(() => { fired++; quit() }, 10)", ModeGlobal)
	require.NoError(t, err)
	require.NoError(t, in.RunUntilQuit(runCtx(t)))
	assert.False(t, in.Running())

	got, err := in.GetVar("fired")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestQuitFromOtherGoroutine(t *testing.T) {
	in := newTestInterp(t)

	go func() {
		for !in.Running() {
			time.Sleep(time.Millisecond)
		}
		in.Quit()
	}()
	require.NoError(t, in.RunUntilQuit(runCtx(t)))
}

func TestRunUntilQuitContextCancel(t *testing.T) {
	in := newTestInterp(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := in.RunUntilQuit(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, in.Running())
}

func TestRunUntilQuitServicesQueuedCalls(t *testing.T) {
	in := newTestInterp(t)
	require.NoError(t, in.RegisterCommand("quit", in.Quit))

	go func() {
		for !in.Running() {
			time.Sleep(time.Millisecond)
		}
		_, _ = in.Eval("var fromAfar = 'yes'", ModeGlobal)
		_, _ = in.Call("quit")
	}()
	require.NoError(t, in.RunUntilQuit(runCtx(t)))

	got, err := in.GetVar("fromAfar")
	require.NoError(t, err)
	assert.Equal(t, "yes", got)
}

func TestIntervalTimer(t *testing.T) {
	in := newTestInterp(t)
	require.NoError(t, in.RegisterCommand("quit", in.Quit))

	_, err := in.Eval(`var ticks = 0;
var h = setInterval(() => { if (++ticks === 3) { clearInterval(h); quit() } }, 1)`, ModeGlobal)
	require.NoError(t, err)
	require.NoError(t, in.RunUntilQuit(runCtx(t)))

	got, err := in.GetVar("ticks")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got)
}

func TestBackgroundErrorWithoutHandler(t *testing.T) {
	in := newTestInterp(t)

	_, err := in.Eval("setTimeout(() => { throw new Error('boom') }, 0)", ModeDirect)
	require.NoError(t, err)

	err = in.RunUntilQuit(runCtx(t))
	require.Error(t, err)
	assert.True(t, IsKind(err, KindFatalBackground))
	assert.Contains(t, err.Error(), "boom")

	got, err := in.Eval("'still usable'", ModeDirect)
	require.NoError(t, err)
	assert.Equal(t, "still usable", got)
}

func TestBackgroundErrorHandler(t *testing.T) {
	var infos []string
	in := newTestInterp(t, WithBackgroundErrorHandler(func(info string) error {
		infos = append(infos, info)
		return nil
	}))

	_, err := in.Eval("setTimeout(() => { throw new Error('handled') }, 0)", ModeDirect)
	require.NoError(t, err)
	require.NoError(t, in.RunUntilQuit(runCtx(t)))
	require.Len(t, infos, 1)
	assert.Contains(t, infos[0], "handled")
}

func TestBackgroundErrorHandlerFails(t *testing.T) {
	stop := errors.New("stop")
	in := newTestInterp(t, WithBackgroundErrorHandler(func(string) error { return stop }))

	_, err := in.Eval("setTimeout(() => { throw new Error('x') }, 0)", ModeDirect)
	require.NoError(t, err)
	err = in.RunUntilQuit(runCtx(t))
	assert.ErrorIs(t, err, stop)
	assert.True(t, IsKind(err, KindFatalBackground))
}

func TestBackgroundErrorFirstWins(t *testing.T) {
	var infos []string
	in := newTestInterp(t, WithBackgroundErrorHandler(func(info string) error {
		infos = append(infos, info)
		return errors.New(info)
	}))

	_, err := in.Eval("reportError(new Error('one')); reportError(new Error('two'))", ModeDirect)
	require.NoError(t, err)

	_, err = in.Step(runCtx(t), DontWait)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "one")
	assert.Equal(t, []string{"Error: one"}, infos)
}

func TestReportErrorCancelled(t *testing.T) {
	in := newTestInterp(t)

	_, err := in.Eval(`addEventListener('error', (e) => { globalThis.caught = e.message; e.preventDefault() });
reportError(new Error('quiet'))`, ModeDirect)
	require.NoError(t, err)

	did, err := in.Step(runCtx(t), DontWait)
	assert.False(t, did)
	require.NoError(t, err)
	got, err := in.GetVar("caught")
	require.NoError(t, err)
	assert.Equal(t, "Error: quiet", got)
}

func TestSwallowedCallbackErrorInTimer(t *testing.T) {
	in := newTestInterp(t)
	boom := errors.New("boom")
	require.NoError(t, in.RegisterCommand("fail", func() error { return boom }))

	_, err := in.Eval("setTimeout(() => { try { fail() } catch (e) {} }, 0)", ModeDirect)
	require.NoError(t, err)

	err = in.RunUntilQuit(runCtx(t))
	assert.True(t, IsKind(err, KindFatalBackground))
	assert.True(t, IsKind(err, KindCallable))
	assert.ErrorIs(t, err, boom)
}

func TestStepFlags(t *testing.T) {
	in := newTestInterp(t)

	did, err := in.Step(runCtx(t), DontWait)
	require.NoError(t, err)
	assert.False(t, did)

	_, err = in.Eval("var n = 0; setTimeout(() => n++, 0)", ModeGlobal)
	require.NoError(t, err)
	onOther(func() { _, _ = in.Eval("n += 10", ModeGlobal) })

	did, err = in.Step(runCtx(t), DontWait|IdleEvents)
	require.NoError(t, err)
	assert.False(t, did, "idle step ignores timers and queued calls")

	did, err = in.Step(runCtx(t), DontWait|TimerEvents)
	require.NoError(t, err)
	assert.True(t, did)
	got, _ := in.GetVar("n")
	assert.Equal(t, int64(1), got)

	did, err = in.Step(runCtx(t), DontWait|WindowEvents)
	require.NoError(t, err)
	assert.True(t, did)
	got, _ = in.GetVar("n")
	assert.Equal(t, int64(11), got)
}

func TestStepBlocksUntilTimer(t *testing.T) {
	in := newTestInterp(t)
	_, err := in.Eval("var done = false; setTimeout(() => { done = true }, 20)", ModeGlobal)
	require.NoError(t, err)

	start := time.Now()
	did, err := in.Step(runCtx(t), TimerEvents)
	require.NoError(t, err)
	assert.True(t, did)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)
}

func TestStepWithoutFlagsDoesNotBlock(t *testing.T) {
	in := newTestInterp(t)
	_, err := in.Eval("setTimeout(() => {}, 500)", ModeGlobal)
	require.NoError(t, err)

	start := time.Now()
	did, err := in.Step(runCtx(t), 0)
	require.NoError(t, err)
	assert.False(t, did)
	assert.Less(t, time.Since(start), 250*time.Millisecond)
}

func TestStepWaitsOnlyForSelectedEvents(t *testing.T) {
	in := newTestInterp(t)
	_, err := in.Eval("var n = 0; setTimeout(() => { n = 1 }, 30)", ModeGlobal)
	require.NoError(t, err)
	onOther(func() { _, _ = in.Eval("n = 100", ModeGlobal) })

	start := time.Now()
	did, err := in.Step(runCtx(t), TimerEvents)
	require.NoError(t, err)
	assert.True(t, did)
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
	got, _ := in.GetVar("n")
	assert.Equal(t, int64(1), got, "the queued call stays queued")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	did, err = in.Step(ctx, TimerEvents)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, did)
}

func TestIdleRunsWhenNothingElse(t *testing.T) {
	in := newTestInterp(t)
	_, err := in.Eval(`var seen = [];
requestIdleCallback((d) => seen.push('idle:' + (d.timeRemaining() >= 0)));
setTimeout(() => seen.push('timer'), 0)`, ModeGlobal)
	require.NoError(t, err)

	drain(t, in)
	got, err := in.GetVar("seen")
	require.NoError(t, err)
	assert.Equal(t, []any{"timer", "idle:true"}, got)
}

func TestMicrotasksRunAfterEval(t *testing.T) {
	in := newTestInterp(t)

	_, err := in.Eval("var r = 0; Promise.resolve().then(() => { r = 1 })", ModeGlobal)
	require.NoError(t, err)
	got, err := in.GetVar("r")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestRunUntilQuitTwice(t *testing.T) {
	in := newTestInterp(t)
	require.NoError(t, in.RegisterCommand("nested", func() error {
		return in.RunUntilQuit(context.Background())
	}))
	require.NoError(t, in.RegisterCommand("quit", in.Quit))

	_, err := in.Eval("setTimeout(() => { try { nested() } finally { quit() } }, 0)", ModeDirect)
	require.NoError(t, err)
	err = in.RunUntilQuit(runCtx(t))
	assert.True(t, IsKind(err, KindCallable))
	assert.Contains(t, err.Error(), "already running")
}
