//go:build !v8

package webapi

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryguy/jsbridge/internal/codec"
	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/eventloop"
	"github.com/cryguy/jsbridge/internal/quickjs"
)

type invocation struct {
	name, wire string
}

type testEnv struct {
	rt      core.JSRuntime
	el      *eventloop.EventLoop
	logs    *bytes.Buffer
	calls   []invocation
	reply   func(name, wire string) string
	reports []string
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	rt, err := quickjs.New(64)
	require.NoError(t, err)
	t.Cleanup(rt.Close)

	env := &testEnv{rt: rt, el: eventloop.New(), logs: &bytes.Buffer{}}
	log := slog.New(slog.NewTextHandler(env.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	err = Install(rt, env.el,
		SetupGlobals,
		SetupEvents,
		func(rt core.JSRuntime, el *eventloop.EventLoop) error { return SetupConsole(rt, el, log) },
		SetupTimers,
		func(rt core.JSRuntime, el *eventloop.EventLoop) error {
			return SetupReportError(rt, el, func(info string) { env.reports = append(env.reports, info) })
		},
		func(rt core.JSRuntime, el *eventloop.EventLoop) error {
			return SetupBridge(rt, el, func(name, wire string) string {
				env.calls = append(env.calls, invocation{name, wire})
				if env.reply != nil {
					return env.reply(name, wire)
				}
				return `{"v":` + codec.Literal(wire) + `}`
			})
		},
	)
	require.NoError(t, err)
	return env
}

func (e *testEnv) str(t *testing.T, js string) string {
	t.Helper()
	s, err := e.rt.EvalString(js)
	require.NoError(t, err)
	return s
}

func TestBridgeEncodeMatchesCodec(t *testing.T) {
	env := newEnv(t)

	tests := []struct {
		js   string
		want string
	}{
		{"null", codec.Marshal(codec.Null())},
		{"undefined", codec.Marshal(codec.Null())},
		{"true", codec.Marshal(codec.Bool(true))},
		{"-42", codec.Marshal(codec.Int(-42))},
		{"12345678901234567890n", `{"t":"i","v":"12345678901234567890"}`},
		{"1.5", codec.Marshal(codec.Double(1.5))},
		{"-0", `{"t":"d","v":"-0"}`},
		{"'a\\u0000'", codec.Marshal(codec.Bytes([]byte("a\xc0\x80")))},
		{"'é'", codec.Marshal(codec.Bytes([]byte("é")))},
		{"new Uint8Array([0, 255])", codec.Marshal(codec.ByteArray([]byte{0, 255}))},
		{"[1, [true]]", codec.Marshal(codec.List(codec.Int(1), codec.List(codec.Bool(true))))},
		{"({k: 1})", codec.Marshal(codec.Dict(codec.Pair{Key: codec.Bytes([]byte("k")), Val: codec.Int(1)}))},
	}
	for _, tt := range tests {
		t.Run(tt.js, func(t *testing.T) {
			assert.Equal(t, tt.want, env.str(t, "__bridge.encode("+tt.js+")"))
		})
	}
}

func TestBridgeEncodeSpecialDoubles(t *testing.T) {
	env := newEnv(t)

	got := env.str(t, "__bridge.encode([NaN, Infinity, -Infinity])")
	assert.Equal(t, `{"t":"l","v":[{"t":"d","v":"NaN"},{"t":"d","v":"Infinity"},{"t":"d","v":"-Infinity"}]}`, got)
}

func TestBridgeEncodeCycle(t *testing.T) {
	env := newEnv(t)

	_, err := env.rt.EvalString("var o = {}; o.self = o; __bridge.encode(o)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ConversionError")
}

func TestBridgeDecode(t *testing.T) {
	env := newEnv(t)

	tests := []struct {
		v     codec.Value
		check string
	}{
		{codec.Text("héllo"), "x === 'héllo'"},
		{codec.Bytes([]byte("a\xc0\x80b")), "x === 'a\\u0000b'"},
		{codec.Bytes([]byte{0xff, 0x41}), "x === '\\u00ffA'"},
		{codec.Int(1 << 60), "typeof x === 'bigint' && x === 1152921504606846976n"},
		{codec.Int(7), "x === 7"},
		{codec.Double(-1.25), "x === -1.25"},
		{codec.ByteArray([]byte{9}), "x instanceof Uint8Array && x[0] === 9"},
		{codec.Dict(codec.Pair{Key: codec.Text("a"), Val: codec.Null()}), "Object.getPrototypeOf(x) === Object.prototype && x.a === null"},
		{codec.Dict(codec.Pair{Key: codec.Int(1), Val: codec.Text("one")}), "x instanceof Map && x.get(1) === 'one'"},
	}
	for _, tt := range tests {
		t.Run(tt.v.String(), func(t *testing.T) {
			js := fmt.Sprintf("(function(x) { return %s })(__bridge.decode(%s))", tt.check, codec.Literal(codec.Marshal(tt.v)))
			ok, err := env.rt.EvalBool(js)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestBridgeCall(t *testing.T) {
	env := newEnv(t)

	wire := env.str(t, "__bridge.call("+codec.Literal(codec.MarshalList([]codec.Value{
		codec.Text("Math.max"), codec.Int(4), codec.Int(9),
	}))+")")
	assert.Equal(t, codec.Marshal(codec.Int(9)), wire)

	_, err := env.rt.EvalString("__bridge.call(" + codec.Literal(codec.MarshalList([]codec.Value{codec.Text("no.such")})) + ")")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid command name "no.such"`)
}

func TestBridgeEvalScopes(t *testing.T) {
	env := newEnv(t)

	assert.Equal(t, codec.Marshal(codec.Int(3)), env.str(t, "__bridge.eval.call(globalThis, 'var a = 3; a', false)"))
	ok, err := env.rt.EvalBool("typeof a === 'undefined'")
	require.NoError(t, err)
	assert.True(t, ok)

	env.str(t, "__bridge.eval.call(globalThis, 'var b = 4', true)")
	ok, err = env.rt.EvalBool("b === 4")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBridgeCommands(t *testing.T) {
	env := newEnv(t)

	ok, err := env.rt.EvalBool("__bridge.canDefine('echo')")
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, env.rt.Eval("__bridge.defineCommand('echo')"))

	got := env.str(t, "__bridge.encode(echo(1, 'x'))")
	assert.Equal(t, codec.Marshal(codec.List(codec.Int(1), codec.Bytes([]byte("x")))), got)
	require.Len(t, env.calls, 1)
	assert.Equal(t, "echo", env.calls[0].name)

	env.reply = func(string, string) string { return `{"e":"went wrong"}` }
	got = env.str(t, "try { echo() } catch (e) { e.name + ': ' + e.message }")
	assert.Equal(t, "CallbackError: went wrong", got)

	ok, err = env.rt.EvalBool("__bridge.canDefine('echo') && !__bridge.canDefine('Math')")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.rt.EvalBool("__bridge.undefineCommand('echo') && typeof echo === 'undefined' && !__bridge.undefineCommand('echo')")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBridgeIsReadOnly(t *testing.T) {
	env := newEnv(t)

	ok, err := env.rt.EvalBool("globalThis.__bridge = null; globalThis.__bridge !== null")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConsoleLevels(t *testing.T) {
	env := newEnv(t)

	require.NoError(t, env.rt.Eval("console.warn('careful', {n: 1}); console.debug('quiet'); console.log(new Error('e'))"))
	out := env.logs.String()
	assert.Contains(t, out, `level=WARN msg="careful {\"n\":1}"`)
	assert.Contains(t, out, "level=DEBUG msg=quiet")
	assert.Contains(t, out, `level=INFO msg="Error: e"`)
	assert.Contains(t, out, "source=console")
}

func TestConsoleLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, consoleLevel("warn"))
	assert.Equal(t, slog.LevelError, consoleLevel("error"))
	assert.Equal(t, slog.LevelDebug, consoleLevel("debug"))
	assert.Equal(t, slog.LevelInfo, consoleLevel("log"))
	assert.Equal(t, slog.LevelInfo, consoleLevel("info"))
}

func TestTimersRunThroughEventLoop(t *testing.T) {
	env := newEnv(t)

	require.NoError(t, env.rt.Eval("var fired = []; setTimeout((a, b) => fired.push(a + b), 0, 1, 2); var gone = setTimeout(() => fired.push('no'), 0); clearTimeout(gone)"))
	did, err := env.el.DoOneEvent(env.rt, core.TimerEvents)
	require.NoError(t, err)
	assert.True(t, did)
	did, err = env.el.DoOneEvent(env.rt, core.TimerEvents)
	require.NoError(t, err)
	assert.False(t, did)

	assert.Equal(t, codec.Marshal(codec.List(codec.Int(3))), env.str(t, "__bridge.encode(fired)"))
}

func TestSchedulerBackgroundTaskIsIdle(t *testing.T) {
	env := newEnv(t)

	require.NoError(t, env.rt.Eval("var out = null; scheduler.postTask(() => 'bg', { priority: 'background' }).then(v => { out = v })"))
	did, err := env.el.DoOneEvent(env.rt, core.TimerEvents)
	require.NoError(t, err)
	assert.False(t, did)

	did, err = env.el.DoOneEvent(env.rt, core.IdleEvents)
	require.NoError(t, err)
	assert.True(t, did)
	env.rt.RunMicrotasks()
	assert.Equal(t, "bg", env.str(t, "out"))
}

func TestEventTarget(t *testing.T) {
	env := newEnv(t)

	got := env.str(t, `
var t = new EventTarget(), seen = [];
t.onping = (e) => seen.push('on');
t.addEventListener('ping', (e) => seen.push('once'), { once: true });
t.addEventListener('ping', { handleEvent: (e) => seen.push(e.detail) });
t.dispatchEvent(new CustomEvent('ping', { detail: 'd' }));
t.dispatchEvent(new CustomEvent('ping', { detail: 'e' }));
seen.join(',')`)
	assert.Equal(t, "on,once,d,on,e", got)
}

func TestAbortController(t *testing.T) {
	env := newEnv(t)

	got := env.str(t, `
var c = new AbortController(), hits = 0;
c.signal.addEventListener('abort', () => hits++);
c.abort(); c.abort();
[c.signal.aborted, c.signal.reason.name, hits].join(',')`)
	assert.Equal(t, "true,AbortError,1", got)
}

func TestReportError(t *testing.T) {
	env := newEnv(t)

	require.NoError(t, env.rt.Eval("reportError(new TypeError('loud'))"))
	require.NoError(t, env.rt.Eval("addEventListener('error', (e) => e.preventDefault()); reportError('quiet')"))
	assert.Equal(t, []string{"TypeError: loud"}, env.reports)
}

func TestStructuredCloneKeepsCycles(t *testing.T) {
	env := newEnv(t)

	ok, err := env.rt.EvalBool("var o = {a: [1]}; o.self = o; var c = structuredClone(o); c !== o && c.self === c && c.a[0] === 1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWindow(t *testing.T) {
	env := newEnv(t)
	closed := 0
	require.NoError(t, SetupWindow(env.rt, env.el, "main", func() { closed++ }))

	assert.Equal(t, "main", env.str(t, "window.name"))
	require.NoError(t, env.rt.Eval("var got; window.addEventListener('ping', e => got = e.detail)"))
	delivered := env.str(t, fmt.Sprintf("__bridge.windowEvent('ping', %s)", codec.Literal(codec.Marshal(codec.Int(5)))))
	assert.Equal(t, codec.Marshal(codec.Bool(true)), delivered)
	assert.Equal(t, "5", env.str(t, "String(got)"))

	require.NoError(t, env.rt.Eval("window.close(); window.close()"))
	assert.Equal(t, 1, closed)
	delivered = env.str(t, `__bridge.windowEvent('ping', '{"t":"n"}')`)
	assert.Equal(t, codec.Marshal(codec.Bool(false)), delivered)

	err := SetupWindow(env.rt, env.el, "again", func() {})
	assert.ErrorContains(t, err, "already exists")
}
