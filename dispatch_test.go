package jsbridge

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallInline(t *testing.T) {
	in := newTestInterp(t)

	got, err := in.Call("Math.max", 1, 7, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got)

	got, err = in.Call([]any{"Math.min", 4, 2})
	require.NoError(t, err)
	assert.Equal(t, int64(2), got)

	got, err = in.Call("String.prototype.toUpperCase.call", "abc")
	require.NoError(t, err)
	assert.Equal(t, "ABC", got)
}

func TestCallNoArguments(t *testing.T) {
	in := newTestInterp(t)

	_, err := in.Call()
	assert.True(t, IsKind(err, KindUsage))
	_, err = in.Call(nil)
	assert.True(t, IsKind(err, KindUsage))
}

func TestCallTruncatesAtNil(t *testing.T) {
	in := newTestInterp(t)

	got, err := in.Call("Array.of", 1, nil, 3)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1)}, got)
}

func TestCallConversionFailure(t *testing.T) {
	in := newTestInterp(t)
	_, err := in.Eval("var touched = false", ModeGlobal)
	require.NoError(t, err)

	cyc := []any{nil}
	cyc[0] = cyc
	_, err = in.Call("eval", "touched = true", cyc)
	assert.ErrorIs(t, err, ErrRecursion)
	assert.Contains(t, err.Error(), "argument 2")

	got, err := in.GetVar("touched")
	require.NoError(t, err)
	assert.Equal(t, false, got)
}

func TestCallUnknownCommand(t *testing.T) {
	in := newTestInterp(t)

	_, err := in.Call("nope")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindEngine))
	assert.Contains(t, err.Error(), `invalid command name "nope"`)
}

func TestEvalValues(t *testing.T) {
	in := newTestInterp(t)

	tests := []struct {
		script string
		want   any
	}{
		{"1 + 2", int64(3)},
		{"1.5", 1.5},
		{"2 ** 60", float64(1 << 60)},
		{"4.0", int64(4)},
		{"'héllo'", "héllo"},
		{"'a\\u0000b'", "a\x00b"},
		{"null", nil},
		{"undefined", nil},
		{"true", true},
		{"[1, 'a', []]", []any{int64(1), "a", []any{}}},
		{"({a: 1, b: [true]})", map[string]any{"a": int64(1), "b": []any{true}}},
		{"new Uint8Array([0, 255])", []byte{0, 255}},
		{"new Map([[1, 'one']])", map[any]any{int64(1): "one"}},
	}
	for _, tt := range tests {
		// Subtests would run on other goroutines and queue the evaluation.
		got, err := in.Eval(tt.script, ModeDirect)
		require.NoError(t, err, tt.script)
		assert.Equal(t, tt.want, got, tt.script)
	}
}

func TestRoundTrip(t *testing.T) {
	in := newTestInterp(t)
	_, err := in.Eval("function identity(x) { return x }", ModeGlobal)
	require.NoError(t, err)

	values := []any{
		true,
		false,
		int64(-42),
		int64(1 << 40),
		2.5,
		"ascii",
		"ünïcødé ✓",
		"",
		[]any{},
		[]any{int64(1), []any{"x", []any{}}},
		map[string]any{"k": "v", "n": int64(3)},
	}
	for _, v := range values {
		got, err := in.Call("identity", v)
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
}

func TestEvalModes(t *testing.T) {
	in := newTestInterp(t)

	_, err := in.Eval("var local = 1; function f() {}", ModeDirect)
	require.NoError(t, err)
	got, err := in.Eval("typeof local + typeof f", ModeDirect)
	require.NoError(t, err)
	assert.Equal(t, "undefinedundefined", got)

	_, err = in.Eval("var shared = 2; function g() { return 3 }", ModeGlobal)
	require.NoError(t, err)
	got, err = in.Eval("shared + g()", ModeDirect)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got)
}

func TestEvalErrors(t *testing.T) {
	in := newTestInterp(t)

	_, err := in.Eval("1 +", ModeDirect)
	assert.True(t, IsKind(err, KindEngine))

	_, err = in.Eval("var a = []; a.push(a); a", ModeDirect)
	assert.True(t, IsKind(err, KindConversion))
	assert.Contains(t, err.Error(), "recursive structure")

	_, err = in.Eval("10n ** 20n", ModeDirect)
	assert.True(t, IsKind(err, KindConversion), "integer beyond int64")
}

func TestEvalFile(t *testing.T) {
	in := newTestInterp(t)
	path := t.TempDir() + "/lib.ts"
	require.NoError(t, os.WriteFile(path, []byte("const scale = (n: number): number => n * 3;\nvar tripled = scale(5);\n"), 0o644))

	_, err := in.EvalFile(path)
	require.NoError(t, err)
	got, err := in.GetVar("tripled")
	require.NoError(t, err)
	assert.Equal(t, int64(15), got)

	_, err = in.EvalFile(t.TempDir() + "/missing.js")
	assert.True(t, IsKind(err, KindUsage))
}

func TestCrossGoroutineFIFO(t *testing.T) {
	in := newTestInterp(t)
	_, err := in.Eval("var order = []", ModeGlobal)
	require.NoError(t, err)

	onOther(func() {
		for i := range 10 {
			v, err := in.Call("order.push", i)
			assert.NoError(t, err)
			assert.Nil(t, v)
		}
	})
	drain(t, in)

	got, err := in.GetVar("order")
	require.NoError(t, err)
	want := make([]any, 10)
	for i := range want {
		want[i] = int64(i)
	}
	assert.Equal(t, want, got)
}

func TestCrossGoroutineConcurrentProducers(t *testing.T) {
	in := newTestInterp(t)
	_, err := in.Eval("var hits = 0; function hit() { hits++ }", ModeGlobal)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 25 {
				_, _ = in.Call("hit")
			}
		}()
	}
	wg.Wait()
	drain(t, in)

	got, err := in.GetVar("hits")
	require.NoError(t, err)
	assert.Equal(t, int64(200), got)
}

func TestPendingResults(t *testing.T) {
	in := newTestInterp(t)

	p := in.CallAsync("Math.max", 2, 9)
	select {
	case <-p.Done():
	default:
		t.Fatal("owner calls complete inline")
	}

	var call, eval, bad *Pending
	onOther(func() {
		call = in.CallAsync("Math.max", 1, 5)
		eval = in.EvalAsync("'x'.repeat(3)", ModeDirect)
		bad = in.EvalAsync("throw new Error('queued')", ModeDirect)
	})
	drain(t, in)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := call.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got)
	got, err = eval.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "xxx", got)
	_, err = bad.Wait(ctx)
	assert.True(t, IsKind(err, KindEngine))
}

func TestPendingFailsOnClose(t *testing.T) {
	in := newTestInterp(t)

	var p *Pending
	onOther(func() { p = in.EvalAsync("1", ModeDirect) })
	require.NoError(t, in.Close())

	_, err := p.Wait(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	onOther(func() { _, err = in.Call("Math.max", 1) })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestFireAndForgetFailureIsBackgroundError(t *testing.T) {
	in := newTestInterp(t)

	onOther(func() { _, _ = in.Call("missingFunction") })
	did, err := in.Step(context.Background(), DontWait)
	assert.True(t, did)
	assert.True(t, IsKind(err, KindFatalBackground))
	assert.Contains(t, err.Error(), "missingFunction")
}
