package jsbridge

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cryguy/jsbridge/internal/affinity"
	"github.com/cryguy/jsbridge/internal/bundle"
	"github.com/cryguy/jsbridge/internal/codec"
	"github.com/cryguy/jsbridge/internal/core"
)

// EvalMode selects the scope a script is evaluated in.
type EvalMode int

const (
	// ModeDirect evaluates strict code in a scope of its own, so its
	// declarations do not outlive the evaluation.
	ModeDirect EvalMode = iota
	// ModeGlobal evaluates at global scope; var and function declarations
	// become properties of globalThis.
	ModeGlobal
)

func (m EvalMode) String() string {
	if m == ModeGlobal {
		return "global"
	}
	return "direct"
}

// Pending is the result of a CallAsync or EvalAsync.
type Pending struct {
	done chan struct{}
	once sync.Once
	val  any
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func (p *Pending) complete(v any, err error) {
	p.once.Do(func() {
		p.val, p.err = v, err
		close(p.done)
	})
}

// Done is closed once the result is available.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the result is available or ctx ends. Waiting on the
// owning goroutine for work it has queued to itself deadlocks unless the
// loop is driven elsewhere, so owners should select on Done while stepping.
func (p *Pending) Wait(ctx context.Context) (any, error) {
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Call invokes the engine function named by the first argument with the
// remaining arguments. A dotted name such as "console.log" is resolved
// from globalThis. A single []any argument is expanded. A nil argument
// ends the argument list.
//
// On the owning goroutine Call runs the function and returns its result.
// On any other goroutine it queues the call and returns (nil, nil) at once;
// a failure of such a call is reported as a background error.
func (in *Interp) Call(args ...any) (any, error) {
	vals, err := in.callArgs(args)
	if err != nil {
		return nil, err
	}
	if in.owner.Route() == affinity.Inline {
		return in.callValues(vals)
	}
	return nil, in.schedule(&queuedCall{proc: procCall, args: vals})
}

// CallAsync is Call with a result slot. On the owning goroutine the
// returned Pending is already complete.
func (in *Interp) CallAsync(args ...any) *Pending {
	p := newPending()
	vals, err := in.callArgs(args)
	if err != nil {
		p.complete(nil, err)
		return p
	}
	if in.owner.Route() == affinity.Inline {
		p.complete(in.callValues(vals))
		return p
	}
	if err := in.schedule(&queuedCall{proc: procCall, args: vals, result: p}); err != nil {
		p.complete(nil, err)
	}
	return p
}

// Eval evaluates script and returns its completion value. Routing follows
// Call.
func (in *Interp) Eval(script string, mode EvalMode) (any, error) {
	if in.closed.Load() {
		return nil, core.Wrap(core.KindUsage, "eval", core.ErrClosed)
	}
	if in.owner.Route() == affinity.Inline {
		return in.evalScript(script, mode)
	}
	return nil, in.schedule(&queuedCall{proc: procEval, script: script, mode: mode})
}

// EvalAsync is Eval with a result slot.
func (in *Interp) EvalAsync(script string, mode EvalMode) *Pending {
	p := newPending()
	if in.closed.Load() {
		p.complete(nil, core.Wrap(core.KindUsage, "eval", core.ErrClosed))
		return p
	}
	if in.owner.Route() == affinity.Inline {
		p.complete(in.evalScript(script, mode))
		return p
	}
	if err := in.schedule(&queuedCall{proc: procEval, script: script, mode: mode, result: p}); err != nil {
		p.complete(nil, err)
	}
	return p
}

// EvalFile loads a script file and evaluates it at global scope. TypeScript
// and ES module sources are transformed first, and a ".br" suffix marks a
// brotli-compressed file.
func (in *Interp) EvalFile(path string) (any, error) {
	src, err := bundle.Load(path)
	if err != nil {
		return nil, core.Wrap(core.KindUsage, "evalfile", err)
	}
	return in.Eval(src, ModeGlobal)
}

// callArgs converts arguments on the calling goroutine so that a
// conversion failure is reported before anything reaches the engine.
func (in *Interp) callArgs(args []any) ([]codec.Value, error) {
	if in.closed.Load() {
		return nil, core.Wrap(core.KindUsage, "call", core.ErrClosed)
	}
	if len(args) == 1 {
		if list, ok := args[0].([]any); ok {
			args = list
		}
	}
	if len(args) == 0 {
		return nil, core.Errorf(core.KindUsage, "call", "no function name given")
	}
	vals, err := in.codec.FromHostArgs(args)
	if err != nil {
		return nil, fmt.Errorf("call: %w", err)
	}
	if len(vals) == 0 {
		return nil, core.Errorf(core.KindUsage, "call", "no function name given")
	}
	return vals, nil
}

func (in *Interp) callValues(vals []codec.Value) (any, error) {
	return in.run("call", "__bridge.call("+codec.Literal(codec.MarshalList(vals))+")")
}

func (in *Interp) evalScript(script string, mode EvalMode) (any, error) {
	js := fmt.Sprintf("__bridge.eval.call(globalThis, %s, %t)", codec.Literal(script), mode == ModeGlobal)
	return in.run("eval", js)
}

// run evaluates a bridge entry point that returns a wire string and
// converts the result. A callback error recorded during the evaluation
// takes precedence over the engine's own error.
func (in *Interp) run(op, js string) (any, error) {
	in.depth++
	wire, err := in.rt.EvalString(js)
	in.depth--
	if in.depth == 0 {
		in.rt.RunMicrotasks()
	}
	if err != nil {
		return nil, in.engineError(op, err)
	}
	if in.depth == 0 && in.state == statePending {
		return nil, in.takePending()
	}
	v, err := codec.Unmarshal(wire)
	if err != nil {
		return nil, fmt.Errorf("%s: result: %w", op, err)
	}
	res, err := in.codec.ToHost(v)
	if err != nil {
		return nil, fmt.Errorf("%s: result: %w", op, err)
	}
	return res, nil
}

func (in *Interp) engineError(op string, err error) error {
	if in.state == statePending {
		return in.takePending()
	}
	msg := strings.TrimSpace(err.Error())
	kind := core.KindEngine
	if strings.Contains(msg, "ConversionError:") {
		kind = core.KindConversion
	}
	return &core.Error{Kind: kind, Op: op, Msg: msg}
}

// takePending clears a pending callback error and returns it.
func (in *Interp) takePending() error {
	err := in.pending
	in.state, in.pending = stateNone, nil
	return err
}
