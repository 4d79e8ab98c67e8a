//go:build !v8

// Package quickjs runs the bridge on modernc.org/quickjs, a pure-Go
// transpilation of QuickJS.
package quickjs

import (
	"errors"
	"fmt"

	"modernc.org/quickjs"

	"github.com/cryguy/jsbridge/internal/core"
)

var errClosed = errors.New("quickjs: runtime is closed")

// qjsRuntime implements core.JSRuntime for the QuickJS engine.
type qjsRuntime struct {
	vm     *quickjs.VM
	jobs   *jobPump
	closed bool
}

var _ core.JSRuntime = (*qjsRuntime)(nil)

// New creates a QuickJS VM. A positive memoryLimitMB caps its heap.
func New(memoryLimitMB int) (core.JSRuntime, error) {
	vm, err := quickjs.NewVM()
	if err != nil {
		return nil, fmt.Errorf("creating QuickJS VM: %w", err)
	}
	if memoryLimitMB > 0 {
		vm.SetMemoryLimit(uintptr(memoryLimitMB) << 20)
	}
	return &qjsRuntime{vm: vm, jobs: newJobPump(vm)}, nil
}

// eval runs js in global scope and returns the result as a Go value.
func (r *qjsRuntime) eval(js string) (any, error) {
	if r.closed {
		return nil, errClosed
	}
	return r.vm.Eval(js, quickjs.EvalGlobal)
}

func (r *qjsRuntime) Eval(js string) error {
	if r.closed {
		return errClosed
	}
	v, err := r.vm.EvalValue(js, quickjs.EvalGlobal)
	if err != nil {
		return err
	}
	v.Free()
	return nil
}

func (r *qjsRuntime) EvalString(js string) (string, error) {
	res, err := r.eval(js)
	switch s := res.(type) {
	case nil, quickjs.Undefined:
		return "", err
	case string:
		return s, err
	default:
		return fmt.Sprint(res), err
	}
}

func (r *qjsRuntime) EvalBool(js string) (bool, error) {
	res, err := r.eval(js)
	if err != nil {
		return false, err
	}
	b, ok := res.(bool)
	if !ok {
		return false, fmt.Errorf("expected bool, got %T", res)
	}
	return b, nil
}

// RegisterFunc installs fn as the global function name. The VM returns a
// (T, error) result as a two-element array, so the binding is wrapped to
// unpack it and throw on a non-nil error.
func (r *qjsRuntime) RegisterFunc(name string, fn any) error {
	if r.closed {
		return errClosed
	}
	raw := "__raw_" + name
	if err := r.vm.RegisterFunc(raw, fn, false); err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	return r.Eval(fmt.Sprintf(`(function(raw) {
	delete globalThis[%[2]q];
	globalThis[%[1]q] = function() {
		var res = raw.apply(this, arguments);
		if (!Array.isArray(res)) return res;
		if (res[1] !== null && res[1] !== undefined) throw new TypeError("calling %[1]s: " + res[1]);
		return res[0];
	};
})(globalThis[%[2]q])`, name, raw))
}

func (r *qjsRuntime) SetGlobal(name string, value any) error {
	if r.closed {
		return errClosed
	}
	atom, err := r.vm.NewAtom(name)
	if err != nil {
		return fmt.Errorf("creating atom %q: %w", name, err)
	}
	glob := r.vm.GlobalObject()
	defer glob.Free()
	return glob.SetProperty(atom, value)
}

func (r *qjsRuntime) RunMicrotasks() {
	if !r.closed {
		r.jobs.run()
	}
}

// Close frees the VM. Further calls are no-ops.
func (r *qjsRuntime) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.vm.Close()
}
