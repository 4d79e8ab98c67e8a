//go:build v8

// Package v8engine runs the bridge on V8 through tommie/v8go. It is
// selected with the v8 build tag.
package v8engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	v8 "github.com/tommie/v8go"

	"github.com/cryguy/jsbridge/internal/core"
)

var errClosed = errors.New("v8: runtime is closed")

// v8Runtime implements core.JSRuntime for the V8 engine.
type v8Runtime struct {
	iso    *v8.Isolate
	ctx    *v8.Context
	closed bool
}

var _ core.JSRuntime = (*v8Runtime)(nil)

// New creates an isolate and context. A positive memoryLimitMB caps the heap.
func New(memoryLimitMB int) (core.JSRuntime, error) {
	var iso *v8.Isolate
	if memoryLimitMB > 0 {
		heap := uint64(memoryLimitMB) << 20
		iso = v8.NewIsolate(v8.WithResourceConstraints(heap/2, heap))
	} else {
		iso = v8.NewIsolate()
	}
	return &v8Runtime{iso: iso, ctx: v8.NewContext(iso)}, nil
}

// run evaluates js and renders a thrown value as "Name: message", the form
// the QuickJS backend reports.
func (r *v8Runtime) run(js, origin string) (*v8.Value, error) {
	if r.closed {
		return nil, errClosed
	}
	val, err := r.ctx.RunScript(js, origin)
	if err != nil {
		var jsErr *v8.JSError
		if errors.As(err, &jsErr) {
			return nil, errors.New(strings.TrimPrefix(jsErr.Message, "Uncaught "))
		}
		return nil, err
	}
	return val, nil
}

func (r *v8Runtime) Eval(js string) error {
	_, err := r.run(js, "bridge.js")
	return err
}

func (r *v8Runtime) EvalString(js string) (string, error) {
	val, err := r.run(js, "bridge.js")
	if err != nil || val == nil {
		return "", err
	}
	return val.String(), nil
}

func (r *v8Runtime) EvalBool(js string) (bool, error) {
	val, err := r.run(js, "bridge.js")
	if err != nil {
		return false, err
	}
	if val == nil || !val.IsBoolean() {
		return false, fmt.Errorf("expected bool, got %v", val)
	}
	return val.Boolean(), nil
}

// RegisterFunc installs fn as the global function name. Parameters and the
// first result may be string, any int kind, float64 or bool; a trailing
// error result makes the JavaScript call throw.
func (r *v8Runtime) RegisterFunc(name string, fn any) error {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func {
		return fmt.Errorf("register %s: expected function, got %T", name, fn)
	}
	ft := fv.Type()
	if ft.NumOut() > 2 {
		return fmt.Errorf("register %s: too many results", name)
	}

	tmpl := v8.NewFunctionTemplate(r.iso, func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		if len(args) < ft.NumIn() {
			return r.throw(fmt.Sprintf("%s: expected %d argument(s), got %d", name, ft.NumIn(), len(args)))
		}
		in := make([]reflect.Value, ft.NumIn())
		for i := range in {
			in[i] = fromJS(args[i], ft.In(i))
		}
		out := fv.Call(in)
		if n := len(out); n > 0 && ft.Out(n-1) == reflect.TypeFor[error]() {
			if e := out[n-1]; !e.IsNil() {
				return r.throw(fmt.Sprintf("calling %s: %v", name, e.Interface()))
			}
			out = out[:n-1]
		}
		if len(out) == 0 {
			return nil
		}
		v, err := r.toJS(out[0].Interface())
		if err != nil {
			return r.throw(fmt.Sprintf("%s: result: %v", name, err))
		}
		return v
	})
	return r.ctx.Global().Set(name, tmpl.GetFunction(r.ctx))
}

func (r *v8Runtime) throw(msg string) *v8.Value {
	v, _ := v8.NewValue(r.iso, msg)
	r.iso.ThrowException(v)
	return nil
}

// SetGlobal sets a global property. Values other than scalars pass through
// JSON.
func (r *v8Runtime) SetGlobal(name string, value any) error {
	v, err := r.toJS(value)
	if err != nil {
		return fmt.Errorf("converting value for %q: %w", name, err)
	}
	return r.ctx.Global().Set(name, v)
}

func (r *v8Runtime) RunMicrotasks() {
	if !r.closed {
		r.ctx.PerformMicrotaskCheckpoint()
	}
}

// Close disposes the context and isolate. Further calls are no-ops.
func (r *v8Runtime) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.ctx.Close()
	r.iso.Dispose()
}

func fromJS(val *v8.Value, t reflect.Type) reflect.Value {
	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(val.String()).Convert(t)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return reflect.ValueOf(val.Integer()).Convert(t)
	case reflect.Float32, reflect.Float64:
		return reflect.ValueOf(val.Number()).Convert(t)
	case reflect.Bool:
		return reflect.ValueOf(val.Boolean()).Convert(t)
	}
	return reflect.Zero(t)
}

func (r *v8Runtime) toJS(value any) (*v8.Value, error) {
	switch x := value.(type) {
	case nil:
		return v8.Undefined(r.iso), nil
	case *v8.Value:
		return x, nil
	case string, bool, float64:
		return v8.NewValue(r.iso, x)
	case int:
		return r.intValue(int64(x))
	case int32:
		return v8.NewValue(r.iso, x)
	case int64:
		return r.intValue(x)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return r.run("JSON.parse("+strconv.Quote(string(data))+")", "global.js")
}

// intValue keeps small integers as int32 so they do not become BigInts.
func (r *v8Runtime) intValue(i int64) (*v8.Value, error) {
	if i >= math.MinInt32 && i <= math.MaxInt32 {
		return v8.NewValue(r.iso, int32(i))
	}
	return v8.NewValue(r.iso, float64(i))
}
