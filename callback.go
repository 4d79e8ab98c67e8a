package jsbridge

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"github.com/cryguy/jsbridge/internal/codec"
	"github.com/cryguy/jsbridge/internal/core"
)

var errorType = reflect.TypeFor[error]()

// command is a registered Go callable.
type command struct {
	name  string
	fn    reflect.Value
	extra []any
}

// RegisterCommand makes fn callable from the engine as the global function
// name. extra is appended to the engine's arguments on every invocation.
//
// fn may return nothing, one value, an error, or a value and an error.
// Engine arguments are adapted to fn's parameter types: numbers convert
// between numeric kinds when no precision is lost, strings convert to
// []byte, bools and numbers, and lists convert element by element. A
// returned error or a panic makes the engine-side call throw, and the
// error is reported by the host call that led to it.
//
// Registering over an existing command replaces it. A name held by any
// other global is rejected.
func (in *Interp) RegisterCommand(name string, fn any, extra ...any) error {
	if err := in.ownerOnly("register"); err != nil {
		return err
	}
	if name == "" {
		return core.Errorf(core.KindUsage, "register", "empty command name")
	}
	rv := reflect.ValueOf(fn)
	if !rv.IsValid() || rv.Kind() != reflect.Func || rv.IsNil() {
		return &core.Error{Kind: core.KindUsage, Op: "register", Msg: fmt.Sprintf("%s: %T", name, fn), Err: core.ErrNotCallable}
	}
	if err := checkResults(rv.Type()); err != nil {
		return core.Wrap(core.KindUsage, "register", fmt.Errorf("%s: %w", name, err))
	}

	lit := codec.Literal(name)
	free, err := in.rt.EvalBool("__bridge.canDefine(" + lit + ")")
	if err != nil {
		return &core.Error{Kind: core.KindEngine, Op: "register", Msg: err.Error()}
	}
	if !free {
		return core.Errorf(core.KindUsage, "register", "%q is already defined and is not a command", name)
	}
	if err := in.rt.Eval("__bridge.defineCommand(" + lit + ")"); err != nil {
		return &core.Error{Kind: core.KindEngine, Op: "register", Msg: err.Error()}
	}
	in.commands[name] = &command{name: name, fn: rv, extra: extra}
	return nil
}

// UnregisterCommand removes a command and reports whether it existed.
func (in *Interp) UnregisterCommand(name string) bool {
	if in.ownerOnly("unregister") != nil {
		return false
	}
	if _, ok := in.commands[name]; !ok {
		return false
	}
	delete(in.commands, name)
	if _, err := in.rt.EvalBool("__bridge.undefineCommand(" + codec.Literal(name) + ")"); err != nil {
		in.log.Warn("removing command from engine", "name", name, "error", err)
	}
	return true
}

// invoke is called by every engine-side command wrapper. It returns an
// envelope: {"v":wire} on success, {"e":message} when the call must throw.
func (in *Interp) invoke(name, wire string) string {
	if in.state == statePending {
		return errorEnvelope("a previous command failed")
	}
	cmd, ok := in.commands[name]
	if !ok {
		return in.fail(name, fmt.Errorf("invalid command name %q", name))
	}
	res, err := in.callCommand(cmd, wire)
	if err != nil {
		return in.fail(name, err)
	}
	return `{"v":` + codec.Literal(res) + `}`
}

func (in *Interp) callCommand(cmd *command, wire string) (string, error) {
	v, err := codec.Unmarshal(wire)
	if err != nil {
		return "", err
	}
	args, err := in.codec.ToHostList(v)
	if err != nil {
		return "", err
	}
	args = append(args, cmd.extra...)

	res, err := callReflect(cmd.fn, args)
	if err != nil {
		return "", err
	}
	out, err := in.codec.FromHost(res)
	if err != nil {
		return "", fmt.Errorf("result: %w", err)
	}
	return codec.Marshal(out), nil
}

// fail records err as the pending callback error unless one is already
// recorded, and returns the envelope that makes the wrapper throw.
func (in *Interp) fail(name string, err error) string {
	if in.state == stateNone {
		in.state = statePending
		in.pending = &core.Error{Kind: core.KindCallable, Op: "invoke", Msg: name, Err: err}
	}
	return errorEnvelope(err.Error())
}

func errorEnvelope(msg string) string {
	return `{"e":` + codec.Literal(msg) + `}`
}

func checkResults(t reflect.Type) error {
	switch t.NumOut() {
	case 0, 1:
		return nil
	case 2:
		if t.Out(1) != errorType {
			return fmt.Errorf("second result must be error, got %s", t.Out(1))
		}
		return nil
	default:
		return fmt.Errorf("at most two results are supported, got %d", t.NumOut())
	}
}

// callReflect calls fn with args adapted to its parameters. A panic in fn
// is returned as an error.
func callReflect(fn reflect.Value, args []any) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	in, err := adaptArgs(fn.Type(), args)
	if err != nil {
		return nil, err
	}
	return splitResults(fn.Type(), fn.Call(in))
}

func splitResults(t reflect.Type, out []reflect.Value) (any, error) {
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if t.Out(0) == errorType {
			return nil, asError(out[0])
		}
		return out[0].Interface(), nil
	default:
		if err := asError(out[1]); err != nil {
			return nil, err
		}
		return out[0].Interface(), nil
	}
}

func asError(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}

func adaptArgs(t reflect.Type, args []any) ([]reflect.Value, error) {
	n := t.NumIn()
	if t.IsVariadic() {
		if len(args) < n-1 {
			return nil, fmt.Errorf("wrong # args: expected at least %d, got %d", n-1, len(args))
		}
	} else if len(args) != n {
		return nil, fmt.Errorf("wrong # args: expected %d, got %d", n, len(args))
	}

	out := make([]reflect.Value, len(args))
	for i, a := range args {
		var pt reflect.Type
		if t.IsVariadic() && i >= n-1 {
			pt = t.In(n - 1).Elem()
		} else {
			pt = t.In(i)
		}
		v, err := adaptValue(a, pt)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

var errLossy = errors.New("value does not fit")

// adaptValue converts a decoded engine value to a parameter of type t.
func adaptValue(a any, t reflect.Type) (reflect.Value, error) {
	if a == nil {
		switch t.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot use null as %s", t)
	}
	rv := reflect.ValueOf(a)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := toInt(a)
		if err == nil && reflect.Zero(t).OverflowInt(i) {
			err = errLossy
		}
		if err != nil {
			return reflect.Value{}, fmt.Errorf("cannot use %v as %s: %w", a, t, err)
		}
		return reflect.ValueOf(i).Convert(t), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		i, err := toInt(a)
		if err == nil && (i < 0 || reflect.Zero(t).OverflowUint(uint64(i))) {
			err = errLossy
		}
		if err != nil {
			return reflect.Value{}, fmt.Errorf("cannot use %v as %s: %w", a, t, err)
		}
		return reflect.ValueOf(uint64(i)).Convert(t), nil

	case reflect.Float32, reflect.Float64:
		var f float64
		switch x := a.(type) {
		case int64:
			f = float64(x)
		case float64:
			f = x
		case string:
			var err error
			if f, err = strconv.ParseFloat(x, 64); err != nil {
				return reflect.Value{}, fmt.Errorf("cannot use %q as %s", x, t)
			}
		default:
			return reflect.Value{}, fmt.Errorf("cannot use %T as %s", a, t)
		}
		return reflect.ValueOf(f).Convert(t), nil

	case reflect.String:
		switch x := a.(type) {
		case []byte:
			return reflect.ValueOf(string(x)).Convert(t), nil
		case int64:
			return reflect.ValueOf(strconv.FormatInt(x, 10)).Convert(t), nil
		case float64:
			return reflect.ValueOf(strconv.FormatFloat(x, 'g', -1, 64)).Convert(t), nil
		case bool:
			return reflect.ValueOf(strconv.FormatBool(x)).Convert(t), nil
		}

	case reflect.Bool:
		switch x := a.(type) {
		case string:
			b, err := GetBoolean(x)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(b).Convert(t), nil
		case int64:
			return reflect.ValueOf(x != 0).Convert(t), nil
		}

	case reflect.Slice:
		if s, ok := a.(string); ok && t.Elem().Kind() == reflect.Uint8 {
			return reflect.ValueOf([]byte(s)).Convert(t), nil
		}
		if list, ok := a.([]any); ok {
			out := reflect.MakeSlice(t, len(list), len(list))
			for i, item := range list {
				v, err := adaptValue(item, t.Elem())
				if err != nil {
					return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
				}
				out.Index(i).Set(v)
			}
			return out, nil
		}

	case reflect.Map:
		if m, ok := a.(map[string]any); ok && t.Key().Kind() == reflect.String {
			out := reflect.MakeMapWithSize(t, len(m))
			for k, item := range m {
				v, err := adaptValue(item, t.Elem())
				if err != nil {
					return reflect.Value{}, fmt.Errorf("key %q: %w", k, err)
				}
				out.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), v)
			}
			return out, nil
		}
	}

	if rv.Kind() == t.Kind() && rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", a, t)
}

// toInt accepts integers, integral doubles and numeric strings.
func toInt(a any) (int64, error) {
	switch x := a.(type) {
	case int64:
		return x, nil
	case float64:
		if x != math.Trunc(x) || x < math.MinInt64 || x >= math.MaxInt64 {
			return 0, errLossy
		}
		return int64(x), nil
	case string:
		return strconv.ParseInt(x, 0, 64)
	}
	return 0, fmt.Errorf("not a number: %T", a)
}
