package codec

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"sort"
	"unicode/utf8"

	"github.com/cryguy/jsbridge/internal/core"
)

// Codec converts between Go values and Values. Its only state is the
// logger used for fallback diagnostics, so one Codec may be shared.
type Codec struct {
	log *slog.Logger
}

// New returns a Codec logging to log, or to slog.Default when log is nil.
func New(log *slog.Logger) *Codec {
	if log == nil {
		log = slog.Default()
	}
	return &Codec{log: log}
}

// visitKey identifies a container by what it points at, so the same
// backing array or map seen twice on one path is a cycle.
type visitKey struct {
	typ reflect.Type
	ptr uintptr
	n   int
}

type visitSet map[visitKey]struct{}

// FromHost converts a Go value into a Value.
func (c *Codec) FromHost(v any) (Value, error) {
	return c.fromHost(reflect.ValueOf(v), visitSet{})
}

// FromHostArgs converts call arguments. A nil argument ends the list.
// Conversion is all-or-nothing.
func (c *Codec) FromHostArgs(args []any) ([]Value, error) {
	out := make([]Value, 0, len(args))
	for i, a := range args {
		if a == nil {
			break
		}
		v, err := c.FromHost(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

var valueType = reflect.TypeOf(Value{})

func (c *Codec) fromHost(rv reflect.Value, seen visitSet) (Value, error) {
	if !rv.IsValid() {
		return Null(), nil
	}
	if rv.Type() == valueType {
		return rv.Interface().(Value), nil
	}

	switch rv.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return Value{}, core.Errorf(core.KindConversion, "", "integer %d out of range", u)
		}
		return Int(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return Double(rv.Float()), nil
	case reflect.String:
		s := rv.String()
		if utf8.ValidString(s) {
			return Text(s), nil
		}
		return Bytes([]byte(s)), nil
	case reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return c.fromHost(rv.Elem(), seen)
	case reflect.Pointer:
		if rv.IsNil() {
			return Null(), nil
		}
		leave, err := seen.enter(rv)
		if err != nil {
			return Value{}, err
		}
		defer leave()
		return c.fromHost(rv.Elem(), seen)
	case reflect.Slice:
		if rv.IsNil() {
			return Null(), nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return ByteArray(rv.Bytes()), nil
		}
		leave, err := seen.enter(rv)
		if err != nil {
			return Value{}, err
		}
		defer leave()
		return c.fromSequence(rv, seen)
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			for i := range b {
				b[i] = byte(rv.Index(i).Uint())
			}
			return ByteArray(b), nil
		}
		return c.fromSequence(rv, seen)
	case reflect.Map:
		if rv.IsNil() {
			return Null(), nil
		}
		leave, err := seen.enter(rv)
		if err != nil {
			return Value{}, err
		}
		defer leave()
		return c.fromMap(rv, seen)
	}

	s := textForm(rv, seen)
	c.log.Warn("converting unsupported value through its text form", "type", rv.Type().String(), "text", s)
	return Text(s), nil
}

func (c *Codec) fromSequence(rv reflect.Value, seen visitSet) (Value, error) {
	items := make([]Value, rv.Len())
	for i := range items {
		v, err := c.fromHost(rv.Index(i), seen)
		if err != nil {
			return Value{}, err
		}
		items[i] = v
	}
	return List(items...), nil
}

func (c *Codec) fromMap(rv reflect.Value, seen visitSet) (Value, error) {
	type entry struct {
		pair Pair
		sort []byte
	}
	entries := make([]entry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k, err := c.fromHost(iter.Key(), seen)
		if err != nil {
			return Value{}, err
		}
		v, err := c.fromHost(iter.Value(), seen)
		if err != nil {
			return Value{}, err
		}
		entries = append(entries, entry{pair: Pair{Key: k, Val: v}, sort: appendWire(nil, k)})
	}
	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].sort, entries[j].sort) < 0
	})
	pairs := make([]Pair, len(entries))
	for i, e := range entries {
		pairs[i] = e.pair
	}
	return Dict(pairs...), nil
}

// enter registers a container on the current conversion path and returns
// the function that removes it again.
func (s visitSet) enter(rv reflect.Value) (func(), error) {
	key := visitKey{typ: rv.Type(), ptr: rv.Pointer()}
	if rv.Kind() == reflect.Slice {
		key.n = rv.Len()
		if key.n == 0 {
			return func() {}, nil
		}
	}
	if _, ok := s[key]; ok {
		return nil, core.Wrap(core.KindConversion, "", fmt.Errorf("%s: %w", rv.Type(), core.ErrRecursion))
	}
	s[key] = struct{}{}
	return func() { delete(s, key) }, nil
}

// ToHost converts a Value into a Go value: nil, bool, int64, float64,
// string, []byte, []any, map[string]any or map[any]any.
func (c *Codec) ToHost(v Value) (any, error) {
	switch v.kind {
	case KindNull:
		return nil, nil
	case KindBool:
		return v.b, nil
	case KindInt:
		return v.i, nil
	case KindDouble:
		return v.d, nil
	case KindText:
		return string(v.bytes), nil
	case KindBytes:
		return EngineString(v.bytes)
	case KindByteArray:
		return clone(v.bytes), nil
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			h, err := c.ToHost(item)
			if err != nil {
				return nil, err
			}
			out[i] = h
		}
		return out, nil
	case KindDict:
		return c.dictToHost(v.dict)
	}
	return nil, core.Errorf(core.KindConversion, "", "unknown value kind %d", v.kind)
}

func (c *Codec) dictToHost(pairs []Pair) (any, error) {
	keys := make([]any, len(pairs))
	vals := make([]any, len(pairs))
	allStrings := true
	for i, p := range pairs {
		k, err := c.ToHost(p.Key)
		if err != nil {
			return nil, err
		}
		if _, ok := k.(string); !ok {
			allStrings = false
			if k != nil && !reflect.TypeOf(k).Comparable() {
				return nil, core.Errorf(core.KindConversion, "", "unhashable dict key of type %T", k)
			}
		}
		v, err := c.ToHost(p.Val)
		if err != nil {
			return nil, err
		}
		keys[i], vals[i] = k, v
	}
	if allStrings {
		m := make(map[string]any, len(pairs))
		for i := range keys {
			m[keys[i].(string)] = vals[i]
		}
		return m, nil
	}
	m := make(map[any]any, len(pairs))
	for i := range keys {
		m[keys[i]] = vals[i]
	}
	return m, nil
}

// ToHostList converts a List into its elements.
func (c *Codec) ToHostList(v Value) ([]any, error) {
	if v.kind != KindList {
		return nil, core.Errorf(core.KindConversion, "", "expected list, got %s", v.kind)
	}
	h, err := c.ToHost(v)
	if err != nil {
		return nil, err
	}
	return h.([]any), nil
}
