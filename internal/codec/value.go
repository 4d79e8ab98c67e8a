// Package codec converts values between Go and the embedded engine.
//
// Conversion goes through Value, a tagged union with a closed set of
// shapes. Go values become Values with Codec.FromHost, travel to the
// engine in the JSON wire form produced by Marshal, and come back through
// Unmarshal and Codec.ToHost.
package codec

import (
	"fmt"
	"math"
)

// Kind is the tag of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindDouble
	KindBytes // untyped engine string, classified on the way to Go
	KindText  // valid UTF-8
	KindList
	KindDict
	KindByteArray
)

var kindNames = [...]string{"null", "bool", "int", "double", "bytes", "text", "list", "dict", "bytearray"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is one marshalled value. The zero Value is Null.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	d     float64
	bytes []byte
	list  []Value
	dict  []Pair
}

// Pair is one Dict entry.
type Pair struct {
	Key, Val Value
}

func Null() Value              { return Value{} }
func Bool(b bool) Value        { return Value{kind: KindBool, b: b} }
func Int(i int64) Value        { return Value{kind: KindInt, i: i} }
func Double(d float64) Value   { return Value{kind: KindDouble, d: d} }
func Text(s string) Value      { return Value{kind: KindText, bytes: []byte(s)} }
func Bytes(b []byte) Value     { return Value{kind: KindBytes, bytes: clone(b)} }
func ByteArray(b []byte) Value { return Value{kind: KindByteArray, bytes: clone(b)} }
func List(items ...Value) Value {
	return Value{kind: KindList, list: items}
}
func Dict(pairs ...Pair) Value {
	return Value{kind: KindDict, dict: pairs}
}

func (v Value) Kind() Kind        { return v.kind }
func (v Value) IsNull() bool      { return v.kind == KindNull }
func (v Value) AsBool() bool      { return v.b }
func (v Value) AsInt() int64      { return v.i }
func (v Value) AsDouble() float64 { return v.d }

// AsBytes returns the raw bytes of a Bytes, Text or ByteArray value.
func (v Value) AsBytes() []byte { return v.bytes }
func (v Value) Items() []Value  { return v.list }
func (v Value) Pairs() []Pair   { return v.dict }

// Equal reports deep equality. Doubles compare by bit pattern so NaN
// equals NaN and -0 differs from 0.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindInt:
		return v.i == o.i
	case KindDouble:
		return math.Float64bits(v.d) == math.Float64bits(o.d)
	case KindBytes, KindText, KindByteArray:
		return string(v.bytes) == string(o.bytes)
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindDict:
		if len(v.dict) != len(o.dict) {
			return false
		}
		for i := range v.dict {
			if !v.dict[i].Key.Equal(o.dict[i].Key) || !v.dict[i].Val.Equal(o.dict[i].Val) {
				return false
			}
		}
		return true
	}
	return false
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprint(v.b)
	case KindInt:
		return fmt.Sprint(v.i)
	case KindDouble:
		return fmt.Sprint(v.d)
	case KindText:
		return fmt.Sprintf("%q", v.bytes)
	case KindBytes:
		return fmt.Sprintf("b%q", v.bytes)
	case KindByteArray:
		return fmt.Sprintf("bytearray(%x)", v.bytes)
	case KindList:
		return fmt.Sprint(v.list)
	case KindDict:
		return fmt.Sprint(v.dict)
	}
	return v.kind.String()
}

func clone(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
