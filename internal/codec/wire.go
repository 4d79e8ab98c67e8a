package codec

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/cryguy/jsbridge/internal/core"
)

// Wire tags. Each Value travels as {"t":<tag>,"v":<payload>}.
const (
	tagNull      = "n"
	tagBool      = "b"
	tagInt       = "i" // decimal string, so int64 survives JavaScript numbers
	tagDouble    = "d" // number, or "NaN", "Infinity", "-Infinity", "-0"
	tagText      = "u" // hex of UTF-8
	tagBytes     = "s" // hex of an engine string (modified UTF-8)
	tagList      = "l"
	tagDict      = "m" // array of [key, value] pairs
	tagByteArray = "y" // hex
)

// Marshal encodes v in the wire form understood by the engine prelude.
func Marshal(v Value) string {
	return string(appendWire(nil, v))
}

// MarshalList encodes vals as one List.
func MarshalList(vals []Value) string {
	return Marshal(List(vals...))
}

// MarshalJSON implements json.Marshaler with the wire form.
func (v Value) MarshalJSON() ([]byte, error) {
	return appendWire(nil, v), nil
}

// UnmarshalJSON implements json.Unmarshaler with the wire form.
func (v *Value) UnmarshalJSON(data []byte) error {
	out, err := decodeNode(data)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

// Unmarshal decodes one wire-form Value.
func Unmarshal(wire string) (Value, error) {
	v, err := decodeNode([]byte(wire))
	if err != nil {
		return Value{}, core.Wrap(core.KindConversion, "", err)
	}
	return v, nil
}

// Literal quotes a wire string as a JavaScript string literal.
func Literal(wire string) string {
	b, _ := json.Marshal(wire)
	return string(b)
}

func appendWire(buf []byte, v Value) []byte {
	switch v.kind {
	case KindNull:
		return append(buf, `{"t":"n"}`...)
	case KindBool:
		buf = append(buf, `{"t":"b","v":`...)
		buf = strconv.AppendBool(buf, v.b)
	case KindInt:
		buf = append(buf, `{"t":"i","v":"`...)
		buf = strconv.AppendInt(buf, v.i, 10)
		buf = append(buf, '"')
	case KindDouble:
		buf = append(buf, `{"t":"d","v":`...)
		buf = appendDouble(buf, v.d)
	case KindText:
		buf = appendHex(append(buf, `{"t":"u","v":`...), v.bytes)
	case KindBytes:
		buf = appendHex(append(buf, `{"t":"s","v":`...), v.bytes)
	case KindByteArray:
		buf = appendHex(append(buf, `{"t":"y","v":`...), v.bytes)
	case KindList:
		buf = append(buf, `{"t":"l","v":[`...)
		for i, item := range v.list {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = appendWire(buf, item)
		}
		buf = append(buf, ']')
	case KindDict:
		buf = append(buf, `{"t":"m","v":[`...)
		for i, p := range v.dict {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = append(buf, '[')
			buf = appendWire(buf, p.Key)
			buf = append(buf, ',')
			buf = appendWire(buf, p.Val)
			buf = append(buf, ']')
		}
		buf = append(buf, ']')
	default:
		return append(buf, `{"t":"n"}`...)
	}
	return append(buf, '}')
}

func appendHex(buf, b []byte) []byte {
	buf = append(buf, '"')
	buf = hex.AppendEncode(buf, b)
	return append(buf, '"')
}

func appendDouble(buf []byte, d float64) []byte {
	switch {
	case math.IsNaN(d):
		return append(buf, `"NaN"`...)
	case math.IsInf(d, 1):
		return append(buf, `"Infinity"`...)
	case math.IsInf(d, -1):
		return append(buf, `"-Infinity"`...)
	case d == 0 && math.Signbit(d):
		return append(buf, `"-0"`...)
	}
	return strconv.AppendFloat(buf, d, 'g', -1, 64)
}

type node struct {
	T string          `json:"t"`
	V json.RawMessage `json:"v"`
}

func decodeNode(data []byte) (Value, error) {
	var n node
	if err := json.Unmarshal(data, &n); err != nil {
		return Value{}, fmt.Errorf("decoding wire value: %w", err)
	}
	switch n.T {
	case tagNull:
		return Null(), nil
	case tagBool:
		var b bool
		if err := json.Unmarshal(n.V, &b); err != nil {
			return Value{}, fmt.Errorf("decoding bool: %w", err)
		}
		return Bool(b), nil
	case tagInt:
		var s string
		if err := json.Unmarshal(n.V, &s); err != nil {
			return Value{}, fmt.Errorf("decoding int: %w", err)
		}
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("integer %s out of range", s)
		}
		return Int(i), nil
	case tagDouble:
		d, err := decodeDouble(n.V)
		if err != nil {
			return Value{}, err
		}
		return Double(d), nil
	case tagText, tagBytes, tagByteArray:
		var s string
		if err := json.Unmarshal(n.V, &s); err != nil {
			return Value{}, fmt.Errorf("decoding %s payload: %w", n.T, err)
		}
		b, err := hex.DecodeString(s)
		if err != nil {
			return Value{}, fmt.Errorf("decoding %s payload: %w", n.T, err)
		}
		switch n.T {
		case tagText:
			return Value{kind: KindText, bytes: b}, nil
		case tagBytes:
			return Value{kind: KindBytes, bytes: b}, nil
		}
		return Value{kind: KindByteArray, bytes: b}, nil
	case tagList:
		var raw []json.RawMessage
		if err := json.Unmarshal(n.V, &raw); err != nil {
			return Value{}, fmt.Errorf("decoding list: %w", err)
		}
		items := make([]Value, len(raw))
		for i, r := range raw {
			v, err := decodeNode(r)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return List(items...), nil
	case tagDict:
		var raw [][2]json.RawMessage
		if err := json.Unmarshal(n.V, &raw); err != nil {
			return Value{}, fmt.Errorf("decoding dict: %w", err)
		}
		pairs := make([]Pair, len(raw))
		for i, r := range raw {
			k, err := decodeNode(r[0])
			if err != nil {
				return Value{}, err
			}
			v, err := decodeNode(r[1])
			if err != nil {
				return Value{}, err
			}
			pairs[i] = Pair{Key: k, Val: v}
		}
		return Dict(pairs...), nil
	}
	return Value{}, fmt.Errorf("unknown wire tag %q", n.T)
}

func decodeDouble(raw json.RawMessage) (float64, error) {
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("decoding double: %w", err)
		}
		d, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("decoding double %q: %w", s, err)
		}
		return d, nil
	}
	var d float64
	if err := json.Unmarshal(raw, &d); err != nil {
		return 0, fmt.Errorf("decoding double: %w", err)
	}
	return d, nil
}
