package codec

import (
	"bytes"
	"unicode/utf8"

	"github.com/cryguy/jsbridge/internal/core"
)

// The engine stores NUL inside strings as the overlong pair C0 80 so that
// its strings never contain a zero byte.
var overlongNUL = []byte{0xC0, 0x80}

// hasHighByte reports whether b holds any byte >= 0x80.
func hasHighByte(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return true
		}
	}
	return false
}

// repairNUL collapses every C0 80 pair into a single zero byte. It returns
// b itself when no pair is present.
func repairNUL(b []byte) []byte {
	if !bytes.Contains(b, overlongNUL) {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] == 0xC0 && i+1 < len(b) && b[i+1] == 0x80 {
			out = append(out, 0)
			i++
			continue
		}
		out = append(out, b[i])
	}
	return out
}

// EngineString converts an untyped engine string to Go. Pure ASCII is
// returned as is. Anything else has its NUL encoding repaired and must
// then be valid UTF-8.
func EngineString(b []byte) (string, error) {
	if !hasHighByte(b) {
		return string(b), nil
	}
	b = repairNUL(b)
	if !utf8.Valid(b) {
		return "", core.Errorf(core.KindConversion, "", "string is not valid UTF-8: %q", b)
	}
	return string(b), nil
}
