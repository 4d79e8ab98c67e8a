package codec

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

const cycleText = "<cycle>"

// textForm renders an unsupported value the way fmt's %v does, except that
// a map, slice or pointer already on the conversion path prints as
// <cycle> instead of being walked again.
func textForm(rv reflect.Value, seen visitSet) string {
	var b strings.Builder
	writeText(&b, rv, seen, 0)
	return b.String()
}

func writeText(b *strings.Builder, rv reflect.Value, seen visitSet, depth int) {
	if !rv.IsValid() {
		b.WriteString("<nil>")
		return
	}
	if s, ok := stringer(rv); ok {
		b.WriteString(s)
		return
	}

	switch rv.Kind() {
	case reflect.Bool:
		b.WriteString(strconv.FormatBool(rv.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		b.WriteString(strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		b.WriteString(strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32:
		b.WriteString(strconv.FormatFloat(rv.Float(), 'g', -1, 32))
	case reflect.Float64:
		b.WriteString(strconv.FormatFloat(rv.Float(), 'g', -1, 64))
	case reflect.Complex64, reflect.Complex128:
		fmt.Fprint(b, rv.Complex())
	case reflect.String:
		b.WriteString(rv.String())

	case reflect.Interface:
		writeText(b, rv.Elem(), seen, depth)

	case reflect.Pointer:
		if rv.IsNil() {
			b.WriteString("<nil>")
			return
		}
		// fmt follows a pointer only at the top level.
		switch rv.Elem().Kind() {
		case reflect.Struct, reflect.Array, reflect.Slice, reflect.Map:
			if depth == 0 {
				leave, err := seen.enter(rv)
				if err != nil {
					b.WriteString(cycleText)
					return
				}
				defer leave()
				b.WriteByte('&')
				writeText(b, rv.Elem(), seen, depth+1)
				return
			}
		}
		fmt.Fprintf(b, "0x%x", rv.Pointer())

	case reflect.Map:
		if rv.IsNil() {
			b.WriteString("map[]")
			return
		}
		leave, err := seen.enter(rv)
		if err != nil {
			b.WriteString(cycleText)
			return
		}
		defer leave()
		entries := make([]string, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			var e strings.Builder
			writeText(&e, iter.Key(), seen, depth+1)
			e.WriteByte(':')
			writeText(&e, iter.Value(), seen, depth+1)
			entries = append(entries, e.String())
		}
		sort.Strings(entries)
		b.WriteString("map[")
		b.WriteString(strings.Join(entries, " "))
		b.WriteByte(']')

	case reflect.Slice:
		if rv.Len() > 0 {
			leave, err := seen.enter(rv)
			if err != nil {
				b.WriteString(cycleText)
				return
			}
			defer leave()
		}
		writeItems(b, rv, seen, depth)
	case reflect.Array:
		writeItems(b, rv, seen, depth)

	case reflect.Struct:
		b.WriteByte('{')
		for i := range rv.NumField() {
			if i > 0 {
				b.WriteByte(' ')
			}
			writeText(b, rv.Field(i), seen, depth+1)
		}
		b.WriteByte('}')

	default:
		// func, chan, unsafe pointer
		if rv.IsNil() {
			b.WriteString("<nil>")
			return
		}
		fmt.Fprintf(b, "0x%x", rv.Pointer())
	}
}

func writeItems(b *strings.Builder, rv reflect.Value, seen visitSet, depth int) {
	b.WriteByte('[')
	for i := range rv.Len() {
		if i > 0 {
			b.WriteByte(' ')
		}
		writeText(b, rv.Index(i), seen, depth+1)
	}
	b.WriteByte(']')
}

// stringer uses an exported value's Error or String method, as fmt does. A
// panicking method falls back to the structural form.
func stringer(rv reflect.Value) (s string, ok bool) {
	if !rv.CanInterface() {
		return "", false
	}
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return "", false
	}
	defer func() {
		if recover() != nil {
			s, ok = "", false
		}
	}()
	switch x := rv.Interface().(type) {
	case error:
		return x.Error(), true
	case fmt.Stringer:
		return x.String(), true
	}
	return "", false
}
