//go:build !v8

package quickjs

import (
	"reflect"
	"unsafe"

	"modernc.org/libc"
	lib "modernc.org/libquickjs"
	"modernc.org/quickjs"
)

// jobPump runs the VM's pending Promise jobs. The modernc.org/quickjs
// wrapper never calls JS_ExecutePendingJob, so the C runtime handle is
// taken from the VM's unexported fields once, at construction.
type jobPump struct {
	rt  uintptr
	tls *libc.TLS
}

// run executes pending jobs until the queue is empty or a job throws; the
// rest then run on the next call. It returns the number of jobs executed.
func (p *jobPump) run() int {
	if p == nil {
		return 0
	}
	n := 0
	for lib.XJS_ExecutePendingJob(p.tls, p.rt, 0) > 0 {
		n++
	}
	return n
}

// newJobPump returns nil when the VM layout is not the one expected:
//
//	type VM struct {
//	    ...
//	    runtime *runtime
//	}
//
//	type runtime struct {
//	    cRuntime uintptr
//	    tls      *libc.TLS
//	}
//
// (modernc.org/quickjs v0.17.1).
func newJobPump(vm *quickjs.VM) *jobPump {
	field := reflect.ValueOf(vm).Elem().FieldByName("runtime")
	if !field.IsValid() || field.IsNil() {
		return nil
	}
	rtv := reflect.NewAt(field.Type().Elem(), unsafe.Pointer(field.Pointer())).Elem()

	cRuntime := rtv.FieldByName("cRuntime")
	tls := rtv.FieldByName("tls")
	if !cRuntime.IsValid() || !tls.IsValid() || tls.IsNil() {
		return nil
	}
	return &jobPump{
		rt:  uintptr(cRuntime.Uint()),
		tls: (*libc.TLS)(unsafe.Pointer(tls.Pointer())),
	}
}
