// Package affinity tracks which goroutine owns a thread-affine resource
// and decides, per call, whether work runs inline or must be queued.
package affinity

import (
	"errors"
	"runtime"
	"sync/atomic"
)

// Route is the dispatch decision for one call.
type Route int

const (
	// Inline: the caller owns the resource and may use it directly.
	Inline Route = iota
	// Queue: the caller must hand the work to the owner.
	Queue
)

func (r Route) String() string {
	if r == Inline {
		return "inline"
	}
	return "queue"
}

var (
	errNotHeld    = errors.New("affinity: ownership not held by calling goroutine")
	errTokenSpent = errors.New("affinity: token already used")
)

// Owner records the owning goroutine. The zero Owner is unowned and
// routes every call to Queue.
type Owner struct {
	id atomic.Uint64
}

// Claim makes the calling goroutine the owner and returns its ID.
func (o *Owner) Claim() uint64 {
	id := GoroutineID()
	o.id.Store(id)
	return id
}

// ID returns the owning goroutine's ID, or 0 while ownership is in transit.
func (o *Owner) ID() uint64 { return o.id.Load() }

// Held reports whether the calling goroutine is the owner.
func (o *Owner) Held() bool {
	id := o.id.Load()
	return id != 0 && id == GoroutineID()
}

// Route decides how a call from the current goroutine must be dispatched.
func (o *Owner) Route() Route {
	if o.Held() {
		return Inline
	}
	return Queue
}

// Token carries ownership from one goroutine to another. It is produced by
// Release on the owner and consumed exactly once by Acquire.
type Token struct {
	owner *Owner
	spent atomic.Bool
}

// Release gives up ownership. Until the token is acquired no goroutine
// owns the resource.
func (o *Owner) Release() (*Token, error) {
	if !o.Held() {
		return nil, errNotHeld
	}
	o.id.Store(0)
	return &Token{owner: o}, nil
}

// Acquire makes the calling goroutine the owner.
func (t *Token) Acquire() (uint64, error) {
	if !t.spent.CompareAndSwap(false, true) {
		return 0, errTokenSpent
	}
	return t.owner.Claim(), nil
}

// GoroutineID returns the current goroutine's ID, parsed from the
// "goroutine NNN [" header of its stack trace.
func GoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
