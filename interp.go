package jsbridge

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cryguy/jsbridge/internal/affinity"
	"github.com/cryguy/jsbridge/internal/codec"
	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/eventloop"
	"github.com/cryguy/jsbridge/internal/webapi"
)

// errState tracks a callback failure between the moment a command fails
// and the moment the enclosing host operation reports it.
type errState int

const (
	stateNone errState = iota
	// statePending: a command failed and its error waits for the
	// enclosing call or eval to return.
	statePending
	// stateFatal: a background error was raised and the loop must stop.
	stateFatal
)

// Interp is a handle to one engine context. See the package documentation
// for which methods may be called from which goroutine.
type Interp struct {
	owner   affinity.Owner
	creator uint64

	rt    core.JSRuntime
	el    *eventloop.EventLoop
	codec *codec.Codec
	log   *slog.Logger
	cfg   core.Config

	windowName string

	running       atomic.Bool
	windowLoaded  atomic.Bool
	windowClosed  atomic.Bool
	closed        atomic.Bool
	checkInterval atomic.Int64

	// Owner-only state.
	state     errState
	pending   error
	depth     int
	commands  map[string]*command
	bgHandler func(info string) error
}

// New creates an interpreter owned by the calling goroutine.
func New(opts ...Option) (*Interp, error) {
	o := options{cfg: core.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.window != nil {
		o.cfg.Window = *o.window
	}
	if o.windowName != nil {
		o.cfg.WindowName = *o.windowName
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, core.Wrap(core.KindUsage, "new", err)
	}
	if o.log == nil {
		o.log = slog.Default()
	}

	rt, err := newRuntime(o.cfg.MemoryLimitMB)
	if err != nil {
		return nil, core.Wrap(core.KindEngine, "new", err)
	}

	in := &Interp{
		rt:         rt,
		el:         eventloop.New(),
		codec:      codec.New(o.log),
		log:        o.log,
		cfg:        o.cfg,
		windowName: o.cfg.WindowName,
		commands:   make(map[string]*command),
		bgHandler:  o.bgHandler,
	}
	in.creator = in.owner.Claim()
	in.checkInterval.Store(int64(o.cfg.ErrCheckInterval))

	err = webapi.Install(rt, in.el,
		webapi.SetupGlobals,
		webapi.SetupEvents,
		func(rt core.JSRuntime, el *eventloop.EventLoop) error {
			return webapi.SetupConsole(rt, el, in.log)
		},
		webapi.SetupTimers,
		func(rt core.JSRuntime, el *eventloop.EventLoop) error {
			return webapi.SetupReportError(rt, el, in.reportError)
		},
		func(rt core.JSRuntime, el *eventloop.EventLoop) error {
			return webapi.SetupBridge(rt, el, in.invoke)
		},
	)
	if err != nil {
		in.teardown()
		return nil, core.Wrap(core.KindEngine, "new", fmt.Errorf("installing prelude: %w", err))
	}

	if o.cfg.Window {
		if err := in.loadWindow(); err != nil {
			in.teardown()
			return nil, err
		}
	}
	return in, nil
}

// ownerOnly guards operations that touch the engine directly.
func (in *Interp) ownerOnly(op string) error {
	if in.closed.Load() {
		return core.Wrap(core.KindUsage, op, core.ErrClosed)
	}
	if !in.owner.Held() {
		return core.Wrap(core.KindUsage, op, core.ErrNotOwner)
	}
	return nil
}

// Close disposes the engine. Queued calls still waiting are dropped and
// their Pending results fail with ErrClosed. Close is owner-only; calling
// it again is a no-op.
func (in *Interp) Close() error {
	if in.closed.Load() {
		return nil
	}
	if !in.owner.Held() {
		return core.Wrap(core.KindUsage, "close", core.ErrNotOwner)
	}
	in.teardown()
	return nil
}

// teardown marks the handle closed, fails queued work and disposes the
// engine.
func (in *Interp) teardown() {
	in.closed.Store(true)
	in.running.Store(false)
	in.el.Close(core.Wrap(core.KindUsage, "close", core.ErrClosed))
	clear(in.commands)
	in.rt.Close()
}

// ThreadID returns the owning goroutine's ID, or 0 while ownership is
// being transferred.
func (in *Interp) ThreadID() uint64 { return in.owner.ID() }

// CreatorID returns the ID of the goroutine that called New.
func (in *Interp) CreatorID() uint64 { return in.creator }

// Running reports whether RunUntilQuit is active.
func (in *Interp) Running() bool { return in.running.Load() }

// Release gives up ownership so another goroutine can Acquire it.
func (in *Interp) Release() (*Token, error) {
	if err := in.ownerOnly("release"); err != nil {
		return nil, err
	}
	if in.running.Load() || in.depth > 0 {
		return nil, core.Errorf(core.KindUsage, "release", "interpreter is busy")
	}
	tok, err := in.owner.Release()
	if err != nil {
		return nil, core.Wrap(core.KindUsage, "release", err)
	}
	return tok, nil
}

// Acquire makes the calling goroutine the owner.
func (in *Interp) Acquire(tok *Token) error {
	if in.closed.Load() {
		return core.Wrap(core.KindUsage, "acquire", core.ErrClosed)
	}
	if tok == nil {
		return core.Errorf(core.KindUsage, "acquire", "nil token")
	}
	if _, err := tok.Acquire(); err != nil {
		return core.Wrap(core.KindUsage, "acquire", err)
	}
	return nil
}

// ErrCheckInterval returns the longest the loop driver waits between
// liveness checks.
func (in *Interp) ErrCheckInterval() time.Duration {
	return time.Duration(in.checkInterval.Load())
}

// SetErrCheckInterval changes the loop driver's bounded wait. Zero waits
// only for wake-ups, timers and cancellation. Safe from any goroutine.
func (in *Interp) SetErrCheckInterval(d time.Duration) error {
	if d < 0 {
		return core.Errorf(core.KindUsage, "errcheckinterval", "interval must not be negative, got %s", d)
	}
	in.checkInterval.Store(int64(d))
	in.el.Wake()
	return nil
}

// reportError receives reportError calls nobody cancelled.
func (in *Interp) reportError(info string) {
	in.backgroundError(errors.New(info))
}
