package jsbridge

import (
	"context"
	"fmt"

	"github.com/cryguy/jsbridge/internal/core"
)

// RunUntilQuit services events until Quit is called, the window is
// closed, ctx ends or a background error is raised. It returns ctx's error
// on cancellation and the background error, if any, otherwise.
func (in *Interp) RunUntilQuit(ctx context.Context) error {
	if err := in.ownerOnly("run"); err != nil {
		return err
	}
	if !in.running.CompareAndSwap(false, true) {
		return core.Errorf(core.KindUsage, "run", "loop is already running")
	}
	defer in.running.Store(false)

	for in.running.Load() && in.alive() {
		if err := ctx.Err(); err != nil {
			return err
		}
		did := in.step(core.AllEvents | core.DontWait)
		if in.state == stateFatal {
			return in.takePending()
		}
		if in.closed.Load() {
			return nil
		}
		if !did {
			if err := in.el.Wait(ctx, core.AllEvents, in.ErrCheckInterval()); err != nil {
				return err
			}
		}
	}
	return nil
}

// alive is false once a loaded window has been closed.
func (in *Interp) alive() bool {
	return !in.windowLoaded.Load() || !in.windowClosed.Load()
}

// Quit makes RunUntilQuit return after the event in progress. Safe from
// any goroutine.
func (in *Interp) Quit() {
	in.running.Store(false)
	in.el.Wake()
}

// Step services at most one event selected by flags and reports whether
// one ran. Zero flags select every category without blocking. Flags naming
// a category but not DontWait block until such an event runs or ctx ends.
// A background error raised by the event is returned.
func (in *Interp) Step(ctx context.Context, flags EventFlags) (bool, error) {
	if err := in.ownerOnly("step"); err != nil {
		return false, err
	}
	if flags == 0 {
		flags = DontWait
	}
	flags = flags.Normalize()
	for {
		did := in.step(flags)
		if in.state == stateFatal {
			return did, in.takePending()
		}
		if did || flags.Has(core.DontWait) || in.closed.Load() {
			return did, nil
		}
		if err := in.el.Wait(ctx, flags, in.ErrCheckInterval()); err != nil {
			return false, err
		}
	}
}

// step runs one event and routes any failure it leaves behind to the
// background error handler.
func (in *Interp) step(flags core.EventFlags) bool {
	did, err := in.el.DoOneEvent(in.rt, flags)
	if did && in.depth == 0 && !in.closed.Load() {
		in.rt.RunMicrotasks()
	}
	if err != nil {
		in.backgroundError(err)
	} else if in.state == statePending {
		// A callback failed inside a timer or microtask that caught the
		// exception.
		in.backgroundError(nil)
	}
	return did
}

// backgroundError raises err outside any tracked call. The first one wins
// until the loop driver reports it.
func (in *Interp) backgroundError(err error) {
	if in.state == statePending {
		if err == nil {
			err = in.pending
		} else if in.pending != nil {
			err = fmt.Errorf("%w (while handling: %v)", in.pending, err)
		}
		in.pending = nil
	}
	if in.state == stateFatal {
		in.log.Warn("dropping background error", "error", err)
		return
	}
	in.state = stateFatal

	info := ""
	if err != nil {
		info = err.Error()
	}
	if in.bgHandler == nil {
		in.pending = &core.Error{Kind: core.KindFatalBackground, Op: "bgerror", Err: err}
		in.log.Debug("background error", "error", err)
		return
	}
	if herr := in.callBgHandler(info); herr != nil {
		in.pending = &core.Error{Kind: core.KindFatalBackground, Op: "bgerror", Msg: info, Err: herr}
	} else {
		in.pending = nil
	}
}

func (in *Interp) callBgHandler(info string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("background error handler panicked: %v", r)
		}
	}()
	return in.bgHandler(info)
}
