package jsbridge

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/cryguy/jsbridge/internal/affinity"
	"github.com/cryguy/jsbridge/internal/codec"
	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/eventloop"
	"github.com/cryguy/jsbridge/internal/webapi"
)

// LoadWindow installs the window object. From a goroutine other than the
// owner the load is queued and LoadWindow returns at once; a failure is
// then raised as a background error.
func (in *Interp) LoadWindow() error {
	if in.closed.Load() {
		return core.Wrap(core.KindUsage, "loadwindow", core.ErrClosed)
	}
	if in.owner.Route() == affinity.Queue {
		return in.schedule(&queuedCall{proc: procLoadWindow})
	}
	return in.loadWindow()
}

func (in *Interp) loadWindow() error {
	if in.windowLoaded.Load() {
		return core.Errorf(core.KindCapability, "loadwindow", "window is already loaded")
	}
	if err := webapi.SetupWindow(in.rt, in.el, in.windowName, in.onWindowClosed); err != nil {
		return core.Wrap(core.KindCapability, "loadwindow", err)
	}
	in.windowClosed.Store(false)
	in.windowLoaded.Store(true)
	return nil
}

func (in *Interp) onWindowClosed() {
	in.windowClosed.Store(true)
	in.el.Wake()
}

// WindowLoaded reports whether the window object is installed.
func (in *Interp) WindowLoaded() bool { return in.windowLoaded.Load() }

// WindowClosed reports whether a loaded window has been closed.
func (in *Interp) WindowClosed() bool { return in.windowClosed.Load() }

// PostWindowEvent queues a CustomEvent of type typ with detail for the
// window. Safe from any goroutine; detail is converted on the caller. The
// event is dispatched during a window-event step, and a window that is
// not loaded by then raises a background error.
func (in *Interp) PostWindowEvent(typ string, detail any) error {
	if typ == "" {
		return core.Errorf(core.KindUsage, "windowevent", "empty event type")
	}
	v, err := in.codec.FromHost(detail)
	if err != nil {
		return fmt.Errorf("windowevent: %w", err)
	}
	js := fmt.Sprintf("__bridge.windowEvent(%s, %s)", codec.Literal(typ), codec.Literal(codec.Marshal(v)))
	ev := eventloop.Event{
		ID:   uuid.NewString(),
		Mask: core.WindowEvents,
		Run: func() error {
			if !in.windowLoaded.Load() {
				return core.Errorf(core.KindCapability, "windowevent", "window is not loaded")
			}
			delivered, err := in.run("windowevent", js)
			if err != nil {
				return err
			}
			if delivered != true {
				return core.Errorf(core.KindCapability, "windowevent", "window is closed")
			}
			return nil
		},
	}
	if !in.el.Enqueue(ev) {
		return core.Wrap(core.KindUsage, "windowevent", core.ErrClosed)
	}
	in.log.Debug("queued window event", "id", ev.ID, "type", typ)
	return nil
}
