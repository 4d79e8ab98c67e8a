package webapi

import (
	"encoding/json"
	"fmt"

	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/eventloop"
)

// windowJS installs globalThis.window, formatted with the window name as
// a JSON string literal.
const windowJS = `
(function(name) {
	'use strict';
	if (globalThis.window !== undefined) throw new Error('a global named window already exists');
	var w = new EventTarget();
	w.name = name;
	w.title = name;
	w.closed = false;
	w.close = function() {
		if (w.closed) return;
		w.closed = true;
		try {
			w.dispatchEvent(new Event('close'));
		} finally {
			__window_closed();
		}
	};
	globalThis.window = w;
	__bridge.windowEvent = function(type, wire) {
		if (w.closed) return __bridge.encode(false);
		w.dispatchEvent(new CustomEvent(type, { detail: __bridge.decode(wire) }));
		return __bridge.encode(true);
	};
})(%s);
`

// SetupWindow installs the window object. onClosed runs once the script
// closes it.
func SetupWindow(rt core.JSRuntime, _ *eventloop.EventLoop, name string, onClosed func()) error {
	exists, err := rt.EvalBool("typeof globalThis.window !== 'undefined'")
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("a global named window already exists")
	}
	if err := rt.RegisterFunc("__window_closed", onClosed); err != nil {
		return err
	}
	lit, err := json.Marshal(name)
	if err != nil {
		return err
	}
	if err := rt.Eval(fmt.Sprintf(windowJS, lit)); err != nil {
		return fmt.Errorf("evaluating window.js: %w", err)
	}
	return nil
}
