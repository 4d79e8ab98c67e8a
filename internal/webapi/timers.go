package webapi

import (
	"fmt"
	"time"

	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/eventloop"
)

// timersJS is the JavaScript polyfill for setTimeout/setInterval/clearTimeout/clearInterval
// and requestIdleCallback/cancelIdleCallback.
const timersJS = `
(function() {
	globalThis.__timerCallbacks = {};
	globalThis.__idleCallbacks = {};
	function rest(args, from) {
		var out = [];
		for (var i = from; i < args.length; i++) out.push(args[i]);
		return out;
	}
	globalThis.setTimeout = function(fn, delay) {
		if (typeof fn !== 'function') return 0;
		var id = __timerRegister(Math.max(0, Math.floor(Number(delay) || 0)), false);
		globalThis.__timerCallbacks[id] = { fn: fn, args: rest(arguments, 2) };
		return id;
	};
	globalThis.setInterval = function(fn, interval) {
		if (typeof fn !== 'function') return 0;
		var id = __timerRegister(Math.max(0, Math.floor(Number(interval) || 0)), true);
		globalThis.__timerCallbacks[id] = { fn: fn, args: rest(arguments, 2), interval: true };
		return id;
	};
	globalThis.clearTimeout = globalThis.clearInterval = function(id) {
		if (typeof id !== 'number') return;
		__timerClear(id);
		delete globalThis.__timerCallbacks[id];
	};
	globalThis.requestIdleCallback = function(fn) {
		if (typeof fn !== 'function') throw new TypeError('requestIdleCallback requires a function');
		var id = __idleRegister();
		globalThis.__idleCallbacks[id] = fn;
		return id;
	};
	globalThis.cancelIdleCallback = function(id) {
		if (typeof id !== 'number') return;
		__idleClear(id);
		delete globalThis.__idleCallbacks[id];
	};
})();
`

// schedulerJS defines globalThis.scheduler on top of the timers.
// Background-priority tasks run as idle callbacks.
const schedulerJS = `
globalThis.scheduler = {
	wait: function(ms) {
		return new Promise(function(resolve) {
			setTimeout(resolve, ms || 0);
		});
	},
	postTask: function(callback, options) {
		var delay = (options && options.delay) || 0;
		var signal = options && options.signal;
		var background = options && options.priority === 'background';
		return new Promise(function(resolve, reject) {
			if (signal && signal.aborted) {
				reject(signal.reason);
				return;
			}
			function run() {
				try { resolve(callback()); }
				catch (e) { reject(e); }
			}
			var cancel;
			if (background && delay === 0) {
				var idle = requestIdleCallback(run);
				cancel = function() { cancelIdleCallback(idle); };
			} else {
				var id = setTimeout(run, delay);
				cancel = function() { clearTimeout(id); };
			}
			if (signal) {
				signal.addEventListener('abort', function() {
					cancel();
					reject(signal.reason);
				});
			}
		});
	},
};
`

// SetupTimers registers Go-backed timers, idle callbacks and the scheduler global.
func SetupTimers(rt core.JSRuntime, el *eventloop.EventLoop) error {
	if err := rt.RegisterFunc("__timerRegister", func(delayMs int, isInterval bool) int {
		delay := time.Duration(delayMs) * time.Millisecond
		return el.RegisterTimer(delay, isInterval)
	}); err != nil {
		return err
	}
	if err := rt.RegisterFunc("__timerClear", func(id int) {
		el.ClearTimer(id)
	}); err != nil {
		return err
	}
	if err := rt.RegisterFunc("__idleRegister", func() int {
		return el.RegisterIdle()
	}); err != nil {
		return err
	}
	if err := rt.RegisterFunc("__idleClear", func(id int) {
		el.ClearIdle(id)
	}); err != nil {
		return err
	}

	if err := rt.Eval(timersJS); err != nil {
		return fmt.Errorf("evaluating timers.js: %w", err)
	}
	if err := rt.Eval(schedulerJS); err != nil {
		return fmt.Errorf("evaluating scheduler.js: %w", err)
	}
	return nil
}
