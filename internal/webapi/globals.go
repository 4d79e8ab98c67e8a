package webapi

import (
	"fmt"
	"time"

	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/eventloop"
)

// globalsJS defines pure-JS polyfills for simple global APIs.
const globalsJS = `
globalThis.structuredClone = (function() {
	function cloneError(msg) {
		return new Error(msg);
	}

	function deepClone(value, seen) {
		if (value === undefined || value === null) return value;

		var type = typeof value;
		if (type === 'boolean' || type === 'number' || type === 'string' || type === 'bigint') return value;
		if (type === 'function' || type === 'symbol') throw cloneError('value could not be cloned');

		if (seen.has(value)) return seen.get(value);

		if (value instanceof Date) return new Date(value.getTime());
		if (value instanceof RegExp) return new RegExp(value.source, value.flags);
		if (value instanceof ArrayBuffer) return value.slice(0);
		if (value instanceof Uint8Array) return new Uint8Array(value);

		if (value instanceof Map) {
			var clonedMap = new Map();
			seen.set(value, clonedMap);
			value.forEach(function(v, k) {
				clonedMap.set(deepClone(k, seen), deepClone(v, seen));
			});
			return clonedMap;
		}

		if (Array.isArray(value)) {
			var arr = new Array(value.length);
			seen.set(value, arr);
			for (var i = 0; i < value.length; i++) {
				arr[i] = deepClone(value[i], seen);
			}
			return arr;
		}

		var result = {};
		seen.set(value, result);
		var keys = Object.keys(value);
		for (var j = 0; j < keys.length; j++) {
			result[keys[j]] = deepClone(value[keys[j]], seen);
		}
		return result;
	}

	return function structuredClone(value) {
		return deepClone(value, new Map());
	};
})();

globalThis.queueMicrotask = function(fn) {
	if (typeof fn !== 'function') throw new TypeError('queueMicrotask requires a function');
	Promise.resolve().then(fn);
};

globalThis.performance = {
	timeOrigin: Date.now(),
	now: function() { return __performanceNow(); }
};
`

// SetupGlobals registers structuredClone, queueMicrotask and a Go-backed
// performance.now(). It runs first: the event model timestamps with it.
func SetupGlobals(rt core.JSRuntime, _ *eventloop.EventLoop) error {
	startTime := time.Now()
	if err := rt.RegisterFunc("__performanceNow", func() float64 {
		return float64(time.Since(startTime).Nanoseconds()) / 1e6
	}); err != nil {
		return err
	}

	if err := rt.Eval(globalsJS); err != nil {
		return fmt.Errorf("evaluating globals.js: %w", err)
	}
	return nil
}
