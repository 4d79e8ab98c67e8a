package webapi

import (
	"fmt"

	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/eventloop"
)

// eventsJS defines Event, CustomEvent, EventTarget, AbortSignal,
// AbortController and DOMException as pure JS polyfills.
const eventsJS = `
class Event {
	constructor(type, options) {
		this.type = String(type);
		this.bubbles = !!(options && options.bubbles);
		this.cancelable = !!(options && options.cancelable);
		this.defaultPrevented = false;
		this.target = null;
		this.currentTarget = null;
		this.timeStamp = performance.now();
		this._stop = false;
	}
	preventDefault() {
		if (this.cancelable) this.defaultPrevented = true;
	}
	stopPropagation() {}
	stopImmediatePropagation() { this._stop = true; }
}

class CustomEvent extends Event {
	constructor(type, init) {
		super(type, init);
		this.detail = (init && init.detail !== undefined) ? init.detail : null;
	}
}

class EventTarget {
	constructor() {
		this._listeners = {};
	}
	addEventListener(type, callback, options) {
		if (typeof callback !== 'function' && !(callback && typeof callback.handleEvent === 'function')) return;
		if (!this._listeners[type]) this._listeners[type] = [];
		for (const l of this._listeners[type]) {
			if (l.callback === callback) return;
		}
		const once = !!(options && options.once);
		this._listeners[type].push({ callback, once });
	}
	removeEventListener(type, callback) {
		if (!this._listeners[type]) return;
		this._listeners[type] = this._listeners[type].filter(l => l.callback !== callback);
	}
	dispatchEvent(event) {
		event.target = this;
		event.currentTarget = this;
		const handler = this['on' + event.type];
		const listeners = (this._listeners[event.type] || []).slice();
		if (typeof handler === 'function') listeners.unshift({ callback: handler, once: false });
		for (const entry of listeners) {
			if (entry.once) this.removeEventListener(event.type, entry.callback);
			if (typeof entry.callback === 'function') {
				entry.callback.call(this, event);
			} else {
				entry.callback.handleEvent(event);
			}
			if (event._stop) break;
		}
		return !event.defaultPrevented;
	}
}

class DOMException extends Error {
	constructor(message, name) {
		super(message || '');
		this.name = name || 'Error';
		this.message = message || '';
		this.code = 0;
	}
}

class AbortSignal extends EventTarget {
	constructor() {
		super();
		this.aborted = false;
		this.reason = undefined;
		this.onabort = null;
	}
	throwIfAborted() {
		if (this.aborted) throw this.reason;
	}
	_abort(reason) {
		if (this.aborted) return;
		this.aborted = true;
		this.reason = reason !== undefined ? reason : new DOMException('The operation was aborted.', 'AbortError');
		this.dispatchEvent(new Event('abort'));
	}
	static abort(reason) {
		const signal = new AbortSignal();
		signal._abort(reason);
		return signal;
	}
	static timeout(ms) {
		const signal = new AbortSignal();
		setTimeout(function() {
			signal._abort(new DOMException('The operation timed out.', 'TimeoutError'));
		}, ms);
		return signal;
	}
}

class AbortController {
	constructor() {
		this.signal = new AbortSignal();
	}
	abort(reason) {
		this.signal._abort(reason);
	}
}

globalThis.Event = Event;
globalThis.CustomEvent = CustomEvent;
globalThis.EventTarget = EventTarget;
globalThis.DOMException = DOMException;
globalThis.AbortSignal = AbortSignal;
globalThis.AbortController = AbortController;

(function() {
	var gt = new EventTarget();
	globalThis.addEventListener = gt.addEventListener.bind(gt);
	globalThis.removeEventListener = gt.removeEventListener.bind(gt);
	globalThis.dispatchEvent = gt.dispatchEvent.bind(gt);
})();
`

// SetupEvents evaluates the event model and makes globalThis an event target.
func SetupEvents(rt core.JSRuntime, _ *eventloop.EventLoop) error {
	if err := rt.Eval(eventsJS); err != nil {
		return fmt.Errorf("evaluating events.js: %w", err)
	}
	return nil
}
