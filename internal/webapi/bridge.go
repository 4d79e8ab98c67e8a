package webapi

import (
	"fmt"

	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/eventloop"
)

// bridgeJS is the engine half of the value codec and the entry points the
// host evaluates. Values cross as JSON wire nodes, see internal/codec.
const bridgeJS = `
(function() {
'use strict';

var HEX = '0123456789abcdef';

function hex(bytes) {
	var out = [];
	for (var i = 0; i < bytes.length; i++) {
		var b = bytes[i];
		out.push(HEX[b >> 4] + HEX[b & 15]);
	}
	return out.join('');
}

function unhex(s) {
	var out = new Uint8Array(s.length >> 1);
	for (var i = 0; i < out.length; i++) out[i] = parseInt(s.substr(i * 2, 2), 16);
	return out;
}

// Engine strings use modified UTF-8: NUL is C0 80 and an unpaired
// surrogate is written as its own three-byte sequence.
function strBytes(str) {
	var out = [];
	for (var i = 0; i < str.length; i++) {
		var c = str.charCodeAt(i);
		if (c === 0) { out.push(0xC0, 0x80); continue; }
		if (c < 0x80) { out.push(c); continue; }
		if (c < 0x800) { out.push(0xC0 | (c >> 6), 0x80 | (c & 63)); continue; }
		if (c >= 0xD800 && c <= 0xDBFF && i + 1 < str.length) {
			var d = str.charCodeAt(i + 1);
			if (d >= 0xDC00 && d <= 0xDFFF) {
				var cp = 0x10000 + ((c - 0xD800) << 10) + (d - 0xDC00);
				out.push(0xF0 | (cp >> 18), 0x80 | ((cp >> 12) & 63), 0x80 | ((cp >> 6) & 63), 0x80 | (cp & 63));
				i++;
				continue;
			}
		}
		out.push(0xE0 | (c >> 12), 0x80 | ((c >> 6) & 63), 0x80 | (c & 63));
	}
	return out;
}

function latin1(b) {
	var out = [];
	for (var i = 0; i < b.length; i++) out.push(String.fromCharCode(b[i]));
	return out.join('');
}

// bytesStr decodes UTF-8, accepting C0 80 as NUL. Bytes that are not
// UTF-8 decode one code point per byte.
function bytesStr(b) {
	var out = [];
	var i = 0;
	while (i < b.length) {
		var c = b[i];
		if (c < 0x80) { out.push(String.fromCharCode(c)); i++; continue; }
		if (c === 0xC0 && b[i + 1] === 0x80) { out.push('\u0000'); i += 2; continue; }
		var n, cp, min;
		if ((c & 0xE0) === 0xC0) { n = 1; cp = c & 31; min = 0x80; }
		else if ((c & 0xF0) === 0xE0) { n = 2; cp = c & 15; min = 0x800; }
		else if ((c & 0xF8) === 0xF0) { n = 3; cp = c & 7; min = 0x10000; }
		else return latin1(b);
		for (var k = 1; k <= n; k++) {
			var x = b[i + k];
			if (x === undefined || (x & 0xC0) !== 0x80) return latin1(b);
			cp = (cp << 6) | (x & 63);
		}
		if (cp < min || cp > 0x10FFFF) return latin1(b);
		out.push(String.fromCodePoint(cp));
		i += n + 1;
	}
	return out.join('');
}

function conversionError(msg) {
	var e = new Error(msg);
	e.name = 'ConversionError';
	return e;
}

function isPlain(v) {
	var p = Object.getPrototypeOf(v);
	return p === Object.prototype || p === null;
}

function enc(v, stack) {
	if (v === null || v === undefined) return { t: 'n' };
	switch (typeof v) {
	case 'boolean':
		return { t: 'b', v: v };
	case 'bigint':
		return { t: 'i', v: v.toString() };
	case 'number':
		if (Number.isSafeInteger(v) && !(v === 0 && 1 / v < 0)) return { t: 'i', v: String(v) };
		if (v !== v) return { t: 'd', v: 'NaN' };
		if (v === Infinity) return { t: 'd', v: 'Infinity' };
		if (v === -Infinity) return { t: 'd', v: '-Infinity' };
		if (v === 0) return { t: 'd', v: '-0' };
		return { t: 'd', v: v };
	case 'string':
		return { t: 's', v: hex(strBytes(v)) };
	}
	if (v instanceof Uint8Array) return { t: 'y', v: hex(v) };
	if (v instanceof ArrayBuffer) return { t: 'y', v: hex(new Uint8Array(v)) };
	if (typeof v === 'object' && (Array.isArray(v) || v instanceof Map || isPlain(v))) {
		if (stack.indexOf(v) >= 0) throw conversionError('recursive structure');
		stack.push(v);
		try {
			if (Array.isArray(v)) {
				return { t: 'l', v: v.map(function(x) { return enc(x, stack); }) };
			}
			var pairs = [];
			if (v instanceof Map) {
				v.forEach(function(val, k) { pairs.push([enc(k, stack), enc(val, stack)]); });
			} else {
				Object.keys(v).forEach(function(k) { pairs.push([enc(k, stack), enc(v[k], stack)]); });
			}
			return { t: 'm', v: pairs };
		} finally {
			stack.pop();
		}
	}
	return { t: 's', v: hex(strBytes(String(v))) };
}

function dec(n) {
	switch (n.t) {
	case 'n':
		return null;
	case 'b':
		return n.v;
	case 'i':
		var num = Number(n.v);
		return Number.isSafeInteger(num) ? num : BigInt(n.v);
	case 'd':
		return Number(n.v);
	case 's':
	case 'u':
		return bytesStr(unhex(n.v));
	case 'y':
		return unhex(n.v);
	case 'l':
		return n.v.map(function(x) { return dec(x); });
	case 'm':
		var strKeys = n.v.every(function(p) { return p[0].t === 's' || p[0].t === 'u'; });
		if (strKeys) {
			var o = {};
			n.v.forEach(function(p) { o[dec(p[0])] = dec(p[1]); });
			return o;
		}
		var m = new Map();
		n.v.forEach(function(p) { m.set(dec(p[0]), dec(p[1])); });
		return m;
	}
	throw conversionError('unknown wire tag ' + n.t);
}

function encode(v) { return JSON.stringify(enc(v, [])); }
function decode(wire) { return dec(JSON.parse(wire)); }

function resolve(name) {
	if (typeof name !== 'string') throw new TypeError('command name must be a string');
	var self = globalThis;
	var fn = globalThis;
	var parts = name.split('.');
	for (var i = 0; i < parts.length; i++) {
		if (fn === null || fn === undefined) break;
		self = fn;
		fn = fn[parts[i]];
	}
	if (typeof fn !== 'function') throw new ReferenceError('invalid command name "' + name + '"');
	return { fn: fn, self: self };
}

var commands = Object.create(null);

function noVar(action, name) {
	return new ReferenceError("can't " + action + ' "' + name + '": no such variable');
}

function noElement(action, name, key) {
	return new ReferenceError("can't " + action + ' "' + name + '(' + key + ')": no such element in array');
}

function table(action, name, key) {
	var o = globalThis[name];
	if (o === null || typeof o !== 'object') {
		if (o === undefined) throw noVar(action, name + '(' + key + ')');
		throw new TypeError("can't " + action + ' "' + name + '(' + key + ')": variable isn\'t array');
	}
	return o;
}

var B = {
	encode: encode,
	decode: decode,

	call: function(wire) {
		var args = decode(wire);
		var target = resolve(args[0]);
		return encode(target.fn.apply(target.self, args.slice(1)));
	},

	canDefine: function(name) {
		var cur = globalThis[name];
		return cur === undefined || (commands[name] !== undefined && commands[name] === cur);
	},
	defineCommand: function(name) {
		var f = function() {
			var wire = encode(Array.prototype.slice.call(arguments));
			var env = JSON.parse(__bridge_invoke(name, wire));
			if (env.e !== undefined) {
				var err = new Error(env.e);
				err.name = 'CallbackError';
				throw err;
			}
			return decode(env.v);
		};
		commands[name] = f;
		globalThis[name] = f;
	},
	undefineCommand: function(name) {
		var f = commands[name];
		if (f === undefined) return false;
		if (globalThis[name] === f) delete globalThis[name];
		delete commands[name];
		return true;
	},

	getVar: function(name) {
		if (!(name in globalThis)) throw noVar('read', name);
		return encode(globalThis[name]);
	},
	setVar: function(name, wire) {
		globalThis[name] = decode(wire);
		return encode(globalThis[name]);
	},
	unsetVar: function(name) {
		if (!(name in globalThis)) throw noVar('unset', name);
		delete globalThis[name];
		return encode(null);
	},
	getElement: function(name, key) {
		var o = table('read', name, key);
		if (!(key in o)) throw noElement('read', name, key);
		return encode(o[key]);
	},
	setElement: function(name, key, wire) {
		if (globalThis[name] === undefined) globalThis[name] = {};
		var o = table('set', name, key);
		o[key] = decode(wire);
		return encode(o[key]);
	},
	unsetElement: function(name, key) {
		var o = table('unset', name, key);
		if (!(key in o)) throw noElement('unset', name, key);
		delete o[key];
		return encode(null);
	}
};

Object.defineProperty(globalThis, '__bridge', { value: B, writable: false, enumerable: false, configurable: false });
})();
`

// bridgeEvalJS defines __bridge.eval outside the prelude closure so that
// evaluated code sees only the global scope. A direct eval keeps the
// declarations of strict code local; the indirect form is global.
const bridgeEvalJS = `
__bridge.eval = function(__src, __global) {
	'use strict';
	var __r = __global ? (0, eval)(__src) : eval(__src);
	return __bridge.encode(__r);
};
`

// SetupBridge installs the __bridge prelude. invoke is called by every
// command wrapper with the command name and its wire-encoded arguments and
// returns an envelope, {"v":<wire>} or {"e":<message>}.
func SetupBridge(rt core.JSRuntime, _ *eventloop.EventLoop, invoke func(name, wire string) string) error {
	if err := rt.RegisterFunc("__bridge_invoke", invoke); err != nil {
		return err
	}
	if err := rt.Eval(bridgeJS); err != nil {
		return fmt.Errorf("evaluating bridge.js: %w", err)
	}
	if err := rt.Eval(bridgeEvalJS); err != nil {
		return fmt.Errorf("evaluating bridge eval: %w", err)
	}
	return nil
}
