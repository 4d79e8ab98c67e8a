package webapi

import (
	"context"
	"log/slog"

	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/eventloop"
)

// consoleJS builds globalThis.console on top of the Go-backed __console.
const consoleJS = `
(function() {
	function fmt(arg) {
		if (typeof arg === 'string') return arg;
		if (arg instanceof Error) return arg.name + ': ' + arg.message;
		if (typeof arg === 'object' && arg !== null) {
			try { return JSON.stringify(arg); } catch (e) { return String(arg); }
		}
		return String(arg);
	}
	function emit(level, args) {
		var parts = [];
		for (var j = 0; j < args.length; j++) parts.push(fmt(args[j]));
		__console(level, parts.join(' '));
	}
	var levels = ['log', 'info', 'warn', 'error', 'debug'];
	var con = {};
	for (var i = 0; i < levels.length; i++) {
		(function(lvl) {
			con[lvl] = function() { emit(lvl, arguments); };
		})(levels[i]);
	}
	con.trace = function() { emit('debug', arguments); };

	var timers = {};
	var counters = {};
	con.time = function(label) {
		timers[label || 'default'] = performance.now();
	};
	con.timeEnd = function(label) {
		var l = label || 'default';
		var start = timers[l];
		if (start === undefined) { con.warn('Timer "' + l + '" does not exist'); return; }
		delete timers[l];
		con.log(l + ': ' + (performance.now() - start).toFixed(3) + 'ms');
	};
	con.count = function(label) {
		var l = label || 'default';
		counters[l] = (counters[l] || 0) + 1;
		con.log(l + ': ' + counters[l]);
	};
	con.countReset = function(label) {
		counters[label || 'default'] = 0;
	};
	con.assert = function(cond) {
		if (cond) return;
		var rest = Array.prototype.slice.call(arguments, 1);
		rest.unshift('Assertion failed:');
		emit('error', rest);
	};
	con.dir = function(obj) { emit('log', [obj]); };
	globalThis.console = con;
})();
`

// consoleLevel maps a console method to a log level.
func consoleLevel(method string) slog.Level {
	switch method {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupConsole replaces globalThis.console with one that writes to log.
func SetupConsole(rt core.JSRuntime, _ *eventloop.EventLoop, log *slog.Logger) error {
	if err := rt.RegisterFunc("__console", func(method, message string) {
		log.Log(context.Background(), consoleLevel(method), message, "source", "console", "method", method)
	}); err != nil {
		return err
	}
	return rt.Eval(consoleJS)
}
