package webapi

import (
	"fmt"

	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/eventloop"
)

// reportErrorJS defines ErrorEvent and reportError. An error event that no
// listener cancels is handed to the host as a background error.
const reportErrorJS = `
class ErrorEvent extends Event {
	constructor(type, init) {
		super(type, { cancelable: true });
		this.error = init && init.error !== undefined ? init.error : null;
		this.message = (init && init.message) || '';
		this.filename = (init && init.filename) || '';
		this.lineno = (init && init.lineno) || 0;
		this.colno = (init && init.colno) || 0;
	}
}
globalThis.ErrorEvent = ErrorEvent;
globalThis.reportError = function(error) {
	var msg = '';
	if (error !== null && error !== undefined) {
		msg = error.message !== undefined ? String(error.message) : String(error);
		if (error instanceof Error && error.name) msg = error.name + ': ' + msg;
	}
	var ev = new ErrorEvent('error', { error: error, message: msg });
	if (globalThis.dispatchEvent(ev)) {
		__bridge_bgerror(msg);
	}
};
`

// SetupReportError installs reportError. Uncancelled reports call onError
// with the error's message.
func SetupReportError(rt core.JSRuntime, _ *eventloop.EventLoop, onError func(info string)) error {
	if err := rt.RegisterFunc("__bridge_bgerror", onError); err != nil {
		return err
	}
	if err := rt.Eval(reportErrorJS); err != nil {
		return fmt.Errorf("evaluating reporterror.js: %w", err)
	}
	return nil
}
