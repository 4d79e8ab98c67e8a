package core

// JSRuntime abstracts the JavaScript engine (QuickJS or V8) behind the
// small surface the bridge needs. Every method must be called on the
// goroutine that owns the runtime.
type JSRuntime interface {
	// Eval evaluates JavaScript source and discards the result.
	Eval(js string) error

	// EvalString evaluates JavaScript and returns the result as a Go string.
	EvalString(js string) (string, error)

	// EvalBool evaluates JavaScript and returns the result as a Go bool.
	EvalBool(js string) (bool, error)

	// RegisterFunc registers a Go function as a global JavaScript function.
	// Arguments and results are limited to string, int, float64 and bool.
	RegisterFunc(name string, fn any) error

	// SetGlobal sets a global variable. Basic Go types are auto-converted.
	SetGlobal(name string, value any) error

	// RunMicrotasks pumps the microtask queue (Promise callbacks, etc.).
	RunMicrotasks()

	// Close disposes the engine context. The runtime is unusable afterwards.
	Close()
}
