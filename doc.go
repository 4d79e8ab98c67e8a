// Package jsbridge connects Go to an embedded JavaScript engine.
//
// An Interp owns one engine context and is bound to the goroutine that
// created it. On that goroutine, Call and Eval run the engine directly.
// From any other goroutine they marshal their arguments, queue the work on
// the owner's event loop and return at once; CallAsync and EvalAsync do
// the same but hand back a Pending result. The owner services the queue,
// timers, idle callbacks, window events and file handlers with
// RunUntilQuit or Step.
//
// Go functions become engine functions with RegisterCommand. Values
// crossing the boundary in either direction go through a tagged Value
// representation, see internal/codec for the mapping.
package jsbridge
