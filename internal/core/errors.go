package core

import (
	"errors"
	"fmt"
)

// Kind classifies a bridge error.
type Kind int

const (
	// KindConversion: a value has no valid mapping, an invalid encoding,
	// or a cyclic structure.
	KindConversion Kind = iota + 1
	// KindEngine: the engine's own evaluation failed.
	KindEngine
	// KindCallable: a registered Go callable failed while invoked from the engine.
	KindCallable
	// KindFatalBackground: an error reached the engine's top level outside
	// any tracked call.
	KindFatalBackground
	// KindUsage: the API was misused (wrong goroutine, bad arguments, closed handle).
	KindUsage
	// KindCapability: the window capability could not be loaded.
	KindCapability
)

func (k Kind) String() string {
	switch k {
	case KindConversion:
		return "conversion error"
	case KindEngine:
		return "engine error"
	case KindCallable:
		return "callable error"
	case KindFatalBackground:
		return "fatal background error"
	case KindUsage:
		return "usage error"
	case KindCapability:
		return "capability error"
	default:
		return fmt.Sprintf("error kind %d", int(k))
	}
}

var (
	// ErrRecursion is wrapped by conversion errors caused by a container
	// that contains itself.
	ErrRecursion = errors.New("recursive structure")
	// ErrNotCallable is wrapped when a command target is not a function.
	ErrNotCallable = errors.New("object is not callable")
	// ErrNotOwner is returned by owner-only operations called from another goroutine.
	ErrNotOwner = errors.New("operation must run on the interpreter's owning goroutine")
	// ErrClosed is returned once the interpreter has been closed.
	ErrClosed = errors.New("interpreter is closed")
)

// Error is the structured error returned by every failing bridge operation.
type Error struct {
	Kind Kind
	Op   string // operation that failed: "call", "eval", "invoke", "bgerror", ...
	Msg  string // diagnostic text, usually the engine's own message
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	s := e.Kind.String()
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds an *Error of the given kind with a formatted message.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around err.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// IsKind reports whether any *Error in err's chain has the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}
