package core

// EventFlags selects which event categories a loop step may process.
// The bit values are stable, so callers may store or forward them as ints.
type EventFlags int

const (
	DontWait     EventFlags = 1 << 1
	WindowEvents EventFlags = 1 << 2
	FileEvents   EventFlags = 1 << 3
	TimerEvents  EventFlags = 1 << 4
	IdleEvents   EventFlags = 1 << 5
	AllEvents    EventFlags = ^DontWait
)

// Normalize treats flags with no category bit as AllEvents, keeping DontWait.
func (f EventFlags) Normalize() EventFlags {
	if f&AllEvents == 0 {
		return f | AllEvents
	}
	return f
}

// Has reports whether any bit of c is set in f.
func (f EventFlags) Has(c EventFlags) bool { return f&c != 0 }

// FileMask describes file readiness conditions.
type FileMask int

const (
	Readable  FileMask = 1 << 1
	Writable  FileMask = 1 << 2
	Exception FileMask = 1 << 3
)
