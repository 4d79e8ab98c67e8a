package jsbridge

import (
	"github.com/cryguy/jsbridge/internal/affinity"
	"github.com/cryguy/jsbridge/internal/core"
)

// Type aliases re-exporting internal/core types so callers need not import
// the internal package.

type Error = core.Error
type ErrorKind = core.Kind
type Config = core.Config
type RemoteConfig = core.RemoteConfig
type EventFlags = core.EventFlags
type FileMask = core.FileMask

// Token carries interpreter ownership between goroutines, see Release.
type Token = affinity.Token

// Error kinds.
const (
	KindConversion      = core.KindConversion
	KindEngine          = core.KindEngine
	KindCallable        = core.KindCallable
	KindFatalBackground = core.KindFatalBackground
	KindUsage           = core.KindUsage
	KindCapability      = core.KindCapability
)

// Step flags.
const (
	DontWait     = core.DontWait
	WindowEvents = core.WindowEvents
	FileEvents   = core.FileEvents
	TimerEvents  = core.TimerEvents
	IdleEvents   = core.IdleEvents
	AllEvents    = core.AllEvents
)

// File readiness conditions.
const (
	Readable  = core.Readable
	Writable  = core.Writable
	Exception = core.Exception
)

// Sentinel errors.
var (
	ErrRecursion   = core.ErrRecursion
	ErrNotCallable = core.ErrNotCallable
	ErrNotOwner    = core.ErrNotOwner
	ErrClosed      = core.ErrClosed
)

// Functions re-exported from core.
var (
	IsKind        = core.IsKind
	DefaultConfig = core.DefaultConfig
	LoadConfig    = core.LoadConfig
	ParseConfig   = core.ParseConfig
)
