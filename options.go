package jsbridge

import (
	"log/slog"

	"github.com/cryguy/jsbridge/internal/core"
)

// Option configures New.
type Option func(*options)

type options struct {
	cfg        core.Config
	log        *slog.Logger
	bgHandler  func(info string) error
	window     *bool
	windowName *string
}

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets the logger used for engine console output and
// diagnostics. The default is slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithBackgroundErrorHandler installs fn as the handler for errors raised
// outside any tracked call. A non-nil return from fn is what RunUntilQuit
// or Step reports.
func WithBackgroundErrorHandler(fn func(info string) error) Option {
	return func(o *options) { o.bgHandler = fn }
}

// WithWindow loads the window capability at construction.
func WithWindow(load bool) Option {
	return func(o *options) { o.window = &load }
}

// WithWindowName names the window object.
func WithWindowName(name string) Option {
	return func(o *options) { o.windowName = &name }
}
