package webapi

import (
	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/eventloop"
)

// SetupFunc installs one group of globals into a runtime.
type SetupFunc func(rt core.JSRuntime, el *eventloop.EventLoop) error

// Install runs fns in order and stops at the first failure.
func Install(rt core.JSRuntime, el *eventloop.EventLoop, fns ...SetupFunc) error {
	for _, setup := range fns {
		if err := setup(rt, el); err != nil {
			return err
		}
	}
	return nil
}
