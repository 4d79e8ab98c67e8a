//go:build v8

package jsbridge

import (
	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/v8engine"
)

func newRuntime(memoryLimitMB int) (core.JSRuntime, error) {
	return v8engine.New(memoryLimitMB)
}
