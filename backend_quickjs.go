//go:build !v8

package jsbridge

import (
	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/quickjs"
)

func newRuntime(memoryLimitMB int) (core.JSRuntime, error) {
	return quickjs.New(memoryLimitMB)
}
