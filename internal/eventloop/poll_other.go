//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package eventloop

import (
	"errors"

	"github.com/cryguy/jsbridge/internal/core"
)

const pollSupported = false

func pollReady(fds []int, masks []core.FileMask) ([]core.FileMask, error) {
	return nil, errors.New("file polling is not supported on this platform")
}
