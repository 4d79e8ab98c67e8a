//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package eventloop

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/cryguy/jsbridge/internal/core"
)

const pollSupported = true

// pollReady checks every descriptor with a zero timeout and returns, per
// descriptor, the requested conditions that are ready.
func pollReady(fds []int, masks []core.FileMask) ([]core.FileMask, error) {
	pfds := make([]unix.PollFd, len(fds))
	for i, fd := range fds {
		var events int16
		if masks[i]&core.Readable != 0 {
			events |= unix.POLLIN
		}
		if masks[i]&core.Writable != 0 {
			events |= unix.POLLOUT
		}
		if masks[i]&core.Exception != 0 {
			events |= unix.POLLPRI
		}
		pfds[i] = unix.PollFd{Fd: int32(fd), Events: events}
	}

	ready := make([]core.FileMask, len(fds))
	n, err := unix.Poll(pfds, 0)
	if errors.Is(err, unix.EINTR) {
		return ready, nil
	}
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return ready, nil
	}
	for i, p := range pfds {
		var got core.FileMask
		// A hung-up or failed descriptor reads as EOF or error, so it
		// counts as readable.
		if p.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			got |= core.Readable
		}
		if p.Revents&unix.POLLOUT != 0 {
			got |= core.Writable
		}
		if p.Revents&(unix.POLLPRI|unix.POLLNVAL) != 0 {
			got |= core.Exception
		}
		ready[i] = got & masks[i]
		if p.Revents&unix.POLLNVAL != 0 && ready[i] == 0 {
			ready[i] = masks[i]
		}
	}
	return ready, nil
}
