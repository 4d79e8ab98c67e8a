package jsbridge

import (
	"github.com/cryguy/jsbridge/internal/core"
)

// CreateFileHandler calls fn whenever fd is ready for one of the
// conditions in mask. The handler runs during a file-event step with the
// conditions that were ready. An error from fn is a background error.
// Installing a handler for a descriptor that already has one replaces it.
func (in *Interp) CreateFileHandler(fd int, mask FileMask, fn func(fd int, ready FileMask) error) error {
	if err := in.ownerOnly("filehandler"); err != nil {
		return err
	}
	if fn == nil {
		return core.Wrap(core.KindUsage, "filehandler", core.ErrNotCallable)
	}
	if mask&(core.Readable|core.Writable|core.Exception) == 0 {
		return core.Errorf(core.KindUsage, "filehandler", "mask selects no condition")
	}
	err := in.el.SetFileHandler(fd, mask, func(ready core.FileMask) error {
		return fn(fd, ready)
	})
	if err != nil {
		return core.Wrap(core.KindUsage, "filehandler", err)
	}
	return nil
}

// DeleteFileHandler removes the handler for fd and reports whether one
// was installed.
func (in *Interp) DeleteFileHandler(fd int) bool {
	if in.ownerOnly("filehandler") != nil {
		return false
	}
	return in.el.DeleteFileHandler(fd)
}
