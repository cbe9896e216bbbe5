//go:build unix

package terminal

import (
	"io"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// interruptibleInput returns a reader over in whose pending Read can be
// cancelled. For an *os.File the descriptor is duplicated in non-blocking
// mode so the runtime poller can wake the reader on a deadline; release
// restores the original mode and closes the duplicate. Other readers are
// returned as is with nil funcs.
func interruptibleInput(in io.Reader) (io.Reader, func(), func()) {
	f, ok := in.(*os.File)
	if !ok {
		return in, nil, nil
	}

	fd, err := unix.Dup(int(f.Fd()))
	if err != nil {
		return in, nil, nil
	}
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		_ = unix.Close(fd)
		return in, nil, nil
	}
	// O_NONBLOCK lives on the shared file description, so the original
	// flags are put back before the duplicate is closed
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return in, nil, nil
	}

	dup := os.NewFile(uintptr(fd), f.Name())
	interrupt := func() {
		_ = dup.SetReadDeadline(time.Now())
	}
	release := func() {
		_ = unix.SetNonblock(fd, flags&unix.O_NONBLOCK != 0)
		_ = dup.Close()
	}
	return dup, interrupt, release
}
