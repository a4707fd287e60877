//go:build !windows

package socket

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// reuseAddrControl sets SO_REUSEADDR on the listening socket before bind,
// mirroring the sockopt style of the teacher stack's CAN device layer
// (raw fd + golang.org/x/sys/unix.SetsockoptInt rather than the stdlib
// syscall package). This lets the ingestion service rebind quickly after a
// restart instead of hitting "address already in use" while the previous
// socket drains.
func reuseAddrControl(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
