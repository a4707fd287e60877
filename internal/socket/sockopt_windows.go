//go:build windows

package socket

import "syscall"

// reuseAddrControl is a no-op on Windows: SO_REUSEADDR has different (and
// unsafe) semantics there, so the ingestion service relies on the OS
// default instead.
func reuseAddrControl(_, _ string, _ syscall.RawConn) error {
	return nil
}
