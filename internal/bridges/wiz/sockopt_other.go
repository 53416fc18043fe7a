//go:build !unix && !windows

package wiz

import "syscall"

// enableBroadcast is a no-op where the platform has no socket options.
func enableBroadcast(_, _ string, _ syscall.RawConn) error {
	return nil
}
