//go:build unix

package ipc

import "syscall"

// setNonblock lets os.NewFile register fd with the runtime poller.
func setNonblock(fd uintptr) error {
	return syscall.SetNonblock(int(fd), true)
}
