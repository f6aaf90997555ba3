// Package iox provides I/O helpers for resource cleanup.
package iox

import (
	"errors"
	"io"
	"os"
)

// DiscardClose closes c and discards the error.
// Use in defer statements where close errors are unactionable:
//
//	defer iox.DiscardClose(conn)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a cleanup function that closes c, suitable for
// t.Cleanup:
//
//	t.Cleanup(iox.CloseFunc(h))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// DiscardErr calls fn and discards the returned error.
//
//	defer iox.DiscardErr(logger.Sync)
func DiscardErr(fn func() error) { _ = fn() }

// RemoveFunc returns a function that closes f and deletes it from disk.
// Used to drop a partially written output after a failed encode.
func RemoveFunc(f *os.File) func() error {
	return func() error {
		closeErr := f.Close()
		rmErr := os.Remove(f.Name())
		if errors.Is(rmErr, os.ErrNotExist) {
			rmErr = nil
		}
		return errors.Join(closeErr, rmErr)
	}
}
