//go:build !unix

package ipc

func setNonblock(uintptr) error { return nil }
