//go:build unix

package mmap

import "golang.org/x/sys/unix"

func msyncSync(mapping []byte) error {
	return unix.Msync(mapping, unix.MS_SYNC)
}

func msyncAsync(mapping []byte) error {
	return unix.Msync(mapping, unix.MS_ASYNC)
}
