package mmap

import (
	"os"
	"syscall"
)

func flushSync(f *os.File, mapping []byte) error {
	if mapping != nil {
		return msyncSync(mapping)
	}
	return syscall.Fdatasync(int(f.Fd()))
}

func flushAsync(f *os.File, mapping []byte) error {
	if mapping != nil {
		return msyncAsync(mapping)
	}
	return f.Sync()
}
