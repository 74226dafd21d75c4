//go:build unix && !linux

package mmap

import "os"

func flushSync(f *os.File, mapping []byte) error {
	if mapping != nil {
		return msyncSync(mapping)
	}
	return f.Sync()
}

func flushAsync(f *os.File, mapping []byte) error {
	if mapping != nil {
		return msyncAsync(mapping)
	}
	return f.Sync()
}
