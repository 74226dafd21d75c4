package mmap

import "os"

func flushSync(f *os.File, _ []byte) error {
	return f.Sync()
}

func flushAsync(f *os.File, _ []byte) error {
	return f.Sync()
}
